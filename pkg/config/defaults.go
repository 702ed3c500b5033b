package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "slotbook"
	DefaultMongoConnTimeout  = 10 * time.Second
	DefaultStoreBackend      = StoreBackendMongo

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100

	DefaultOpeningTime      = "09:00"
	DefaultClosingTime      = "19:00"
	DefaultSlotDurationMin  = 30
	DefaultBusinessTimeZone = "Asia/Tashkent"

	DefaultLiveViewRefreshInterval = 1 * time.Minute
	DefaultStoreRetryMinBackoff    = 500 * time.Millisecond
	DefaultStoreRetryMaxBackoff    = 30 * time.Second

	DefaultJWTSecret               = "dev-secret-change-me"
	DefaultSessionTTL              = 30 * 24 * time.Hour
	DefaultVerificationCodeTTL     = 5 * time.Minute
	DefaultVerificationMaxAttempts = 5

	DefaultNotifyTransport = TransportKafka
	DefaultNotifyTopic     = "reservation-status"
	DefaultNotifyDLQTopic  = "reservation-status-dlq"
	DefaultNotifyGroupID   = "notifier"
	DefaultNATSURL         = "nats://localhost:4222"

	DefaultSMSSenderID = "4546"

	DefaultCORSAllowedOrigins = "*"
)

const (
	StoreBackendMongo  = "mongo"
	StoreBackendMemory = "memory"

	TransportKafka = "kafka"
	TransportNATS  = "nats"
	TransportNone  = "none"
)
