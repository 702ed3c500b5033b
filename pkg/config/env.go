package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"
	EnvStoreBackend      = "STORE_BACKEND"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvOpeningTime      = "BUSINESS_OPENING_TIME"
	EnvClosingTime      = "BUSINESS_CLOSING_TIME"
	EnvSlotDurationMin  = "SLOT_DURATION_MIN"
	EnvBusinessTimeZone = "BUSINESS_TIME_ZONE"
	EnvProviderPhones   = "PROVIDER_PHONES"

	EnvLiveViewRefreshInterval = "LIVEVIEW_REFRESH_INTERVAL"
	EnvStoreRetryMinBackoff    = "STORE_RETRY_MIN_BACKOFF"
	EnvStoreRetryMaxBackoff    = "STORE_RETRY_MAX_BACKOFF"

	EnvJWTSecret               = "JWT_SECRET"
	EnvSessionTTL              = "SESSION_TTL"
	EnvVerificationCodeTTL     = "VERIFICATION_CODE_TTL"
	EnvVerificationMaxAttempts = "VERIFICATION_MAX_ATTEMPTS"
	EnvRedisURL                = "REDIS_URL"

	EnvNotifyTransport = "NOTIFY_TRANSPORT"
	EnvNotifyTopic     = "NOTIFY_TOPIC"
	EnvNotifyDLQTopic  = "NOTIFY_DLQ_TOPIC"
	EnvNotifyGroupID   = "NOTIFY_GROUP_ID"
	EnvNATSURL         = "NATS_URL"

	EnvSMSGatewayURL      = "SMS_GATEWAY_URL"
	EnvSMSGatewayEmail    = "SMS_GATEWAY_EMAIL"
	EnvSMSGatewayPassword = "SMS_GATEWAY_PASSWORD"
	EnvSMSSenderID        = "SMS_SENDER_ID"

	EnvCORSAllowedOrigins = "CORS_ALLOWED_ORIGINS"
)
