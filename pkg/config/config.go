package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"slotbook/pkg/client"
	"slotbook/pkg/logger"
)

var (
	clockTimeRegex  = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	mongoURIRegex   = regexp.MustCompile(`^mongodb(\+srv)?://`)
	credentialRegex = regexp.MustCompile(`((?:mongodb(?:\+srv)?|redis|rediss|nats)://)[^:@/]*:[^@]+@`)
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration
	StoreBackend      string

	Port     string
	LogLevel string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	OpeningTime      string
	ClosingTime      string
	SlotDurationMin  int
	BusinessTimeZone string
	ProviderPhones   []string

	LiveViewRefreshInterval time.Duration
	StoreRetryMinBackoff    time.Duration
	StoreRetryMaxBackoff    time.Duration

	JWTSecret               string
	SessionTTL              time.Duration
	VerificationCodeTTL     time.Duration
	VerificationMaxAttempts int
	RedisURL                string

	NotifyTransport string
	NotifyTopic     string
	NotifyDLQTopic  string
	NotifyGroupID   string
	NATSURL         string

	SMSGatewayURL      string
	SMSGatewayEmail    string
	SMSGatewayPassword string
	SMSSenderID        string

	CORSAllowedOrigins []string

	Log    *logger.Logger
	Client *client.Client
}

// Load reads an optional .env file, then the environment. It exits the
// process when the resulting configuration is invalid.
func Load(serviceName string) *Config {
	_ = godotenv.Load()

	cfg := FromEnv()
	cfg.Log = logger.New(logger.Config{
		Level:     cfg.LogLevel,
		Format:    logger.JSON,
		AddSource: true,
		Service:   serviceName,
	})
	cfg.Client = client.NewClient()

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv builds a Config from environment variables and defaults without
// validating it.
func FromEnv() *Config {
	return &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),
		StoreBackend:      getEnvStr(EnvStoreBackend, DefaultStoreBackend),

		Port:     getEnvStr(EnvPort, DefaultPort),
		LogLevel: getEnvStr(EnvLogLevel, DefaultLogLevel),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		OpeningTime:      getEnvStr(EnvOpeningTime, DefaultOpeningTime),
		ClosingTime:      getEnvStr(EnvClosingTime, DefaultClosingTime),
		SlotDurationMin:  getEnvNum(EnvSlotDurationMin, DefaultSlotDurationMin),
		BusinessTimeZone: getEnvStr(EnvBusinessTimeZone, DefaultBusinessTimeZone),
		ProviderPhones:   getEnvList(EnvProviderPhones, ""),

		LiveViewRefreshInterval: getEnvDuration(EnvLiveViewRefreshInterval, DefaultLiveViewRefreshInterval),
		StoreRetryMinBackoff:    getEnvDuration(EnvStoreRetryMinBackoff, DefaultStoreRetryMinBackoff),
		StoreRetryMaxBackoff:    getEnvDuration(EnvStoreRetryMaxBackoff, DefaultStoreRetryMaxBackoff),

		JWTSecret:               getEnvStr(EnvJWTSecret, DefaultJWTSecret),
		SessionTTL:              getEnvDuration(EnvSessionTTL, DefaultSessionTTL),
		VerificationCodeTTL:     getEnvDuration(EnvVerificationCodeTTL, DefaultVerificationCodeTTL),
		VerificationMaxAttempts: getEnvNum(EnvVerificationMaxAttempts, DefaultVerificationMaxAttempts),
		RedisURL:                getEnvStr(EnvRedisURL, ""),

		NotifyTransport: strings.ToLower(getEnvStr(EnvNotifyTransport, DefaultNotifyTransport)),
		NotifyTopic:     getEnvStr(EnvNotifyTopic, DefaultNotifyTopic),
		NotifyDLQTopic:  getEnvStr(EnvNotifyDLQTopic, DefaultNotifyDLQTopic),
		NotifyGroupID:   getEnvStr(EnvNotifyGroupID, DefaultNotifyGroupID),
		NATSURL:         getEnvStr(EnvNATSURL, DefaultNATSURL),

		SMSGatewayURL:      getEnvStr(EnvSMSGatewayURL, ""),
		SMSGatewayEmail:    getEnvStr(EnvSMSGatewayEmail, ""),
		SMSGatewayPassword: getEnvStr(EnvSMSGatewayPassword, ""),
		SMSSenderID:        getEnvStr(EnvSMSSenderID, DefaultSMSSenderID),

		CORSAllowedOrigins: getEnvList(EnvCORSAllowedOrigins, DefaultCORSAllowedOrigins),
	}
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisURL, cfg.MongoConnTimeout)
}

func (cfg *Config) SetNATS() {
	cfg.Client.SetNATS(cfg.Log, cfg.NATSURL)
}

// Location returns the business-local time zone. Validate guarantees it loads.
func (cfg *Config) Location() *time.Location {
	loc, err := time.LoadLocation(cfg.BusinessTimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StoreBackend {
	case StoreBackendMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !mongoURIRegex.MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
	case StoreBackendMemory:
	default:
		errors = append(errors, fmt.Sprintf("StoreBackend must be %q or %q, got: %s", StoreBackendMongo, StoreBackendMemory, cfg.StoreBackend))
	}

	if _, ok := logger.ParseLevel(cfg.LogLevel); !ok {
		errors = append(errors, fmt.Sprintf("LogLevel must be one of debug, info, warn, error, got: %s", cfg.LogLevel))
	}

	if !clockTimeRegex.MatchString(cfg.OpeningTime) {
		errors = append(errors, fmt.Sprintf("OpeningTime must be in HH:MM format (00:00-23:59), got: %s", cfg.OpeningTime))
	}
	if !clockTimeRegex.MatchString(cfg.ClosingTime) {
		errors = append(errors, fmt.Sprintf("ClosingTime must be in HH:MM format (00:00-23:59), got: %s", cfg.ClosingTime))
	}
	// HH:MM compares correctly as a string once both are well formed.
	if clockTimeRegex.MatchString(cfg.OpeningTime) && clockTimeRegex.MatchString(cfg.ClosingTime) && cfg.ClosingTime <= cfg.OpeningTime {
		errors = append(errors, fmt.Sprintf("ClosingTime (%s) must be after OpeningTime (%s)", cfg.ClosingTime, cfg.OpeningTime))
	}
	if cfg.SlotDurationMin <= 0 {
		errors = append(errors, fmt.Sprintf("SlotDurationMin must be positive, got: %d", cfg.SlotDurationMin))
	}
	if _, err := time.LoadLocation(cfg.BusinessTimeZone); err != nil {
		errors = append(errors, fmt.Sprintf("BusinessTimeZone is not a known IANA zone: %s", cfg.BusinessTimeZone))
	}

	positive := []struct {
		name  string
		value time.Duration
	}{
		{"MongoConnTimeout", cfg.MongoConnTimeout},
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
		{"StoreRetryMinBackoff", cfg.StoreRetryMinBackoff},
		{"SessionTTL", cfg.SessionTTL},
		{"VerificationCodeTTL", cfg.VerificationCodeTTL},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", p.name, p.value))
		}
	}
	if cfg.StoreRetryMaxBackoff < cfg.StoreRetryMinBackoff {
		errors = append(errors, fmt.Sprintf("StoreRetryMaxBackoff (%s) must be >= StoreRetryMinBackoff (%s)", cfg.StoreRetryMaxBackoff, cfg.StoreRetryMinBackoff))
	}
	if cfg.LiveViewRefreshInterval < 0 {
		errors = append(errors, fmt.Sprintf("LiveViewRefreshInterval cannot be negative, got: %s", cfg.LiveViewRefreshInterval))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.VerificationMaxAttempts <= 0 {
		errors = append(errors, fmt.Sprintf("VerificationMaxAttempts must be positive, got: %d", cfg.VerificationMaxAttempts))
	}
	if len(cfg.JWTSecret) < 16 {
		errors = append(errors, "JWTSecret must be at least 16 characters")
	}

	switch cfg.NotifyTransport {
	case TransportKafka:
		if cfg.NotifyTopic == "" {
			errors = append(errors, "NotifyTopic cannot be empty when NotifyTransport is kafka")
		}
	case TransportNATS:
		if cfg.NATSURL == "" {
			errors = append(errors, "NATSURL cannot be empty when NotifyTransport is nats")
		}
	case TransportNone:
	default:
		errors = append(errors, fmt.Sprintf("NotifyTransport must be one of kafka, nats, none, got: %s", cfg.NotifyTransport))
	}

	if cfg.SMSGatewayURL != "" && (cfg.SMSGatewayEmail == "" || cfg.SMSGatewayPassword == "") {
		errors = append(errors, "SMSGatewayEmail and SMSGatewayPassword are required when SMSGatewayURL is set")
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"store_backend", cfg.StoreBackend,
		"mongo_uri", redactURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"opening_time", cfg.OpeningTime,
		"closing_time", cfg.ClosingTime,
		"slot_duration_min", cfg.SlotDurationMin,
		"business_time_zone", cfg.BusinessTimeZone,
		"provider_phones", len(cfg.ProviderPhones),
		"liveview_refresh_interval", cfg.LiveViewRefreshInterval,
		"store_retry_min_backoff", cfg.StoreRetryMinBackoff,
		"store_retry_max_backoff", cfg.StoreRetryMaxBackoff,
		"jwt_secret_set", cfg.JWTSecret != DefaultJWTSecret,
		"session_ttl", cfg.SessionTTL,
		"verification_code_ttl", cfg.VerificationCodeTTL,
		"verification_max_attempts", cfg.VerificationMaxAttempts,
		"redis_url", redactURI(cfg.RedisURL),
		"notify_transport", cfg.NotifyTransport,
		"notify_topic", cfg.NotifyTopic,
		"nats_url", redactURI(cfg.NATSURL),
		"sms_gateway_set", cfg.SMSGatewayURL != "",
		"cors_allowed_origins", cfg.CORSAllowedOrigins,
	)
}

func redactURI(uri string) string {
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	raw := getEnvStr(key, fallback)
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log, cfg.ShutdownTimeout)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
