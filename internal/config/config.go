package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// Logging
	LogLevel  string
	LogPretty bool

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret string

	// Server
	ApiPort        string
	ServiceApiPort string

	// Negotiation
	AcceptedOfferTTL  time.Duration
	SideEffectsAsync  bool
	SideEffectTimeout time.Duration
	EventBus          string // "redis" or "memory"
	ProductBaseURL    string

	// Messaging gateway
	MockServices      bool
	LogMessagesPath   string
	MessagingAPIURL   string
	MessagingAPIKey   string
	MessagingTimeout  time.Duration
	MessagingViaQueue bool
	PhoneCountryCode  string

	// Rate Limiting Defaults
	RateLimitBucketSize int
	RateLimitRefillRate int // tokens per second
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists || value == "" {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	getBool := func(key string, defaultValue bool) (bool, error) {
		raw := getEnv(key, strconv.FormatBool(defaultValue))
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return false, fmt.Errorf("invalid %s: %w", key, err)
		}
		return v, nil
	}

	getSeconds := func(key string, defaultSeconds int64) (time.Duration, error) {
		secs, err := strconv.ParseInt(getEnv(key, strconv.FormatInt(defaultSeconds, 10)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return time.Duration(secs) * time.Second, nil
	}

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "negotiation")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.EventBus = getEnv("EVENT_BUS", "redis")
	cfg.ProductBaseURL = getEnv("PRODUCT_BASE_URL", "https://staging.bizb.store/products")
	cfg.LogMessagesPath = getEnv("LOG_MESSAGES", "")
	cfg.MessagingAPIURL = getEnv("MESSAGING_API_URL", "")
	cfg.MessagingAPIKey = getEnv("MESSAGING_API_KEY", "")
	cfg.PhoneCountryCode = getEnv("PHONE_COUNTRY_CODE", "92")

	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	if cfg.LogPretty, err = getBool("LOG_PRETTY", false); err != nil {
		return nil, err
	}
	if cfg.MockServices, err = getBool("MOCK_SERVICES", false); err != nil {
		return nil, err
	}
	if cfg.MessagingViaQueue, err = getBool("MESSAGING_VIA_QUEUE", false); err != nil {
		return nil, err
	}
	if cfg.SideEffectsAsync, err = getBool("SIDE_EFFECTS_ASYNC", true); err != nil {
		return nil, err
	}

	ttlHours, err := strconv.ParseInt(getEnv("ACCEPTED_OFFER_TTL_HOURS", "24"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ACCEPTED_OFFER_TTL_HOURS: %w", err)
	}
	cfg.AcceptedOfferTTL = time.Duration(ttlHours) * time.Hour

	if cfg.MessagingTimeout, err = getSeconds("MESSAGING_TIMEOUT_SECONDS", 15); err != nil {
		return nil, err
	}
	if cfg.SideEffectTimeout, err = getSeconds("SIDE_EFFECT_TIMEOUT_SECONDS", 30); err != nil {
		return nil, err
	}

	cfg.RateLimitBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_BUCKET_SIZE", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_REFILL_RATE", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REFILL_RATE: %w", err)
	}

	switch cfg.EventBus {
	case "redis", "memory":
	default:
		return nil, fmt.Errorf("invalid EVENT_BUS %q: expected redis or memory", cfg.EventBus)
	}

	return cfg, nil
}
