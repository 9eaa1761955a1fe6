package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env                string
	HTTPAddr           string
	MongoURI           string
	MongoDB            string
	KafkaBrokers       []string
	KafkaTopicPrefix   string
	RedisAddr          string
	RedisPassword      string
	IdempotencyTTL     time.Duration
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration
	Gateway            GatewayConfig
	EarningHold        time.Duration
	PromoterInterval   time.Duration
	Jobs               JobsConfig
	JWTSecret          string
	ServiceFeePercent  int
	PropertyFixtures   string
}

type GatewayConfig struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
	CallbackURL   string
}

type JobsConfig struct {
	PollInterval time.Duration
	MaxAttempts  int
	BackoffBase  time.Duration
	Lease        time.Duration
}

// UsesMongo reports whether a Mongo deployment is configured; without one
// the binary runs on in-memory storage.
func (c Config) UsesMongo() bool {
	return c.MongoURI != ""
}

// Load parses configuration from the current environment after applying an
// optional .env file from the working directory.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getEnv("MONGO_DB", "staysettle"),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", ""),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		Gateway: GatewayConfig{
			BaseURL:       getEnv("GATEWAY_BASE_URL", "https://api.paystack.co"),
			SecretKey:     os.Getenv("GATEWAY_SECRET_KEY"),
			WebhookSecret: os.Getenv("GATEWAY_WEBHOOK_SECRET"),
			CallbackURL:   os.Getenv("GATEWAY_CALLBACK_URL"),
		},
		JWTSecret:        os.Getenv("JWT_SECRET"),
		PropertyFixtures: getEnv("LISTINGS_FIXTURES", "data/properties.json"),
	}
	brokers := getEnv("KAFKA_BROKERS", "")
	if brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"IDEMP_TTL", 168 * time.Hour, &cfg.IdempotencyTTL},
		{"OUTBOX_POLL_INTERVAL", 500 * time.Millisecond, &cfg.OutboxPollInterval},
		{"GATEWAY_TIMEOUT", 15 * time.Second, &cfg.Gateway.Timeout},
		{"EARNING_HOLD", 24 * time.Hour, &cfg.EarningHold},
		{"PROMOTER_INTERVAL", time.Hour, &cfg.PromoterInterval},
		{"JOB_POLL_INTERVAL", time.Second, &cfg.Jobs.PollInterval},
		{"JOB_BACKOFF_BASE", 30 * time.Second, &cfg.Jobs.BackoffBase},
		{"JOB_LEASE", 5 * time.Minute, &cfg.Jobs.Lease},
	}
	for _, d := range durations {
		v, err := parseDurationEnv(d.key, d.def)
		if err != nil {
			return Config{}, err
		}
		*d.dest = v
	}

	attempts, err := parseIntEnv("JOB_MAX_ATTEMPTS", 5)
	if err != nil {
		return Config{}, err
	}
	cfg.Jobs.MaxAttempts = attempts

	fee, err := parseIntEnv("PLATFORM_SERVICE_FEE_PERCENT", 10)
	if err != nil {
		return Config{}, err
	}
	if fee < 0 || fee > 100 {
		return Config{}, fmt.Errorf("PLATFORM_SERVICE_FEE_PERCENT out of range: %d", fee)
	}
	cfg.ServiceFeePercent = fee

	retryStr := getEnv("RETRY_BACKOFF", "1s,5s,30s")
	for _, raw := range strings.Split(retryStr, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	if cfg.Env != "dev" && cfg.Env != "local" && cfg.Env != "test" {
		if cfg.Gateway.SecretKey == "" || cfg.Gateway.WebhookSecret == "" {
			return Config{}, fmt.Errorf("GATEWAY_SECRET_KEY and GATEWAY_WEBHOOK_SECRET are required in %s", cfg.Env)
		}
		if cfg.JWTSecret == "" {
			return Config{}, fmt.Errorf("JWT_SECRET is required in %s", cfg.Env)
		}
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return n, nil
}
