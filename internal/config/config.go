package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Config collects every tunable the core reads from the environment.
// Defaults are production-plausible so a bare `go run` works against
// local Postgres/Redis.
type Config struct {
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RedisHost string
	RedisPort string

	// ProposalTTL is how long a proposal stays answerable after creation.
	ProposalTTL time.Duration
	// SweepInterval is how often the expiry sweep runs.
	SweepInterval time.Duration
	// PaymentAbandonWindow is how long a pending order may sit before it
	// is reported as stale. Cancellation stays caller-driven.
	PaymentAbandonWindow time.Duration
	// OutboxInterval is how often the outbox dispatcher polls.
	OutboxInterval time.Duration

	GatewayBaseURL    string
	GatewayKeyID      string
	GatewayKeySecret  string
	GatewayTimeout    time.Duration
	GatewayMaxRetries int

	RateLimit       int
	RateLimitWindow time.Duration
}

// Load reads configuration from the environment (a .env file is picked up
// automatically if present).
func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "matrimony_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisHost: getEnv("REDIS_HOST", "localhost"),
		RedisPort: getEnv("REDIS_PORT", "6379"),

		ProposalTTL:          time.Duration(getEnvInt("PROPOSAL_TTL_DAYS", 30)) * 24 * time.Hour,
		SweepInterval:        time.Duration(getEnvInt("PROPOSAL_SWEEP_INTERVAL_SECONDS", 300)) * time.Second,
		PaymentAbandonWindow: time.Duration(getEnvInt("PAYMENT_ABANDON_MINUTES", 60)) * time.Minute,
		OutboxInterval:       time.Duration(getEnvInt("OUTBOX_INTERVAL_SECONDS", 5)) * time.Second,

		GatewayBaseURL:    getEnv("GATEWAY_BASE_URL", "https://api.razorpay.com/v1"),
		GatewayKeyID:      getEnv("GATEWAY_KEY_ID", ""),
		GatewayKeySecret:  getEnv("GATEWAY_KEY_SECRET", ""),
		GatewayTimeout:    time.Duration(getEnvInt("GATEWAY_TIMEOUT_SECONDS", 5)) * time.Second,
		GatewayMaxRetries: getEnvInt("GATEWAY_MAX_RETRIES", 2),

		RateLimit:       getEnvInt("RATE_LIMIT", 60),
		RateLimitWindow: time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
	}
}

// DSN builds the lib/pq connection string.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// RedisAddr builds the host:port address for the Redis client.
func (c Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
