package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Lock backends.
const (
	LockLocal = "local"
	LockRedis = "redis"
	LockNone  = "none"
)

const insecureDefaultJWTSecret = "a-very-secret-key-should-be-longer-and-random"

// Config holds application configuration.
type Config struct {
	Port         string
	IsProduction bool

	StoreBackend  string
	DatabaseURL   string
	SQLitePath    string
	RunMigrations bool
	EnableDBCheck bool

	JWTSecret string
	// AdminSubjects are the token subjects allowed to read journal-wide statistics.
	AdminSubjects []string

	LockBackend string
	RedisURL    string
	LockExpiry  time.Duration

	TransferLockTimeout    time.Duration
	TransferMaxAttempts    int
	TransferRetryBaseDelay time.Duration
	IdempotencyCacheSize   int

	// RateLimit uses the ulule/limiter format, e.g. "100-M".
	RateLimit string

	WebhookURL    string
	WebhookSecret string
	AMQPURL       string
	AMQPExchange  string

	CORSAllowedOrigins []string
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("IS_PRODUCTION", false)
	v.SetDefault("STORE_BACKEND", StoreMemory)
	v.SetDefault("PGSQL_URL", "")
	v.SetDefault("SQLITE_PATH", "ledger.db")
	v.SetDefault("RUN_MIGRATIONS", true)
	v.SetDefault("ENABLE_DB_CHECK", false)
	v.SetDefault("JWT_SECRET", insecureDefaultJWTSecret)
	v.SetDefault("ADMIN_SUBJECTS", "")
	v.SetDefault("LOCK_BACKEND", LockLocal)
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("LOCK_EXPIRY", "10s")
	v.SetDefault("TRANSFER_LOCK_TIMEOUT", "2s")
	v.SetDefault("TRANSFER_MAX_ATTEMPTS", 5)
	v.SetDefault("TRANSFER_RETRY_BASE_DELAY", "10ms")
	v.SetDefault("IDEMPOTENCY_CACHE_SIZE", 10000)
	v.SetDefault("RATE_LIMIT", "600-M")
	v.SetDefault("WEBHOOK_URL", "")
	v.SetDefault("WEBHOOK_SECRET", "")
	v.SetDefault("AMQP_URL", "")
	v.SetDefault("AMQP_EXCHANGE", "ledger.events")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:                 v.GetString("PORT"),
		IsProduction:         v.GetBool("IS_PRODUCTION"),
		StoreBackend:         strings.ToLower(v.GetString("STORE_BACKEND")),
		DatabaseURL:          v.GetString("PGSQL_URL"),
		SQLitePath:           v.GetString("SQLITE_PATH"),
		RunMigrations:        v.GetBool("RUN_MIGRATIONS"),
		EnableDBCheck:        v.GetBool("ENABLE_DB_CHECK"),
		JWTSecret:            v.GetString("JWT_SECRET"),
		AdminSubjects:        splitList(v.GetString("ADMIN_SUBJECTS")),
		LockBackend:          strings.ToLower(v.GetString("LOCK_BACKEND")),
		RedisURL:             v.GetString("REDIS_URL"),
		TransferMaxAttempts:  v.GetInt("TRANSFER_MAX_ATTEMPTS"),
		IdempotencyCacheSize: v.GetInt("IDEMPOTENCY_CACHE_SIZE"),
		RateLimit:            v.GetString("RATE_LIMIT"),
		WebhookURL:           v.GetString("WEBHOOK_URL"),
		WebhookSecret:        v.GetString("WEBHOOK_SECRET"),
		AMQPURL:              v.GetString("AMQP_URL"),
		AMQPExchange:         v.GetString("AMQP_EXCHANGE"),
		CORSAllowedOrigins:   splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
	}

	var err error
	if cfg.LockExpiry, err = duration(v, "LOCK_EXPIRY"); err != nil {
		return nil, err
	}
	if cfg.TransferLockTimeout, err = duration(v, "TRANSFER_LOCK_TIMEOUT"); err != nil {
		return nil, err
	}
	if cfg.TransferRetryBaseDelay, err = duration(v, "TRANSFER_RETRY_BASE_DELAY"); err != nil {
		return nil, err
	}

	switch cfg.StoreBackend {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("PGSQL_URL is required when STORE_BACKEND=%s", StorePostgres)
		}
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	switch cfg.LockBackend {
	case LockLocal, LockRedis, LockNone:
	default:
		return nil, fmt.Errorf("unknown LOCK_BACKEND %q", cfg.LockBackend)
	}

	if cfg.TransferMaxAttempts < 1 {
		slog.Warn("TRANSFER_MAX_ATTEMPTS below 1, using a single attempt", slog.Int("value", cfg.TransferMaxAttempts))
		cfg.TransferMaxAttempts = 1
	}

	if cfg.JWTSecret == "" || cfg.JWTSecret == insecureDefaultJWTSecret {
		if cfg.IsProduction {
			return nil, fmt.Errorf("JWT_SECRET must be set in production")
		}
		slog.Warn("JWT_SECRET environment variable not set. Using default insecure key.")
		cfg.JWTSecret = insecureDefaultJWTSecret
	}

	if cfg.StoreBackend == StoreMemory {
		slog.Warn("STORE_BACKEND=memory keeps the ledger in process memory only")
	}

	return cfg, nil
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s (%q): %w", key, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
