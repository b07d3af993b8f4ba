package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"coupon-backend/internal/infrastructure/database"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config is the whole application configuration, populated from environment variables
type Config struct {
	App      AppConfig
	Database *database.DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Cache    CacheConfig
	Internal InternalConfig
	Jobs     JobsConfig
	Coupon   CouponConfig
}

type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Port        string
	Version     string
	LogLevel    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// CacheConfig: driver is "redis" or "memory"
type CacheConfig struct {
	Enabled         bool
	Driver          string
	Prefix          string
	AvailableTTL    time.Duration
	ProductTTL      time.Duration
	CleanupInterval time.Duration
}

// InternalConfig authenticates service-to-service calls (order service -> apply)
type InternalConfig struct {
	KeyHash string // bcrypt hash of the X-Internal-Key value
}

type JobsConfig struct {
	ExpireIssuancesCron  string
	ExpireIssuancesBatch int
	Concurrency          int
}

type CouponConfig struct {
	MaxBulkIssue     int
	BulkIssueWorkers int
}

func Load() (*Config, error) {
	dbCfg, err := LoadDatabaseConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Coupon API"),
			Environment: getEnv("APP_ENV", "development"),
			Port:        getEnv("APP_PORT", "8080"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: dbCfg,
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", defaultJWTSecret),
			AccessTokenExpiry: getEnvDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
		},
		Cache: CacheConfig{
			Enabled:         getEnvBool("CACHE_ENABLED", true),
			Driver:          getEnv("CACHE_DRIVER", "redis"),
			Prefix:          getEnv("CACHE_PREFIX", "coupon-api:"),
			AvailableTTL:    getEnvDuration("CACHE_AVAILABLE_TTL", 30*time.Second),
			ProductTTL:      getEnvDuration("CACHE_PRODUCT_TTL", 5*time.Minute),
			CleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 10*time.Minute),
		},
		Internal: InternalConfig{
			KeyHash: getEnv("INTERNAL_KEY_HASH", ""),
		},
		Jobs: JobsConfig{
			ExpireIssuancesCron:  getEnv("JOB_EXPIRE_ISSUANCES_CRON", "@hourly"),
			ExpireIssuancesBatch: getEnvInt("JOB_EXPIRE_ISSUANCES_BATCH", 500),
			Concurrency:          getEnvInt("WORKER_CONCURRENCY", 5),
		},
		Coupon: CouponConfig{
			MaxBulkIssue:     getEnvInt("COUPON_MAX_BULK_ISSUE", 1000),
			BulkIssueWorkers: getEnvInt("COUPON_BULK_ISSUE_WORKERS", 8),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate rejects configs that cannot run safely
func (c *Config) Validate() error {
	switch c.Cache.Driver {
	case "redis", "memory":
	default:
		return fmt.Errorf("CACHE_DRIVER must be redis or memory, got %q", c.Cache.Driver)
	}

	if c.Coupon.MaxBulkIssue < 1 {
		return fmt.Errorf("COUPON_MAX_BULK_ISSUE must be positive")
	}
	if c.Coupon.BulkIssueWorkers < 1 {
		return fmt.Errorf("COUPON_BULK_ISSUE_WORKERS must be positive")
	}
	if c.Jobs.ExpireIssuancesBatch < 1 {
		return fmt.Errorf("JOB_EXPIRE_ISSUANCES_BATCH must be positive")
	}

	if c.App.Environment == "production" {
		if c.JWT.Secret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD must be set in production")
		}
		if c.Internal.KeyHash == "" {
			return fmt.Errorf("INTERNAL_KEY_HASH must be set in production")
		}
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
