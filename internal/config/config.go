package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port        string
	Environment string
	CORSOrigins string

	// Database configuration
	DBType                  string // mysql, postgres, sqlite, sqlserver
	DBHost                  string
	DBPort                  string
	DBAppDatabase           string
	DBAppUser               string
	DBAppPassword           string
	DBAppConnectionLimit    int
	DBPublicUser            string
	DBPublicPassword        string
	DBPublicConnectionLimit int
	DBLogLevel              string

	// Authentication
	AuthMode      string // authorizer or jwt
	AuthzURL      string
	AuthzClientID string
	JWTSecret     string
	LoginURL      string
	ForbiddenURL  string

	// Redis backs the permission cache, revalidation signals and rate limiting
	RedisURL           string
	PermissionCacheTTL time.Duration

	// Public submission rate limit
	SubmitRateLimit  int
	SubmitRateWindow time.Duration

	// Logging
	LogLevel  string
	LogFormat string
	SentryDSN string

	// Subject promoted to the admin role at startup
	BootstrapAdmin string
}

// Load reads an optional .env file, then configuration from environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "3000"),
		Environment: getEnv("ENVIRONMENT", "development"),
		CORSOrigins: getEnv("CORS_ORIGINS", ""),

		DBType:                  strings.ToLower(getEnv("DB_TYPE", "mysql")),
		DBHost:                  getEnv("DB_HOST", "localhost"),
		DBPort:                  getEnv("DB_PORT", "3306"),
		DBAppDatabase:           getEnv("DB_APP_DATABASE", ""),
		DBAppUser:               getEnv("DB_APP_USER", ""),
		DBAppPassword:           getEnv("DB_APP_PASSWORD", ""),
		DBAppConnectionLimit:    getEnvAsInt("DB_APP_CONNECTION_LIMIT", 5),
		DBPublicUser:            getEnv("DB_PUBLIC_USER", ""),
		DBPublicPassword:        getEnv("DB_PUBLIC_PASSWORD", ""),
		DBPublicConnectionLimit: getEnvAsInt("DB_PUBLIC_CONNECTION_LIMIT", 10),
		DBLogLevel:              getEnv("DB_LOG_LEVEL", "warn"),

		AuthMode:      strings.ToLower(getEnv("AUTH_MODE", "authorizer")),
		AuthzURL:      getEnv("AUTHZ_URL", ""),
		AuthzClientID: getEnv("AUTHZ_CLIENT_ID", ""),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		LoginURL:      getEnv("LOGIN_URL", ""),
		ForbiddenURL:  getEnv("FORBIDDEN_URL", ""),

		RedisURL:           getEnv("REDIS_URL", ""),
		PermissionCacheTTL: getEnvAsDuration("PERMISSION_CACHE_TTL", 30*time.Second),

		SubmitRateLimit:  getEnvAsInt("SUBMIT_RATE_LIMIT", 20),
		SubmitRateWindow: getEnvAsDuration("SUBMIT_RATE_WINDOW", time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		SentryDSN: getEnv("SENTRY_DSN", ""),

		BootstrapAdmin: getEnv("BOOTSTRAP_ADMIN", ""),
	}

	// sqlite has no credentials; the public pool reuses the app credentials when unset
	if cfg.DBPublicUser == "" {
		cfg.DBPublicUser = cfg.DBAppUser
		cfg.DBPublicPassword = cfg.DBAppPassword
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.DBAppDatabase == "" {
		return fmt.Errorf("DB_APP_DATABASE is required")
	}
	if cfg.DBType != "sqlite" && cfg.DBAppUser == "" {
		return fmt.Errorf("DB_APP_USER is required")
	}

	switch cfg.AuthMode {
	case "authorizer":
		if cfg.AuthzURL == "" {
			return fmt.Errorf("AUTHZ_URL is required")
		}
		if cfg.AuthzClientID == "" {
			return fmt.Errorf("AUTHZ_CLIENT_ID is required")
		}
	case "jwt":
		if cfg.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required")
		}
	default:
		return fmt.Errorf("unsupported AUTH_MODE: %s", cfg.AuthMode)
	}

	if cfg.SubmitRateLimit < 0 {
		return fmt.Errorf("SUBMIT_RATE_LIMIT must not be negative")
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (cfg *Config) IsProduction() bool {
	return cfg.Environment == "production"
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
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

// getEnvAsDuration accepts a Go duration ("30s") or a number of seconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
