package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Session backends understood by the server.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds the application configuration.
type Config struct {
	ServerPort     int
	DatabasePath   string
	Environment    string
	SessionSecret  string
	SessionTTL     time.Duration
	SessionBackend string
	RedisURL       string
	SweepSchedule  string // cron expression for expired session cleanup
	BcryptCost     int
	AllowedOrigins []string
	LogLevel       string
	LogFile        string // empty disables the rotating file sink
}

// Load loads configuration from a .env file (if present) and environment
// variables, falling back to defaults.
func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load(".env")

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	ttl, err := time.ParseDuration(getEnv("SESSION_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}

	cost, err := strconv.Atoi(getEnv("BCRYPT_COST", strconv.Itoa(bcrypt.DefaultCost)))
	if err != nil {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %w", err)
	}

	cfg := &Config{
		ServerPort:     port,
		DatabasePath:   getEnv("DATABASE", "./blog.sqlite"),
		Environment:    getEnv("APP_ENV", "development"),
		SessionSecret:  getEnv("SESSION_SECRET", ""),
		SessionTTL:     ttl,
		SessionBackend: getEnv("SESSION_BACKEND", BackendSQLite),
		RedisURL:       getEnv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		SweepSchedule:  getEnv("SESSION_SWEEP_SCHEDULE", "@every 1h"),
		BcryptCost:     cost,
		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	switch c.SessionBackend {
	case BackendSQLite:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis session backend")
		}
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q", c.SessionBackend)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.IsProduction() && c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required in production")
	}
	return nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
