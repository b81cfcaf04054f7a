package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port        string
	Environment string

	// Database
	DatabaseURL string

	// Redis (real-time status publication)
	RedisURL string

	// JWT
	JWTSecret string

	// Governance
	GovernedModules []string
	QuorumSize      int

	// Background Workers
	WorkerCount       int
	BroadcastInterval time.Duration

	// CORS
	AllowedOrigins []string

	// Sentry
	SentryDSN string
}

// DefaultGovernedModules is the platform-wide set of pausable financial subsystems.
var DefaultGovernedModules = []string{
	"settlement",
	"reward_distribution",
	"round_resolution",
	"draw_engine",
	"pool_payout",
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Environment:       getEnv("ENVIRONMENT", "development"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		RedisURL:          getEnv("REDIS_URL", ""),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		GovernedModules:   getEnvAsSlice("GOVERNED_MODULES", DefaultGovernedModules),
		QuorumSize:        getEnvAsInt("GOVERNANCE_QUORUM", 2),
		WorkerCount:       getEnvAsInt("WORKER_COUNT", 5),
		BroadcastInterval: time.Duration(getEnvAsInt("STATUS_BROADCAST_SECONDS", 15)) * time.Second,
		AllowedOrigins:    getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
		SentryDSN:         getEnv("SENTRY_DSN", ""),
	}

	// Validate required configuration
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" && cfg.Environment == "production" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}

	// Set default JWT secret for development
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-change-in-production"
	}

	if cfg.QuorumSize < 1 {
		return nil, fmt.Errorf("GOVERNANCE_QUORUM must be at least 1")
	}

	if len(cfg.GovernedModules) == 0 {
		return nil, fmt.Errorf("GOVERNED_MODULES must name at least one module")
	}

	return cfg, nil
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads an environment variable as integer
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice reads an environment variable as comma-separated slice
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
