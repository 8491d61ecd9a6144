// Package config loads application configuration from environment
// variables. All variables carry the CARELEDGER_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/careledger/careledger/pkg/observability"
	"github.com/careledger/careledger/pkg/tenant"
)

// Config holds all application configuration
type Config struct {
	// Mode selects production or development tenant resolution rules.
	Mode tenant.RuntimeMode

	// ReservedSubdomains are host labels that never resolve to a tenant.
	ReservedSubdomains []string

	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Authorization AuthorizationConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// RedisConfig holds Redis settings for decision cache invalidation
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// AuthorizationConfig tunes the permission decision point
type AuthorizationConfig struct {
	DecisionCacheSize int
	DecisionCacheTTL  time.Duration
	SeedDefaultRules  bool
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel

	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Mode:               parseMode(getEnv("CARELEDGER_MODE", "development")),
		ReservedSubdomains: parseCSV(getEnv("CARELEDGER_RESERVED_SUBDOMAINS", "")),
		Server: ServerConfig{
			Host:            getEnv("CARELEDGER_HOST", "0.0.0.0"),
			Port:            getEnv("CARELEDGER_PORT", "8080"),
			ReadTimeout:     getEnvDuration("CARELEDGER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("CARELEDGER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("CARELEDGER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("CARELEDGER_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("CARELEDGER_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("CARELEDGER_POSTGRES_URL", ""),
			MaxOpenConns: getEnvInt("CARELEDGER_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns: getEnvInt("CARELEDGER_POSTGRES_IDLE_CONNS", 5),
			ConnLifetime: getEnvDuration("CARELEDGER_POSTGRES_CONN_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("CARELEDGER_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("CARELEDGER_REDIS_PASSWORD", ""),
			DB:       getEnvInt("CARELEDGER_REDIS_DB", 0),
			PoolSize: getEnvInt("CARELEDGER_REDIS_POOL_SIZE", 10),
		},
		Authorization: AuthorizationConfig{
			DecisionCacheSize: getEnvInt("CARELEDGER_DECISION_CACHE_SIZE", 4096),
			DecisionCacheTTL:  getEnvDuration("CARELEDGER_DECISION_CACHE_TTL", 30*time.Second),
			SeedDefaultRules:  getEnvBool("CARELEDGER_SEED_DEFAULT_RULES", true),
		},
		Observability: ObservabilityConfig{
			LogLevel:           parseLogLevel(getEnv("CARELEDGER_LOG_LEVEL", "info")),
			MetricsEnabled:     getEnvBool("CARELEDGER_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("CARELEDGER_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("CARELEDGER_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("CARELEDGER_OTEL_SERVICE_NAME", "careledger"),
			OTelServiceVersion: getEnv("CARELEDGER_OTEL_SERVICE_VERSION", "1.0.0"),
			OTelInsecure:       getEnvBool("CARELEDGER_OTEL_INSECURE", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Authorization.DecisionCacheSize <= 0 {
		return fmt.Errorf("decision cache size must be positive")
	}
	if c.Authorization.DecisionCacheTTL <= 0 {
		return fmt.Errorf("decision cache TTL must be positive")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseMode parses a runtime mode string, defaulting to development
func parseMode(mode string) tenant.RuntimeMode {
	if strings.ToLower(mode) == "production" {
		return tenant.ModeProduction
	}
	return tenant.ModeDevelopment
}

// parseCSV splits a comma-separated list, trimming whitespace. An empty
// input yields nil so downstream defaults apply.
func parseCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
