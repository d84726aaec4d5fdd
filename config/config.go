package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"taskhub/logging"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Auth      AuthConfig
	Log       LogConfig
	Repair    RepairConfig
	Breaker   BreakerConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port        string
	CORSOrigins []string
}

type StoreConfig struct {
	Driver        string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string
}

type AuthConfig struct {
	JWTSecret string
}

type LogConfig struct {
	Level string
	File  string
}

type RepairConfig struct {
	// Schedule is a six-field cron spec (with seconds). Empty disables the job.
	Schedule string
}

type BreakerConfig struct {
	MaxFailures uint32
	Timeout     time.Duration
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// Load reads the environment, after loading .env if one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logging.Logger.Debug("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			CORSOrigins: getEnvAsList("CORS_ORIGINS", []string{"*"}),
		},
		Store: StoreConfig{
			Driver:        strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
			DatabaseURL:   os.Getenv("DATABASE_URL"),
			MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			MongoDatabase: getEnv("MONGO_DATABASE", "taskhub"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  os.Getenv("LOG_FILE"),
		},
		Repair: RepairConfig{
			Schedule: getEnvAllowEmpty("REPAIR_SCHEDULE", "0 */15 * * * *"),
		},
		Breaker: BreakerConfig{
			MaxFailures: uint32(getEnvAsInt("BREAKER_MAX_FAILURES", 5)),
			Timeout:     getEnvAsDuration("BREAKER_TIMEOUT", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			RPS:   getEnvAsFloat("RATE_LIMIT_RPS", 50),
			Burst: getEnvAsInt("RATE_LIMIT_BURST", 100),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL not set")
		}
	case DriverMongo:
		if c.Store.MongoURI == "" {
			return fmt.Errorf("MONGO_URI not set")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET not set")
	}

	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty distinguishes an unset variable from one set to "".
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		logging.Logger.Warnf("Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		logging.Logger.Warnf("Invalid number for %s, using default: %v", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		logging.Logger.Warnf("Invalid duration for %s, using default: %s", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
