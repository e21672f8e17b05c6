package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	Port             string
	Env              string
	LogLevel         string
	StoreDriver      string
	DatabaseURL      string
	KafkaBrokers     []string
	KafkaTopicPrefix string
	RedisAddr        string
	JWTSecret        string
	SeedDemo         bool
	NotifyQueueSize  int
	FrontendURL      string

	// EnvFileLoaded is false when no .env file was found.
	EnvFileLoaded bool
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	loaded := godotenv.Load() == nil

	cfg := &Config{
		Port:             getEnv("PORT", "5000"),
		Env:              getEnv("ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		KafkaBrokers:     splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", "banking"),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
		EnvFileLoaded:    loaded,
	}

	var err error
	if cfg.SeedDemo, err = strconv.ParseBool(getEnv("SEED_DEMO", "true")); err != nil {
		return nil, fmt.Errorf("SEED_DEMO: %w", err)
	}
	if cfg.NotifyQueueSize, err = strconv.Atoi(getEnv("NOTIFY_QUEUE_SIZE", "256")); err != nil {
		return nil, fmt.Errorf("NOTIFY_QUEUE_SIZE: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", StorePostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.NotifyQueueSize <= 0 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE must be positive")
	}
	return nil
}

// Helper to get env with a default fallback
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
