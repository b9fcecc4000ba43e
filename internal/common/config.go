package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Storage  StorageConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// ServerConfig holds the webhook server configuration
type ServerConfig struct {
	HTTPAddr      string
	WebhookSecret string
}

// StorageConfig holds object-store (R2/S3) configuration
type StorageConfig struct {
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float32
	Timeout     time.Duration
}

// PipelineConfig holds the batch-orchestration knobs
type PipelineConfig struct {
	BatchSize            int
	MaxConcurrentBatches int
	BatchTimeout         time.Duration
	ExtractMaxRetries    int
	SkipPages            int
	TokenBudget          int64
	Enabled              bool
	DefaultOfficeID      string
	OfficeMatchThreshold int
	WaitForCompletion    bool
	RunDeadline          time.Duration
	PollInterval         time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", ""),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
			WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
		},
		Storage: StorageConfig{
			EndpointURL:     getEnv("R2_ENDPOINT_URL", ""),
			AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("R2_BUCKET_NAME", "sheriff-auction-pdfs"),
			Region:          getEnv("R2_REGION", "auto"),
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.1),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
		},
		Pipeline: PipelineConfig{
			BatchSize:            getEnvAsInt("BATCH_SIZE", 50),
			MaxConcurrentBatches: getEnvAsInt("MAX_CONCURRENT_BATCHES", 5),
			BatchTimeout:         getEnvAsDuration("BATCH_TIMEOUT", 10*time.Minute),
			ExtractMaxRetries:    getEnvAsInt("EXTRACT_MAX_RETRIES", 3),
			SkipPages:            getEnvAsInt("SKIP_PAGES", 12),
			TokenBudget:          getEnvAsInt64("TOKEN_BUDGET", 500_000),
			Enabled:              getEnvAsBool("ENABLE_PROCESSING", true),
			DefaultOfficeID:      getEnv("DEFAULT_OFFICE_ID", "f7c42d1a-2cb8-4d87-a84e-c5a0ec51d130"),
			OfficeMatchThreshold: getEnvAsInt("OFFICE_MATCH_THRESHOLD", 3),
			WaitForCompletion:    getEnvAsBool("WAIT_FOR_COMPLETION", true),
			RunDeadline:          getEnvAsDuration("RUN_DEADLINE", 12*time.Minute),
			PollInterval:         getEnvAsDuration("POLL_INTERVAL", 2*time.Second),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.WebhookSecret == "" {
		return NewAppError("CONFIG_ERROR", "WEBHOOK_SECRET is required", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.Storage.EndpointURL == "" {
		return NewAppError("CONFIG_ERROR", "R2_ENDPOINT_URL is required", ErrInvalidInput)
	}
	if c.Pipeline.BatchSize <= 0 {
		return NewAppError("CONFIG_ERROR", "BATCH_SIZE must be positive", ErrInvalidInput)
	}
	if c.Pipeline.MaxConcurrentBatches <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_CONCURRENT_BATCHES must be positive", ErrInvalidInput)
	}
	return nil
}
