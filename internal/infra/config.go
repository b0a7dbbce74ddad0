package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string

	GeminiAPIKey string
	GeminiModel  string

	// Generation pipeline knobs.
	GenerateTimeout   time.Duration
	MaxGenerateRetry  int
	RetryBaseDelay    time.Duration
	MaxImageBytes     int64
	StalePendingAfter time.Duration
	PendingTTL        time.Duration
	ProcessingTTL     time.Duration

	// Object storage. When S3Bucket is empty the filesystem store is used.
	S3Bucket       string
	S3Region       string
	SignedURLTTL   time.Duration
	StoragePath    string
	StorageBaseURL string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash-exp"),

		GenerateTimeout:   time.Second * time.Duration(getEnvInt("GENERATE_TIMEOUT_SECONDS", 60)),
		MaxGenerateRetry:  getEnvInt("GENERATE_MAX_RETRIES", 2),
		RetryBaseDelay:    time.Second * time.Duration(getEnvInt("GENERATE_RETRY_BASE_SECONDS", 5)),
		MaxImageBytes:     int64(getEnvInt("MAX_IMAGE_BYTES", 10*1024*1024)),
		StalePendingAfter: time.Second * time.Duration(getEnvInt("STALE_PENDING_SECONDS", 60)),
		PendingTTL:        time.Second * time.Duration(getEnvInt("PENDING_TTL_SECONDS", 1800)),
		ProcessingTTL:     time.Second * time.Duration(getEnvInt("PROCESSING_TTL_SECONDS", 600)),

		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		SignedURLTTL:   time.Second * time.Duration(getEnvInt("SIGNED_URL_TTL_SECONDS", 7*24*3600)),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 90)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
