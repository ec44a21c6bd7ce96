package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// OpenAI (rewrite, speech synthesis, transcription)
	OpenAIKey string

	// Reddit content feed
	RedditBaseURL   string
	RedditUserAgent string

	// Media directories
	ArtifactsDir   string // Rendered videos, audio, uploaded profile images
	BackgroundsDir string // Source gameplay videos
	TempDir        string // Intermediate render files

	// Artifact retention
	RetentionMaxAge time.Duration // 0 = keep forever
	RetentionSweep  time.Duration

	// Worker
	MaxConcurrentJobs int
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "8080"),
		WorkerEnabled:      getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:      getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		OpenAIKey:          getEnv("OPENAI_API_KEY", ""),
		RedditBaseURL:      getEnv("REDDIT_BASE_URL", "https://www.reddit.com"),
		RedditUserAgent:    getEnv("REDDIT_USER_AGENT", "storyreel/1.0"),
		ArtifactsDir:       getEnv("ARTIFACTS_DIR", "generated_files"),
		BackgroundsDir:     getEnv("BACKGROUNDS_DIR", "source_files"),
		TempDir:            getEnv("TEMP_DIR", "/tmp/storyreel"),
		RetentionMaxAge:    getEnvDuration("RETENTION_MAX_AGE", 0),
		RetentionSweep:     getEnvDuration("RETENTION_SWEEP_INTERVAL", time.Hour),
		MaxConcurrentJobs:  getEnvInt("MAX_CONCURRENT_JOBS", 2),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
