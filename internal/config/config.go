package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process-wide settings, read once at startup and passed into
// constructors. No package keeps its own global copy.
type Config struct {
	SQLitePath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	OpenRouterModel   string
	GeminiAPIKey      string
	GeminiModel       string

	HTTPTimeout   time.Duration
	TesseractBin  string
	PdftoppmBin   string
	CrawlWorkers  int
	MaxAttempts   int
	RetentionDays int

	SchedulerInterval time.Duration
}

// Load reads configuration from the environment. A .env file is honored when
// present so local runs match the container setup.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		SQLitePath: os.Getenv("SQLITE_PATH"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterBaseURL: os.Getenv("OPENROUTER_BASE_URL"),
		OpenRouterModel:   os.Getenv("OPENROUTER_MODEL"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       os.Getenv("GEMINI_MODEL"),

		HTTPTimeout:   envDuration("HTTP_TIMEOUT", 30*time.Second),
		TesseractBin:  os.Getenv("TESSERACT_BIN"),
		PdftoppmBin:   os.Getenv("PDFTOPPM_BIN"),
		CrawlWorkers:  envInt("CRAWL_WORKERS", 2),
		MaxAttempts:   envInt("CRAWL_MAX_ATTEMPTS", 3),
		RetentionDays: envInt("CRAWL_RETENTION_DAYS", 30),

		SchedulerInterval: envDuration("SCHEDULER_INTERVAL", 168*time.Hour),
	}
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return def
}
