package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the sync daemon configuration.
type Config struct {
	// Remote API
	APIBaseURL string
	WSURL      string
	AuthToken  string // Access token for the current session, if any

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Sync engine
	SyncMinSleep        time.Duration
	SyncMaxSleep        time.Duration
	DiscographyPageSize int

	// Status endpoint
	StatusAddr string

	// Logging
	LogLevel      string
	LogOutputPath string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// Attempt to load .env file. godotenv.Load() will not override existing env vars.
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:3000"),
		WSURL:      getEnv("WS_URL", "ws://localhost:3000/events"),
		AuthToken:  os.Getenv("AUTH_TOKEN"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "fmsync"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		SyncMinSleep:        time.Duration(getEnvInt("SYNC_MIN_SLEEP_MS", 1000)) * time.Millisecond,
		SyncMaxSleep:        time.Duration(getEnvInt("SYNC_MAX_SLEEP_MS", 30000)) * time.Millisecond,
		DiscographyPageSize: getEnvInt("DISCOGRAPHY_PAGE_SIZE", 50),

		StatusAddr: getEnv("STATUS_ADDR", "127.0.0.1:8090"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogOutputPath: getEnv("LOG_OUTPUT_PATH", ""),
	}
}
