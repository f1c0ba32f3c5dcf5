package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port   string
	DBPath string

	// UserID identifies the device owner on locally recorded trips.
	UserID string

	// Sync backend settings. An empty SyncBaseURL disables sync.
	SyncBaseURL string
	SyncToken   string

	// SyncIntervalMinutes drives the periodic background sync; 0 disables it.
	SyncIntervalMinutes int
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored when present.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Printf("[Config] Loaded .env file")
	}

	return &Config{
		Port:                getEnv("PORT", ":8080"),
		DBPath:              getEnv("DB_PATH", "./data/greentrack.db"),
		UserID:              getEnv("DEVICE_ID", "local"),
		SyncBaseURL:         getEnv("SYNC_BASE_URL", ""),
		SyncToken:           getEnv("SYNC_TOKEN", ""),
		SyncIntervalMinutes: getEnvInt("SYNC_INTERVAL_MINUTES", 15),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[Config] Invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
