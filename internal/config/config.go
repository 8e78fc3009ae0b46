// Package config loads process configuration from the environment and the
// per-user sidecar file.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration values.
type Config struct {
	// HTTP server
	Host string
	Port int

	// Storage
	StorageDir string

	// Task orchestration
	TaskMaxConcurrency int

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from the environment. A .env file next to the
// working directory is merged in first, without overriding real env vars.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Host:               getEnv("ACMTRACK_HOST", "127.0.0.1"),
		Port:               getEnvInt("ACMTRACK_PORT", 8356),
		StorageDir:         getEnv("ACMTRACK_STORAGE_DIR", defaultStorageDir()),
		TaskMaxConcurrency: getEnvInt("TASK_MAX_CONCURRENCY", 2),
		LogFile:            getEnv("ACMTRACK_LOG_FILE", defaultLogFile()),
		LogLevel:           parseLogLevel(getEnv("ACMTRACK_LOG_LEVEL", "INFO")),
	}
}

func defaultStorageDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".acmtrack", "data")
	}
	return filepath.Join(os.TempDir(), "acmtrack-data")
}

func defaultLogFile() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".acmtrack", "acmtrack.log")
	}
	return filepath.Join(os.TempDir(), "acmtrack.log")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
