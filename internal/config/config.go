package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	DataDir string
	DBPath  string

	// External tool binaries
	PandocBin string
	PythonBin string
	DotBin    string

	// Edit lock TTL: a short crash/disconnect safety net, not a reservation
	LockTTL time.Duration
}

func Load() *Config {
	// Load .env if present
	_ = godotenv.Load()

	dataDir := getEnv("INKWELL_DATA_DIR", "./data")

	return &Config{
		Port:      getEnv("INKWELL_PORT", "8000"),
		DataDir:   dataDir,
		DBPath:    getEnv("INKWELL_DB_PATH", dataDir+"/inkwell.db"),
		PandocBin: getEnv("INKWELL_PANDOC_BIN", "pandoc"),
		PythonBin: getEnv("INKWELL_PYTHON_BIN", "python"),
		DotBin:    getEnv("INKWELL_DOT_BIN", "dot"),
		LockTTL:   time.Duration(getEnvInt("INKWELL_LOCK_TTL_MS", 1000)) * time.Millisecond,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
