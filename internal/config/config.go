package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig holds the complete application configuration.
type AppConfig struct {
	DataPath string
	LogDir   string
	CacheDir string

	// Factor source (news/LLM analysis endpoint)
	FactorEndpoint string
	FactorCooldown time.Duration

	// Simulation defaults
	SimulationTimeout time.Duration
	HistoryLimit      int
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// Prefer the executable's directory: the tool server is usually
	// launched by a host with an arbitrary working directory.
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// Fallback to the current working directory (development / go run).
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	logDir := filepath.Join(dataPath, "logs")
	cacheDir := filepath.Join(dataPath, "cache")

	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Warn().Err(err).Str("path", logDir).Msg("Failed to create log directory")
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		log.Warn().Err(err).Str("path", cacheDir).Msg("Failed to create cache directory")
	}

	cooldownSecs, _ := strconv.Atoi(getEnv("FACTOR_COOLDOWN_SECONDS", "30"))
	timeoutSecs, _ := strconv.Atoi(getEnv("SIMULATION_TIMEOUT_SECONDS", "60"))
	historyLimit, _ := strconv.Atoi(getEnv("HISTORY_LIMIT", "10"))

	cfg := &AppConfig{
		DataPath:          dataPath,
		LogDir:            logDir,
		CacheDir:          cacheDir,
		FactorEndpoint:    getEnv("FACTOR_ENDPOINT", ""),
		FactorCooldown:    time.Duration(cooldownSecs) * time.Second,
		SimulationTimeout: time.Duration(timeoutSecs) * time.Second,
		HistoryLimit:      historyLimit,
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
