package bootstrap

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerAddr string
	LogLevel   string

	// Provider selects the upstream variant: "gemini" or "deepgram".
	Provider        string
	ProviderAPIKey  string
	ProviderModel   string
	Language        string
	SampleRate      int
	InterimResults  bool
	StartTimeout    time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// DatabaseDSN is optional; without it the durable archive is disabled.
	DatabaseDSN string
}

func LoadConfig() *Config {
	providerName := getEnv("PROVIDER", "gemini")

	apiKey := os.Getenv("PROVIDER_API_KEY")
	if apiKey == "" {
		// provider-specific variables kept for compatibility with the
		// original deployments
		if providerName == "gemini" {
			apiKey = os.Getenv("GOOGLE_API_KEY")
		} else {
			apiKey = os.Getenv("DEEPGRAM_API_KEY")
		}
	}

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":3000"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		Provider:       providerName,
		ProviderAPIKey: apiKey,
		ProviderModel:  getEnv("PROVIDER_MODEL", ""),
		Language:       getEnv("LANGUAGE", "en"),
		SampleRate:     getEnvInt("SAMPLE_RATE", 16000),
		InterimResults: getEnv("INTERIM_RESULTS", "true") == "true",
		StartTimeout:   time.Duration(getEnvInt("START_TIMEOUT_MS", 15000)) * time.Millisecond,

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		DatabaseDSN: getEnv("DATABASE_DSN", ""),
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
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
