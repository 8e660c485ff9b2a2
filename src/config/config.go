package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port     string
	LogLevel string

	// Conversion cache settings
	CacheDBPath    string
	CacheKeyPrefix string
	RateCacheTTL   time.Duration
	RunCacheTTL    time.Duration

	// Natural-language conversion provider settings
	ProviderBaseURL      string
	ProviderTimeout      time.Duration
	ProviderRateLimitRPS float64
	ProviderBurst        int

	// EstimatedTaxRate is applied when a bid does not declare taxes
	// included. This is a flat approximation, not a jurisdiction-aware
	// tax computation.
	EstimatedTaxRate float64

	// CORS
	AllowedOrigins []string
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables or a .env file.
// It centralizes all configuration logic for the application.
func LoadConfig() {
	// 1. Try loading from the current directory (standard behavior)
	errEnv := godotenv.Load()

	// 2. If not found, try loading from the parent directory
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables (expected in production).")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	Cfg = &AppConfig{
		// Core
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Cache
		CacheDBPath:    getEnv("CACHE_DB_PATH", "./conversion_cache.db"),
		CacheKeyPrefix: getEnv("CACHE_KEY_PREFIX", "fuelbid_conv_"),
		RateCacheTTL:   getEnvAsDuration("RATE_CACHE_TTL", 5*time.Minute),
		RunCacheTTL:    getEnvAsDuration("RUN_CACHE_TTL", 1*time.Hour),

		// Provider
		ProviderBaseURL:      getEnv("PROVIDER_BASE_URL", "http://localhost:9090"),
		ProviderTimeout:      getEnvAsDuration("PROVIDER_TIMEOUT", 20*time.Second),
		ProviderRateLimitRPS: getEnvAsFloat("PROVIDER_RATE_LIMIT_RPS", 2.0),
		ProviderBurst:        getEnvAsInt("PROVIDER_BURST", 4),

		// Tax approximation
		EstimatedTaxRate: getEnvAsFloat("ESTIMATED_TAX_RATE", 0.10),

		// CORS
		AllowedOrigins: getAllowedOrigins("ALLOWED_ORIGINS"),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, CacheDBPath=%s, ProviderBaseURL=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.CacheDBPath, Cfg.ProviderBaseURL)
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

// getEnvAsFloat retrieves an environment variable as a float64 or returns a fallback.
func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	log.Printf("Invalid float value for %s ('%s'), using default: %f", key, valueStr, fallback)
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}

// getAllowedOrigins retrieves and parses the comma-separated list of allowed CORS origins.
func getAllowedOrigins(key string) []string {
	originsStr := getEnv(key, "http://localhost:3000")
	if originsStr == "" {
		return []string{}
	}
	origins := strings.Split(originsStr, ",")
	for i, origin := range origins {
		origins[i] = strings.TrimSpace(origin)
	}
	return origins
}
