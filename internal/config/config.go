package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DatabasePath string
	Port         int
	LogLevel     string
	DevMode      bool

	// Quote providers, in priority order. Recognized names: alphavantage, yahoo.
	ProviderOrder      []string
	AlphaVantageAPIKey string
	ProviderTimeout    time.Duration

	// Quote cache freshness window. Entries older than this are never
	// treated as authoritative, but may still serve as a stale fallback.
	QuoteTTL time.Duration

	// Stale quotes allowed for portfolio valuation (never for buy/sell)
	ValuationStaleFallback bool

	// Bounded retry budget for conflicting ledger transactions
	ConflictRetries int

	// Cron spec for the quote cache warm-up job; empty disables it
	CacheWarmupSpec string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		DatabasePath:           getEnv("DATABASE_PATH", "./data/papertrader.db"),
		Port:                   getEnvAsInt("PORT", 8080),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		DevMode:                getEnvAsBool("DEV_MODE", false),
		ProviderOrder:          getEnvAsList("QUOTE_PROVIDERS", []string{"alphavantage", "yahoo"}),
		AlphaVantageAPIKey:     getEnv("ALPHA_VANTAGE_API_KEY", ""),
		ProviderTimeout:        getEnvAsDuration("PROVIDER_TIMEOUT", 5*time.Second),
		QuoteTTL:               getEnvAsDuration("QUOTE_TTL", 90*time.Second),
		ValuationStaleFallback: getEnvAsBool("VALUATION_STALE_FALLBACK", true),
		ConflictRetries:        getEnvAsInt("CONFLICT_RETRIES", 3),
		CacheWarmupSpec:        getEnv("CACHE_WARMUP_SPEC", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if len(c.ProviderOrder) == 0 {
		return fmt.Errorf("QUOTE_PROVIDERS must list at least one provider")
	}
	if c.QuoteTTL <= 0 {
		return fmt.Errorf("QUOTE_TTL must be positive")
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	if c.ConflictRetries < 0 {
		return fmt.Errorf("CONFLICT_RETRIES must not be negative")
	}

	// Note: Alpha Vantage key optional; the provider is skipped when unset

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// Bare numbers are seconds
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
