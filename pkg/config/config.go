package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port string
	Env  string

	// Database configuration (optional; Redis is the default ledger store)
	DatabaseURL string

	// Redis configuration
	RedisURL      string
	RedisPassword string

	// JWT configuration
	JWTSecret string

	// TON Connect configuration
	ManifestURL     string
	BridgeURL       string
	TreasuryAddress string

	// ManifestTimeout bounds the manifest verification fetch
	ManifestTimeout time.Duration

	// ProviderWaitTimeout bounds how long Restore waits for the wallet
	// provider bridge to become reachable; ProviderPollInterval is the
	// probe spacing within that window
	ProviderWaitTimeout  time.Duration
	ProviderPollInterval time.Duration

	// TxValidityWindow is how long a submitted transaction stays valid
	// before the provider must have answered
	TxValidityWindow time.Duration

	// Reconnection policy
	ReconnectMaxAttempts int
	ReconnectBaseDelay   time.Duration

	// Pricing in micro-USD per whole unit (integer, keeps ledger math exact)
	TONPriceMicroUSD   int64
	TokenPriceMicroUSD int64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		Env:                  getEnv("ENV", "development"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		RedisURL:             getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		ManifestURL:          getEnv("TONCONNECT_MANIFEST_URL", "https://coinnovac.github.io/hazelnut-miniapp/tonconnect-manifest.json"),
		BridgeURL:            getEnv("TONCONNECT_BRIDGE_URL", "https://bridge.tonapi.io/bridge"),
		TreasuryAddress:      getEnv("TREASURY_ADDRESS", ""),
		ManifestTimeout:      getEnvAsDuration("MANIFEST_TIMEOUT", 10*time.Second),
		ProviderWaitTimeout:  getEnvAsDuration("PROVIDER_WAIT_TIMEOUT", 5*time.Second),
		ProviderPollInterval: getEnvAsDuration("PROVIDER_POLL_INTERVAL", 100*time.Millisecond),
		TxValidityWindow:     getEnvAsDuration("TX_VALIDITY_WINDOW", 300*time.Second),
		ReconnectMaxAttempts: getEnvAsInt("RECONNECT_MAX_ATTEMPTS", 3),
		ReconnectBaseDelay:   getEnvAsDuration("RECONNECT_BASE_DELAY", time.Second),
		TONPriceMicroUSD:     getEnvAsInt64("TON_PRICE_MICRO_USD", 2500000),  // $2.50
		TokenPriceMicroUSD:   getEnvAsInt64("TOKEN_PRICE_MICRO_USD", 100000), // $0.10
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	if c.ManifestURL == "" {
		return fmt.Errorf("TONCONNECT_MANIFEST_URL is required")
	}

	// The treasury receives buy transfers; without it purchases cannot work
	if c.TreasuryAddress == "" && c.IsProduction() {
		return fmt.Errorf("TREASURY_ADDRESS is required in production")
	}

	if c.TONPriceMicroUSD <= 0 || c.TokenPriceMicroUSD <= 0 {
		return fmt.Errorf("TON and token prices must be positive")
	}

	if c.ReconnectMaxAttempts < 0 {
		return fmt.Errorf("RECONNECT_MAX_ATTEMPTS must not be negative")
	}

	if c.ProviderPollInterval <= 0 || c.ProviderWaitTimeout < c.ProviderPollInterval {
		return fmt.Errorf("provider wait timeout must be at least one poll interval")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsInt64 gets an environment variable as an int64 with a default value
func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
