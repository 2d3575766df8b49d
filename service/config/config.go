package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DefaultRPCURL is the public devnet endpoint used when SOLANA_RPC_URL is unset.
const DefaultRPCURL = "https://api.devnet.solana.com"

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Solana configuration
	SolanaRPCURL string

	// Signer configuration. Path to a keypair file used by the local signer.
	// Empty is allowed: read-only operations (balance, history) need no signer.
	KeypairPath string

	// Confirmation polling
	ConfirmationLevel   string
	ConfirmationTimeout time.Duration
	ConfirmPollInterval time.Duration

	// History
	HistoryLimit int

	// Optional infrastructure. Empty disables the feature.
	DatabaseURL string
	NATSURL     string
}

// Load reads configuration from environment variables and validates all fields.
// Returns an error if any configuration value is invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.SolanaRPCURL = getEnvOrDefault("SOLANA_RPC_URL", DefaultRPCURL)

	cfg.KeypairPath = os.Getenv("KEYPAIR_PATH")

	cfg.ConfirmationLevel = getEnvOrDefault("CONFIRMATION_LEVEL", "confirmed")
	switch cfg.ConfirmationLevel {
	case "processed", "confirmed", "finalized":
	default:
		errs = append(errs, fmt.Errorf("CONFIRMATION_LEVEL must be processed, confirmed or finalized, got %q", cfg.ConfirmationLevel))
	}

	timeout, err := parseDuration("CONFIRMATION_TIMEOUT", "60s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmationTimeout = timeout
	}

	interval, err := parseDuration("CONFIRM_POLL_INTERVAL", "2s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmPollInterval = interval
	}

	limit, err := parseInt("HISTORY_LIMIT", 5)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.HistoryLimit = limit
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}

	if c.ConfirmationTimeout < time.Second {
		errs = append(errs, fmt.Errorf("ConfirmationTimeout must be at least 1 second"))
	}

	if c.ConfirmPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("ConfirmPollInterval must be positive"))
	}

	if c.ConfirmPollInterval > c.ConfirmationTimeout {
		errs = append(errs, fmt.Errorf("ConfirmPollInterval (%v) cannot be greater than ConfirmationTimeout (%v)",
			c.ConfirmPollInterval, c.ConfirmationTimeout))
	}

	if c.HistoryLimit <= 0 {
		errs = append(errs, fmt.Errorf("HistoryLimit must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}
