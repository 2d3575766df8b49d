package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// No env vars set: everything should fall back to defaults.
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultRPCURL, cfg.SolanaRPCURL)
	assert.Equal(t, "confirmed", cfg.ConfirmationLevel)
	assert.Equal(t, 60*time.Second, cfg.ConfirmationTimeout)
	assert.Equal(t, 2*time.Second, cfg.ConfirmPollInterval)
	assert.Equal(t, 5, cfg.HistoryLimit)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.NATSURL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SOLANA_RPC_URL", "http://localhost:8899")
	t.Setenv("CONFIRMATION_LEVEL", "finalized")
	t.Setenv("CONFIRMATION_TIMEOUT", "90s")
	t.Setenv("CONFIRM_POLL_INTERVAL", "500ms")
	t.Setenv("HISTORY_LIMIT", "20")
	t.Setenv("KEYPAIR_PATH", "/tmp/id.json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8899", cfg.SolanaRPCURL)
	assert.Equal(t, "finalized", cfg.ConfirmationLevel)
	assert.Equal(t, 90*time.Second, cfg.ConfirmationTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.ConfirmPollInterval)
	assert.Equal(t, 20, cfg.HistoryLimit)
	assert.Equal(t, "/tmp/id.json", cfg.KeypairPath)
}

func TestLoad_InvalidConfirmationLevel(t *testing.T) {
	t.Setenv("CONFIRMATION_LEVEL", "definitely")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFIRMATION_LEVEL")
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("CONFIRMATION_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFIRMATION_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing rpc url",
			mutate:  func(c *Config) { c.SolanaRPCURL = "" },
			wantErr: "SolanaRPCURL",
		},
		{
			name:    "timeout too small",
			mutate:  func(c *Config) { c.ConfirmationTimeout = 100 * time.Millisecond },
			wantErr: "ConfirmationTimeout",
		},
		{
			name: "poll interval exceeds timeout",
			mutate: func(c *Config) {
				c.ConfirmPollInterval = 2 * time.Minute
			},
			wantErr: "ConfirmPollInterval",
		},
		{
			name:    "non-positive history limit",
			mutate:  func(c *Config) { c.HistoryLimit = 0 },
			wantErr: "HistoryLimit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				SolanaRPCURL:        DefaultRPCURL,
				ConfirmationLevel:   "confirmed",
				ConfirmationTimeout: 60 * time.Second,
				ConfirmPollInterval: 2 * time.Second,
				HistoryLimit:        5,
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
