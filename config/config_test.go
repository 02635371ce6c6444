package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() PresenceConfig {
	return PresenceConfig{
		ProfileServiceURI:  "http://127.0.0.1:7003",
		MaxConnections:     10000,
		OutboundBufferSize: 32,
		WebsocketPath:      "/ws",
		WSReadLimitBytes:   65536,
		WSWriteTimeoutSec:  10,
		WSPongTimeoutSec:   60,
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PresenceConfig)
	}{
		{"zero max connections", func(c *PresenceConfig) { c.MaxConnections = 0 }},
		{"zero outbound buffer", func(c *PresenceConfig) { c.OutboundBufferSize = 0 }},
		{"zero read limit", func(c *PresenceConfig) { c.WSReadLimitBytes = 0 }},
		{"relative websocket path", func(c *PresenceConfig) { c.WebsocketPath = "ws" }},
		{"bad profile URI", func(c *PresenceConfig) { c.ProfileServiceURI = "127.0.0.1:7003" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_JoinsMultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.MaxConnections = 0
	cfg.WSReadLimitBytes = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MaxConnections")
	assert.Contains(t, err.Error(), "WSReadLimitBytes")
}
