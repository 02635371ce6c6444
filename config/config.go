package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pitabwire/frame/config"
)

// PresenceConfig holds the configuration for the presence and message
// delivery service.
type PresenceConfig struct {
	config.ConfigurationDefault

	ProfileServiceURI string `envDefault:"http://127.0.0.1:7003" env:"PROFILE_SERVICE_URI"`

	// Maximum number of simultaneously registered connections held by the
	// in-process registry.
	MaxConnections int32 `envDefault:"10000" env:"MAX_CONNECTIONS"`

	// Per-connection outbound envelope buffer. A full buffer means the
	// consumer is too slow and the push is reported as undelivered.
	OutboundBufferSize int `envDefault:"32" env:"OUTBOUND_BUFFER_SIZE"`

	WebsocketPath      string `envDefault:"/ws"   env:"WEBSOCKET_PATH"`
	WSReadLimitBytes   int64  `envDefault:"65536" env:"WS_READ_LIMIT_BYTES"`
	WSWriteTimeoutSec  int    `envDefault:"10"    env:"WS_WRITE_TIMEOUT_SEC"`
	WSPongTimeoutSec   int    `envDefault:"60"    env:"WS_PONG_TIMEOUT_SEC"`

	ProfileTimeoutSec         int `envDefault:"5"  env:"PROFILE_TIMEOUT_SEC"`
	ProfileBreakerMaxFailures int `envDefault:"5"  env:"PROFILE_BREAKER_MAX_FAILURES"`
	ProfileBreakerResetSec    int `envDefault:"30" env:"PROFILE_BREAKER_RESET_SEC"`
}

// Validate checks that the configuration is valid.
// Returns an error if any validation fails.
func (c *PresenceConfig) Validate() error {
	var errs []error

	if c.MaxConnections <= 0 {
		errs = append(errs, errors.New("MaxConnections must be > 0"))
	}

	if c.OutboundBufferSize <= 0 {
		errs = append(errs, errors.New("OutboundBufferSize must be > 0"))
	}

	if c.WSReadLimitBytes <= 0 {
		errs = append(errs, errors.New("WSReadLimitBytes must be > 0"))
	}

	if !strings.HasPrefix(c.WebsocketPath, "/") {
		errs = append(errs, fmt.Errorf("WebsocketPath must start with '/': %s", c.WebsocketPath))
	}

	if !strings.HasPrefix(c.ProfileServiceURI, "http://") &&
		!strings.HasPrefix(c.ProfileServiceURI, "https://") {
		errs = append(errs, fmt.Errorf("ProfileServiceURI must be an http(s) URL: %s", c.ProfileServiceURI))
	}

	return errors.Join(errs...)
}
