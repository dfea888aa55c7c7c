// Package config - jwt.go provides the session cookie signing configuration.
package config

import (
	"errors"
	"fmt"
	"time"
)

// MinSessionSecretLength is the shortest accepted SESSION_SECRET.
const MinSessionSecretLength = 16

// ErrMissingSessionSecret is returned when SESSION_SECRET is not set.
var ErrMissingSessionSecret = errors.New(EnvSessionSecret + " is required but not set")

// SessionConfig holds configuration for signing session cookies.
type SessionConfig struct {
	Secret string
	TTL    time.Duration
}

// NewSessionConfig creates the session configuration from cfg.
func NewSessionConfig(cfg *Config) (*SessionConfig, error) {
	if cfg.SessionSecret == "" {
		return nil, ErrMissingSessionSecret
	}
	sc := &SessionConfig{
		Secret: cfg.SessionSecret,
		TTL:    time.Duration(cfg.SessionTTLHours) * time.Hour,
	}
	if err := sc.normalize(); err != nil {
		return nil, err
	}
	return sc, nil
}

// normalize validates the configuration.
func (c *SessionConfig) normalize() error {
	if len(c.Secret) < MinSessionSecretLength {
		return fmt.Errorf("%s must be at least %d characters", EnvSessionSecret, MinSessionSecretLength)
	}
	if c.TTL < time.Hour {
		return fmt.Errorf("session TTL must be at least 1 hour, got: %s", c.TTL)
	}
	return nil
}
