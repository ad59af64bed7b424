// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package api

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config controls the admin HTTP server.
type Config struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port"`

	// CORSOrigins lists browser origins allowed to call the API and open
	// the websocket. Empty denies cross-origin browsers.
	CORSOrigins []string `koanf:"cors_origins"`

	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	// LoginRateLimit is login attempts allowed per IP per minute.
	LoginRateLimit int `koanf:"login_rate_limit"`

	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// MaxBodyBytes caps JSON request bodies.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`
}

// DefaultConfig binds to loopback only.
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		Host:              "127.0.0.1",
		Port:              8089,
		RateLimitRequests: 300,
		RateLimitWindow:   time.Minute,
		LoginRateLimit:    10,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		MaxBodyBytes:      1 << 20,
	}
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("api port %d out of range", c.Port)
	}
	if !c.RateLimitDisabled && (c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0) {
		return errors.New("api rate limit requires positive rate_limit_requests and rate_limit_window")
	}
	if c.LoginRateLimit < 0 {
		return errors.New("api login_rate_limit must not be negative")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("api max_body_bytes must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("api shutdown_timeout must be positive")
	}
	return nil
}
