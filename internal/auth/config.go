// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Mode selects how the admin API authenticates requests.
type Mode string

const (
	// ModeNone trusts every caller as admin. Only for a loopback-bound API.
	ModeNone Mode = "none"
	// ModeJWT requires a bearer token issued by the login endpoint.
	ModeJWT Mode = "jwt"
)

// Roles, lowest privilege first.
const (
	RoleViewer   = "viewer"
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// MinSecretLength is the shortest accepted JWT signing secret.
const MinSecretLength = 32

// User is a configured API account. PasswordHash is a bcrypt hash; generate
// one with `flowctl hash-password`.
type User struct {
	Username     string `koanf:"username"`
	PasswordHash string `koanf:"password_hash"`
	Role         string `koanf:"role"`
}

// Config holds admin API authentication settings.
type Config struct {
	Mode            Mode          `koanf:"mode"`
	JWTSecret       string        `koanf:"jwt_secret"`
	TokenTTL        time.Duration `koanf:"token_ttl"`
	Users           []User        `koanf:"users"`
	MaxAttempts     int           `koanf:"max_attempts"`
	LockoutDuration time.Duration `koanf:"lockout_duration"`
}

// DefaultConfig returns JWT mode with no users; Validate fails until at
// least one user and a secret are configured.
func DefaultConfig() Config {
	return Config{
		Mode:            ModeJWT,
		TokenTTL:        12 * time.Hour,
		MaxAttempts:     5,
		LockoutDuration: 15 * time.Minute,
	}
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleViewer, RoleOperator, RoleAdmin:
		return true
	}
	return false
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeNone:
		return nil
	case ModeJWT:
	default:
		return fmt.Errorf("auth mode %q must be none or jwt", c.Mode)
	}

	if len(c.JWTSecret) < MinSecretLength {
		return fmt.Errorf("auth jwt_secret must be at least %d characters", MinSecretLength)
	}
	if c.TokenTTL <= 0 {
		return errors.New("auth token_ttl must be positive")
	}
	if len(c.Users) == 0 {
		return errors.New("auth mode jwt requires at least one user")
	}
	seen := make(map[string]bool, len(c.Users))
	for i, u := range c.Users {
		if u.Username == "" {
			return fmt.Errorf("auth user %d: username is required", i)
		}
		if seen[u.Username] {
			return fmt.Errorf("auth user %q configured twice", u.Username)
		}
		seen[u.Username] = true
		if !strings.HasPrefix(u.PasswordHash, "$2") {
			return fmt.Errorf("auth user %q: password_hash must be a bcrypt hash", u.Username)
		}
		if !ValidRole(u.Role) {
			return fmt.Errorf("auth user %q: role %q must be viewer, operator or admin", u.Username, u.Role)
		}
	}
	return nil
}
