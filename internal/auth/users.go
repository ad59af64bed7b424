// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is used by HashPassword when cost is zero.
const DefaultBcryptCost = 12

// MinPasswordLength is enforced by HashPassword.
const MinPasswordLength = 8

// ErrInvalidCredentials is returned for an unknown user or a wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

// HashPassword returns a bcrypt hash for a config file. cost 0 selects
// DefaultBcryptCost.
func HashPassword(password string, cost int) (string, error) {
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// UserStore verifies credentials against configured users.
type UserStore struct {
	users map[string]User
	// dummy is compared for unknown users so lookups take as long as a
	// real password check.
	dummy []byte
}

// NewUserStore indexes users by name.
func NewUserStore(users []User) *UserStore {
	s := &UserStore{users: make(map[string]User, len(users))}
	cost := bcrypt.MinCost
	for _, u := range users {
		s.users[u.Username] = u
		if c, err := bcrypt.Cost([]byte(u.PasswordHash)); err == nil && c > cost {
			cost = c
		}
	}
	s.dummy, _ = bcrypt.GenerateFromPassword([]byte("meshguard-dummy-password"), cost)
	return s
}

// Authenticate returns the user when password matches.
func (s *UserStore) Authenticate(username, password string) (User, error) {
	u, ok := s.users[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(s.dummy, []byte(password))
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}
