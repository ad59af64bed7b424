// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func mustHash(t *testing.T, pw string) string {
	t.Helper()
	h, err := HashPassword(pw, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	return h
}

func TestHashPassword(t *testing.T) {
	t.Parallel()
	if _, err := HashPassword("short", bcrypt.MinCost); err == nil {
		t.Error("short password accepted")
	}
	h := mustHash(t, "correct horse")
	if !strings.HasPrefix(h, "$2") {
		t.Errorf("hash = %q, want bcrypt", h)
	}
}

func TestUserStore_Authenticate(t *testing.T) {
	t.Parallel()
	store := NewUserStore([]User{
		{Username: "alice", PasswordHash: mustHash(t, "alice-password"), Role: RoleAdmin},
		{Username: "bob", PasswordHash: mustHash(t, "bob-password"), Role: RoleViewer},
	})

	u, err := store.Authenticate("alice", "alice-password")
	if err != nil || u.Role != RoleAdmin {
		t.Errorf("Authenticate(alice) = %+v, %v", u, err)
	}
	if _, err := store.Authenticate("alice", "bob-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v", err)
	}
	if _, err := store.Authenticate("mallory", "anything1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user error = %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	hash := mustHash(t, "operator-pass")
	valid := Config{
		Mode: ModeJWT, JWTSecret: testSecret, TokenTTL: time.Hour,
		Users: []User{{Username: "ops", PasswordHash: hash, Role: RoleOperator}},
	}
	dup := valid
	dup.Users = []User{valid.Users[0], valid.Users[0]}
	plain := valid
	plain.Users = []User{{Username: "ops", PasswordHash: "operator-pass", Role: RoleOperator}}
	badRole := valid
	badRole.Users = []User{{Username: "ops", PasswordHash: hash, Role: "root"}}
	shortSecret := valid
	shortSecret.JWTSecret = "abc"
	noUsers := valid
	noUsers.Users = nil

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", valid, false},
		{"none mode", Config{Mode: ModeNone}, false},
		{"unknown mode", Config{Mode: "ldap"}, true},
		{"duplicate user", dup, true},
		{"plaintext password", plain, true},
		{"bad role", badRole, true},
		{"short secret", shortSecret, true},
		{"no users", noUsers, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
