// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package auth

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/meshguard/internal/logging"
	"github.com/tomtom215/meshguard/internal/metrics"
	"github.com/tomtom215/meshguard/internal/models"
)

// LoginRequest is the body of POST /api/v1/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries an issued token.
type LoginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
}

// LoginHandler exchanges credentials for a JWT.
type LoginHandler struct {
	users   *UserStore
	tokens  *JWTManager
	lockout *Lockout
}

// NewLoginHandler creates the handler. lockout may be nil.
func NewLoginHandler(users *UserStore, tokens *JWTManager, lockout *Lockout) *LoginHandler {
	return &LoginHandler{users: users, tokens: tokens, lockout: lockout}
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	r.Body = http.MaxBytesReader(w, r.Body, 4096)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, models.ErrCodeValidation, "username and password are required")
		return
	}

	if h.lockout != nil {
		if locked, remaining := h.lockout.Locked(req.Username); locked {
			metrics.RecordLogin("locked")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(math.Ceil(remaining.Seconds()))))
			writeError(w, http.StatusTooManyRequests, models.ErrCodeLocked, "too many failed attempts, try again later")
			return
		}
	}

	user, err := h.users.Authenticate(req.Username, req.Password)
	if err != nil {
		metrics.RecordLogin("invalid")
		if h.lockout != nil && h.lockout.Fail(req.Username) {
			logging.Warn().Str("username", req.Username).Str("remote", r.RemoteAddr).Msg("Account locked after failed logins")
		}
		writeError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "invalid username or password")
		return
	}
	if h.lockout != nil {
		h.lockout.Reset(req.Username)
	}

	token, exp, err := h.tokens.GenerateToken(user.Username, user.Role)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to issue token")
		writeError(w, http.StatusInternalServerError, models.ErrCodeInternal, "failed to issue token")
		return
	}
	metrics.RecordLogin("ok")
	logging.Info().Str("username", user.Username).Str("role", user.Role).Msg("Login")

	data, err := json.Marshal(&models.APIResponse{
		Status:   "success",
		Data:     LoginResponse{Token: token, TokenType: "Bearer", ExpiresAt: exp.UTC(), Username: user.Username, Role: user.Role},
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.ErrCodeInternal, "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
