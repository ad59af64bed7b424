// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package dispatch

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/meshguard/internal/logging"
	"github.com/tomtom215/meshguard/internal/metrics"
)

// BreakerConfig tunes the circuit breaker placed in front of a remote sink.
type BreakerConfig struct {
	// MaxFailures consecutive failures open the circuit.
	MaxFailures uint32 `koanf:"max_failures"`
	// OpenTimeout is how long the circuit stays open before a probe.
	OpenTimeout time.Duration `koanf:"open_timeout"`
}

// DefaultBreakerConfig opens after 5 straight failures for one minute.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{MaxFailures: 5, OpenTimeout: time.Minute}
}

// newBreaker builds a breaker whose transitions are logged and exported.
// The sink delivers its own result string through the breaker.
func newBreaker(name string, cfg BreakerConfig) *gobreaker.CircuitBreaker[string] {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = DefaultBreakerConfig().MaxFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultBreakerConfig().OpenTimeout
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: remoteHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := breakerState(from), breakerState(to)
			logging.Info().Str("sink", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerGauge(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})
}

// statusError is an HTTP error reply from a remote sink.
type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string { return e.msg }

// remoteHealthy reports whether err leaves the remote endpoint counted as
// healthy. Client errors (4xx) are caused by the request, not the endpoint.
func remoteHealthy(err error) bool {
	if err == nil {
		return true
	}
	var se *statusError
	return errors.As(err, &se) && se.code < 500
}

func breakerGauge(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func breakerState(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
