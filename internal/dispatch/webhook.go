// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/meshguard/internal/logging"
	"github.com/tomtom215/meshguard/internal/models"
)

// WebhookConfig configures the webhook sink. Per-node config overrides the
// URL, method and headers.
type WebhookConfig struct {
	DefaultURL string            `koanf:"default_url"`
	Headers    map[string]string `koanf:"headers"`
	Timeout    time.Duration     `koanf:"timeout"`
	// RatePerSecond caps outbound requests across all flows. 0 disables.
	RatePerSecond float64       `koanf:"rate_per_second"`
	Breaker       BreakerConfig `koanf:"breaker"`
}

// WebhookAction posts alerts to an HTTP endpoint. Each target host gets
// its own circuit breaker.
type WebhookAction struct {
	cfg      WebhookConfig
	client   *http.Client
	limiter  *rate.Limiter
	breakers sync.Map // host -> *gobreaker.CircuitBreaker[string]
}

// NewWebhookAction creates the webhook sink.
func NewWebhookAction(cfg WebhookConfig) *WebhookAction {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	a := &WebhookAction{
		cfg: cfg,
		// Timeout is enforced per request through the context.
		client: &http.Client{},
	}
	if cfg.RatePerSecond > 0 {
		burst := int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return a
}

// Type implements Action.
func (a *WebhookAction) Type() string { return "webhook" }

// DefaultTimeout implements TimeoutAction.
func (a *WebhookAction) DefaultTimeout() time.Duration { return a.cfg.Timeout }

// Execute implements Action.
func (a *WebhookAction) Execute(ctx context.Context, req *ActionRequest) (string, error) {
	target := req.String("url", a.cfg.DefaultURL)
	if target == "" {
		return "", fmt.Errorf("webhook: no url: %w", ErrNotConfigured)
	}
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("webhook: invalid url %q", logging.RedactURL(target))
	}
	method := strings.ToUpper(req.String("method", http.MethodPost))

	body, err := json.Marshal(webhookPayload(req))
	if err != nil {
		return "", fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("webhook rate limit: %w", err)
		}
	}

	return a.breaker(u.Host).Execute(func() (string, error) {
		httpReq, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("failed to create webhook request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		for k, v := range a.cfg.Headers {
			httpReq.Header.Set(k, v)
		}
		if hdrs, ok := req.Config["headers"].(map[string]any); ok {
			for k, v := range hdrs {
				httpReq.Header.Set(k, models.ToString(v))
			}
		}

		resp, err := a.client.Do(httpReq)
		if err != nil {
			return "", fmt.Errorf("failed to send webhook: %s", logging.RedactSecrets(err.Error()))
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

		if resp.StatusCode >= 400 {
			return "", &statusError{code: resp.StatusCode, msg: fmt.Sprintf("webhook returned status %d", resp.StatusCode)}
		}
		return fmt.Sprintf("%s %s -> %d", method, logging.RedactURL(target), resp.StatusCode), nil
	})
}

func (a *WebhookAction) breaker(host string) *gobreaker.CircuitBreaker[string] {
	if cb, ok := a.breakers.Load(host); ok {
		return cb.(*gobreaker.CircuitBreaker[string])
	}
	cb, _ := a.breakers.LoadOrStore(host, newBreaker("webhook:"+host, a.cfg.Breaker))
	return cb.(*gobreaker.CircuitBreaker[string])
}

// webhookPayload returns the configured payload map, already resolved, or
// the default alert summary.
func webhookPayload(req *ActionRequest) map[string]any {
	if p, ok := req.Config["payload"].(map[string]any); ok && len(p) > 0 {
		return p
	}
	payload := defaultPayload(req)
	payload["message"] = req.String("message", "")
	return payload
}

// defaultPayload is the alert summary shared by the webhook and MQTT sinks.
func defaultPayload(req *ActionRequest) map[string]any {
	p := map[string]any{
		"flow_id":   req.FlowID,
		"flow_name": req.FlowName,
		"severity":  string(req.Severity),
		"timestamp": req.Context["timestamp"],
		"lat":       nil,
		"lon":       nil,
	}
	if ev := req.Event; ev != nil {
		p["event_type"] = ev.EventType
		p["object_id"] = ev.ObjectID
		p["object_type"] = ev.ObjectType
		if ev.Location != nil {
			p["lat"] = ev.Location.Lat
			p["lon"] = ev.Location.Lon
		}
	}
	return p
}
