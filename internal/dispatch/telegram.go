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
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/meshguard/internal/logging"
	"github.com/tomtom215/meshguard/internal/models"
)

// DefaultTelegramAPIBase is the Bot API root.
const DefaultTelegramAPIBase = "https://api.telegram.org"

// TelegramConfig configures the telegram_push sink.
type TelegramConfig struct {
	BotToken      string        `koanf:"bot_token"`
	DefaultChatID string        `koanf:"chat_id"`
	APIBase       string        `koanf:"api_base"`
	Timeout       time.Duration `koanf:"timeout"`
	// RatePerSecond keeps under the Bot API per-bot limit.
	RatePerSecond float64       `koanf:"rate_per_second"`
	Breaker       BreakerConfig `koanf:"breaker"`
}

// TelegramAction sends alerts through the Telegram Bot API.
type TelegramAction struct {
	cfg     TelegramConfig
	client  *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[string]
}

// NewTelegramAction creates the telegram_push sink.
func NewTelegramAction(cfg TelegramConfig) *TelegramAction {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultTelegramAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 1
	}
	return &TelegramAction{
		cfg:     cfg,
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 3),
		cb:      newBreaker("telegram", cfg.Breaker),
	}
}

// Type implements Action.
func (a *TelegramAction) Type() string { return "telegram_push" }

// DefaultTimeout implements TimeoutAction.
func (a *TelegramAction) DefaultTimeout() time.Duration { return a.cfg.Timeout }

type telegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Execute implements Action.
func (a *TelegramAction) Execute(ctx context.Context, req *ActionRequest) (string, error) {
	if a.cfg.BotToken == "" {
		return "", fmt.Errorf("telegram: no bot token: %w", ErrNotConfigured)
	}
	chatID := req.String("chat_id", a.cfg.DefaultChatID)
	if chatID == "" {
		return "", fmt.Errorf("telegram: no chat_id: %w", ErrNotConfigured)
	}

	body, err := json.Marshal(telegramMessage{
		ChatID:                chatID,
		Text:                  BuildTelegramText(req),
		ParseMode:             "Markdown",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal Telegram payload: %w", err)
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("telegram rate limit: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(a.cfg.APIBase, "/"), a.cfg.BotToken)
	return a.cb.Execute(func() (string, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("failed to create Telegram request: %s", logging.RedactSecrets(err.Error()))
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := a.client.Do(httpReq)
		if err != nil {
			return "", fmt.Errorf("failed to send Telegram message: %s", logging.RedactSecrets(err.Error()))
		}
		defer resp.Body.Close()

		var tr telegramResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(raw, &tr)

		if resp.StatusCode >= 400 || !tr.OK {
			msg := fmt.Sprintf("telegram returned status %d", resp.StatusCode)
			if tr.Description != "" {
				msg += ": " + tr.Description
			}
			return "", &statusError{code: resp.StatusCode, msg: msg}
		}
		return "sent to " + chatID, nil
	})
}

// BuildTelegramText renders the message text: the resolved message (or a
// fallback), an optional map link and an optional details block.
func BuildTelegramText(req *ActionRequest) string {
	var b strings.Builder
	msg := req.String("message", "")
	if msg == "" {
		eventType := ""
		if req.Event != nil {
			eventType = req.Event.EventType
		}
		name := req.FlowName
		if name == "" {
			name = "Alert"
		}
		msg = fmt.Sprintf("\U0001F514 Alert: %s\n%s", name, eventType)
	}
	b.WriteString(msg)

	ev := req.Event
	if ev == nil {
		return b.String()
	}
	hasPos := !ev.Location.IsZero()

	if req.Bool("include_map_link", true) && hasPos {
		fmt.Fprintf(&b, "\n\n\U0001F4CD https://www.google.com/maps?q=%s,%s",
			models.ToString(ev.Location.Lat), models.ToString(ev.Location.Lon))
	}

	if req.Bool("include_details", true) {
		var details []string
		if ev.ObjectID != "" {
			details = append(details, "ID: "+ev.ObjectID)
		}
		if ev.ObjectType != "" {
			details = append(details, "Type: "+ev.ObjectType)
		}
		if hasPos {
			details = append(details, fmt.Sprintf("Position: %.5f, %.5f", ev.Location.Lat, ev.Location.Lon))
		}
		for _, f := range []struct{ key, label string }{
			{"callsign", "Callsign"}, {"squawk", "Squawk"}, {"rssi", "RSSI"},
		} {
			if v := ev.DataString(f.key); v != "" && v != "0" {
				details = append(details, f.label+": "+v)
			}
		}
		if len(details) > 0 {
			b.WriteString("\n\n")
			b.WriteString(strings.Join(details, "\n"))
		}
	}
	return b.String()
}
