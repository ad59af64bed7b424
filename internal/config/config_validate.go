// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tomtom215/meshguard/internal/auth"
	"github.com/tomtom215/meshguard/internal/geo"
	"github.com/tomtom215/meshguard/internal/validation"
)

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateLogging,
		c.validateStructTags,
		c.validateEngine,
		c.validateZones,
		c.validateTelegram,
		c.validateWebhook,
		c.validateMQTT,
		c.validateMMIP,
		c.NATS.Validate,
		c.Spool.Validate,
		c.validateAPI,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

// validateLogging validates the level and format names.
func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console; got %q", c.Logging.Format)
	}
	return nil
}

// validateStructTags runs the validate tags on the sections that carry them.
func (c *Config) validateStructTags() error {
	sections := []struct {
		name string
		v    interface{}
	}{
		{"database", &c.Database},
		{"engine", &c.Engine},
		{"dispatch", &c.Dispatch},
	}
	for _, s := range sections {
		if verr := validation.ValidateStruct(s.v); verr != nil {
			return fmt.Errorf("%s: %w", s.name, verr)
		}
	}
	return nil
}

// validateEngine validates intervals and the station position.
func (c *Config) validateEngine() error {
	if c.Engine.MaintenanceInterval <= 0 {
		return errors.New("engine maintenance_interval must be positive")
	}
	if c.Dispatch.ActionTimeout <= 0 {
		return errors.New("dispatch action_timeout must be positive")
	}
	if p := c.Engine.Station; p != nil {
		if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
			return fmt.Errorf("engine station (%g, %g) is not a valid coordinate", p.Lat, p.Lon)
		}
	}
	return nil
}

// validateZones builds each configured zone and rejects duplicate IDs.
func (c *Config) validateZones() error {
	seen := make(map[string]bool, len(c.Zones))
	for i, spec := range c.Zones {
		if spec.ID == "" {
			return fmt.Errorf("zone %d: id is required", i)
		}
		if seen[spec.ID] {
			return fmt.Errorf("zone %q configured twice", spec.ID)
		}
		seen[spec.ID] = true
		if _, err := geo.NewZone(spec); err != nil {
			return fmt.Errorf("zone %q: %w", spec.ID, err)
		}
	}
	return nil
}

// validateTelegram validates the Bot API settings when a token is set.
func (c *Config) validateTelegram() error {
	if c.Telegram.BotToken == "" {
		return nil
	}
	if !strings.Contains(c.Telegram.BotToken, ":") {
		return errors.New("TELEGRAM_BOT_TOKEN appears invalid (expected <id>:<secret>)")
	}
	if err := validateHTTPURL(c.Telegram.APIBase, "telegram api_base"); err != nil {
		return err
	}
	if c.Telegram.RatePerSecond < 0 {
		return errors.New("telegram rate_per_second must not be negative")
	}
	return nil
}

// validateWebhook validates the default target when one is set.
func (c *Config) validateWebhook() error {
	if c.Webhook.RatePerSecond < 0 {
		return errors.New("webhook rate_per_second must not be negative")
	}
	if c.Webhook.DefaultURL == "" {
		return nil
	}
	return validateHTTPURL(c.Webhook.DefaultURL, "WEBHOOK_URL")
}

// validateMQTT validates the broker when the connection is enabled.
func (c *Config) validateMQTT() error {
	if !c.MQTT.Enabled {
		return nil
	}
	return c.MQTT.Client().Validate()
}

// validateMMIP requires the broker connection the publisher rides on.
func (c *Config) validateMMIP() error {
	if !c.MMIP.Enabled {
		return nil
	}
	if !c.MQTT.Enabled {
		return errors.New("MMIP_ENABLED requires MQTT_ENABLED")
	}
	if c.MMIP.SourceID == "" {
		return errors.New("mmip source_id is required")
	}
	if strings.ContainsAny(c.MMIP.SourceID, "/+#") {
		return fmt.Errorf("mmip source_id %q may not contain '/', '+' or '#'", c.MMIP.SourceID)
	}
	if c.MMIP.QoS > 2 {
		return fmt.Errorf("mmip qos must be 0, 1 or 2; got %d", c.MMIP.QoS)
	}
	if c.MMIP.StatusInterval <= 0 {
		return errors.New("mmip status_interval must be positive")
	}
	return nil
}

// validateAPI validates the admin server and, when it is on, its auth.
func (c *Config) validateAPI() error {
	if !c.API.Enabled {
		return nil
	}
	if err := c.API.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if c.Auth.Mode == auth.ModeNone && !isLoopback(c.API.Host) {
		return fmt.Errorf("auth mode none requires a loopback api host, got %q", c.API.Host)
	}
	return nil
}

func isLoopback(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return strings.HasPrefix(host, "127.")
}

// validateHTTPURL checks that raw is an absolute http(s) URL.
func validateHTTPURL(raw, name string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", name, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s has no host", name)
	}
	return nil
}
