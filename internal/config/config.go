// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package config

import (
	"os"
	"time"

	"github.com/tomtom215/meshguard/internal/api"
	"github.com/tomtom215/meshguard/internal/audit"
	"github.com/tomtom215/meshguard/internal/auth"
	"github.com/tomtom215/meshguard/internal/authz"
	"github.com/tomtom215/meshguard/internal/database"
	"github.com/tomtom215/meshguard/internal/dispatch"
	"github.com/tomtom215/meshguard/internal/engine"
	"github.com/tomtom215/meshguard/internal/eventprocessor"
	"github.com/tomtom215/meshguard/internal/geo"
	"github.com/tomtom215/meshguard/internal/logging"
	"github.com/tomtom215/meshguard/internal/mmip"
	"github.com/tomtom215/meshguard/internal/mqtt"
	"github.com/tomtom215/meshguard/internal/spool"
	"github.com/tomtom215/meshguard/internal/supervisor"
)

// Config holds all application configuration. Sections map one to one
// onto top-level YAML keys.
type Config struct {
	Logging  LoggingConfig   `koanf:"logging"`
	Database database.Config `koanf:"database"`
	Engine   engine.Config   `koanf:"engine"`
	Dispatch dispatch.Config `koanf:"dispatch"`

	// Zones are static geofences merged with any supplied at runtime.
	Zones []geo.ZoneSpec `koanf:"zones"`

	Telegram dispatch.TelegramConfig `koanf:"telegram"`
	Webhook  dispatch.WebhookConfig  `koanf:"webhook"`
	Sound    dispatch.SoundConfig    `koanf:"sound"`
	MQTT     MQTTConfig              `koanf:"mqtt"`
	MMIP     mmip.Config             `koanf:"mmip"`

	NATS  eventprocessor.Config `koanf:"nats"`
	API   api.Config            `koanf:"api"`
	Auth  auth.Config           `koanf:"auth"`
	Authz authz.Config          `koanf:"authz"`
	Spool spool.Config          `koanf:"spool"`
	Audit audit.Config          `koanf:"audit"`

	Supervisor supervisor.TreeConfig `koanf:"supervisor"`
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// ToLogging converts to the logging package config writing to stderr.
func (c LoggingConfig) ToLogging() logging.Config {
	return logging.Config{
		Level:     c.Level,
		Format:    c.Format,
		Caller:    c.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	}
}

// MQTTConfig is the broker connection shared by the mqtt action and the
// MMIP publisher. Enabled gates both.
type MQTTConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Broker         string        `koanf:"broker"`
	ClientID       string        `koanf:"client_id"`
	Username       string        `koanf:"username"`
	Password       string        `koanf:"password"`
	KeepAlive      time.Duration `koanf:"keep_alive"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	PublishTimeout time.Duration `koanf:"publish_timeout"`
}

// Client returns the connection settings for mqtt.Connect.
func (c MQTTConfig) Client() mqtt.Config {
	return mqtt.Config{
		Broker:         c.Broker,
		ClientID:       c.ClientID,
		Username:       c.Username,
		Password:       c.Password,
		KeepAlive:      c.KeepAlive,
		ConnectTimeout: c.ConnectTimeout,
		PublishTimeout: c.PublishTimeout,
	}
}

// Redacted returns a copy safe to log.
func (c *Config) Redacted() Config {
	out := *c
	out.Telegram.BotToken = redact(out.Telegram.BotToken)
	out.MQTT.Password = redact(out.MQTT.Password)
	out.Auth.JWTSecret = redact(out.Auth.JWTSecret)
	if len(out.Webhook.Headers) > 0 {
		headers := make(map[string]string, len(out.Webhook.Headers))
		for k := range out.Webhook.Headers {
			headers[k] = "[REDACTED]"
		}
		out.Webhook.Headers = headers
	}
	if len(out.Auth.Users) > 0 {
		users := make([]auth.User, len(out.Auth.Users))
		for i, u := range out.Auth.Users {
			u.PasswordHash = redact(u.PasswordHash)
			users[i] = u
		}
		out.Auth.Users = users
	}
	return out
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}
