// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/meshguard/internal/api"
	"github.com/tomtom215/meshguard/internal/audit"
	"github.com/tomtom215/meshguard/internal/auth"
	"github.com/tomtom215/meshguard/internal/database"
	"github.com/tomtom215/meshguard/internal/dispatch"
	"github.com/tomtom215/meshguard/internal/engine"
	"github.com/tomtom215/meshguard/internal/eventprocessor"
	"github.com/tomtom215/meshguard/internal/mmip"
	"github.com/tomtom215/meshguard/internal/mqtt"
	"github.com/tomtom215/meshguard/internal/spool"
	"github.com/tomtom215/meshguard/internal/supervisor"
)

// DefaultConfigPaths lists the paths searched for a config file, first
// match wins.
var DefaultConfigPaths = []string{
	"meshguard.yaml",
	"meshguard.yml",
	"/etc/meshguard/config.yaml",
	"/etc/meshguard/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults. They are loaded first and
// overridden by the config file and then by environment variables.
func defaultConfig() *Config {
	mq := mqtt.DefaultConfig()
	breaker := dispatch.DefaultBreakerConfig()
	// The API binds to loopback by default, where auth mode none is allowed.
	authCfg := auth.DefaultConfig()
	authCfg.Mode = auth.ModeNone
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Database: database.DefaultConfig(),
		Engine:   engine.DefaultConfig(),
		Dispatch: dispatch.DefaultConfig(),
		Telegram: dispatch.TelegramConfig{
			APIBase:       dispatch.DefaultTelegramAPIBase,
			Timeout:       15 * time.Second,
			RatePerSecond: 1,
			Breaker:       breaker,
		},
		Webhook: dispatch.WebhookConfig{
			Timeout: 10 * time.Second,
			Breaker: breaker,
		},
		MQTT: MQTTConfig{
			Broker:         mq.Broker,
			ClientID:       "meshguard",
			KeepAlive:      mq.KeepAlive,
			ConnectTimeout: mq.ConnectTimeout,
			PublishTimeout: mq.PublishTimeout,
		},
		MMIP:  mmip.DefaultConfig(),
		NATS:  eventprocessor.DefaultConfig(),
		API:   api.DefaultConfig(),
		Auth:  authCfg,
		Spool: spool.DefaultConfig(),
		Audit: audit.DefaultConfig(),

		Supervisor: supervisor.DefaultTreeConfig(),
	}
}

// Load reads configuration in three layers:
//  1. Defaults: built-in values
//  2. Config file: YAML at path, or the first of CONFIG_PATH and
//     DefaultConfigPaths that exists when path is empty
//  3. Environment variables: the explicit mapping in envTransformFunc
//
// The result is validated before it is returned.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = FindConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}
	if err := processMapFields(k); err != nil {
		return nil, fmt.Errorf("failed to process map fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// FindConfigFile returns the first of CONFIG_PATH and DefaultConfigPaths
// that exists, or "".
func FindConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"api.cors_origins",
	"nats.subjects",
}

// processSliceFields splits comma-separated strings for known slice
// fields. YAML lists pass through untouched.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// mapConfigPaths are parsed from "k=v,k2=v2" env values.
var mapConfigPaths = []string{
	"webhook.headers",
}

// processMapFields converts key=value lists to maps for known map fields.
// Values may contain '='; only the first one splits.
func processMapFields(k *koanf.Koanf) error {
	for _, path := range mapConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		result := make(map[string]interface{})
		for _, item := range strings.Split(strVal, ",") {
			parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
			if len(parts) != 2 {
				continue
			}
			if key := strings.TrimSpace(parts[0]); key != "" {
				result[key] = strings.TrimSpace(parts[1])
			}
		}
		// Delete first so the map replaces the string instead of merging
		// under it.
		k.Delete(path)
		if len(result) == 0 {
			continue
		}
		if err := k.Set(path, result); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf
// paths. Unlisted variables are ignored.
var envMappings = map[string]string{
	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Database
	"meshguard_db_path":    "database.path",
	"meshguard_db_memory":  "database.max_memory",
	"meshguard_db_threads": "database.threads",

	// Engine
	"engine_history_retention_days": "engine.history_retention_days",
	"engine_maintenance_interval":   "engine.maintenance_interval",
	"engine_shards":                 "engine.shards",
	"station_lat":                   "engine.station.lat",
	"station_lon":                   "engine.station.lon",

	// Dispatch
	"dispatch_workers":        "dispatch.workers",
	"dispatch_queue_size":     "dispatch.queue_size",
	"dispatch_action_timeout": "dispatch.action_timeout",

	// Telegram
	"telegram_bot_token":       "telegram.bot_token",
	"telegram_chat_id":         "telegram.chat_id",
	"telegram_api_base":        "telegram.api_base",
	"telegram_rate_per_second": "telegram.rate_per_second",

	// Webhook
	"webhook_url":             "webhook.default_url",
	"webhook_headers":         "webhook.headers",
	"webhook_timeout":         "webhook.timeout",
	"webhook_rate_per_second": "webhook.rate_per_second",

	// Sound
	"sound_command": "sound.command",
	"sound_voice":   "sound.voice",

	// MQTT
	"mqtt_enabled":   "mqtt.enabled",
	"mqtt_broker":    "mqtt.broker",
	"mqtt_client_id": "mqtt.client_id",
	"mqtt_username":  "mqtt.username",
	"mqtt_password":  "mqtt.password",

	// MMIP
	"mmip_enabled":         "mmip.enabled",
	"mmip_source_id":       "mmip.source_id",
	"mmip_source_type":     "mmip.source_type",
	"mmip_status_interval": "mmip.status_interval",

	// NATS ingest
	"nats_enabled":     "nats.enabled",
	"nats_url":         "nats.url",
	"nats_embedded":    "nats.embedded",
	"nats_port":        "nats.port",
	"nats_store_dir":   "nats.store_dir",
	"nats_stream":      "nats.stream",
	"nats_subjects":    "nats.subjects",
	"nats_topic":       "nats.topic",
	"nats_durable":     "nats.durable_name",
	"nats_subscribers": "nats.subscribers",

	// Admin API
	"api_enabled":         "api.enabled",
	"api_host":            "api.host",
	"api_port":            "api.port",
	"cors_origins":        "api.cors_origins",
	"rate_limit_requests": "api.rate_limit_requests",
	"rate_limit_window":   "api.rate_limit_window",
	"disable_rate_limit":  "api.rate_limit_disabled",

	// Auth
	"auth_mode":         "auth.mode",
	"jwt_secret":        "auth.jwt_secret",
	"jwt_token_ttl":     "auth.token_ttl",
	"auth_max_attempts": "auth.max_attempts",

	// Authz
	"authz_policy_path": "authz.policy_path",

	// Spool
	"spool_enabled": "spool.enabled",
	"spool_path":    "spool.path",
	"spool_max_age": "spool.max_age",

	// Audit
	"audit_enabled":        "audit.enabled",
	"audit_retention_days": "audit.retention_days",

	// Supervisor
	"supervisor_failure_backoff":  "supervisor.failure_backoff",
	"supervisor_shutdown_timeout": "supervisor.shutdown_timeout",
}

// envTransformFunc maps an environment variable name to its koanf path,
// or "" to skip it.
//
// Examples:
//   - MESHGUARD_DB_PATH -> database.path
//   - TELEGRAM_BOT_TOKEN -> telegram.bot_token
//   - MQTT_BROKER -> mqtt.broker
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// WatchConfigFile calls callback whenever the file at path changes. The
// caller reloads with Load and swaps its state under its own lock.
func WatchConfigFile(path string, callback func()) error {
	return file.Provider(path).Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
