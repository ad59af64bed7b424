// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

/*
Package config loads Meshguard's configuration with koanf.

# Configuration Sources

Sources are layered, later ones winning:
  - Built-in defaults (defaultConfig)
  - A YAML file: the path given to Load, else CONFIG_PATH, else the first
    of meshguard.yaml, meshguard.yml, /etc/meshguard/config.yaml
  - Environment variables listed in envMappings

# Sections

Each top-level key is owned by the package that consumes it:

	logging    zerolog level, format, caller
	database   DuckDB path and limits (database.Config)
	engine     maintenance intervals, retention, station (engine.Config)
	dispatch   worker pool and action timeout (dispatch.Config)
	zones      static geofences (geo.ZoneSpec)
	telegram   telegram_push sink
	webhook    webhook sink default target and headers
	sound      sound_alert and voice_alert command
	mqtt       shared broker connection
	mmip       MMIP/1.0 publisher
	nats       JetStream ingest (eventprocessor.Config)
	api        admin HTTP server
	auth       admin users and JWT settings
	authz      casbin policy file
	spool      badger history spool
	audit      admin action trail retention (audit.Config)
	supervisor suture restart and shutdown tuning

# Environment Variables

Commonly set:
  - LOG_LEVEL, LOG_FORMAT
  - MESHGUARD_DB_PATH
  - STATION_LAT, STATION_LON
  - TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID
  - WEBHOOK_URL, WEBHOOK_HEADERS ("Name=value,Other=value")
  - MQTT_ENABLED, MQTT_BROKER, MQTT_USERNAME, MQTT_PASSWORD
  - MMIP_ENABLED, MMIP_SOURCE_ID
  - NATS_ENABLED, NATS_URL, NATS_EMBEDDED
  - API_HOST, API_PORT, CORS_ORIGINS (comma-separated)
  - AUTH_MODE, JWT_SECRET, AUTHZ_POLICY_PATH
  - SPOOL_ENABLED, SPOOL_PATH

Durations accept Go syntax ("30s", "5m"). Users are only configurable in
the file.

# Validation

Load validates before returning. Struct tags on the database, engine and
dispatch sections run through go-playground/validator; the remaining
sections have explicit checks. Auth mode none is refused unless the API
binds to a loopback address.

# Usage

	cfg, err := config.Load("")
	if err != nil {
	    return err
	}
	logging.Init(cfg.Logging.ToLogging())
*/
package config
