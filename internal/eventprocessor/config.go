// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package eventprocessor

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds the NATS ingest bridge settings.
type Config struct {
	// Enabled turns the bridge on. The binary must also be built with -tags=nats.
	Enabled bool `koanf:"enabled"`

	// URL of the NATS server. Ignored when Embedded is true.
	URL string `koanf:"url"`

	// Embedded starts an in-process JetStream server on Host:Port.
	Embedded  bool   `koanf:"embedded"`
	Host      string `koanf:"host"`
	Port      int    `koanf:"port"`
	StoreDir  string `koanf:"store_dir"`
	MaxMemory int64  `koanf:"max_memory"`
	MaxStore  int64  `koanf:"max_store"`

	// Stream is created or updated to capture Subjects.
	Stream    string        `koanf:"stream"`
	Subjects  []string      `koanf:"subjects"`
	Retention time.Duration `koanf:"retention"`

	// Topic is the subject the bridge consumes from.
	Topic            string        `koanf:"topic"`
	DurableName      string        `koanf:"durable_name"`
	QueueGroup       string        `koanf:"queue_group"`
	SubscribersCount int           `koanf:"subscribers"`
	AckWait          time.Duration `koanf:"ack_wait"`
	MaxDeliver       int           `koanf:"max_deliver"`
	MaxReconnects    int           `koanf:"max_reconnects"`
	ReconnectWait    time.Duration `koanf:"reconnect_wait"`
	CloseTimeout     time.Duration `koanf:"close_timeout"`
}

// DefaultConfig returns bridge defaults: embedded server, one ordered
// consumer on meshguard.events.>.
func DefaultConfig() Config {
	return Config{
		Enabled:          false,
		URL:              "nats://127.0.0.1:4222",
		Embedded:         true,
		Host:             "127.0.0.1",
		Port:             4222,
		StoreDir:         "data/nats",
		MaxMemory:        256 << 20,
		MaxStore:         2 << 30,
		Stream:           "MESHGUARD_EVENTS",
		Subjects:         []string{"meshguard.events.>"},
		Retention:        24 * time.Hour,
		Topic:            "meshguard.events.>",
		DurableName:      "meshguard-engine",
		QueueGroup:       "meshguard",
		SubscribersCount: 1,
		AckWait:          30 * time.Second,
		MaxDeliver:       5,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
		CloseTimeout:     10 * time.Second,
	}
}

// Validate checks the configuration when the bridge is enabled.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if !c.Embedded {
		u, err := url.Parse(c.URL)
		if err != nil || u.Host == "" {
			return fmt.Errorf("nats url %q is not a valid URL", c.URL)
		}
		if u.Scheme != "nats" && u.Scheme != "tls" {
			return fmt.Errorf("nats url scheme %q must be nats or tls", u.Scheme)
		}
	} else {
		// -1 asks the server for a random port.
		if c.Port != -1 && (c.Port <= 0 || c.Port > 65535) {
			return fmt.Errorf("nats port %d out of range", c.Port)
		}
		if c.StoreDir == "" {
			return errors.New("nats store_dir is required for the embedded server")
		}
	}
	if c.Stream == "" || len(c.Subjects) == 0 {
		return errors.New("nats stream and subjects are required")
	}
	if strings.ContainsAny(c.Stream, ".*> ") {
		return fmt.Errorf("nats stream name %q may not contain '.', '*', '>' or spaces", c.Stream)
	}
	if c.Topic == "" {
		return errors.New("nats topic is required")
	}
	if c.SubscribersCount < 1 {
		return fmt.Errorf("nats subscribers must be at least 1, got %d", c.SubscribersCount)
	}
	return nil
}
