// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package main

import (
	"sync"

	"github.com/tomtom215/meshguard/internal/config"
	"github.com/tomtom215/meshguard/internal/geo"
	"github.com/tomtom215/meshguard/internal/logging"
)

// zoneReloader swaps the engine's zones when the config file changes.
// Other sections need a restart.
type zoneReloader struct {
	path  string
	zones *geo.ZoneSet
	mu    sync.Mutex
}

func newZoneReloader(path string, zones *geo.ZoneSet) *zoneReloader {
	return &zoneReloader{path: path, zones: zones}
}

// reload keeps the current zones when the file no longer loads or any
// zone is invalid, so a half-edited file never empties the set.
func (r *zoneReloader) reload() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, err := config.Load(r.path)
	if err != nil {
		logging.Warn().Err(err).Str("path", r.path).Msg("Config reload failed, keeping current zones")
		return
	}
	next, err := geo.NewZoneSetFromSpecs(cfg.Zones)
	if err != nil {
		logging.Warn().Err(err).Msg("Invalid zones in reloaded config, keeping current zones")
		return
	}
	r.zones.Replace(next.Zones())
	logging.Info().Int("zones", len(cfg.Zones)).Msg("Zones reloaded")
}
