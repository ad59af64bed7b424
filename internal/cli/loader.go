// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/tomtom215/meshguard/internal/config"
	"github.com/tomtom215/meshguard/internal/geo"
	"github.com/tomtom215/meshguard/internal/models"
)

// loadFlows reads one flow object or an array of flows from path. "-"
// reads stdin.
func loadFlows(path string, in io.Reader) ([]*models.FlowDefinition, error) {
	data, err := readInput(path, in)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%s: empty input", path)
	}
	if trimmed[0] == '[' {
		var defs []*models.FlowDefinition
		if err := json.Unmarshal(trimmed, &defs); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return defs, nil
	}
	var def models.FlowDefinition
	if err := json.Unmarshal(trimmed, &def); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return []*models.FlowDefinition{&def}, nil
}

// loadEvent reads a single event envelope.
func loadEvent(path string, in io.Reader) (*models.Event, error) {
	data, err := readInput(path, in)
	if err != nil {
		return nil, err
	}
	var ev models.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &ev, nil
}

func readInput(path string, in io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(in)
	}
	return os.ReadFile(path)
}

// environment is what a dry run needs from the server config.
type environment struct {
	zones   *geo.ZoneSet
	station *geo.Point
}

// loadEnvironment reads zones and the station position from the meshguard
// config when one is given. Without it the dry run has no zones.
func loadEnvironment(path string) (*environment, error) {
	if path == "" {
		return &environment{zones: geo.NewZoneSet(nil)}, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	zones, err := geo.NewZoneSetFromSpecs(cfg.Zones)
	if err != nil {
		return nil, err
	}
	return &environment{zones: zones, station: cfg.Engine.Station}, nil
}
