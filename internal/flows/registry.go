// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package flows

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/meshguard/internal/logging"
	"github.com/tomtom215/meshguard/internal/metrics"
	"github.com/tomtom215/meshguard/internal/models"
)

// FlowSource supplies persisted flow definitions.
type FlowSource interface {
	ListFlows(ctx context.Context) ([]*models.FlowDefinition, error)
}

// Snapshot is an immutable view of the flow set. Evaluations hold a
// snapshot for their whole duration, so a concurrent reload is never
// observed half-applied.
type Snapshot struct {
	// Flows holds every valid flow ordered by ID.
	Flows []*CompiledFlow
	// Enabled holds the enabled subset of Flows, same order.
	Enabled []*CompiledFlow
	// Errors holds one entry per rejected flow, ordered by flow ID.
	Errors   []*ConfigurationError
	LoadedAt time.Time

	byID map[string]*CompiledFlow
}

// Get returns a compiled flow by ID.
func (s *Snapshot) Get(id string) (*CompiledFlow, bool) {
	f, ok := s.byID[id]
	return f, ok
}

// NewSnapshot compiles defs into a snapshot. Invalid flows are skipped and
// reported in Errors.
func NewSnapshot(defs []*models.FlowDefinition) *Snapshot {
	s := &Snapshot{byID: make(map[string]*CompiledFlow, len(defs)), LoadedAt: time.Now().UTC()}
	for _, def := range defs {
		cf, err := Compile(def)
		if err != nil {
			var cerr *ConfigurationError
			if !errors.As(err, &cerr) {
				cerr = &ConfigurationError{FlowID: def.ID, FlowName: def.Name, Problems: []Problem{{Message: err.Error()}}}
			}
			s.Errors = append(s.Errors, cerr)
			continue
		}
		if _, dup := s.byID[cf.ID()]; dup {
			s.Errors = append(s.Errors, &ConfigurationError{
				FlowID:   cf.ID(),
				FlowName: cf.Name(),
				Problems: []Problem{{Message: "duplicate flow id"}},
			})
			continue
		}
		s.byID[cf.ID()] = cf
		s.Flows = append(s.Flows, cf)
	}
	sort.Slice(s.Flows, func(i, j int) bool { return s.Flows[i].ID() < s.Flows[j].ID() })
	sort.SliceStable(s.Errors, func(i, j int) bool { return s.Errors[i].FlowID < s.Errors[j].FlowID })
	for _, f := range s.Flows {
		if f.Enabled() {
			s.Enabled = append(s.Enabled, f)
		}
	}
	return s
}

// Registry holds the active flow snapshot behind an atomic pointer.
type Registry struct {
	source  FlowSource
	loadMu  sync.Mutex
	current atomic.Pointer[Snapshot]
}

// NewRegistry creates a registry with an empty snapshot.
func NewRegistry(source FlowSource) *Registry {
	r := &Registry{source: source}
	r.current.Store(NewSnapshot(nil))
	return r
}

// Load reads every flow from the source, compiles it and swaps in the new
// snapshot. On a source error the previous snapshot stays active.
func (r *Registry) Load(ctx context.Context) error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	defs, err := r.source.ListFlows(ctx)
	if err != nil {
		return fmt.Errorf("load flows: %w", err)
	}
	snap := NewSnapshot(defs)
	r.current.Store(snap)

	for _, cerr := range snap.Errors {
		logging.ForFlow(cerr.FlowID).Warn().Err(cerr).Msg("Skipping invalid flow")
	}
	metrics.SetRegistryFlows(len(snap.Enabled), len(snap.Flows)-len(snap.Enabled), len(snap.Errors))
	logging.Info().
		Int("flows", len(snap.Flows)).
		Int("enabled", len(snap.Enabled)).
		Int("rejected", len(snap.Errors)).
		Msg("Flow registry loaded")
	return nil
}

// Reload is Load under the name used by the admin surface.
func (r *Registry) Reload(ctx context.Context) error {
	return r.Load(ctx)
}

// Snapshot returns the current snapshot.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// GetAll returns the current snapshot's valid flows.
func (r *Registry) GetAll() []*CompiledFlow {
	return r.current.Load().Flows
}

// Errors returns the configuration errors of the last load.
func (r *Registry) Errors() []*ConfigurationError {
	return r.current.Load().Errors
}
