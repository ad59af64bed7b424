// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func event(action, actor string, at time.Time, outcome Outcome) *Event {
	return &Event{
		ID:        action + "-" + at.Format("150405"),
		Timestamp: at,
		Action:    action,
		Actor:     actor,
		Target:    "flow_1",
		Outcome:   outcome,
	}
}

func TestMemoryStore_QueryFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(10)
	_ = s.Save(ctx, event("flow.create", "alice", t0, OutcomeSuccess))
	_ = s.Save(ctx, event("flow.delete", "bob", t0.Add(time.Minute), OutcomeFailure))
	_ = s.Save(ctx, event("flow.create", "bob", t0.Add(2*time.Minute), OutcomeSuccess))

	since := t0.Add(30 * time.Second)
	tests := []struct {
		name   string
		filter QueryFilter
		want   []string
	}{
		{"all newest first", QueryFilter{}, []string{"flow.create-090200", "flow.delete-090100", "flow.create-090000"}},
		{"by action", QueryFilter{Action: "flow.create"}, []string{"flow.create-090200", "flow.create-090000"}},
		{"by actor", QueryFilter{Actor: "bob"}, []string{"flow.create-090200", "flow.delete-090100"}},
		{"by outcome", QueryFilter{Outcome: OutcomeFailure}, []string{"flow.delete-090100"}},
		{"since", QueryFilter{Since: &since}, []string{"flow.create-090200", "flow.delete-090100"}},
		{"limit and offset", QueryFilter{Limit: 1, Offset: 1}, []string{"flow.delete-090100"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := s.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Query() returned %d events, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("event %d = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestMemoryStore_EvictsOldest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(2)
	for i := 0; i < 3; i++ {
		_ = s.Save(ctx, event("alert.ack", "alice", t0.Add(time.Duration(i)*time.Second), OutcomeSuccess))
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	got, _ := s.Query(ctx, QueryFilter{})
	if got[1].Timestamp != t0.Add(time.Second) {
		t.Errorf("oldest kept = %v, want %v", got[1].Timestamp, t0.Add(time.Second))
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(10)
	_ = s.Save(ctx, event("flow.create", "alice", t0, OutcomeSuccess))
	_ = s.Save(ctx, event("flow.update", "alice", t0.Add(time.Hour), OutcomeSuccess))

	n, err := s.Delete(ctx, t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if n != 1 || s.Len() != 1 {
		t.Errorf("Delete() removed %d, %d left; want 1 and 1", n, s.Len())
	}
}

func TestQueryFilter_Normalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		in         QueryFilter
		wantLimit  int
		wantOffset int
	}{
		{"defaults", QueryFilter{}, DefaultQueryLimit, 0},
		{"caps limit", QueryFilter{Limit: MaxQueryLimit + 1}, MaxQueryLimit, 0},
		{"negative offset", QueryFilter{Limit: 5, Offset: -3}, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := tt.in
			f.normalize()
			if f.Limit != tt.wantLimit || f.Offset != tt.wantOffset {
				t.Errorf("normalize() = (%d, %d), want (%d, %d)", f.Limit, f.Offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

// failingStore implements Store for testing and rejects every save.
type failingStore struct {
	mu    sync.Mutex
	saves int
}

func (s *failingStore) Save(context.Context, *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	return errors.New("disk full")
}

func (s *failingStore) Query(context.Context, QueryFilter) ([]Event, error) { return nil, nil }

func (s *failingStore) Delete(context.Context, time.Time) (int64, error) { return 0, nil }

func TestLogger_FlushesOnClose(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(100)
	l := NewLogger(store, Config{BufferSize: 50})
	for i := 0; i < 20; i++ {
		l.Log(&Event{Action: "alert.ack", Actor: "alice", Outcome: OutcomeSuccess})
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if store.Len() != 20 {
		t.Fatalf("stored %d events, want 20", store.Len())
	}

	got, _ := store.Query(context.Background(), QueryFilter{Limit: 1})
	if got[0].ID == "" || got[0].Timestamp.IsZero() {
		t.Errorf("Log() did not fill ID and timestamp: %+v", got[0])
	}

	// Logging after close is a no-op.
	l.Log(&Event{Action: "flow.create"})
	if err := l.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestLogger_StoreErrorsDoNotBlock(t *testing.T) {
	t.Parallel()

	store := &failingStore{}
	l := NewLogger(store, Config{BufferSize: 4})
	l.Log(&Event{Action: "flow.delete"})
	l.Log(&Event{Action: "flow.delete"})
	_ = l.Close()

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.saves != 2 {
		t.Errorf("saves = %d, want 2", store.saves)
	}
}

func TestLogger_Prune(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(10)
	_ = store.Save(ctx, event("flow.create", "alice", t0.AddDate(0, 0, -40), OutcomeSuccess))
	_ = store.Save(ctx, event("flow.update", "alice", t0.AddDate(0, 0, -5), OutcomeSuccess))

	l := NewLogger(store, Config{RetentionDays: 30})
	defer l.Close()
	l.now = func() time.Time { return t0 }

	n, err := l.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 || store.Len() != 1 {
		t.Errorf("Prune() removed %d, %d left; want 1 and 1", n, store.Len())
	}

	keep := NewLogger(store, Config{})
	defer keep.Close()
	if n, _ := keep.Prune(ctx); n != 0 {
		t.Errorf("Prune() with zero retention removed %d", n)
	}
}

func TestLogger_RunWithContextStops(t *testing.T) {
	t.Parallel()

	l := NewLogger(NewMemoryStore(1), Config{CleanupInterval: time.Millisecond})
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.RunWithContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("RunWithContext() error = %v, want deadline exceeded", err)
	}
}
