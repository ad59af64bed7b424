// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package spool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/meshguard/internal/logging"
	"github.com/tomtom215/meshguard/internal/metrics"
	"github.com/tomtom215/meshguard/internal/models"
)

const keyPrefix = "alert:"

// ErrClosed is returned after Close.
var ErrClosed = errors.New("spool is closed")

// Sink is the durable store the spool sits in front of.
type Sink interface {
	Record(ctx context.Context, rec *models.AlertRecord) (int64, error)
}

// Config controls the spool. Path ":memory:" keeps everything in RAM.
type Config struct {
	Enabled        bool          `koanf:"enabled"`
	Path           string        `koanf:"path"`
	SyncWrites     bool          `koanf:"sync_writes"`
	ReplayInterval time.Duration `koanf:"replay_interval"`
	MaxAge         time.Duration `koanf:"max_age"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
}

// DefaultConfig returns spool defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		Path:           "data/spool",
		SyncWrites:     true,
		ReplayInterval: 30 * time.Second,
		MaxAge:         7 * 24 * time.Hour,
		WriteTimeout:   5 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Path == "" {
		return errors.New("spool path is required when enabled")
	}
	if c.ReplayInterval < time.Second {
		return fmt.Errorf("spool replay_interval must be at least 1s, got %s", c.ReplayInterval)
	}
	if c.MaxAge <= 0 {
		return errors.New("spool max_age must be positive")
	}
	return nil
}

type entry struct {
	Record    *models.AlertRecord `json:"record"`
	SpooledAt time.Time           `json:"spooled_at"`
	LastError string              `json:"last_error,omitempty"`
}

// Spool writes alert records through to a Sink and parks them in badger
// when the sink fails. Parked records are replayed in spool order.
type Spool struct {
	db   *badger.DB
	sink Sink
	cfg  Config
	now  func() time.Time

	mu       sync.RWMutex
	closed   bool
	replayMu sync.Mutex
}

// Open opens (or creates) the badger store at cfg.Path.
func Open(cfg Config, sink Sink) (*Spool, error) {
	if sink == nil {
		return nil, errors.New("spool requires a sink")
	}
	def := DefaultConfig()
	if cfg.ReplayInterval <= 0 {
		cfg.ReplayInterval = def.ReplayInterval
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = def.MaxAge
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	var opts badger.Options
	if cfg.Path == ":memory:" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(cfg.SyncWrites)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open spool: %w", err)
	}
	s := &Spool{db: db, sink: sink, cfg: cfg, now: time.Now}

	n, err := s.Pending()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	metrics.SpoolDepth.Set(float64(n))
	logging.Info().Str("path", cfg.Path).Int("pending", n).Msg("Spool opened")
	return s, nil
}

// Record tries the sink first. When it fails the record is parked and
// (0, nil) is returned; the ID is assigned on replay.
func (s *Spool) Record(ctx context.Context, rec *models.AlertRecord) (int64, error) {
	id, err := s.sink.Record(ctx, rec)
	if err == nil {
		return id, nil
	}
	if perr := s.park(rec, err); perr != nil {
		return 0, fmt.Errorf("history write failed (%v) and spool write failed: %w", err, perr)
	}
	logging.Warn().Err(err).Str("flow_id", rec.FlowID).Msg("History write failed, alert spooled")
	return 0, nil
}

func (s *Spool) park(rec *models.AlertRecord, cause error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	now := s.now().UTC()
	data, err := json.Marshal(entry{Record: rec, SpooledAt: now, LastError: cause.Error()})
	if err != nil {
		return fmt.Errorf("marshal spool entry: %w", err)
	}
	// Zero-padded nanos keep badger's key order equal to spool order.
	key := []byte(fmt.Sprintf("%s%020d:%s", keyPrefix, now.UnixNano(), uuid.NewString()))
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	}); err != nil {
		return err
	}
	metrics.SpoolDepth.Inc()
	return nil
}

type parked struct {
	key   []byte
	entry entry
}

func (s *Spool) load(ctx context.Context) ([]parked, error) {
	var out []parked
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var p parked
			p.key = item.KeyCopy(nil)
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &p.entry)
			}); err != nil || p.entry.Record == nil {
				logging.Warn().Err(err).Str("key", string(p.key)).Msg("Dropping unreadable spool entry")
				out = append(out, parked{key: p.key})
				continue
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate spool: %w", err)
	}
	return out, nil
}

// Replay pushes parked records into the sink, oldest first. It stops at
// the first sink failure and returns how many were written.
func (s *Spool) Replay(ctx context.Context) (int, error) {
	s.replayMu.Lock()
	defer s.replayMu.Unlock()

	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return 0, ErrClosed
	}

	items, err := s.load(ctx)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, p := range items {
		if p.entry.Record == nil {
			s.remove(p.key, "corrupt")
			continue
		}
		if s.now().Sub(p.entry.SpooledAt) > s.cfg.MaxAge {
			logging.Warn().Str("flow_id", p.entry.Record.FlowID).Time("spooled_at", p.entry.SpooledAt).
				Msg("Spooled alert expired before it could be written")
			s.remove(p.key, "expired")
			continue
		}

		wctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
		_, err := s.sink.Record(wctx, p.entry.Record)
		cancel()
		if err != nil {
			metrics.SpoolReplays.WithLabelValues("error").Inc()
			return written, fmt.Errorf("replay stalled with %d pending: %w", len(items)-written, err)
		}
		s.remove(p.key, "ok")
		written++
	}
	if written > 0 {
		logging.Info().Int("replayed", written).Msg("Spooled alerts written to history")
	}
	return written, nil
}

func (s *Spool) remove(key []byte, result string) {
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	}); err != nil {
		logging.Error().Err(err).Str("key", string(key)).Msg("Failed to delete spool entry")
		return
	}
	metrics.SpoolDepth.Dec()
	metrics.SpoolReplays.WithLabelValues(result).Inc()
}

// Pending returns the number of parked records.
func (s *Spool) Pending() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count spool: %w", err)
	}
	return n, nil
}

// Serve replays on start and then every ReplayInterval until ctx ends.
// It implements suture.Service.
func (s *Spool) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.ReplayInterval)
	defer ticker.Stop()

	s.replayOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.replayOnce(ctx)
		}
	}
}

func (s *Spool) replayOnce(ctx context.Context) {
	if _, err := s.Replay(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Debug().Err(err).Msg("Spool replay incomplete")
	}
}

// String names the service in supervisor logs.
func (s *Spool) String() string { return "history-spool" }

// Close runs value-log GC once and closes badger.
func (s *Spool) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.replayMu.Lock()
	defer s.replayMu.Unlock()
	if s.cfg.Path != ":memory:" {
		if err := s.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
			logging.Debug().Err(err).Msg("Spool value log GC")
		}
	}
	return s.db.Close()
}
