// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package dispatch

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

// Config sizes the worker pool.
type Config struct {
	Workers         int           `koanf:"workers" validate:"gte=1,lte=256"`
	QueueSize       int           `koanf:"queue_size" validate:"gte=1"`
	ActionTimeout   time.Duration `koanf:"action_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:         4,
		QueueSize:       256,
		ActionTimeout:   10 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Dispatcher executes flow firings on a bounded worker pool. Submit never
// blocks; each action of a job runs in its own goroutine under a timeout.
type Dispatcher struct {
	cfg       Config
	completer Completer

	mu        sync.RWMutex
	actions   map[string]Action
	observers []Observer

	queue   chan *Job
	running atomic.Bool

	// gate orders the stopped check and pending.Add against Stop.
	gate    sync.Mutex
	stopped bool
	pending sync.WaitGroup

	processed atomic.Uint64
	rejected  atomic.Uint64
}

// New creates a dispatcher. completer may be nil.
func New(cfg Config, completer Completer) *Dispatcher {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = def.ActionTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	return &Dispatcher{
		cfg:       cfg,
		completer: completer,
		actions:   make(map[string]Action),
		queue:     make(chan *Job, cfg.QueueSize),
	}
}

// Register adds or replaces the adapter for an action type.
func (d *Dispatcher) Register(a Action) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions[a.Type()] = a
	logging.Info().Str("action", a.Type()).Msg("Registered action sink")
}

// AddObserver registers a completion observer.
func (d *Dispatcher) AddObserver(o Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, o)
}

// Types returns the registered action types, sorted.
func (d *Dispatcher) Types() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	types := make([]string, 0, len(d.actions))
	for t := range d.actions {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Stats reports queue usage.
type Stats struct {
	Workers   int    `json:"workers"`
	QueueSize int    `json:"queue_size"`
	Queued    int    `json:"queued"`
	Processed uint64 `json:"processed"`
	Rejected  uint64 `json:"rejected"`
}

// Stats returns a point-in-time view of the pool.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Workers:   d.cfg.Workers,
		QueueSize: d.cfg.QueueSize,
		Queued:    len(d.queue),
		Processed: d.processed.Load(),
		Rejected:  d.rejected.Load(),
	}
}

// Submit enqueues a job without blocking. A job rejected for a full queue
// is still completed asynchronously with every action marked failed, so
// its alert record is written before Stop returns. After Stop the record
// is written before Submit returns.
func (d *Dispatcher) Submit(job *Job) error {
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now()
	}

	d.gate.Lock()
	if d.stopped {
		d.gate.Unlock()
		d.reject(job, ErrStopped)
		return ErrStopped
	}
	d.pending.Add(1)
	d.gate.Unlock()

	select {
	case d.queue <- job:
		metrics.DispatchQueueDepth.Set(float64(len(d.queue)))
		return nil
	default:
		metrics.RecordSuppressed("queue_full")
		go func() {
			defer d.pending.Done()
			d.reject(job, ErrQueueFull)
		}()
		return ErrQueueFull
	}
}

// reject completes job with every action failed by cause.
func (d *Dispatcher) reject(job *Job, cause error) {
	d.rejected.Add(1)
	logging.Warn().
		Err(cause).
		Str("job_id", job.ID).
		Str("flow_id", job.Record.FlowID).
		Msg("Dispatch rejected, recording failed firing")

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.ShutdownTimeout)
	defer cancel()
	results := make([]models.ActionResult, len(job.Requests))
	for i, req := range job.Requests {
		results[i] = models.ActionResult{Action: req.Type, NodeID: req.NodeID, OK: false, Error: cause.Error()}
		metrics.RecordAction(req.Type, "rejected", 0)
	}
	job.Record.ActionsExecuted = results
	d.finish(ctx, job)
}

// RunWithContext runs the worker pool until ctx is canceled, then drains
// any queued jobs under the shutdown timeout. Designed for suture.
func (d *Dispatcher) RunWithContext(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("dispatcher already running")
	}
	defer d.running.Store(false)

	logging.Info().Int("workers", d.cfg.Workers).Int("queue_size", d.cfg.QueueSize).Msg("Dispatcher started")

	// In-flight actions finish under their own timeouts.
	work := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-d.queue:
					d.process(work, job)
				}
			}
		}()
	}
	wg.Wait()

	d.drain()
	return ctx.Err()
}

// drain completes queued jobs after the workers stopped.
func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.ShutdownTimeout)
	defer cancel()
	n := 0
	for {
		select {
		case job := <-d.queue:
			d.process(ctx, job)
			n++
		default:
			if n > 0 {
				logging.Info().Int("jobs", n).Msg("Dispatcher drained queue")
			}
			return
		}
	}
}

// Stop rejects further submissions and waits for accepted and
// queue-rejected jobs to complete, up to ctx.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.gate.Lock()
	d.stopped = true
	d.gate.Unlock()
	done := make(chan struct{})
	go func() {
		d.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher stop: %w", ctx.Err())
	}
}

func (d *Dispatcher) process(ctx context.Context, job *Job) {
	defer d.pending.Done()
	metrics.DispatchQueueDepth.Set(float64(len(d.queue)))

	results := make([]models.ActionResult, len(job.Requests))
	var wg sync.WaitGroup
	for i, req := range job.Requests {
		wg.Add(1)
		go func(i int, req *ActionRequest) {
			defer wg.Done()
			results[i] = d.execute(ctx, req)
		}(i, req)
	}
	wg.Wait()

	job.Record.ActionsExecuted = results
	d.processed.Add(1)
	d.finish(ctx, job)
}

type outcome struct {
	result string
	err    error
}

// execute runs one action and converts its outcome into a history entry.
func (d *Dispatcher) execute(ctx context.Context, req *ActionRequest) models.ActionResult {
	res := models.ActionResult{Action: req.Type, NodeID: req.NodeID}

	d.mu.RLock()
	action, ok := d.actions[req.Type]
	d.mu.RUnlock()
	if !ok {
		err := &DispatchError{Action: req.Type, NodeID: req.NodeID, Err: ErrNoSink}
		logging.Warn().Err(err).Str("flow_id", req.FlowID).Msg("Action skipped")
		metrics.RecordAction(req.Type, "error", 0)
		res.Error = err.Err.Error()
		return res
	}

	timeout := d.timeoutFor(req, action)
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan outcome, 1)
	go func() {
		r, err := invoke(actx, action, req)
		done <- outcome{result: r, err: err}
	}()

	var o outcome
	label := "ok"
	select {
	case o = <-done:
		if o.err != nil {
			label = "error"
		}
	case <-actx.Done():
		o.err = fmt.Errorf("%w after %s", ErrActionTimeout, timeout)
		label = "timeout"
	}
	metrics.RecordAction(req.Type, label, time.Since(start))

	if o.err != nil {
		err := &DispatchError{Action: req.Type, NodeID: req.NodeID, Err: o.err}
		logging.Warn().Err(err).Str("flow_id", req.FlowID).Msg("Action failed")
		res.Error = o.err.Error()
		return res
	}
	res.OK = true
	res.Result = o.result
	return res
}

// invoke calls the adapter, converting a panic into an error.
func invoke(ctx context.Context, a Action, req *ActionRequest) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()
	return a.Execute(ctx, req)
}

func (d *Dispatcher) timeoutFor(req *ActionRequest, a Action) time.Duration {
	if secs := req.Float("timeout_seconds", 0); secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if ta, ok := a.(TimeoutAction); ok && ta.DefaultTimeout() > 0 {
		return ta.DefaultTimeout()
	}
	return d.cfg.ActionTimeout
}

// finish hands the completed job to the completer and observers.
func (d *Dispatcher) finish(ctx context.Context, job *Job) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Interface("panic", r).Str("job_id", job.ID).Msg("Job completion panicked")
		}
	}()

	if d.completer != nil {
		d.completer.Complete(ctx, job)
	}

	d.mu.RLock()
	observers := append([]Observer(nil), d.observers...)
	d.mu.RUnlock()
	for _, o := range observers {
		o.AlertDispatched(ctx, job.Record)
	}
}
