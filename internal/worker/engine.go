// Package worker is the reference ingestion worker: the authoritative status
// engine for in-flight jobs and the HTTP RPC surface the orchestrator calls.
//
// Each job is an entry in a concurrent map guarded by its own mutex. Starting
// a job arms a one-shot completion timer that moves it from Processing to
// Completed or Failed. Every transition that supersedes a timer bumps the
// entry's epoch; a timer callback whose captured epoch is no longer current
// does nothing.
package worker

import (
	"context"
	"encoding/json"
	"ingestion/internal/apperrors"
	"ingestion/internal/job"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
)

// embedding is the placeholder vector returned for every job.
var embedding = [...]float64{0.1, 0.2, 0.3, 0.4, 0.5}

// Timer is a stoppable scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs fn once after d.
type Scheduler func(d time.Duration, fn func()) Timer

// MetricsRecorder receives completion measurements. It is optional.
type MetricsRecorder interface {
	RecordCompletion(ctx context.Context, outcome string)
	RecordStaleTimer(ctx context.Context)
}

type entry struct {
	mu        sync.Mutex
	status    job.Status
	payload   json.RawMessage
	epoch     uint64
	timer     Timer
	deadline  time.Time
	remaining time.Duration // completion time left while Paused
}

// Engine holds the worker-side job states.
type Engine struct {
	jobs     *haxmap.Map[string, *entry]
	schedule Scheduler
	now      func() time.Time
	delay    func() time.Duration
	outcome  func() job.Status
	metrics  MetricsRecorder
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithScheduler replaces time.AfterFunc.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) { e.schedule = s }
}

// WithClock replaces time.Now when computing remaining delays.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithDelay fixes how long each armed completion waits.
func WithDelay(delay func() time.Duration) Option {
	return func(e *Engine) { e.delay = delay }
}

// WithOutcome fixes the terminal status a completion produces.
func WithOutcome(outcome func() job.Status) Option {
	return func(e *Engine) { e.outcome = outcome }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an engine drawing delays and outcomes from cfg.
func NewEngine(cfg Config, opts ...Option) *Engine {
	cfg = cfg.withDefaults()

	e := &Engine{
		jobs: haxmap.New[string, *entry](),
		schedule: func(d time.Duration, fn func()) Timer {
			return time.AfterFunc(d, fn)
		},
		now: time.Now,
		delay: func() time.Duration {
			spread := cfg.MaxDelay - cfg.MinDelay
			if spread <= 0 {
				return cfg.MinDelay
			}
			return cfg.MinDelay + rand.N(spread+1)
		},
		outcome: func() job.Status {
			if rand.Float64() < *cfg.FailureRate {
				return job.StatusFailed
			}
			return job.StatusCompleted
		},
		logger: slog.With("component", "worker"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start sets id to Processing and arms a new completion, replacing any state
// the id had before.
func (e *Engine) Start(id string, payload json.RawMessage) job.Status {
	ent, _ := e.jobs.GetOrSet(id, &entry{})

	ent.mu.Lock()
	defer ent.mu.Unlock()

	ent.payload = payload
	ent.status = job.StatusProcessing
	e.arm(id, ent, e.delay())

	e.logger.Info("Job started", "jobId", id, "deadline", ent.deadline)
	return ent.status
}

// Status returns id's status, or StatusNotFound.
func (e *Engine) Status(id string) job.Status {
	ent, ok := e.jobs.Get(id)
	if !ok {
		return job.StatusNotFound
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	return ent.status
}

// Control applies a control signal. A signal whose target equals the current
// status succeeds without effect. Signals not allowed from the current
// status return InvalidTransition together with the unchanged status.
func (e *Engine) Control(id string, c job.Control) (job.Status, error) {
	ent, ok := e.jobs.Get(id)
	if !ok {
		return job.StatusNotFound, apperrors.NotFound("job", id)
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()

	from := ent.status
	if from == c.Target() {
		return from, nil
	}

	switch {
	case c == job.ControlCancel && (from == job.StatusProcessing || from == job.StatusPaused):
		e.disarm(ent)
		ent.remaining = 0
		ent.status = job.StatusCancelled
	case c == job.ControlPause && from == job.StatusProcessing:
		ent.remaining = max(ent.deadline.Sub(e.now()), 0)
		e.disarm(ent)
		ent.status = job.StatusPaused
	case c == job.ControlResume && from == job.StatusPaused:
		ent.status = job.StatusProcessing
		e.arm(id, ent, ent.remaining)
	case c == job.ControlRetry && from == job.StatusFailed:
		ent.status = job.StatusProcessing
		e.arm(id, ent, e.delay())
	default:
		return from, apperrors.InvalidTransition(id, string(c), string(from))
	}

	e.logger.Info("Job transitioned", "jobId", id, "op", string(c), "from", from, "to", ent.status)
	return ent.status, nil
}

// Embedding returns the placeholder embedding. It does not depend on job state.
func (e *Engine) Embedding(string) []float64 {
	v := embedding
	return v[:]
}

// Len returns the number of known jobs.
func (e *Engine) Len() int {
	return int(e.jobs.Len())
}

// Close stops every armed timer.
func (e *Engine) Close() {
	e.jobs.ForEach(func(_ string, ent *entry) bool {
		ent.mu.Lock()
		e.disarm(ent)
		ent.mu.Unlock()
		return true
	})
}

// arm replaces ent's timer with one firing after d. The caller holds ent.mu.
func (e *Engine) arm(id string, ent *entry, d time.Duration) {
	e.disarm(ent)
	epoch := ent.epoch
	ent.deadline = e.now().Add(d)
	ent.remaining = 0
	ent.timer = e.schedule(d, func() { e.complete(id, ent, epoch) })
}

// disarm stops ent's timer and invalidates any callback already running.
// The caller holds ent.mu.
func (e *Engine) disarm(ent *entry) {
	if ent.timer != nil {
		ent.timer.Stop()
		ent.timer = nil
	}
	ent.epoch++
}

func (e *Engine) complete(id string, ent *entry, epoch uint64) {
	ent.mu.Lock()
	defer ent.mu.Unlock()

	ctx := context.Background()
	if ent.epoch != epoch || ent.status != job.StatusProcessing {
		if e.metrics != nil {
			e.metrics.RecordStaleTimer(ctx)
		}
		e.logger.Debug("Stale completion ignored", "jobId", id, "epoch", epoch, "current", ent.epoch)
		return
	}

	ent.timer = nil
	ent.status = e.outcome()
	if e.metrics != nil {
		e.metrics.RecordCompletion(ctx, string(ent.status))
	}
	e.logger.Info("Job finished", "jobId", id, "status", ent.status)
}
