package worker

import (
	"context"
	"errors"
	"ingestion/internal/apperrors"
	"ingestion/internal/job"
	"ingestion/internal/testutil"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// manualTimer is fired explicitly by the test.
type manualTimer struct {
	d       time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (s *manualScheduler) schedule(d time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{d: d, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) timer(i int) *manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timers[i]
}

// fire runs timer i as if it elapsed, even when stopped.
func (s *manualScheduler) fire(i int) {
	t := s.timer(i)
	s.mu.Lock()
	t.fired = true
	s.mu.Unlock()
	t.fn()
}

func (s *manualScheduler) live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingMetrics struct {
	completions atomic.Int32
	stale       atomic.Int32
}

func (m *countingMetrics) RecordCompletion(context.Context, string) { m.completions.Add(1) }
func (m *countingMetrics) RecordStaleTimer(context.Context)         { m.stale.Add(1) }

type harness struct {
	engine  *Engine
	sched   *manualScheduler
	clock   *fakeClock
	metrics *countingMetrics
}

func newHarness(outcome job.Status) *harness {
	h := &harness{
		sched:   &manualScheduler{},
		clock:   &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		metrics: &countingMetrics{},
	}
	h.engine = NewEngine(Config{},
		WithScheduler(h.sched.schedule),
		WithClock(h.clock.Now),
		WithDelay(func() time.Duration { return 3 * time.Minute }),
		WithOutcome(func() job.Status { return outcome }),
		WithMetrics(h.metrics),
	)
	return h
}

func TestEngine_StartAndComplete(t *testing.T) {
	t.Parallel()
	h := newHarness(job.StatusCompleted)

	if got := h.engine.Start("job-1", []byte(`{"name":"a"}`)); got != job.StatusProcessing {
		t.Fatalf("Start = %q, want Processing", got)
	}
	if got := h.sched.timer(0).d; got != 3*time.Minute {
		t.Errorf("armed delay = %v, want 3m", got)
	}

	h.sched.fire(0)

	if got := h.engine.Status("job-1"); got != job.StatusCompleted {
		t.Errorf("Status = %q, want Completed", got)
	}
	if h.metrics.completions.Load() != 1 {
		t.Errorf("expected one completion recorded, got %d", h.metrics.completions.Load())
	}
}

func TestEngine_StatusUnknown(t *testing.T) {
	t.Parallel()
	h := newHarness(job.StatusCompleted)

	if got := h.engine.Status("missing"); got != job.StatusNotFound {
		t.Errorf("Status = %q, want NotFound", got)
	}
	for _, c := range []job.Control{job.ControlCancel, job.ControlPause, job.ControlResume, job.ControlRetry} {
		if _, err := h.engine.Control("missing", c); !errors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("%s on unknown id: expected NotFound, got %v", c, err)
		}
	}
}

func TestEngine_CancelBeatsTimer(t *testing.T) {
	t.Parallel()
	h := newHarness(job.StatusCompleted)
	h.engine.Start("job-1", nil)

	if _, err := h.engine.Control("job-1", job.ControlCancel); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if !h.sched.timer(0).stopped {
		t.Error("cancel must stop the armed timer")
	}

	// A callback that already escaped Stop must not resurrect the job.
	h.sched.fire(0)

	if got := h.engine.Status("job-1"); got != job.StatusCancelled {
		t.Errorf("Status = %q, want Cancelled", got)
	}
	if h.metrics.stale.Load() != 1 || h.metrics.completions.Load() != 0 {
		t.Errorf("expected stale firing only, stale=%d completions=%d", h.metrics.stale.Load(), h.metrics.completions.Load())
	}
}

func TestEngine_PauseSuspendsTimer(t *testing.T) {
	t.Parallel()
	h := newHarness(job.StatusFailed)
	h.engine.Start("job-1", nil)

	h.clock.Advance(time.Minute)
	if got, err := h.engine.Control("job-1", job.ControlPause); err != nil || got != job.StatusPaused {
		t.Fatalf("Pause = %q, %v", got, err)
	}

	// The original timer is dead while paused.
	h.sched.fire(0)
	if got := h.engine.Status("job-1"); got != job.StatusPaused {
		t.Fatalf("stale timer changed paused job to %q", got)
	}

	h.clock.Advance(time.Hour)
	if got, err := h.engine.Control("job-1", job.ControlResume); err != nil || got != job.StatusProcessing {
		t.Fatalf("Resume = %q, %v", got, err)
	}

	resumed := h.sched.timer(1)
	if resumed.d != 2*time.Minute {
		t.Errorf("resumed delay = %v, want the 2m left at pause", resumed.d)
	}
	if h.sched.live() != 1 {
		t.Errorf("expected exactly one live timer, got %d", h.sched.live())
	}

	h.sched.fire(1)
	if got := h.engine.Status("job-1"); got != job.StatusFailed {
		t.Errorf("Status = %q, want Failed", got)
	}
}

func TestEngine_RetryArmsOneTimer(t *testing.T) {
	t.Parallel()
	h := newHarness(job.StatusFailed)
	h.engine.Start("job-1", nil)
	h.sched.fire(0)

	if got := h.engine.Status("job-1"); got != job.StatusFailed {
		t.Fatalf("Status = %q, want Failed", got)
	}

	if got, err := h.engine.Control("job-1", job.ControlRetry); err != nil || got != job.StatusProcessing {
		t.Fatalf("Retry = %q, %v", got, err)
	}
	if h.sched.live() != 1 {
		t.Errorf("expected exactly one live timer after retry, got %d", h.sched.live())
	}

	// Retry while Processing is a no-op and must not arm another timer.
	if _, err := h.engine.Control("job-1", job.ControlRetry); err != nil {
		t.Fatalf("Retry on Processing failed: %v", err)
	}
	if len(h.sched.timers) != 2 {
		t.Errorf("expected 2 timers scheduled in total, got %d", len(h.sched.timers))
	}
}

func TestEngine_StartSupersedesTimer(t *testing.T) {
	t.Parallel()
	h := newHarness(job.StatusCompleted)
	h.engine.Start("job-1", nil)
	h.engine.Start("job-1", nil)

	if !h.sched.timer(0).stopped {
		t.Error("restart must stop the previous timer")
	}
	h.sched.fire(0)
	if got := h.engine.Status("job-1"); got != job.StatusProcessing {
		t.Fatalf("superseded timer completed the job: %q", got)
	}

	h.sched.fire(1)
	if got := h.engine.Status("job-1"); got != job.StatusCompleted {
		t.Errorf("Status = %q, want Completed", got)
	}
}

func TestEngine_Transitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		from    job.Status
		control job.Control
		want    job.Status
		wantErr error
	}{
		{"pause processing", job.StatusProcessing, job.ControlPause, job.StatusPaused, nil},
		{"pause paused", job.StatusPaused, job.ControlPause, job.StatusPaused, nil},
		{"resume processing", job.StatusProcessing, job.ControlResume, job.StatusProcessing, nil},
		{"cancel paused", job.StatusPaused, job.ControlCancel, job.StatusCancelled, nil},
		{"cancel cancelled", job.StatusCancelled, job.ControlCancel, job.StatusCancelled, nil},
		{"resume cancelled", job.StatusCancelled, job.ControlResume, job.StatusCancelled, apperrors.ErrInvalidTransition},
		{"pause completed", job.StatusCompleted, job.ControlPause, job.StatusCompleted, apperrors.ErrInvalidTransition},
		{"cancel completed", job.StatusCompleted, job.ControlCancel, job.StatusCompleted, apperrors.ErrInvalidTransition},
		{"retry completed", job.StatusCompleted, job.ControlRetry, job.StatusCompleted, apperrors.ErrInvalidTransition},
		{"retry cancelled", job.StatusCancelled, job.ControlRetry, job.StatusCancelled, apperrors.ErrInvalidTransition},
		{"pause failed", job.StatusFailed, job.ControlPause, job.StatusFailed, apperrors.ErrInvalidTransition},
		{"resume failed", job.StatusFailed, job.ControlResume, job.StatusFailed, apperrors.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(tt.from)
			h.engine.Start("job-1", nil)
			switch tt.from {
			case job.StatusPaused:
				mustControl(t, h.engine, job.ControlPause)
			case job.StatusCancelled:
				mustControl(t, h.engine, job.ControlCancel)
			case job.StatusCompleted, job.StatusFailed:
				h.sched.fire(0)
			}

			got, err := h.engine.Control("job-1", tt.control)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Control error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Control returned %q, want %q", got, tt.want)
			}
			if status := h.engine.Status("job-1"); status != tt.want {
				t.Errorf("Status = %q, want %q", status, tt.want)
			}
		})
	}
}

func mustControl(t *testing.T, e *Engine, c job.Control) {
	t.Helper()
	if _, err := e.Control("job-1", c); err != nil {
		t.Fatalf("%s failed: %v", c, err)
	}
}

func TestEngine_Embedding(t *testing.T) {
	t.Parallel()
	h := newHarness(job.StatusCompleted)

	first := h.engine.Embedding("job-1")
	first[0] = 42
	second := h.engine.Embedding("job-1")

	want := []float64{0.1, 0.2, 0.3, 0.4, 0.5}
	for i := range want {
		if second[i] != want[i] {
			t.Fatalf("Embedding = %v, want %v", second, want)
		}
	}
	if h.engine.Len() != 0 {
		t.Error("embedding must not create job state")
	}
}

func TestEngine_RealTimers(t *testing.T) {
	t.Parallel()
	e := NewEngine(Config{},
		WithDelay(func() time.Duration { return 20 * time.Millisecond }),
		WithOutcome(func() job.Status { return job.StatusCompleted }),
	)
	defer e.Close()

	e.Start("fast", nil)
	e.Start("cancelled", nil)
	if _, err := e.Control("cancelled", job.ControlCancel); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	testutil.Eventually(t, func() bool { return e.Status("fast") == job.StatusCompleted }, "fast job completes")
	testutil.Never(t, func() bool { return e.Status("cancelled") != job.StatusCancelled }, 60*time.Millisecond, "cancelled job changes")
}

func TestEngine_ConcurrentControls(t *testing.T) {
	t.Parallel()
	e := NewEngine(Config{}, WithDelay(func() time.Duration { return time.Millisecond }))
	defer e.Close()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := "job-" + string(rune('a'+i%4))
			e.Start(id, nil)
			_, _ = e.Control(id, job.ControlPause)
			_, _ = e.Control(id, job.ControlResume)
			_, _ = e.Control(id, job.ControlCancel)
			_ = e.Status(id)
		}()
	}
	wg.Wait()

	if e.Len() != 4 {
		t.Errorf("expected 4 jobs, got %d", e.Len())
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	t.Parallel()
	cfg := Config{MinDelay: time.Minute, MaxDelay: time.Second, FailureRate: Rate(2)}.withDefaults()
	if cfg.MaxDelay != time.Minute {
		t.Errorf("MaxDelay = %v, want clamped to MinDelay", cfg.MaxDelay)
	}
	if *cfg.FailureRate != defaultFailureRate {
		t.Errorf("FailureRate = %v, want default", *cfg.FailureRate)
	}

	tests := []struct {
		name string
		in   *float64
		want float64
	}{
		{"unset", nil, defaultFailureRate},
		{"explicit zero", Rate(0), 0},
		{"explicit one", Rate(1), 1},
		{"negative", Rate(-0.1), defaultFailureRate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Config{FailureRate: tt.in}.withDefaults()
			if got.FailureRate == nil || *got.FailureRate != tt.want {
				t.Errorf("FailureRate = %v, want %v", got.FailureRate, tt.want)
			}
		})
	}
}

func TestNewEngine_ZeroConfigOutcomes(t *testing.T) {
	t.Parallel()

	count := func(e *Engine) (failed, completed int) {
		for range 2000 {
			switch e.outcome() {
			case job.StatusFailed:
				failed++
			case job.StatusCompleted:
				completed++
			}
		}
		return failed, completed
	}

	failed, completed := count(NewEngine(Config{}))
	if failed == 0 || completed == 0 {
		t.Errorf("zero Config: failed=%d completed=%d, want both outcomes", failed, completed)
	}

	failed, completed = count(NewEngine(Config{FailureRate: Rate(0)}))
	if failed != 0 || completed != 2000 {
		t.Errorf("FailureRate 0: failed=%d completed=%d, want never failed", failed, completed)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("COMPLETION_MIN_DELAY", "10ms")
	t.Setenv("COMPLETION_MAX_DELAY", "20ms")
	t.Setenv("COMPLETION_FAILURE_RATE", "0.25")

	cfg := LoadConfigFromEnv()
	if cfg.MinDelay != 10*time.Millisecond || cfg.MaxDelay != 20*time.Millisecond || *cfg.FailureRate != 0.25 {
		t.Errorf("unexpected config: %+v", cfg)
	}
}
