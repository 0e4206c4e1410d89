package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"ingestion/pkg/backoff"
	"ingestion/pkg/circuitbreaker"
	"ingestion/pkg/cloudevent"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

// deliveryTimeout bounds one event's delivery including retries.
const deliveryTimeout = 30 * time.Second

// MetricsRecorder receives dispatcher measurements. It is optional.
type MetricsRecorder interface {
	RecordDispatcherDelivered(ctx context.Context, durationSeconds float64)
	RecordDispatcherFailed(ctx context.Context)
	RecordDispatcherDropped(ctx context.Context, reason string)
}

// Memory queues events in a bounded channel drained by a fixed worker pool.
// Events that cannot be queued, or whose host circuit is open, are dropped.
type Memory struct {
	cfg      Config
	queue    chan *Event
	sender   *cloudevent.Sender
	breakers *circuitbreaker.Registry
	metrics  MetricsRecorder
	logger   *slog.Logger

	queued    atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
	retries   atomic.Int64

	// mu guards closed against concurrent sends on queue.
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewMemory starts the worker pool and returns the dispatcher.
func NewMemory(cfg Config, metrics MetricsRecorder) *Memory {
	cfg = cfg.withDefaults()

	d := &Memory{
		cfg:      cfg,
		queue:    make(chan *Event, cfg.BufferSize),
		sender:   cloudevent.NewSender(cfg.HTTPTimeout),
		breakers: circuitbreaker.NewRegistry(cfg.Breaker),
		metrics:  metrics,
		logger:   slog.With("component", "dispatcher"),
	}

	d.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go d.run()
	}

	d.logger.Info("Dispatcher started", "workers", cfg.Workers, "buffer", cfg.BufferSize)
	return d
}

// Dispatch queues event for delivery.
func (d *Memory) Dispatch(event *Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}

	select {
	case d.queue <- event:
		d.queued.Add(1)
		return nil
	default:
		d.drop(event, "buffer_full")
		return ErrBufferFull
	}
}

// Stats returns a snapshot of the counters.
func (d *Memory) Stats() Stats {
	return Stats{
		QueueDepth:   len(d.queue),
		Queued:       d.queued.Load(),
		Delivered:    d.delivered.Load(),
		Failed:       d.failed.Load(),
		Dropped:      d.dropped.Load(),
		Retries:      d.retries.Load(),
		BreakersOpen: d.breakers.Stats().Open,
	}
}

// Close stops intake and waits for the workers to drain what is queued.
func (d *Memory) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.logger.Info("Dispatcher shutting down", "queued", len(d.queue))

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Dispatcher shutdown complete",
			"delivered", d.delivered.Load(),
			"failed", d.failed.Load(),
			"dropped", d.dropped.Load(),
		)
		return nil
	case <-ctx.Done():
		d.logger.Warn("Dispatcher shutdown timed out", "remaining", len(d.queue))
		return ctx.Err()
	}
}

func (d *Memory) run() {
	defer d.wg.Done()
	for event := range d.queue {
		d.deliver(event)
	}
}

func (d *Memory) deliver(event *Event) {
	host := hostOf(event.Destination)
	breaker := d.breakers.Get(host)

	if err := breaker.Guard(); err != nil {
		d.drop(event, "circuit_open")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	start := time.Now()
	if err := d.send(ctx, event); err != nil {
		breaker.RecordFailure()
		d.failed.Add(1)
		if d.metrics != nil {
			d.metrics.RecordDispatcherFailed(ctx)
		}
		d.logger.Warn("Delivery failed", "destination", host, "type", event.Payload.Type, "error", err)
		return
	}

	breaker.RecordSuccess()
	d.delivered.Add(1)
	if d.metrics != nil {
		d.metrics.RecordDispatcherDelivered(ctx, time.Since(start).Seconds())
	}
}

// send posts the event, retrying transport errors and 5xx responses.
func (d *Memory) send(ctx context.Context, event *Event) error {
	var errs []error
	for attempt := range d.cfg.MaxRetries + 1 {
		if attempt > 0 {
			d.retries.Add(1)
			select {
			case <-ctx.Done():
				return errors.Join(append(errs, ctx.Err())...)
			case <-time.After(backoff.Exponential(attempt, &d.cfg.Backoff)):
			}
		}

		err := d.sender.Send(ctx, event.Destination, event.Payload, event.SigningKey)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("attempt %d: %w", attempt+1, err))
		if cloudevent.IsClientError(err) {
			break
		}
	}
	return errors.Join(errs...)
}

func (d *Memory) drop(event *Event, reason string) {
	d.dropped.Add(1)
	if d.metrics != nil {
		d.metrics.RecordDispatcherDropped(context.Background(), reason)
	}
	d.logger.Warn("Event dropped",
		"reason", reason,
		"destination", hostOf(event.Destination),
		"type", event.Payload.Type,
	)
}

// hostOf keys circuit breakers by destination host.
func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}

var _ Dispatcher = (*Memory)(nil)
