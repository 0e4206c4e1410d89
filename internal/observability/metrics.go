package observability

import (
	"context"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the instruments of both binaries. The service records HTTP,
// job and remote-call metrics; the worker records completion metrics.
type Metrics struct {
	meter metric.Meter

	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	JobsTotal         metric.Int64Counter
	StatusTransitions metric.Int64Counter
	StaleReads        metric.Int64Counter

	RemoteCallDuration metric.Float64Histogram
	RemoteErrorsTotal  metric.Int64Counter

	WorkerCompletions metric.Int64Counter
	WorkerStaleTimers metric.Int64Counter

	DispatcherDuration  metric.Float64Histogram
	DispatcherDelivered metric.Int64Counter
	DispatcherFailed    metric.Int64Counter
	DispatcherDropped   metric.Int64Counter
}

// NewMetrics creates the instruments on a meter named service. Each call gets
// its own Prometheus registry, exposed by the returned handler.
func NewMetrics(ctx context.Context, service string) (*Metrics, http.Handler, error) {
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	m := &Metrics{meter: provider.Meter(service)}
	if err := m.init(); err != nil {
		return nil, nil, err
	}

	return m, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

func (m *Metrics) init() error {
	var err error
	counter := func(name, desc string) metric.Int64Counter {
		if err != nil {
			return nil
		}
		var c metric.Int64Counter
		c, err = m.meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}
	histogram := func(name, desc string, bounds ...float64) metric.Float64Histogram {
		if err != nil {
			return nil
		}
		var h metric.Float64Histogram
		h, err = m.meter.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(bounds...),
		)
		return h
	}

	m.HTTPRequestDuration = histogram("http_request_duration_seconds", "HTTP request latency in seconds",
		0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10)
	m.HTTPRequestsTotal = counter("http_requests_total", "Total number of HTTP requests")
	m.HTTPErrorsTotal = counter("http_errors_total", "Total number of HTTP errors (4xx and 5xx)")

	m.JobsTotal = counter("ingestion_jobs_total", "Total number of ingestion jobs created")
	m.StatusTransitions = counter("ingestion_status_transitions_total", "Persisted status changes by new status")
	m.StaleReads = counter("ingestion_stale_reads_total", "Status reads answered from the cache because the worker was unreachable")

	m.RemoteCallDuration = histogram("worker_call_duration_seconds", "Worker RPC latency in seconds",
		0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10)
	m.RemoteErrorsTotal = counter("worker_call_errors_total", "Worker RPC calls that did not complete")

	m.WorkerCompletions = counter("worker_completions_total", "Deferred completions by outcome")
	m.WorkerStaleTimers = counter("worker_stale_timers_total", "Completion timers that fired after being superseded")

	m.DispatcherDuration = histogram("dispatcher_duration_seconds", "Webhook delivery latency in seconds",
		0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10)
	m.DispatcherDelivered = counter("dispatcher_delivered_total", "Total events successfully delivered")
	m.DispatcherFailed = counter("dispatcher_failed_total", "Total events failed after retries")
	m.DispatcherDropped = counter("dispatcher_dropped_total", "Total events dropped by reason")

	return err
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(
		methodAttr(method),
		pathAttr(path),
		statusAttr(statusCode),
	)

	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)

	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordJobCreated records a new job record.
func (m *Metrics) RecordJobCreated(ctx context.Context) {
	m.JobsTotal.Add(ctx, 1)
}

// RecordStatusChange records a persisted change to status.
func (m *Metrics) RecordStatusChange(ctx context.Context, status string) {
	m.StatusTransitions.Add(ctx, 1, metric.WithAttributes(jobStatusAttr(status)))
}

// RecordStaleRead records a GetStatus answered from the cache.
func (m *Metrics) RecordStaleRead(ctx context.Context) {
	m.StaleReads.Add(ctx, 1)
}

// RecordRemoteCall records one worker RPC.
func (m *Metrics) RecordRemoteCall(ctx context.Context, op string, success bool, durationSeconds float64) {
	m.RemoteCallDuration.Record(ctx, durationSeconds, metric.WithAttributes(opAttr(op), successAttr(success)))
	if !success {
		m.RemoteErrorsTotal.Add(ctx, 1, metric.WithAttributes(opAttr(op)))
	}
}

// RecordCompletion records a deferred completion with outcome Completed or Failed.
func (m *Metrics) RecordCompletion(ctx context.Context, outcome string) {
	m.WorkerCompletions.Add(ctx, 1, metric.WithAttributes(outcomeAttr(outcome)))
}

// RecordStaleTimer records a completion timer that no-oped.
func (m *Metrics) RecordStaleTimer(ctx context.Context) {
	m.WorkerStaleTimers.Add(ctx, 1)
}

// RecordDispatcherDelivered records a successful event delivery with its duration.
func (m *Metrics) RecordDispatcherDelivered(ctx context.Context, durationSeconds float64) {
	m.DispatcherDelivered.Add(ctx, 1)
	m.DispatcherDuration.Record(ctx, durationSeconds)
}

// RecordDispatcherFailed records a failed event delivery.
func (m *Metrics) RecordDispatcherFailed(ctx context.Context) {
	m.DispatcherFailed.Add(ctx, 1)
}

// RecordDispatcherDropped records a dropped event.
func (m *Metrics) RecordDispatcherDropped(ctx context.Context, reason string) {
	m.DispatcherDropped.Add(ctx, 1, metric.WithAttributes(reasonAttr(reason)))
}
