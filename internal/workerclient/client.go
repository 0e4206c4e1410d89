// Package workerclient calls the ingestion worker's HTTP RPC surface on
// behalf of the orchestrator.
package workerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"ingestion/internal/apperrors"
	"ingestion/internal/job"
	"ingestion/pkg/circuitbreaker"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseSize = 1 << 20 // 1 MB

// MetricsRecorder receives per-call measurements. It is optional.
type MetricsRecorder interface {
	RecordRemoteCall(ctx context.Context, op string, success bool, durationSeconds float64)
}

// Client implements job.Worker over HTTP.
//
// Every call is bounded by the configured timeout. Transport failures,
// timeouts, 5xx responses and undecodable bodies all surface as
// apperrors.RemoteUnavailable and count against the circuit breaker. While
// the breaker is open calls fail immediately without touching the network.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	breaker *circuitbreaker.Breaker
	metrics MetricsRecorder
}

// New creates a client for cfg.BaseURL.
func New(cfg Config, metrics MetricsRecorder) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: timeout,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		breaker: circuitbreaker.New(cfg.Breaker),
		metrics: metrics,
	}
}

// statusBody is the worker's {status, error} response.
type statusBody struct {
	Status job.Status `json:"status"`
	Error  string     `json:"error"`
}

// Start posts {id, ...payload} to /ingestion.
func (c *Client) Start(ctx context.Context, id string, payload []byte) (*job.RemoteStatus, error) {
	body, err := startBody(id, payload)
	if err != nil {
		return nil, apperrors.Validation("payload", err.Error())
	}

	var out statusBody
	code, err := c.do(ctx, "start", http.MethodPost, "/ingestion", body, &out)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, apperrors.RemoteUnavailable("worker.start", fmt.Errorf("unexpected status %d: %s", code, out.Error))
	}
	return &job.RemoteStatus{Status: out.Status}, nil
}

// Status fetches /status/{id}. A 404 is reported as StatusNotFound, not an error.
// A 200 whose body does not name a known status is RemoteUnavailable.
func (c *Client) Status(ctx context.Context, id string) (*job.RemoteStatus, error) {
	var out statusBody
	code, err := c.do(ctx, "status", http.MethodGet, "/status/"+url.PathEscape(id), nil, &out)
	if err != nil {
		return nil, err
	}
	switch code {
	case http.StatusOK:
		if !out.Status.Valid() && out.Status != job.StatusNotFound {
			return nil, apperrors.RemoteUnavailable("worker.status", fmt.Errorf("malformed response: unknown status %q", out.Status))
		}
		return &job.RemoteStatus{Status: out.Status}, nil
	case http.StatusNotFound:
		return &job.RemoteStatus{Status: job.StatusNotFound}, nil
	default:
		return nil, apperrors.RemoteUnavailable("worker.status", fmt.Errorf("unexpected status %d", code))
	}
}

// Control sends GET /{op}/{id}. The worker's status is returned alongside a
// NotFound or InvalidTransition error when it rejects the signal.
func (c *Client) Control(ctx context.Context, id string, ctl job.Control) (*job.RemoteStatus, error) {
	var out statusBody
	op := string(ctl)
	code, err := c.do(ctx, op, http.MethodGet, "/"+op+"/"+url.PathEscape(id), nil, &out)
	if err != nil {
		return nil, err
	}

	remote := &job.RemoteStatus{Status: out.Status}
	switch code {
	case http.StatusOK:
		return remote, nil
	case http.StatusNotFound:
		return &job.RemoteStatus{Status: job.StatusNotFound}, apperrors.NotFound("job", id)
	case http.StatusConflict:
		return remote, apperrors.InvalidTransition(id, op, string(out.Status))
	default:
		return nil, apperrors.RemoteUnavailable("worker."+op, fmt.Errorf("unexpected status %d", code))
	}
}

// Embedding fetches /embedding/{id}.
func (c *Client) Embedding(ctx context.Context, id string) ([]float64, error) {
	var vec []float64
	code, err := c.do(ctx, "embedding", http.MethodGet, "/embedding/"+url.PathEscape(id), nil, &vec)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, apperrors.RemoteUnavailable("worker.embedding", fmt.Errorf("unexpected status %d", code))
	}
	if len(vec) == 0 {
		return nil, apperrors.RemoteUnavailable("worker.embedding", errors.New("malformed response: empty embedding"))
	}
	return vec, nil
}

// Ready probes /livez. It bypasses the circuit breaker so readiness reflects
// the worker itself.
func (c *Client) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/livez", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("worker unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("worker liveness returned %d", resp.StatusCode)
	}
	return nil
}

// BreakerState reports the circuit state for diagnostics.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

// do performs one call and decodes the body into out. It returns an error only
// when no usable response was obtained; HTTP status interpretation is left to
// the caller, except that 5xx counts as unavailable.
func (c *Client) do(ctx context.Context, op, method, path string, body []byte, out any) (code int, err error) {
	remoteOp := "worker." + op
	if err := c.breaker.Guard(); err != nil {
		c.record(ctx, op, false, 0)
		return 0, apperrors.RemoteUnavailable(remoteOp, err)
	}

	start := time.Now()
	defer func() {
		c.record(ctx, op, err == nil, time.Since(start).Seconds())
		if err != nil {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, apperrors.RemoteUnavailable(remoteOp, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, apperrors.RemoteUnavailable(remoteOp, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return resp.StatusCode, apperrors.RemoteUnavailable(remoteOp, fmt.Errorf("worker returned %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, apperrors.RemoteUnavailable(remoteOp, err)
	}
	// Control responses may have an empty body.
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, apperrors.RemoteUnavailable(remoteOp, fmt.Errorf("malformed response: %w", err))
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) record(ctx context.Context, op string, success bool, seconds float64) {
	if c.metrics != nil {
		c.metrics.RecordRemoteCall(ctx, op, success, seconds)
	}
}

// startBody merges the payload object's fields with the job id.
func startBody(id string, payload []byte) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(payload)) > 0 {
		if err := json.Unmarshal(payload, &fields); err != nil {
			return nil, errors.New("payload must be a JSON object")
		}
		if fields == nil {
			fields = map[string]json.RawMessage{}
		}
	}
	idJSON, err := json.Marshal(id)
	if err != nil {
		return nil, err
	}
	fields["id"] = idJSON
	return json.Marshal(fields)
}

var _ job.Worker = (*Client)(nil)
