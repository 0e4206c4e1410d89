package job

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"ingestion/internal/apperrors"
	"ingestion/internal/observability"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
)

const maxJobIDLength = 128

// jobIDPattern allows alphanumeric, hyphens, and underscores
var jobIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// Service is the ingestion orchestrator. It owns the local job records and
// synchronizes their cached status with the worker.
//
// Every operation on a job id runs under that id's lock for its whole
// read, call, write cycle, so concurrent callers on one job never interleave.
// Operations on different ids run in parallel.
type Service struct {
	store    Store
	worker   Worker
	notifier Notifier
	metrics  *observability.Metrics
	locks    *keyedLocks
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the receiver of status changes.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides UUID generation for jobs created without an id.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// NewService creates a new orchestrator over store and worker.
func NewService(store Store, worker Worker, opts ...Option) *Service {
	s := &Service{
		store:  store,
		worker: worker,
		locks:  newKeyedLocks(),
		now:    time.Now,
		newID:  uuid.NewString,
		logger: slog.With("component", "orchestrator"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob persists a Pending record and starts it on the worker.
//
// The result carries the id the job was created under and the worker's raw
// status, not the record. req is not modified. When the worker call fails
// the record stays Pending and the error is RemoteUnavailable.
func (s *Service) CreateJob(ctx context.Context, req *CreateRequest) (*CreateResult, error) {
	id := req.ID
	if id == "" {
		id = s.newID()
	}
	payload := req.Payload
	if len(bytes.TrimSpace(payload)) == 0 {
		payload = json.RawMessage(`{}`)
	}
	if err := validateID(id); err != nil {
		return nil, err
	}
	if err := validatePayload(payload); err != nil {
		return nil, err
	}

	logger := s.logger.With("jobId", id)
	unlock := s.locks.lock(id)
	defer unlock()

	switch _, err := s.store.Get(ctx, id); {
	case err == nil:
		return nil, apperrors.Conflict("job", id, fmt.Sprintf("job %s already exists", id))
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, err
	}

	now := s.now().UTC()
	j := &Job{
		ID:        id,
		Status:    StatusPending,
		Payload:   append(json.RawMessage(nil), payload...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Put(ctx, j); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordJobCreated(ctx)
	}
	s.notify(ctx, j, "")

	remote, err := s.worker.Start(ctx, j.ID, j.Payload)
	if err != nil {
		logger.Error("Worker start failed, job left pending", "error", err)
		return nil, err
	}

	if remote.Status.Valid() {
		if err := s.setStatus(ctx, j, remote.Status); err != nil {
			return nil, err
		}
	}

	logger.Info("Job created", "status", j.Status)
	return &CreateResult{ID: id, Status: remote.Status}, nil
}

// Get returns the local record without contacting the worker.
func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	return s.store.Get(ctx, id)
}

// GetStatus refreshes the cached status from the worker.
//
// A missing local record is NotFound whatever the worker knows about the id.
// An unreachable worker is not an error: the cached status is returned with
// Stale set. A NotFound report from the worker is returned but not persisted.
func (s *Service) GetStatus(ctx context.Context, id string) (*StatusResult, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	j, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	remote, err := s.worker.Status(ctx, id)
	if err != nil {
		s.logger.Warn("Worker status unavailable, serving cached status", "jobId", id, "status", j.Status, "error", err)
		if s.metrics != nil {
			s.metrics.RecordStaleRead(ctx)
		}
		return &StatusResult{Status: j.Status, Stale: true, Error: err.Error()}, nil
	}

	if remote.Status.Valid() {
		if err := s.setStatus(ctx, j, remote.Status); err != nil {
			return nil, err
		}
	}
	return &StatusResult{Status: remote.Status}, nil
}

// Cancel signals the worker to cancel and caches Cancelled.
func (s *Service) Cancel(ctx context.Context, id string) (*ControlResult, error) {
	return s.control(ctx, id, ControlCancel)
}

// Pause signals the worker to pause and caches Paused.
func (s *Service) Pause(ctx context.Context, id string) (*ControlResult, error) {
	return s.control(ctx, id, ControlPause)
}

// Resume signals the worker to resume and caches Processing.
func (s *Service) Resume(ctx context.Context, id string) (*ControlResult, error) {
	return s.control(ctx, id, ControlResume)
}

// Retry signals the worker to retry and caches Processing.
func (s *Service) Retry(ctx context.Context, id string) (*ControlResult, error) {
	return s.control(ctx, id, ControlRetry)
}

// control is best effort: the cached status is overwritten with the control's
// target even when the worker fails or rejects the signal. Remote reports
// what the worker actually said.
func (s *Service) control(ctx context.Context, id string, c Control) (*ControlResult, error) {
	logger := s.logger.With("jobId", id, "op", string(c))
	unlock := s.locks.lock(id)
	defer unlock()

	j, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	sync := RemoteSync{Synced: true}
	remote, err := s.worker.Control(ctx, id, c)
	if remote != nil {
		sync.Status = remote.Status
	}
	if err != nil {
		sync.Synced = false
		sync.Error = err.Error()
		logger.Warn("Control not confirmed by worker", "error", err)
	}

	if err := s.setStatus(ctx, j, c.Target()); err != nil {
		return nil, err
	}

	logger.Info("Job control applied", "status", j.Status, "synced", sync.Synced)
	return &ControlResult{Job: j.Clone(), Remote: sync}, nil
}

// GetEmbedding returns the worker's embedding for id. No local state is read
// or written.
func (s *Service) GetEmbedding(ctx context.Context, id string) ([]float64, error) {
	if id == "" {
		return nil, apperrors.Validation("id", "job ID is required")
	}
	return s.worker.Embedding(ctx, id)
}

// setStatus persists status into j when it differs. The caller holds j's lock.
func (s *Service) setStatus(ctx context.Context, j *Job, status Status) error {
	if j.Status == status {
		return nil
	}

	previous := j.Status
	updated := j.Clone()
	updated.Status = status
	updated.UpdatedAt = s.now().UTC()
	if err := s.store.Put(ctx, updated); err != nil {
		return err
	}
	*j = *updated

	if s.metrics != nil {
		s.metrics.RecordStatusChange(ctx, string(status))
	}
	s.notify(ctx, j, previous)
	return nil
}

func (s *Service) notify(ctx context.Context, j *Job, previous Status) {
	if s.notifier != nil {
		s.notifier.NotifyStatus(ctx, j.Clone(), previous)
	}
}

func validateID(id string) error {
	if len(id) > maxJobIDLength {
		return apperrors.Validation("id", fmt.Sprintf("job ID exceeds maximum length of %d", maxJobIDLength))
	}
	if !jobIDPattern.MatchString(id) {
		return apperrors.Validation("id", "job ID must be alphanumeric (hyphens and underscores allowed, cannot start with hyphen/underscore)")
	}
	return nil
}

func validatePayload(payload json.RawMessage) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return apperrors.Validation("payload", "payload must be a JSON object")
	}
	if _, ok := fields["id"]; ok {
		return apperrors.Validation("payload", "payload must not contain an id field")
	}
	return nil
}
