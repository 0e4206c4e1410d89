package job

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle status of an ingestion job.
type Status string

// Job statuses. The string values are the wire format shared with the worker.
const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusPaused     Status = "Paused"
	StatusCancelled  Status = "Cancelled"
	StatusRetried    Status = "Retried"
	StatusCompleted  Status = "Completed"
	StatusFailed     Status = "Failed"

	// StatusNotFound is reported by the worker for ids it has no state for.
	// It is never persisted.
	StatusNotFound Status = "NotFound"
)

var validStatuses = map[Status]struct{}{
	StatusPending:    {},
	StatusProcessing: {},
	StatusPaused:     {},
	StatusCancelled:  {},
	StatusRetried:    {},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// Valid reports whether s is a status a job record may hold.
func (s Status) Valid() bool {
	_, ok := validStatuses[s]
	return ok
}

// Terminal reports whether no further work will happen without an explicit Retry.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Job is the locally persisted ingestion record.
//
// Status is a cache of the worker's status as of the last synchronization,
// not a live guarantee.
type Job struct {
	ID        string          `json:"id"`
	Status    Status          `json:"status"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Clone returns a deep copy so callers cannot alias stored payload bytes.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.Payload != nil {
		c.Payload = append(json.RawMessage(nil), j.Payload...)
	}
	return &c
}

// CreateRequest represents a request to create a new ingestion job.
type CreateRequest struct {
	ID      string          `json:"id,omitempty"` // Optional; a UUID is assigned when empty
	Payload json.RawMessage `json:"payload"`
}

// Control is a control signal sent to the worker.
type Control string

const (
	ControlCancel Control = "cancel"
	ControlPause  Control = "pause"
	ControlResume Control = "resume"
	ControlRetry  Control = "retry"
)

// Target is the status the local cache is set to after the control is sent.
// Retry re-enters the pipeline, so its target is Processing rather than Retried.
func (c Control) Target() Status {
	switch c {
	case ControlCancel:
		return StatusCancelled
	case ControlPause:
		return StatusPaused
	case ControlResume, ControlRetry:
		return StatusProcessing
	default:
		return ""
	}
}

// RemoteStatus is the worker's raw status response.
type RemoteStatus struct {
	Status Status `json:"status,omitempty"`
}

// CreateResult is returned by CreateJob: the id the job was created under
// and the worker's raw answer to Start.
type CreateResult struct {
	ID     string `json:"id"`
	Status Status `json:"status,omitempty"`
}

// StatusResult is returned by GetStatus.
// When the worker could not be reached Stale is set, Status holds the cached
// value and Error describes the remote failure.
type StatusResult struct {
	Status Status `json:"status"`
	Stale  bool   `json:"stale,omitempty"`
	Error  string `json:"error,omitempty"`
}

// RemoteSync describes what the worker said about a control signal.
// Synced is false when the signal was accepted locally but the worker did not
// confirm it.
type RemoteSync struct {
	Synced bool   `json:"synced"`
	Status Status `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ControlResult is the updated local record plus the remote outcome.
type ControlResult struct {
	*Job
	Remote RemoteSync `json:"remote"`
}
