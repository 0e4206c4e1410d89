// Package job implements the ingestion orchestrator: it persists job records and
// keeps their cached status in sync with the remote ingestion worker.
package job

import "context"

// Worker is the RPC contract of the remote ingestion worker.
//
// # State Management
//
// The Worker is the SOURCE OF TRUTH for a job while it is in flight. The
// orchestrator only caches the last status it observed, so a status read from
// the local record may lag behind the worker until the next GetStatus call.
//
// # Errors
//
// Implementations return apperrors.RemoteUnavailable when a call does not
// complete (network error, timeout, malformed response, open circuit) and
// apperrors.InvalidTransition when the worker rejects a control signal for the
// job's current state. A Status for an unknown id is not an error: it returns
// StatusNotFound.
type Worker interface {
	// Start begins ingestion for id. The payload fields are sent alongside the id.
	Start(ctx context.Context, id string, payload []byte) (*RemoteStatus, error)

	// Status returns the worker's current status for id.
	Status(ctx context.Context, id string) (*RemoteStatus, error)

	// Control sends a cancel, pause, resume or retry signal.
	Control(ctx context.Context, id string, c Control) (*RemoteStatus, error)

	// Embedding returns the document embedding computed for id.
	Embedding(ctx context.Context, id string) ([]float64, error)

	// Ready checks that the worker is reachable.
	Ready(ctx context.Context) error
}

// Store persists job records. Get returns apperrors.NotFound for unknown ids.
type Store interface {
	Get(ctx context.Context, id string) (*Job, error)
	Put(ctx context.Context, j *Job) error
}

// Notifier receives status changes of persisted records.
type Notifier interface {
	NotifyStatus(ctx context.Context, j *Job, previous Status)
}
