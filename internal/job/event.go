package job

import (
	"context"
	"fmt"
	"ingestion/internal/dispatcher"
	"ingestion/pkg/cloudevent"
	"log/slog"
	"time"
)

// EventTypeStatus is the CloudEvent type emitted when a cached status changes.
const EventTypeStatus = "ingestion.job.status"

// NewStatusEvent builds the status-change event for j.
// previous is empty for a newly created record.
func NewStatusEvent(source string, j *Job, previous Status) *cloudevent.CloudEvent {
	data := map[string]any{
		"jobId":     j.ID,
		"status":    string(j.Status),
		"updatedAt": j.UpdatedAt.Format(time.RFC3339Nano),
	}
	if previous != "" {
		data["previousStatus"] = string(previous)
	}
	eventID := fmt.Sprintf("%s-%d", j.ID, j.UpdatedAt.UnixNano())
	return cloudevent.New(EventTypeStatus, source, j.ID, eventID, data)
}

// WebhookNotifier queues status-change events on a dispatcher for delivery to
// a single webhook destination.
type WebhookNotifier struct {
	dispatcher  dispatcher.Dispatcher
	source      string
	destination string
	signingKey  string
}

// NewWebhookNotifier creates a notifier delivering to destination.
func NewWebhookNotifier(d dispatcher.Dispatcher, source, destination, signingKey string) *WebhookNotifier {
	return &WebhookNotifier{
		dispatcher:  d,
		source:      source,
		destination: destination,
		signingKey:  signingKey,
	}
}

// NotifyStatus queues the event. Delivery is asynchronous and a full buffer
// only drops the notification.
func (n *WebhookNotifier) NotifyStatus(ctx context.Context, j *Job, previous Status) {
	err := n.dispatcher.Dispatch(&dispatcher.Event{
		Payload:     NewStatusEvent(n.source, j, previous),
		Destination: n.destination,
		SigningKey:  n.signingKey,
	})
	if err != nil {
		slog.WarnContext(ctx, "Status notification not queued", "jobId", j.ID, "error", err)
	}
}

var _ Notifier = (*WebhookNotifier)(nil)
