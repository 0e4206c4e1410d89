// Package dispatcher delivers CloudEvents to webhook destinations in the
// background with bounded buffering, retry and a per-host circuit breaker.
package dispatcher

import (
	"context"
	"errors"
	"ingestion/pkg/cloudevent"
)

var (
	// ErrBufferFull is returned when the queue is full and the event is dropped.
	ErrBufferFull = errors.New("dispatcher buffer full, event dropped")

	// ErrClosed is returned by Dispatch after Close.
	ErrClosed = errors.New("dispatcher closed")
)

// Dispatcher queues events for asynchronous delivery.
type Dispatcher interface {
	// Dispatch queues an event without blocking.
	Dispatch(event *Event) error

	Stats() Stats

	// Close stops accepting events and drains the queue until ctx expires.
	Close(ctx context.Context) error
}

// Event is a CloudEvent addressed to a destination.
type Event struct {
	Payload     *cloudevent.CloudEvent
	Destination string
	SigningKey  string // empty disables signing
}

// Stats holds dispatcher counters.
type Stats struct {
	QueueDepth   int
	Queued       int64
	Delivered    int64
	Failed       int64
	Dropped      int64
	Retries      int64
	BreakersOpen int
}

// Discard accepts and drops every event. It backs the notifier when no
// webhook is configured.
type Discard struct{}

func (Discard) Dispatch(*Event) error       { return nil }
func (Discard) Stats() Stats                { return Stats{} }
func (Discard) Close(context.Context) error { return nil }

var _ Dispatcher = Discard{}
