// Package queue provides the async job queue the pipeline coordinator uses
// when it's asked to enqueue a ticket for background processing instead of
// running the pipeline inline.
package queue

import (
	"context"
	"time"
)

// Job is one ticket queued for asynchronous pipeline processing.
type Job struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Attempt    int       `json:"attempt"`

	// ackToken carries whatever a backend needs to Ack the job (e.g. a
	// Kafka message for offset commit); nil where Ack is a no-op.
	ackToken any `json:"-"`
}

// Queue is the minimal interface the pipeline coordinator needs from a job
// queue backend; both the in-memory and Kafka implementations satisfy it.
type Queue interface {
	// Enqueue submits a ticket for async processing.
	Enqueue(ctx context.Context, ticketID string) error

	// Consume blocks until a job is available or ctx is cancelled.
	Consume(ctx context.Context) (*Job, error)

	// Ack confirms a job finished processing (no-op for backends without
	// manual offset management).
	Ack(ctx context.Context, job *Job) error

	Close() error
}
