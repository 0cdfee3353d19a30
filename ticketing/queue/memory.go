package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is a buffered in-process channel queue, used for tests.
type MemoryQueue struct {
	jobs chan *Job
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryQueue{jobs: make(chan *Job, capacity)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, ticketID string) error {
	job := &Job{ID: uuid.New().String(), TicketID: ticketID, EnqueuedAt: time.Now().UTC()}
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("queue: buffer full (capacity %d)", cap(q.jobs))
	}
}

func (q *MemoryQueue) Consume(ctx context.Context) (*Job, error) {
	select {
	case job := <-q.jobs:
		return job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ack is a no-op: a consumed job is already removed from the channel.
func (q *MemoryQueue) Ack(ctx context.Context, job *Job) error { return nil }

// Depth reports the number of jobs waiting in the buffer, for health
// checks and the queue depth gauge.
func (q *MemoryQueue) Depth() int {
	return len(q.jobs)
}

func (q *MemoryQueue) Close() error {
	close(q.jobs)
	return nil
}
