package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"

	engerrors "github.com/ticketflow/engine/errors"
	"github.com/ticketflow/engine/observability"
)

// RunWorkers starts n goroutines consuming from the Coordinator's queue and
// running the same synchronous processing logic Submit uses inline. It
// blocks until ctx is cancelled or the queue is closed, then waits for all
// workers to drain their in-flight ticket.
func (c *Coordinator) RunWorkers(ctx context.Context, n int) {
	if c.queue == nil {
		logger.Warn("pipeline: RunWorkers called without a queue configured, nothing to do")
		return
	}
	if n <= 0 {
		n = 1
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(worker int) {
			defer wg.Done()
			c.workerLoop(ctx, worker)
		}(i)
	}
	wg.Wait()
}

func (c *Coordinator) workerLoop(ctx context.Context, worker int) {
	for {
		job, err := c.queue.Consume(ctx)
		if err != nil {
			// A closed Kafka reader reports io.EOF.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
				return
			}
			logger.Error("pipeline: worker failed to consume job", observability.Int("worker", worker), observability.Err(err))
			continue
		}
		if job == nil {
			// A closed MemoryQueue yields no job.
			return
		}

		ticket, err := c.store.Tickets().Get(ctx, job.TicketID)
		if err != nil {
			logger.Error("pipeline: worker could not load queued ticket",
				observability.String("ticket_id", job.TicketID), observability.Err(err))
			c.metrics.RecordJobConsumed("missing")
			continue
		}

		if ticket.IsProcessed {
			// Already handled by a previous delivery of this job (at-least-once
			// queues redeliver); skip straight to ack.
			c.metrics.RecordJobConsumed("duplicate")
			if err := c.queue.Ack(ctx, job); err != nil {
				logger.Error("pipeline: worker failed to ack already-processed job", observability.Err(err))
			}
			continue
		}

		// A panic while processing one ticket must not take down the worker;
		// the job stays unacked so an at-least-once queue redelivers it.
		process := engerrors.SafeFuncVoid(func() error {
			c.processTicket(ctx, ticket, "async")
			return nil
		})
		if err := process(); err != nil {
			logger.Error("pipeline: worker recovered from panic",
				observability.String("ticket_id", job.TicketID), observability.Err(err))
			c.metrics.RecordJobConsumed("error")
			continue
		}
		c.metrics.RecordJobConsumed("processed")

		if err := c.queue.Ack(ctx, job); err != nil {
			logger.Error("pipeline: worker failed to ack job",
				observability.String("ticket_id", job.TicketID), observability.Err(err))
		}
	}
}
