// Package scheduler runs the two background jobs the ticketing system
// depends on outside the request path: the SLA breach scanner and the
// daily per-agent counter reset. Both run on a start/stop ticker loop like
// the one the health checker uses.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/ticketflow/engine/observability"
	"github.com/ticketflow/engine/ticketing/models"
	"github.com/ticketflow/engine/ticketing/storage"
)

var logger = observability.NewLogger(nil)

// Config tunes job cadence; zero values fall back to the documented
// defaults.
type Config struct {
	SLAScanInterval    time.Duration // default 5 minutes
	DailyResetInterval time.Duration // default 1 hour (checks whether UTC midnight passed)
}

func (c Config) withDefaults() Config {
	if c.SLAScanInterval <= 0 {
		c.SLAScanInterval = 5 * time.Minute
	}
	if c.DailyResetInterval <= 0 {
		c.DailyResetInterval = 1 * time.Hour
	}
	return c
}

// Scheduler owns the two background job loops.
type Scheduler struct {
	store   storage.Store
	cfg     Config
	metrics *observability.MetricsCollector
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu          sync.Mutex
	lastResetAt time.Time
}

// New builds a Scheduler bound to store. Call Start to begin running jobs.
func New(store storage.Store, cfg Config) *Scheduler {
	return &Scheduler{store: store, cfg: cfg.withDefaults(), metrics: observability.GetMetrics()}
}

// Start launches both job loops in their own goroutines. Calling Start
// twice without an intervening Stop is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go s.runLoop(ctx, s.cfg.SLAScanInterval, s.scanSLABreaches)
	go s.runLoop(ctx, s.cfg.DailyResetInterval, s.maybeResetDailyCounters)
}

// Stop cancels both loops and waits for them to exit.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.cancel = nil
}

func (s *Scheduler) runLoop(ctx context.Context, interval time.Duration, job func(context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			job(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// scanSLABreaches implements the scheduled SLA scanner: tickets whose
// deadline has passed while still open get sla_breached=true and their
// priority bumped by one (capped at 5).
func (s *Scheduler) scanSLABreaches(ctx context.Context) {
	due, err := s.store.Tickets().FindDueForSLAScan(ctx)
	if err != nil {
		logger.Error("sla scan: failed to list due tickets", observability.Err(err))
		return
	}

	for _, ticket := range due {
		ticket.SLABreached = true
		if ticket.Priority != nil {
			ticket.Priority.Score = minInt(ticket.Priority.Score+1, 5)
			ticket.Priority.Level = models.LevelForScore(ticket.Priority.Score)
		}
		if err := s.store.Tickets().Update(ctx, ticket); err != nil {
			logger.Error("sla scan: failed to update ticket",
				observability.String("ticket_id", ticket.ID), observability.Err(err))
			continue
		}
		s.metrics.RecordSLABreach()
	}
	if len(due) > 0 {
		logger.Info("sla scan: breached tickets updated", observability.Int("count", len(due)))
	}
}

// maybeResetDailyCounters zeroes tickets_handled_today / tickets_resolved_today
// once per UTC calendar day. It's checked on every DailyResetInterval tick
// rather than scheduled for exact midnight, since the interval loop has no
// wall-clock alignment guarantee.
func (s *Scheduler) maybeResetDailyCounters(ctx context.Context) {
	now := time.Now().UTC()

	s.mu.Lock()
	last := s.lastResetAt
	crossedMidnight := last.IsZero() || now.YearDay() != last.YearDay() || now.Year() != last.Year()
	if crossedMidnight {
		s.lastResetAt = now
	}
	s.mu.Unlock()

	if !crossedMidnight {
		return
	}

	if err := s.store.Agents().ResetDailyCounters(ctx); err != nil {
		logger.Error("daily reset: failed to reset agent counters", observability.Err(err))
		return
	}
	logger.Info("daily reset: agent counters zeroed")
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
