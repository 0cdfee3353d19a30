// Package dedup guards the ingestion pipeline against reprocessing the same
// inbound ticket twice with a bloom-filter-fronted cache keyed on a
// ticket's external system + external ID.
package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
)

// Backend persists which keys have already been processed.
type Backend interface {
	IsDuplicate(ctx context.Context, key string) (bool, error)
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) error
	Cleanup(ctx context.Context, olderThan time.Time) error
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// Stats summarizes dedup activity since startup.
type Stats struct {
	TotalChecks    int64
	Duplicates     int64
	UniqueKeys     int64
	FalsePositives int64
	StorageSize    int64
}

// Config tunes the bloom filter and the retention window.
type Config struct {
	WindowSize        time.Duration // how long a key is remembered
	BloomFilterSize   uint
	FalsePositiveRate float64
	CleanupInterval   time.Duration
}

// DefaultConfig mirrors the window the pipeline's per-ticket deadline and
// SLA scan cadence assume: a ticket resubmitted within the hour is treated
// as a retry of the same event, not a new one.
func DefaultConfig() Config {
	return Config{
		WindowSize:        1 * time.Hour,
		BloomFilterSize:   100_000,
		FalsePositiveRate: 0.01,
		CleanupInterval:   10 * time.Minute,
	}
}

// Guard is the idempotency guard the pipeline coordinator checks before
// running a ticket through classification and routing. A bloom filter
// short-circuits the common case (never seen before) without touching the
// backend; a bloom hit falls through to the backend for a real answer,
// since the filter alone can false-positive.
type Guard struct {
	backend Backend
	bloom   *bloom.BloomFilter
	window  time.Duration
	mu      sync.RWMutex
	stats   Stats
}

// New builds a guard over the given backend. A zero Config is replaced with
// DefaultConfig.
func New(cfg Config, backend Backend) *Guard {
	if cfg.BloomFilterSize == 0 {
		cfg = DefaultConfig()
	}
	return &Guard{
		backend: backend,
		bloom:   bloom.NewWithEstimates(cfg.BloomFilterSize, cfg.FalsePositiveRate),
		window:  cfg.WindowSize,
	}
}

// CheckAndMark reports whether key has already been processed within the
// retention window, and if not, marks it processed before returning.
func (g *Guard) CheckAndMark(ctx context.Context, key string) (bool, error) {
	g.mu.Lock()
	g.stats.TotalChecks++
	g.mu.Unlock()

	g.mu.RLock()
	maybeSeen := g.bloom.TestString(key)
	g.mu.RUnlock()

	if maybeSeen {
		isDup, err := g.backend.IsDuplicate(ctx, key)
		if err != nil {
			return false, fmt.Errorf("failed to check duplicate: %w", err)
		}
		if isDup {
			g.mu.Lock()
			g.stats.Duplicates++
			g.mu.Unlock()
			return true, nil
		}
		g.mu.Lock()
		g.stats.FalsePositives++
		g.mu.Unlock()
	}

	if err := g.backend.MarkProcessed(ctx, key, g.window); err != nil {
		return false, fmt.Errorf("failed to mark processed: %w", err)
	}

	g.mu.Lock()
	g.bloom.AddString(key)
	g.stats.UniqueKeys++
	g.mu.Unlock()

	return false, nil
}

// Stats returns a snapshot of the guard's counters.
func (g *Guard) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.stats
}

// Close releases the backend.
func (g *Guard) Close() error { return g.backend.Close() }

// StartCleanup runs the backend's Cleanup on a ticker until ctx is
// cancelled. Callers run this in its own goroutine.
func (g *Guard) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultConfig().CleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-g.window)
			_ = g.backend.Cleanup(ctx, cutoff)
		}
	}
}

// Key builds the dedup key for an inbound ticket from its external system
// and external ID. Tickets without an external ID (e.g. direct API
// submissions) aren't deduplicated by the guard; the caller should skip it.
func Key(externalSystem, externalID string) string {
	return externalSystem + ":" + externalID
}
