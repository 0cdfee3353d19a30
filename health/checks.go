package health

import (
	"context"
	"database/sql"
	"time"

	"github.com/ticketflow/engine/llm"
)

// ProviderCheck creates a health check for an LLM provider that supports
// health checking. Use with the classifier's and sentiment analyzer's
// shared provider so routing keeps working while enrichment is degraded.
func ProviderCheck(provider llm.HealthCheckProvider, timeout time.Duration) Check {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return provider.HealthCheck(ctx)
	}
}

// DatabaseCheck creates a health check that pings a SQL database.
func DatabaseCheck(db *sql.DB, timeout time.Duration) Check {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return db.PingContext(ctx)
	}
}

// QueueDepthCheck creates a check that fails when the processing queue
// backs up past maxDepth.
func QueueDepthCheck(depth func() int, maxDepth int) Check {
	return ThresholdCheck("queue_depth", func() float64 {
		return float64(depth())
	}, float64(maxDepth))
}
