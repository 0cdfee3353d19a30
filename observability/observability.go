// Package observability bundles the engine's logging, tracing, metrics, and
// LLM cost tracking behind one stack constructed at startup.
package observability

import (
	"context"
	"fmt"
	"time"
)

// Config contains configuration for the full observability stack.
type Config struct {
	ServiceName string
	Environment string

	LogLevel   LogLevel
	LogJSON    bool
	WithCaller bool

	Tracing TracingConfig
	Metrics MetricsConfig
	Cost    CostConfig
}

// DefaultConfig returns a development-friendly configuration: console
// logging, tracing and metrics disabled.
func DefaultConfig() Config {
	return Config{
		ServiceName: "ticketflow",
		Environment: "development",
		LogLevel:    LogLevelInfo,
		LogJSON:     false,
		Cost:        CostConfig{Currency: "USD"},
	}
}

// Observability is the main interface for the observability stack
type Observability struct {
	Logger      Logger
	Tracer      *Tracer
	Metrics     *MetricsCollector
	CostTracker *CostTracker
	config      Config
}

// New creates a new observability stack
func New(cfg Config) (*Observability, error) {
	logger := NewLogger(&LoggerConfig{
		Level:      cfg.LogLevel,
		JSONOutput: cfg.LogJSON,
		WithCaller: cfg.WithCaller,
	})

	tracingConfig := cfg.Tracing
	if tracingConfig.ServiceName == "" {
		tracingConfig.ServiceName = cfg.ServiceName
	}
	if tracingConfig.Environment == "" {
		tracingConfig.Environment = cfg.Environment
	}

	tracer, err := NewTracer(tracingConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	// Set as global tracer
	if err := InitGlobalTracer(tracingConfig); err != nil {
		return nil, fmt.Errorf("failed to initialize global tracer: %w", err)
	}

	if tracingConfig.Enabled {
		logger.Info(fmt.Sprintf("Tracer initialized successfully (exporter: %s)", tracingConfig.Exporter))
	}

	metrics := NewMetricsCollector(cfg.Metrics, nil)

	// Set as global metrics
	if err := InitGlobalMetrics(cfg.Metrics); err != nil {
		return nil, fmt.Errorf("failed to initialize global metrics: %w", err)
	}

	if cfg.Metrics.Enabled {
		logger.Info(fmt.Sprintf("Metrics collector initialized successfully (port: %d)", cfg.Metrics.Port))
	}

	costTracker, err := NewCostTracker(cfg.Cost)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cost tracker: %w", err)
	}

	// Set as global cost tracker
	if err := InitGlobalCostTracker(cfg.Cost); err != nil {
		return nil, fmt.Errorf("failed to initialize global cost tracker: %w", err)
	}

	if cfg.Cost.Enabled {
		logger.Info(fmt.Sprintf("Cost tracker initialized successfully (budget: $%.2f/day)", cfg.Cost.BudgetAlertThreshold))
	}

	return &Observability{
		Logger:      logger,
		Tracer:      tracer,
		Metrics:     metrics,
		CostTracker: costTracker,
		config:      cfg,
	}, nil
}

// Close gracefully shuts down the observability stack
func (o *Observability) Close(ctx context.Context) error {
	o.Logger.Info("Shutting down observability stack")

	// Shutdown tracer
	if err := o.Tracer.Close(ctx); err != nil {
		o.Logger.Error("Failed to shutdown tracer", Err(err))
		return err
	}

	// Export cost records before shutting down
	if o.config.Cost.Enabled {
		filename := fmt.Sprintf("cost_export_%s.json", o.config.Environment)
		if err := o.CostTracker.ExportRecords(filename); err != nil {
			o.Logger.Warn(fmt.Sprintf("Failed to export cost records: %v", err))
		} else {
			o.Logger.Info(fmt.Sprintf("Cost records exported to %s", filename))
		}
	}

	o.Logger.Info("Observability stack shutdown complete")
	return nil
}

// StartMetricsServer starts the Prometheus metrics HTTP server
// This should be run in a separate goroutine
func (o *Observability) StartMetricsServer() error {
	if !o.config.Metrics.Enabled {
		return nil
	}

	o.Logger.Info(fmt.Sprintf("Starting metrics server on port %d", o.config.Metrics.Port))
	return o.Metrics.StartMetricsServer()
}

// Helper methods for common observability operations

// ObservePipelineStep wraps one pipeline step with a span, timing metrics,
// and degradation logging.
func (o *Observability) ObservePipelineStep(
	ctx context.Context,
	step, ticketID string,
	fn func(ctx context.Context) error,
) error {
	ctx, span := o.Tracer.StartStepSpan(ctx, step, ticketID)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	o.Metrics.RecordPipelineStep(step, duration, err)

	if err != nil {
		o.Logger.WithContext(ctx).Warn("Pipeline step degraded",
			String("step", step), String("ticket_id", ticketID),
			Duration("duration", duration), Err(err))
		o.Tracer.RecordError(span, err, "step_error")
	}

	return err
}

// ObserveLLMCall provides a complete observability wrapper for LLM API calls.
// The stage identifies which pipeline component made the call (classify,
// sentiment, kb_generate).
func (o *Observability) ObserveLLMCall(
	ctx context.Context,
	stage, ticketID, provider, model string,
	fn func(ctx context.Context) (promptTokens, completionTokens int, err error),
) error {
	// Start tracing span
	ctx, span := o.Tracer.StartLLMSpan(ctx, provider, model)
	defer span.End()

	// Log start
	logger := o.Logger.WithContext(ctx)
	logger.Debug("Starting LLM call", String("stage", stage), String("provider", provider), String("model", model))

	// Execute function with timing
	start := time.Now()
	promptTokens, completionTokens, err := fn(ctx)
	duration := time.Since(start)

	// Calculate cost
	cost := o.CostTracker.RecordCost(ctx, stage, ticketID, provider, model, promptTokens, completionTokens)

	// Record token usage in span
	o.Tracer.RecordLLMTokens(span, promptTokens, completionTokens, cost)

	// Record metrics
	o.Metrics.RecordLLMRequest(provider, model, duration, promptTokens, completionTokens, cost, err)

	// Log completion
	if err != nil {
		logger.Error("LLM call failed", String("stage", stage), String("provider", provider), String("model", model), Duration("duration", duration), Err(err))
	} else {
		logger.Info("LLM call completed",
			String("stage", stage),
			String("provider", provider),
			String("model", model),
			Int("prompt_tokens", promptTokens),
			Int("completion_tokens", completionTokens),
			Float64("cost", cost),
			Duration("duration", duration))
	}

	// Record error in span if present
	if err != nil {
		o.Tracer.RecordError(span, err, "llm_api_error")
	}

	return err
}

// ObserveStorageOperation provides a complete observability wrapper for storage operations
func (o *Observability) ObserveStorageOperation(
	ctx context.Context,
	operation, table string,
	fn func(ctx context.Context) error,
) error {
	// Start tracing span
	ctx, span := o.Tracer.StartStorageSpan(ctx, operation, table)
	defer span.End()

	// Execute function with timing
	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	// Record metrics
	o.Metrics.RecordStorageOperation(operation, table, duration, err)

	// Log operation (only on error)
	if err != nil {
		logger := o.Logger.WithContext(ctx)
		logger.Error("Storage operation failed", String("operation", operation), String("table", table), Duration("duration", duration), Err(err))
	}

	// Record error in span if present
	if err != nil {
		o.Tracer.RecordError(span, err, "storage_error")
	}

	return err
}

// GetLogger returns the logger with context
func (o *Observability) GetLogger(ctx context.Context) Logger {
	return o.Logger.WithContext(ctx)
}

// GetTraceID returns the trace ID from context
func (o *Observability) GetTraceID(ctx context.Context) string {
	return o.Tracer.GetTraceID(ctx)
}

// GetCostSummary returns the daily cost summary
func (o *Observability) GetCostSummary() *CostSummary {
	return o.CostTracker.GetDailySummary()
}
