package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig contains tracing configuration
type TracingConfig struct {
	Enabled       bool
	ServiceName   string
	Environment   string
	Exporter      string  // jaeger, otlp, stdout
	JaegerURL     string  // e.g., http://localhost:14268/api/traces
	OTLPEndpoint  string  // e.g., localhost:4317
	SamplingRatio float64 // 0.0 to 1.0
}

// Tracer wraps OpenTelemetry tracer
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	config   TracingConfig
}

// SpanKind represents the type of span
type SpanKind string

const (
	SpanKindPipeline  SpanKind = "pipeline"
	SpanKindStep      SpanKind = "step"
	SpanKindLLM       SpanKind = "llm"
	SpanKindEmbedding SpanKind = "embedding"
	SpanKindStorage   SpanKind = "storage"
	SpanKindRouting   SpanKind = "routing"
	SpanKindKB        SpanKind = "knowledgebase"
	SpanKindQueue     SpanKind = "queue"
	SpanKindScheduler SpanKind = "scheduler"
)

// Common attribute keys
const (
	AttrTicketID     = "ticket.id"
	AttrTicketSource = "ticket.source"
	AttrTicketTier   = "ticket.tier"
	AttrCategory     = "ticket.category"
	AttrSentiment    = "ticket.sentiment"
	AttrPriority     = "ticket.priority"
	AttrAgentID      = "agent.id"
	AttrStepName     = "pipeline.step"
	AttrPipelineMode = "pipeline.mode"

	AttrLLMProvider         = "llm.provider"
	AttrLLMModel            = "llm.model"
	AttrLLMPromptTokens     = "llm.prompt_tokens"
	AttrLLMCompletionTokens = "llm.completion_tokens"
	AttrLLMTotalTokens      = "llm.total_tokens"
	AttrLLMCost             = "llm.cost"

	AttrStorageOperation = "storage.operation"
	AttrStorageTable     = "storage.table"

	AttrRoutingReason = "routing.reason"
	AttrRoutingScore  = "routing.score"

	AttrKBQueryLen = "kb.query_length"
	AttrKBHits     = "kb.hits"

	AttrJobID        = "queue.job_id"
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// NewTracer creates a new tracer instance
func NewTracer(config TracingConfig) (*Tracer, error) {
	if !config.Enabled {
		// Return a no-op tracer
		return &Tracer{
			tracer:   otel.Tracer("ticketflow-noop"),
			provider: nil,
			config:   config,
		}, nil
	}

	// Create exporter based on configuration
	var exporter sdktrace.SpanExporter
	var err error

	switch config.Exporter {
	case "jaeger":
		exporter, err = jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(config.JaegerURL)))
		if err != nil {
			return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
		}
	case "otlp":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(config.OTLPEndpoint),
			otlptracegrpc.WithInsecure(), // Use WithTLSCredentials() in production
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
	case "stdout":
		// For development: log to stdout
		exporter = &stdoutExporter{}
	default:
		return nil, fmt.Errorf("unknown exporter type: %s", config.Exporter)
	}

	// Create resource with service information
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String("1.0.0"),
			attribute.String("environment", config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// Create trace provider with sampling
	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SamplingRatio))

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	// Set as global provider
	otel.SetTracerProvider(provider)

	// Get tracer
	tracer := provider.Tracer("ticketflow-engine")

	return &Tracer{
		tracer:   tracer,
		provider: provider,
		config:   config,
	}, nil
}

// Close shuts down the tracer provider
func (t *Tracer) Close(ctx context.Context) error {
	if t.provider != nil {
		return t.provider.Shutdown(ctx)
	}
	return nil
}

// StartSpan starts a new span
func (t *Tracer) StartSpan(ctx context.Context, name string, kind SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	// Add span kind as attribute
	attrs = append(attrs, attribute.String("span.kind", string(kind)))

	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, span
}

// StartPipelineSpan starts the root span for one ticket's enrichment run
func (t *Tracer) StartPipelineSpan(ctx context.Context, ticketID, mode string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "pipeline.process", SpanKindPipeline,
		attribute.String(AttrTicketID, ticketID),
		attribute.String(AttrPipelineMode, mode),
	)
}

// StartStepSpan starts a span for a single pipeline step
func (t *Tracer) StartStepSpan(ctx context.Context, step, ticketID string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, fmt.Sprintf("pipeline.%s", step), SpanKindStep,
		attribute.String(AttrStepName, step),
		attribute.String(AttrTicketID, ticketID),
	)
}

// StartLLMSpan starts a span for an LLM API call
func (t *Tracer) StartLLMSpan(ctx context.Context, provider, model string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, fmt.Sprintf("llm.%s.%s", provider, model), SpanKindLLM,
		attribute.String(AttrLLMProvider, provider),
		attribute.String(AttrLLMModel, model),
	)
}

// RecordLLMTokens records token usage on an LLM span
func (t *Tracer) RecordLLMTokens(span trace.Span, promptTokens, completionTokens int, cost float64) {
	span.SetAttributes(
		attribute.Int(AttrLLMPromptTokens, promptTokens),
		attribute.Int(AttrLLMCompletionTokens, completionTokens),
		attribute.Int(AttrLLMTotalTokens, promptTokens+completionTokens),
		attribute.Float64(AttrLLMCost, cost),
	)
}

// StartStorageSpan starts a span for a storage operation
func (t *Tracer) StartStorageSpan(ctx context.Context, operation, table string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, fmt.Sprintf("storage.%s.%s", operation, table), SpanKindStorage,
		attribute.String(AttrStorageOperation, operation),
		attribute.String(AttrStorageTable, table),
	)
}

// StartRoutingSpan starts a span for a routing decision
func (t *Tracer) StartRoutingSpan(ctx context.Context, ticketID string, priority int) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "routing.route", SpanKindRouting,
		attribute.String(AttrTicketID, ticketID),
		attribute.Int(AttrPriority, priority),
	)
}

// RecordRoutingDecision records the decision outcome on a routing span
func (t *Tracer) RecordRoutingDecision(span trace.Span, agentID, reason string, score float64) {
	span.SetAttributes(
		attribute.String(AttrAgentID, agentID),
		attribute.String(AttrRoutingReason, reason),
		attribute.Float64(AttrRoutingScore, score),
	)
}

// StartKBSpan starts a span for a knowledge base lookup
func (t *Tracer) StartKBSpan(ctx context.Context, operation string, queryLen int) (context.Context, trace.Span) {
	return t.StartSpan(ctx, fmt.Sprintf("kb.%s", operation), SpanKindKB,
		attribute.Int(AttrKBQueryLen, queryLen),
	)
}

// StartQueueSpan starts a span for a queue operation
func (t *Tracer) StartQueueSpan(ctx context.Context, operation, jobID string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, fmt.Sprintf("queue.%s", operation), SpanKindQueue,
		attribute.String("operation", operation),
		attribute.String(AttrJobID, jobID),
	)
}

// RecordError records an error on a span
func (t *Tracer) RecordError(span trace.Span, err error, errorType string) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		span.SetAttributes(
			attribute.String(AttrErrorType, errorType),
			attribute.String(AttrErrorMessage, err.Error()),
		)
	}
}

// EndSpan ends a span with optional error
func (t *Tracer) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddEvent adds an event to a span
func (t *Tracer) AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// GetTraceID extracts the trace ID from context
func (t *Tracer) GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}

// GetSpanID extracts the span ID from context
func (t *Tracer) GetSpanID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasSpanID() {
		return span.SpanContext().SpanID().String()
	}
	return ""
}

// InjectTraceContext injects trace context into a new context
func (t *Tracer) InjectTraceContext(ctx context.Context) context.Context {
	traceID := t.GetTraceID(ctx)
	spanID := t.GetSpanID(ctx)

	if traceID != "" {
		ctx = context.WithValue(ctx, TraceIDKey, traceID)
	}
	if spanID != "" {
		ctx = context.WithValue(ctx, SpanIDKey, spanID)
	}

	return ctx
}

// stdout exporter for development
type stdoutExporter struct{}

func (e *stdoutExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		fmt.Printf("[TRACE] %s | %s | %v | %v\n",
			span.Name(),
			span.SpanContext().TraceID().String(),
			span.StartTime(),
			span.EndTime().Sub(span.StartTime()),
		)
	}
	return nil
}

func (e *stdoutExporter) Shutdown(ctx context.Context) error {
	return nil
}

type contextKey string

// Context keys for injected trace identifiers
const (
	TraceIDKey contextKey = "trace_id"
	SpanIDKey  contextKey = "span_id"
)

// Global tracer instance
var globalTracer *Tracer

// InitGlobalTracer initializes the global tracer
func InitGlobalTracer(config TracingConfig) error {
	tracer, err := NewTracer(config)
	if err != nil {
		return err
	}
	globalTracer = tracer
	return nil
}

// GetTracer returns the global tracer
func GetTracer() *Tracer {
	if globalTracer == nil {
		// Fallback to no-op tracer
		_ = InitGlobalTracer(TracingConfig{
			Enabled:     false,
			ServiceName: "ticketflow",
			Environment: "development",
		})
	}
	return globalTracer
}

// ShutdownTracer shuts down the global tracer
func ShutdownTracer(ctx context.Context) error {
	if globalTracer != nil {
		return globalTracer.Close(ctx)
	}
	return nil
}

// Convenience functions using global tracer

// StartSpan starts a span using global tracer
func StartSpan(ctx context.Context, name string, kind SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return GetTracer().StartSpan(ctx, name, kind, attrs...)
}

// StartPipelineSpan starts a pipeline span using global tracer
func StartPipelineSpan(ctx context.Context, ticketID, mode string) (context.Context, trace.Span) {
	return GetTracer().StartPipelineSpan(ctx, ticketID, mode)
}

// StartStepSpan starts a step span using global tracer
func StartStepSpan(ctx context.Context, step, ticketID string) (context.Context, trace.Span) {
	return GetTracer().StartStepSpan(ctx, step, ticketID)
}

// StartLLMSpan starts an LLM span using global tracer
func StartLLMSpan(ctx context.Context, provider, model string) (context.Context, trace.Span) {
	return GetTracer().StartLLMSpan(ctx, provider, model)
}

// RecordError records an error using global tracer
func RecordError(span trace.Span, err error, errorType string) {
	GetTracer().RecordError(span, err, errorType)
}

// EndSpan ends a span using global tracer
func EndSpan(span trace.Span, err error) {
	GetTracer().EndSpan(span, err)
}
