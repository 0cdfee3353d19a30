package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ticketflow/engine/observability"
	"github.com/ticketflow/engine/resilience"
)

// InstrumentedProvider wraps a Provider with metrics, tracing, and cost
// tracking. The stage labels which pipeline component owns the calls made
// through this wrapper (classify, sentiment, kb_generate), so each stage
// gets its own instrumented handle on the shared underlying client.
type InstrumentedProvider struct {
	inner Provider
	stage string
	obs   *observability.Observability
}

// NewInstrumented wraps provider for the given stage. A nil obs falls back
// to the process-wide collectors, which are no-ops unless enabled.
func NewInstrumented(provider Provider, stage string, obs *observability.Observability) *InstrumentedProvider {
	return &InstrumentedProvider{inner: provider, stage: stage, obs: obs}
}

func (p *InstrumentedProvider) Name() string {
	return p.inner.Name()
}

func (p *InstrumentedProvider) GenerateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	ctx, span := observability.StartLLMSpan(ctx, p.inner.Name(), req.Model)

	start := time.Now()
	resp, err := p.inner.GenerateCompletion(ctx, req)
	duration := time.Since(start)

	tokens := 0
	if resp != nil {
		tokens = resp.TokensUsed
	}
	p.record(ctx, span, req.Model, duration, tokens, err)
	return resp, err
}

func (p *InstrumentedProvider) GenerateChat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	ctx, span := observability.StartLLMSpan(ctx, p.inner.Name(), req.Model)

	start := time.Now()
	resp, err := p.inner.GenerateChat(ctx, req)
	duration := time.Since(start)

	tokens := 0
	if resp != nil {
		tokens = resp.TokensUsed
	}
	p.record(ctx, span, req.Model, duration, tokens, err)
	return resp, err
}

// record books one call's latency, token usage, and cost. Providers report
// only a total token count, so usage lands under the completion bucket.
func (p *InstrumentedProvider) record(ctx context.Context, span trace.Span, model string, duration time.Duration, tokens int, err error) {
	obs := p.obs
	if obs != nil {
		cost := obs.CostTracker.RecordCost(ctx, p.stage, "", p.inner.Name(), model, 0, tokens)
		obs.Metrics.RecordLLMRequest(p.inner.Name(), model, duration, 0, tokens, cost, err)
		obs.Tracer.RecordLLMTokens(span, 0, tokens, cost)
		obs.Tracer.EndSpan(span, err)
		return
	}

	cost := observability.GetCostTracker().RecordCost(ctx, p.stage, "", p.inner.Name(), model, 0, tokens)
	observability.GetMetrics().RecordLLMRequest(p.inner.Name(), model, duration, 0, tokens, cost, err)
	observability.GetTracer().RecordLLMTokens(span, 0, tokens, cost)
	observability.EndSpan(span, err)
}

// ResilientProvider wraps a Provider with a circuit breaker, an optional
// rate limiter, and a per-call timeout. It sits between the pipeline's
// retry loops and the raw HTTP client: retries stay with the caller, while
// sustained provider outages trip the breaker and fail fast instead of
// burning the per-ticket deadline on doomed attempts.
type ResilientProvider struct {
	inner   Provider
	breaker *resilience.CircuitBreaker
	limiter resilience.RateLimiter
	timeout time.Duration
}

// ResilientConfig tunes the ResilientProvider. A nil Limiter disables rate
// limiting. The circuit breaker is always on: a zero FailureThreshold or
// OpenDuration takes the breaker's defaults (5 failures, 30 seconds). A zero
// Timeout defaults to 30 seconds.
type ResilientConfig struct {
	Timeout          time.Duration
	FailureThreshold int
	OpenDuration     time.Duration
	Limiter          resilience.RateLimiter
}

// NewResilient wraps provider with the configured guards.
func NewResilient(provider Provider, cfg ResilientConfig) *ResilientProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             provider.Name(),
		FailureThreshold: cfg.FailureThreshold,
		Timeout:          cfg.OpenDuration,
	})
	return &ResilientProvider{
		inner:   provider,
		breaker: breaker,
		limiter: cfg.Limiter,
		timeout: cfg.Timeout,
	}
}

func (p *ResilientProvider) Name() string {
	return p.inner.Name()
}

// BreakerState exposes the current circuit state for health checks.
func (p *ResilientProvider) BreakerState() resilience.CircuitState {
	return p.breaker.State()
}

func (p *ResilientProvider) GenerateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	return resilience.DoWithResult(ctx, p.limiter, p.breaker, func(ctx context.Context) (*CompletionResponse, error) {
		return resilience.WithTimeoutResult(ctx, p.timeout, func(ctx context.Context) (*CompletionResponse, error) {
			return p.inner.GenerateCompletion(ctx, req)
		})
	})
}

func (p *ResilientProvider) GenerateChat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return resilience.DoWithResult(ctx, p.limiter, p.breaker, func(ctx context.Context) (*ChatResponse, error) {
		return resilience.WithTimeoutResult(ctx, p.timeout, func(ctx context.Context) (*ChatResponse, error) {
			return p.inner.GenerateChat(ctx, req)
		})
	})
}
