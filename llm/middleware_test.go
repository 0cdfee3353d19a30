package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ticketflow/engine/resilience"
)

type stubProvider struct {
	err   error
	delay time.Duration
	calls int
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) GenerateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	p.calls++
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return &CompletionResponse{Text: "ok", TokensUsed: 7, Model: req.Model}, nil
}

func (p *stubProvider) GenerateChat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &ChatResponse{Message: Message{Role: "assistant", Content: "ok"}, TokensUsed: 7, Model: req.Model}, nil
}

func TestResilientProvider(t *testing.T) {
	t.Run("passes through success", func(t *testing.T) {
		stub := &stubProvider{}
		p := NewResilient(stub, ResilientConfig{})

		resp, err := p.GenerateCompletion(context.Background(), &CompletionRequest{Model: "m", UserPrompt: "hi"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Text != "ok" || resp.TokensUsed != 7 {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("breaker opens after threshold", func(t *testing.T) {
		stub := &stubProvider{err: errors.New("provider down")}
		p := NewResilient(stub, ResilientConfig{FailureThreshold: 3, OpenDuration: time.Minute})

		for i := 0; i < 3; i++ {
			if _, err := p.GenerateCompletion(context.Background(), &CompletionRequest{Model: "m", UserPrompt: "hi"}); err == nil {
				t.Fatal("expected provider error")
			}
		}

		if got := p.BreakerState(); got != resilience.StateOpen {
			t.Fatalf("expected open breaker, got %v", got)
		}

		callsBefore := stub.calls
		_, err := p.GenerateCompletion(context.Background(), &CompletionRequest{Model: "m", UserPrompt: "hi"})
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			t.Errorf("expected ErrCircuitOpen, got %v", err)
		}
		if stub.calls != callsBefore {
			t.Error("open breaker must not reach the underlying provider")
		}
	})

	t.Run("timeout cuts slow calls", func(t *testing.T) {
		stub := &stubProvider{delay: 200 * time.Millisecond}
		p := NewResilient(stub, ResilientConfig{Timeout: 20 * time.Millisecond})

		_, err := p.GenerateCompletion(context.Background(), &CompletionRequest{Model: "m", UserPrompt: "hi"})
		if err == nil {
			t.Fatal("expected timeout error")
		}
	})

	t.Run("name is delegated", func(t *testing.T) {
		p := NewResilient(&stubProvider{}, ResilientConfig{})
		if p.Name() != "stub" {
			t.Errorf("expected delegated name, got %q", p.Name())
		}
	})
}

func TestInstrumentedProvider(t *testing.T) {
	t.Run("passes responses and errors through", func(t *testing.T) {
		stub := &stubProvider{}
		p := NewInstrumented(stub, "classify", nil)

		resp, err := p.GenerateCompletion(context.Background(), &CompletionRequest{Model: "m", UserPrompt: "hi"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.TokensUsed != 7 {
			t.Errorf("expected token count preserved, got %d", resp.TokensUsed)
		}

		failing := NewInstrumented(&stubProvider{err: errors.New("boom")}, "classify", nil)
		if _, err := failing.GenerateChat(context.Background(), &ChatRequest{Model: "m", Messages: []Message{{Role: "user", Content: "hi"}}}); err == nil {
			t.Fatal("expected error passed through")
		}
	})
}
