package domain

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type stubEmbedder struct {
	result    EmbeddingResult
	err       error
	got       string
	healthErr error
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.got = text
	return s.result, s.err
}

func (s *stubEmbedder) HealthCheck(_ context.Context) error { return s.healthErr }

func TestInstructionEmbedder_PrependsInstruction(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	emb := NewInstructionEmbedder(inner, "query: ")

	result, err := emb.Embed(context.Background(), "handwoven scarf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.got != "query: handwoven scarf" {
		t.Errorf("expected prepended text, got %q", inner.got)
	}
	if len(result.Embedding) != 3 {
		t.Errorf("expected 3-element vector, got %d", len(result.Embedding))
	}
}

func TestInstructionEmbedder_ErrorPropagation(t *testing.T) {
	innerErr := errors.New("provider down")
	emb := NewInstructionEmbedder(&stubEmbedder{err: innerErr}, "query: ")

	_, err := emb.Embed(context.Background(), "hello")
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestInstructionEmbedder_HealthCheckDelegates(t *testing.T) {
	down := errors.New("down")
	emb := NewInstructionEmbedder(&stubEmbedder{healthErr: down}, "")
	if err := emb.HealthCheck(context.Background()); !errors.Is(err, down) {
		t.Errorf("HealthCheck = %v, want %v", err, down)
	}
}

func TestEmbeddingUsage_ConcurrentAdds(t *testing.T) {
	ctx, usage := NewContextWithUsage(context.Background())
	if UsageFromContext(ctx) != usage {
		t.Fatal("usage not stored in context")
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			UsageFromContext(ctx).AddTokens(3)
		}()
	}
	wg.Wait()

	tokens, calls := usage.Totals()
	if tokens != 30 || calls != 10 {
		t.Errorf("Totals() = %d, %d; want 30, 10", tokens, calls)
	}
}

func TestEmbeddingUsage_NilSafe(t *testing.T) {
	var u *EmbeddingUsage
	u.AddTokens(5)
	if tokens, calls := u.Totals(); tokens != 0 || calls != 0 {
		t.Error("nil usage should report zero")
	}
	if UsageFromContext(context.Background()) != nil {
		t.Error("expected nil usage for bare context")
	}
}

func TestClockFunc(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var c Clock = ClockFunc(func() time.Time { return fixed })
	if !c.Now().Equal(fixed) {
		t.Errorf("Now() = %v", c.Now())
	}
}
