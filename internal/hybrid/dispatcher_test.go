package hybrid

import (
	"context"
	"errors"
	"testing"
)

type fakeProvider struct {
	name      string
	priority  int
	available bool
	result    any
	err       error
	calls     int
}

func (p *fakeProvider) Name() string    { return p.name }
func (p *fakeProvider) Priority() int   { return p.priority }
func (p *fakeProvider) Available() bool { return p.available }
func (p *fakeProvider) Invoke(ctx context.Context, req Request) (any, error) {
	p.calls++
	return p.result, p.err
}

func okResult(content string) map[string]any {
	return map[string]any{"content": content}
}

func TestDispatchEarlyExit(t *testing.T) {
	p1 := &fakeProvider{name: "primary", priority: 1, available: true, result: okResult("answer")}
	p2 := &fakeProvider{name: "secondary", priority: 2, available: true, result: okResult("other")}
	d := NewDispatcher(p1, p2)

	resp := d.Dispatch(context.Background(), Request{Prompt: "hi", Type: TypeGeneral})
	if !resp.Success {
		t.Fatalf("success = false: %+v", resp)
	}
	if len(resp.Attempts) != 1 || resp.Attempts[0].Provider != "primary" {
		t.Fatalf("attempts = %+v, want single primary attempt", resp.Attempts)
	}
	if p2.calls != 0 {
		t.Fatalf("secondary invoked %d times after threshold cleared", p2.calls)
	}
	if resp.Provider != "primary" || resp.Score < DefaultMinimumScore {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestDispatchRetryBudget(t *testing.T) {
	p1 := &fakeProvider{name: "primary", priority: 1, available: true, err: errors.New("upstream 503")}
	p2 := &fakeProvider{name: "secondary", priority: 2, available: true, result: okResult("healthy")}
	d := NewDispatcher(p1, p2)

	resp := d.Dispatch(context.Background(), Request{Type: TypeGeneral, MaxRetries: 1})
	if resp.Success {
		t.Fatalf("success = true with exhausted budget: %+v", resp)
	}
	if len(resp.Attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(resp.Attempts))
	}
	attempt := resp.Attempts[0]
	if attempt.Success || attempt.Error != "upstream 503" {
		t.Fatalf("attempt = %+v", attempt)
	}
	if p2.calls != 0 {
		t.Fatal("secondary tried beyond the retry budget")
	}
	if resp.Score != 0 {
		t.Fatalf("score = %v, want 0", resp.Score)
	}
}

func TestDispatchBestOfAttempts(t *testing.T) {
	p1 := &fakeProvider{name: "primary", priority: 1, available: true, result: map[string]any{"status": "partial"}}
	p2 := &fakeProvider{name: "secondary", priority: 2, available: true, result: okResult("full answer")}
	d := NewDispatcher(p1, p2)

	// neither 0.3 nor 0.9 clears 0.95, so both are tried and the
	// higher-scoring later attempt wins
	resp := d.Dispatch(context.Background(), Request{Type: TypeGeneral, MaxRetries: 2, MinimumScore: 0.95})
	if !resp.Success {
		t.Fatalf("success = false: %+v", resp)
	}
	if len(resp.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(resp.Attempts))
	}
	if resp.Provider != "secondary" {
		t.Fatalf("chosen provider = %q, want secondary", resp.Provider)
	}
	if resp.Score != 0.9 {
		t.Fatalf("score = %v", resp.Score)
	}
}

func TestDispatchOrdersByPriority(t *testing.T) {
	high := &fakeProvider{name: "later", priority: 9, available: true, result: okResult("x")}
	low := &fakeProvider{name: "first", priority: 1, available: true, err: errors.New("down")}
	d := NewDispatcher(high, low)

	resp := d.Dispatch(context.Background(), Request{Type: TypeGeneral})
	if len(resp.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(resp.Attempts))
	}
	if resp.Attempts[0].Provider != "first" || resp.Attempts[1].Provider != "later" {
		t.Fatalf("attempt order = %+v", resp.Attempts)
	}
}

func TestDispatchSkipsUnavailableProviders(t *testing.T) {
	offline := &fakeProvider{name: "offline", priority: 1, available: false, result: okResult("x")}
	online := &fakeProvider{name: "online", priority: 2, available: true, result: okResult("y")}
	d := NewDispatcher(offline, online)

	resp := d.Dispatch(context.Background(), Request{Type: TypeGeneral})
	if offline.calls != 0 {
		t.Fatal("unavailable provider was invoked")
	}
	if !resp.Success || resp.Provider != "online" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestDispatchAllFailedNeverErrors(t *testing.T) {
	p1 := &fakeProvider{name: "a", priority: 1, available: true, err: errors.New("timeout")}
	p2 := &fakeProvider{name: "b", priority: 2, available: true, err: errors.New("bad gateway")}
	d := NewDispatcher(p1, p2)

	resp := d.Dispatch(context.Background(), Request{Type: TypeGeneral})
	if resp.Success {
		t.Fatalf("success = true: %+v", resp)
	}
	if len(resp.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(resp.Attempts))
	}
	for i, attempt := range resp.Attempts {
		if attempt.Success || attempt.Error == "" {
			t.Fatalf("attempt %d = %+v, want recorded failure", i, attempt)
		}
	}
}

func TestDefaultValidator(t *testing.T) {
	cases := []struct {
		name   string
		result any
		want   float64
	}{
		{"content present", okResult("hello"), 0.9},
		{"plain string", "hello", 0.9},
		{"explicit error field", map[string]any{"error": "boom"}, 0.1},
		{"error status", map[string]any{"status": "error"}, 0.1},
		{"empty content", okResult("   "), 0.3},
		{"empty map", map[string]any{}, 0.3},
		{"nil", nil, 0.3},
		{"empty error string is not an error", map[string]any{"error": "", "content": "ok"}, 0.9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DefaultValidator(tc.result); got != tc.want {
				t.Fatalf("score = %v, want %v", got, tc.want)
			}
		})
	}
}
