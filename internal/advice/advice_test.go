package advice

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"pocketpilot/internal/core"
)

func TestConsult(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name     string
		gen      Generator
		wantKind Kind
		wantText string
	}{
		{"nil generator", nil, Unavailable, ""},
		{"unconfigured", Unconfigured{}, Unavailable, ""},
		{"wrapped unavailable", GeneratorFunc(func(context.Context, string) (string, error) {
			return "", &GeneratorError{Provider: "x", Err: ErrUnavailable}
		}), Unavailable, ""},
		{"failure", GeneratorFunc(func(context.Context, string) (string, error) { return "", boom }), Failed, ""},
		{"blank", GeneratorFunc(func(context.Context, string) (string, error) { return " \n\t", nil }), Failed, ""},
		{"generated", GeneratorFunc(func(context.Context, string) (string, error) { return "Do X.", nil }), Generated, "Do X."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Consult(context.Background(), tt.gen, "prompt")
			if got.Kind != tt.wantKind || got.Text != tt.wantText {
				t.Fatalf("Consult() = %+v, want kind %v text %q", got, tt.wantKind, tt.wantText)
			}
			if got.Kind != Generated && got.Reason == "" {
				t.Fatalf("expected a reason for %v", got.Kind)
			}
		})
	}
}

func TestNamedWrapsErrors(t *testing.T) {
	boom := errors.New("boom")
	g := Named(ProviderOllama, GeneratorFunc(func(context.Context, string) (string, error) { return "", boom }))

	_, err := g.Generate(context.Background(), "p")
	var ge *GeneratorError
	if !errors.As(err, &ge) || ge.Provider != ProviderOllama || !errors.Is(err, boom) {
		t.Fatalf("expected GeneratorError wrapping boom, got %v", err)
	}
	if ProviderOf(g) != ProviderOllama {
		t.Fatalf("ProviderOf = %q", ProviderOf(g))
	}

	unavailable := Named(ProviderGemini, Unconfigured{})
	if _, err := unavailable.Generate(context.Background(), "p"); err != ErrUnavailable {
		t.Fatalf("expected bare ErrUnavailable, got %v", err)
	}
}

type noDelay struct{}

func (noDelay) Delay(int) time.Duration { return 0 }

func TestWithRetry(t *testing.T) {
	var calls atomic.Int32
	flaky := GeneratorFunc(func(context.Context, string) (string, error) {
		if calls.Add(1) < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})

	text, err := WithRetry(flaky, 2, noDelay{}).Generate(context.Background(), "p")
	if err != nil || text != "ok" {
		t.Fatalf("got %q, %v", text, err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}

	calls.Store(0)
	_, err = WithRetry(flaky, 1, noDelay{}).Generate(context.Background(), "p")
	if err == nil || calls.Load() != 2 {
		t.Fatalf("expected failure after 2 calls, got %v after %d", err, calls.Load())
	}
}

func TestWithRetrySkipsUnavailable(t *testing.T) {
	var calls atomic.Int32
	g := GeneratorFunc(func(context.Context, string) (string, error) {
		calls.Add(1)
		return "", ErrUnavailable
	})
	_, err := WithRetry(g, 5, noDelay{}).Generate(context.Background(), "p")
	if !errors.Is(err, ErrUnavailable) || calls.Load() != 1 {
		t.Fatalf("expected single call, got %d (%v)", calls.Load(), err)
	}
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	g := GeneratorFunc(func(context.Context, string) (string, error) {
		calls.Add(1)
		cancel()
		return "", errors.New("transient")
	})
	if _, err := WithRetry(g, 5, noDelay{}).Generate(ctx, "p"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestWithTimeout(t *testing.T) {
	slow := GeneratorFunc(func(ctx context.Context, _ string) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
			return "late", nil
		}
	})
	start := time.Now()
	_, err := WithTimeout(slow, 10*time.Millisecond).Generate(context.Background(), "p")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("timeout not applied")
	}
	if WithTimeout(slow, 0) == nil {
		t.Fatal("zero timeout must return the generator")
	}
}

func TestExponentialWithJitterBounds(t *testing.T) {
	s := ExponentialWithJitter{Initial: 100 * time.Millisecond, Max: 300 * time.Millisecond}
	for attempt := 1; attempt <= 6; attempt++ {
		limit := 100 * time.Millisecond << (attempt - 1)
		if limit > 300*time.Millisecond {
			limit = 300 * time.Millisecond
		}
		for i := 0; i < 20; i++ {
			if d := s.Delay(attempt); d < 0 || d > limit {
				t.Fatalf("Delay(%d) = %v, limit %v", attempt, d, limit)
			}
		}
	}
}

func TestNewFromConfig(t *testing.T) {
	tests := []struct {
		name         string
		cfg          Config
		wantProvider string
		wantErr      bool
	}{
		{"mock", Config{Provider: "mock"}, ProviderMock, false},
		{"gemini without key", Config{Provider: "gemini"}, ProviderMock, false},
		{"gemini placeholder", Config{GoogleAPIKey: "your_google_api_key_here"}, ProviderMock, false},
		{"ollama", Config{Provider: "Ollama", MaxRetries: 2, Timeout: time.Second}, ProviderOllama, false},
		{"unknown", Config{Provider: "openai"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewFromConfig(context.Background(), tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && ProviderOf(g) != tt.wantProvider {
				t.Fatalf("provider = %q, want %q", ProviderOf(g), tt.wantProvider)
			}
		})
	}
}

func TestPrompts(t *testing.T) {
	s := core.NewFinanceState(2000, core.NewExpenses(
		core.ExpenseItem{Category: "rent", Amount: 1800},
		core.ExpenseItem{Category: "food", Amount: 500},
	), "pay debt")
	s.Savings = -300

	p := OverspendingPrompt(s)
	for _, want := range []string{"overspending by $300", "Monthly Income: $2,000", "rent: $1,800, food: $500", "Goal: pay debt", "3 realistic"} {
		if !strings.Contains(p, want) {
			t.Errorf("overspending prompt missing %q:\n%s", want, p)
		}
	}

	s.Savings = 1500
	p = SavingsPlanPrompt(s)
	for _, want := range []string{"User has $1,500", "achieve their goal: pay debt", "Do NOT provide investment or trading advice"} {
		if !strings.Contains(p, want) {
			t.Errorf("savings prompt missing %q:\n%s", want, p)
		}
	}

	if !strings.Contains(SavingsPlanPrompt(core.NewFinanceState(0, core.Expenses{}, "")), "Monthly Expenses: none") {
		t.Error("empty breakdown should read none")
	}
}
