package advice

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	Delay(attempt int) time.Duration
}

// ExponentialWithJitter applies full jitter to an exponential base.
// Delay = random value in [0, min(Initial * 2^(attempt-1), Max)].
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

func (e ExponentialWithJitter) Delay(attempt int) time.Duration {
	base := float64(e.Initial) * math.Pow(2, float64(attempt-1))
	if e.Max > 0 && base > float64(e.Max) {
		base = float64(e.Max)
	}
	return time.Duration(rand.Float64() * base) //nolint:gosec // jitter does not need crypto rand
}

const (
	defaultInitialDelay = 500 * time.Millisecond
	defaultMaxDelay     = 5 * time.Second
)

// DefaultStrategy is 500ms initial, 5s max, full jitter.
func DefaultStrategy() Strategy {
	return ExponentialWithJitter{Initial: defaultInitialDelay, Max: defaultMaxDelay}
}

// WorstCase bounds one consultation through WithTimeout and WithRetry with
// DefaultStrategy: every attempt times out and every wait is the longest.
func WorstCase(timeout time.Duration, retries int) time.Duration {
	if retries < 0 {
		retries = 0
	}
	return time.Duration(retries+1)*timeout + time.Duration(retries)*defaultMaxDelay
}

type retrying struct {
	next     Generator
	retries  int
	strategy Strategy
}

// WithRetry retries failed calls up to retries more times. ErrUnavailable
// and context cancellation are returned immediately.
func WithRetry(g Generator, retries int, strategy Strategy) Generator {
	if retries <= 0 {
		return g
	}
	if strategy == nil {
		strategy = DefaultStrategy()
	}
	return &retrying{next: g, retries: retries, strategy: strategy}
}

func (r *retrying) Generate(ctx context.Context, prompt string) (string, error) {
	var (
		text string
		err  error
	)
	for attempt := 0; ; attempt++ {
		text, err = r.next.Generate(ctx, prompt)
		if err == nil || errors.Is(err, ErrUnavailable) || ctx.Err() != nil || attempt >= r.retries {
			return text, err
		}

		timer := time.NewTimer(r.strategy.Delay(attempt + 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", err
		case <-timer.C:
		}
	}
}

func (r *retrying) Provider() string {
	return ProviderOf(r.next)
}

type timeout struct {
	next Generator
	d    time.Duration
}

// WithTimeout bounds every call to g by d. A non-positive d disables it.
func WithTimeout(g Generator, d time.Duration) Generator {
	if d <= 0 {
		return g
	}
	return &timeout{next: g, d: d}
}

func (t *timeout) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.Generate(ctx, prompt)
}

func (t *timeout) Provider() string {
	return ProviderOf(t.next)
}
