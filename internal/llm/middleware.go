package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Middleware decorates a Provider with a cross-cutting concern
type Middleware func(Provider) Provider

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner Provider, mws ...Middleware) Provider {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// providerFunc is one link of a middleware chain
type providerFunc struct {
	next     Provider
	complete func(ctx context.Context, req Request) (*Response, error)
}

func (p *providerFunc) Name() string                         { return p.next.Name() }
func (p *providerFunc) IsAvailable(ctx context.Context) bool { return p.next.IsAvailable(ctx) }
func (p *providerFunc) Complete(ctx context.Context, req Request) (*Response, error) {
	return p.complete(ctx, req)
}

// -------- Retry --------

// sleepFunc waits between attempts; tests replace it
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry repeats failed calls up to attempts times with exponential backoff
// (base, 2*base, 4*base...). When the budget is spent, or the failure is
// permanent, the last error is returned as an *UnavailableError for stage.
func Retry(stage string, attempts int, base time.Duration) Middleware {
	if attempts < 1 {
		attempts = 1
	}
	return func(next Provider) Provider {
		return &providerFunc{next: next, complete: func(ctx context.Context, req Request) (*Response, error) {
			var lastErr error
			made := 0
			for attempt := 0; attempt < attempts; attempt++ {
				if attempt > 0 {
					if err := sleepFunc(ctx, base*time.Duration(1<<(attempt-1))); err != nil {
						break
					}
				}
				made++
				resp, err := next.Complete(ctx, req)
				if err == nil {
					return resp, nil
				}
				lastErr = err
				if ctx.Err() != nil || !IsRetryable(err) {
					break
				}
			}
			if ctx.Err() != nil && lastErr == nil {
				lastErr = ctx.Err()
			}
			return nil, &UnavailableError{Stage: stage, Attempts: made, Err: lastErr}
		}}
	}
}

// -------- Timeout --------

// Timeout bounds each call; a zero duration disables it
func Timeout(d time.Duration) Middleware {
	return func(next Provider) Provider {
		if d <= 0 {
			return next
		}
		return &providerFunc{next: next, complete: func(ctx context.Context, req Request) (*Response, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next.Complete(ctx, req)
		}}
	}
}

// -------- Concurrency --------

// InFlight is a semaphore shared by every provider chain it is applied to,
// so that separate per-stage chains respect one global cap.
type InFlight struct {
	slots chan struct{}
}

// NewInFlight creates a cap of n concurrent calls (n <= 0 means unlimited)
func NewInFlight(n int) *InFlight {
	if n <= 0 {
		return &InFlight{}
	}
	return &InFlight{slots: make(chan struct{}, n)}
}

// Middleware returns the limiting link
func (f *InFlight) Middleware() Middleware {
	return func(next Provider) Provider {
		if f.slots == nil {
			return next
		}
		return &providerFunc{next: next, complete: func(ctx context.Context, req Request) (*Response, error) {
			select {
			case f.slots <- struct{}{}:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			defer func() { <-f.slots }()
			return next.Complete(ctx, req)
		}}
	}
}

// -------- Rate Limiting --------

// RateLimit applies a token bucket. If rps <= 0 the limiter is disabled.
// Every chain the returned middleware is applied to draws from the same bucket.
func RateLimit(rps float64, burst int) Middleware {
	if burst < 1 {
		burst = 1
	}
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return func(next Provider) Provider {
		if limiter == nil {
			return next
		}
		return &providerFunc{next: next, complete: func(ctx context.Context, req Request) (*Response, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return next.Complete(ctx, req)
		}}
	}
}

// -------- Logging --------

// WithLogging logs each call with its duration and outcome
func WithLogging(logger *slog.Logger, stage string) Middleware {
	return func(next Provider) Provider {
		if logger == nil {
			return next
		}
		return &providerFunc{next: next, complete: func(ctx context.Context, req Request) (*Response, error) {
			start := time.Now()
			logger.Debug("llm request", "stage", stage, "provider", next.Name(), "prompt_bytes", len(req.Prompt))
			resp, err := next.Complete(ctx, req)
			elapsed := time.Since(start)
			if err != nil {
				level := slog.LevelWarn
				var unavailable *UnavailableError
				if errors.As(err, &unavailable) {
					level = slog.LevelError
				}
				logger.Log(ctx, level, "llm request failed", "stage", stage, "provider", next.Name(),
					"duration", elapsed, "error", err)
				return nil, err
			}
			logger.Debug("llm response", "stage", stage, "provider", next.Name(), "model", resp.Model,
				"tokens", resp.TokensUsed, "duration", elapsed)
			return resp, nil
		}}
	}
}

// -------- Observation --------

// Observer receives the outcome of every call. Used for metrics.
type Observer func(stage string, elapsed time.Duration, resp *Response, err error)

// Observe reports each call to fn
func Observe(stage string, fn Observer) Middleware {
	return func(next Provider) Provider {
		if fn == nil {
			return next
		}
		return &providerFunc{next: next, complete: func(ctx context.Context, req Request) (*Response, error) {
			start := time.Now()
			resp, err := next.Complete(ctx, req)
			fn(stage, time.Since(start), resp, err)
			return resp, err
		}}
	}
}
