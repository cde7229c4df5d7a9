package llm

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider answers from a function and counts calls
type stubProvider struct {
	calls atomic.Int32
	fn    func(call int) (*Response, error)
}

func (s *stubProvider) Name() string                         { return "stub" }
func (s *stubProvider) IsAvailable(ctx context.Context) bool { return true }
func (s *stubProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	n := int(s.calls.Add(1))
	return s.fn(n)
}

func noSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var delays []time.Duration
	orig := sleepFunc
	sleepFunc = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	t.Cleanup(func() { sleepFunc = orig })
	return &delays
}

func TestWrapOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next Provider) Provider {
			return &providerFunc{next: next, complete: func(ctx context.Context, req Request) (*Response, error) {
				order = append(order, name)
				return next.Complete(ctx, req)
			}}
		}
	}
	inner := &stubProvider{fn: func(int) (*Response, error) { return &Response{Text: "ok"}, nil }}

	p := Wrap(inner, mark("A"), mark("B"))
	_, err := p.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, order)
	assert.Equal(t, "stub", p.Name())
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	delays := noSleep(t)
	inner := &stubProvider{fn: func(call int) (*Response, error) {
		if call < 3 {
			return nil, &StatusError{Provider: "stub", StatusCode: http.StatusServiceUnavailable, Message: "busy"}
		}
		return &Response{Text: "done"}, nil
	}}

	p := Wrap(inner, Retry("generation", 3, time.Second))
	resp, err := p.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Text)
	assert.EqualValues(t, 3, inner.calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *delays)
}

func TestRetry_ExhaustedReturnsUnavailable(t *testing.T) {
	noSleep(t)
	boom := errors.New("connection refused")
	inner := &stubProvider{fn: func(int) (*Response, error) { return nil, boom }}

	p := Wrap(inner, Retry("verification", 3, 10*time.Millisecond))
	_, err := p.Complete(context.Background(), Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.ErrorIs(t, err, boom)

	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "verification", unavailable.Stage)
	assert.Equal(t, 3, unavailable.Attempts)
	assert.EqualValues(t, 3, inner.calls.Load())
}

func TestRetry_PermanentErrorStopsEarly(t *testing.T) {
	noSleep(t)
	inner := &stubProvider{fn: func(int) (*Response, error) {
		return nil, &StatusError{Provider: "stub", StatusCode: http.StatusUnauthorized, Message: "bad key"}
	}}

	p := Wrap(inner, Retry("extraction", 5, time.Second))
	_, err := p.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.EqualValues(t, 1, inner.calls.Load())
}

func TestRetry_CancelledContextStops(t *testing.T) {
	noSleep(t)
	ctx, cancel := context.WithCancel(context.Background())
	inner := &stubProvider{fn: func(int) (*Response, error) {
		cancel()
		return nil, errors.New("interrupted")
	}}

	p := Wrap(inner, Retry("generation", 3, time.Second))
	_, err := p.Complete(ctx, Request{})
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.EqualValues(t, 1, inner.calls.Load())
}

func TestTimeout(t *testing.T) {
	inner := &stubProvider{}
	blocking := Wrap(&blockingProvider{}, Timeout(20*time.Millisecond))
	_, err := blocking.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Zero disables the timeout link entirely
	assert.Same(t, Provider(inner), Timeout(0)(inner))
}

type blockingProvider struct{}

func (blockingProvider) Name() string                         { return "blocking" }
func (blockingProvider) IsAvailable(ctx context.Context) bool { return true }
func (blockingProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestInFlight_CapsConcurrency(t *testing.T) {
	var current, peak atomic.Int32
	inner := &stubProvider{fn: func(int) (*Response, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		current.Add(-1)
		return &Response{}, nil
	}}

	guard := NewInFlight(2)
	// Two separate chains share one guard
	a := Wrap(inner, guard.Middleware())
	b := Wrap(inner, guard.Middleware())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			_, _ = p.Complete(context.Background(), Request{})
		}([]Provider{a, b}[i%2])
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.EqualValues(t, 10, inner.calls.Load())
}

func TestRateLimit_DisabledPassesThrough(t *testing.T) {
	inner := &stubProvider{}
	assert.Same(t, Provider(inner), RateLimit(0, 0)(inner))
}

func TestRateLimit_HonoursContext(t *testing.T) {
	inner := &stubProvider{fn: func(int) (*Response, error) { return &Response{}, nil }}
	p := Wrap(inner, RateLimit(0.001, 1))

	_, err := p.Complete(context.Background(), Request{})
	require.NoError(t, err)

	// The bucket is now empty and refills far beyond the deadline
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = p.Complete(ctx, Request{})
	assert.Error(t, err)
	assert.EqualValues(t, 1, inner.calls.Load())
}

func TestObserve(t *testing.T) {
	inner := &stubProvider{fn: func(int) (*Response, error) { return &Response{TokensUsed: 7}, nil }}
	var gotStage string
	var gotTokens int
	p := Wrap(inner, Observe("extraction", func(stage string, _ time.Duration, resp *Response, err error) {
		gotStage = stage
		gotTokens = resp.TokensUsed
	}))

	_, err := p.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "extraction", gotStage)
	assert.Equal(t, 7, gotTokens)
}
