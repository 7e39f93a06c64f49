package payments

import (
	"context"
	"errors"
	"testing"
	"time"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestRetryPolicy_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Sleep: noSleep}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return ErrProviderUnavailable
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryPolicy_NeverRetriesDefinitiveRefusal(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{MaxAttempts: 5, Sleep: noSleep}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return ErrProviderRejected
	})
	if !errors.Is(err, ErrProviderRejected) {
		t.Fatalf("expected ErrProviderRejected, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("a refusal must not be retried, saw %d attempts", calls)
	}
}

func TestRetryPolicy_GivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{MaxAttempts: 2, Sleep: noSleep}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return ErrProviderUnavailable
	})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestRetryPolicy_StopsWhenContextEnds(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := RetryPolicy{MaxAttempts: 3, Sleep: noSleep}
	err := policy.Do(ctx, func() error { return ErrProviderUnavailable })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	breaker := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Second,
		Now:          func() time.Time { return now },
	})

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		if err := breaker.Execute(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: expected boom, got %v", i, err)
		}
	}

	if err := breaker.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}

	// After the reset timeout, one probe is allowed and success closes it.
	now = now.Add(2 * time.Second)
	if err := breaker.Execute(func() error { return nil }); err != nil {
		t.Fatalf("half-open probe: %v", err)
	}
	if err := breaker.Execute(func() error { return nil }); err != nil {
		t.Fatalf("closed breaker: %v", err)
	}
}

func TestRateLimiter_BurstAdmitsWithoutWaiting(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(100*time.Millisecond, 3)
	limiter.sleep = func(context.Context, time.Duration) error {
		t.Fatal("burst calls must not sleep")
		return nil
	}

	for i := 0; i < 3; i++ {
		if err := limiter.Wait(context.Background()); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
}

func TestRateLimiter_ExhaustedBucketWaitsForRefill(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	slept := time.Duration(0)
	limiter := NewRateLimiter(100*time.Millisecond, 1)
	limiter.now = func() time.Time { return now }
	limiter.last = now
	limiter.sleep = func(_ context.Context, d time.Duration) error {
		slept += d
		now = now.Add(d)
		return nil
	}

	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if slept != 100*time.Millisecond {
		t.Fatalf("expected one full interval of waiting, slept %v", slept)
	}
}

func TestRateLimiter_WaitStopsWhenContextEnds(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	limiter := NewRateLimiter(time.Second, 1)
	limiter.tokens = 0
	if err := limiter.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRateLimiter_NilLimiterAdmitsEverything(t *testing.T) {
	t.Parallel()

	var limiter *RateLimiter
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("nil limiter: %v", err)
	}
}

func TestReliableProvider_RetriesThroughBreaker(t *testing.T) {
	t.Parallel()

	calls := 0
	base := providerFunc{
		ready: func(context.Context, ReadyRequest) (ReadyResult, error) {
			calls++
			if calls == 1 {
				return ReadyResult{}, ErrProviderUnavailable
			}
			return ReadyResult{TID: "tid-1", RedirectURL: "https://pay.example.com"}, nil
		},
	}
	rp := NewReliableProvider(base, nil,
		NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 5}),
		RetryPolicy{MaxAttempts: 3, Sleep: noSleep})

	res, err := rp.Ready(context.Background(), ReadyRequest{OrderID: "order-1"})
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	if res.TID != "tid-1" || calls != 2 {
		t.Fatalf("expected success on attempt 2, got %+v after %d calls", res, calls)
	}
}

// providerFunc adapts bare functions to the Provider interface for tests.
type providerFunc struct {
	ready   func(context.Context, ReadyRequest) (ReadyResult, error)
	approve func(context.Context, ApproveRequest) (ApproveResult, error)
}

func (p providerFunc) Ready(ctx context.Context, req ReadyRequest) (ReadyResult, error) {
	if p.ready == nil {
		return ReadyResult{}, nil
	}
	return p.ready(ctx, req)
}

func (p providerFunc) Approve(ctx context.Context, req ApproveRequest) (ApproveResult, error) {
	if p.approve == nil {
		return ApproveResult{}, nil
	}
	return p.approve(ctx, req)
}
