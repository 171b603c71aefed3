package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"songreel/internal/resilience"
)

func singleAttemptGuard(breaker *resilience.Breaker) *resilience.Guard {
	return resilience.NewGuard(
		breaker.Name(),
		resilience.RetryPolicy{MaxAttempts: 1, InitialDelay: time.Second, BackoffFactor: 2},
		breaker,
		resilience.WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	now := time.Unix(5000, 0)
	breaker := resilience.NewBreaker("upload", resilience.BreakerPolicy{
		FailureThreshold: 3,
		ResetTimeout:     5 * time.Minute,
	}).WithClock(func() time.Time { return now })
	guard := singleAttemptGuard(breaker)

	boom := errors.New("boom")
	calls := 0
	op := func(context.Context) error {
		calls++
		return boom
	}

	for i := 0; i < 3; i++ {
		if err := guard.Do(context.Background(), op); err == nil {
			t.Fatalf("attempt %d: expected failure", i)
		}
	}
	if open, failures, _ := breaker.State(); !open || failures != 3 {
		t.Fatalf("expected open breaker with 3 failures, got open=%v failures=%d", open, failures)
	}

	// Within the reset timeout the call is rejected without an attempt.
	now = now.Add(time.Minute)
	err := guard.Do(context.Background(), op)
	if !errors.Is(err, resilience.ErrBreakerOpen) {
		t.Fatalf("expected breaker-open rejection, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("rejected call must not invoke the operation, got %d invocations", calls)
	}
}

func TestBreakerTrialSuccessCloses(t *testing.T) {
	now := time.Unix(5000, 0)
	breaker := resilience.NewBreaker("scriptgen", resilience.BreakerPolicy{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
	}).WithClock(func() time.Time { return now })
	guard := singleAttemptGuard(breaker)

	fail := func(context.Context) error { return errors.New("down") }
	for i := 0; i < 2; i++ {
		_ = guard.Do(context.Background(), fail)
	}
	if open, _, _ := breaker.State(); !open {
		t.Fatal("expected breaker to open")
	}

	// Past the reset timeout a trial call is allowed through.
	now = now.Add(2 * time.Minute)
	calls := 0
	err := guard.Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("trial call failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected trial call to be attempted, got %d invocations", calls)
	}
	if open, failures, _ := breaker.State(); open || failures != 0 {
		t.Fatalf("expected closed breaker with reset counter, got open=%v failures=%d", open, failures)
	}
}

func TestBreakerTrialFailureReopens(t *testing.T) {
	now := time.Unix(5000, 0)
	breaker := resilience.NewBreaker("videogen", resilience.BreakerPolicy{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
	}).WithClock(func() time.Time { return now })
	guard := singleAttemptGuard(breaker)

	fail := func(context.Context) error { return errors.New("down") }
	for i := 0; i < 2; i++ {
		_ = guard.Do(context.Background(), fail)
	}

	now = now.Add(2 * time.Minute)
	if err := guard.Do(context.Background(), fail); errors.Is(err, resilience.ErrBreakerOpen) {
		t.Fatalf("trial call must be attempted, got %v", err)
	}
	if open, _, _ := breaker.State(); !open {
		t.Fatal("expected trial failure to reopen the breaker")
	}

	// The failure clock reset with the trial failure, so the next call inside
	// the window is rejected again.
	now = now.Add(30 * time.Second)
	if err := guard.Do(context.Background(), fail); !errors.Is(err, resilience.ErrBreakerOpen) {
		t.Fatalf("expected rejection inside the reset window, got %v", err)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	breaker := resilience.NewBreaker("stitch", resilience.BreakerPolicy{
		FailureThreshold: 3,
		ResetTimeout:     time.Minute,
	})
	guard := singleAttemptGuard(breaker)

	fail := func(context.Context) error { return errors.New("down") }
	ok := func(context.Context) error { return nil }

	_ = guard.Do(context.Background(), fail)
	_ = guard.Do(context.Background(), fail)
	if err := guard.Do(context.Background(), ok); err != nil {
		t.Fatalf("success call failed: %v", err)
	}
	if open, failures, _ := breaker.State(); open || failures != 0 {
		t.Fatalf("expected success to reset counter, got open=%v failures=%d", open, failures)
	}
}

func TestRegistrySharesBreakersByName(t *testing.T) {
	registry := resilience.NewRegistry()
	policy := resilience.BreakerPolicy{FailureThreshold: 2, ResetTimeout: time.Minute}

	first := registry.Get("upload", policy)
	second := registry.Get("upload", policy)
	if first != second {
		t.Fatal("expected the same breaker instance for one operation name")
	}
	other := registry.Get("scriptgen", policy)
	if other == first {
		t.Fatal("expected distinct breakers per operation name")
	}
}
