package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestBreaker(maxFailures int, timeout time.Duration) *CircuitBreaker {
	return NewCircuitBreaker(&Config{
		Name:             "test",
		MaxFailures:      maxFailures,
		Timeout:          timeout,
		HalfOpenMaxCalls: 2,
	})
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)
	ctx := context.Background()
	failure := errors.New("backend down")

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, func() error { return failure }); !errors.Is(err, failure) {
			t.Fatalf("Execute() error = %v, want %v", err, failure)
		}
	}

	if state := cb.GetState(); state != StateOpen {
		t.Fatalf("state = %v, want %v", state, StateOpen)
	}

	err := cb.Execute(ctx, func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() on open circuit = %v, want %v", err, ErrCircuitOpen)
	}
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)
	ctx := context.Background()
	failure := errors.New("flaky")

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return failure })
	}
	if err := cb.Execute(ctx, func() error { return nil }); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return failure })
	}

	if state := cb.GetState(); state != StateClosed {
		t.Errorf("state = %v, want %v (failure streak was broken)", state, StateClosed)
	}
}

func TestCircuitBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond)
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errors.New("down") })
	if state := cb.GetState(); state != StateOpen {
		t.Fatalf("state = %v, want %v", state, StateOpen)
	}

	time.Sleep(20 * time.Millisecond)

	// Successful probes close the circuit again.
	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, func() error { return nil }); err != nil {
			t.Fatalf("probe %d error = %v", i, err)
		}
	}

	if state := cb.GetState(); state != StateClosed {
		t.Errorf("state = %v, want %v", state, StateClosed)
	}
}

func TestCircuitBreakerReopensOnHalfOpenFailure(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond)
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errors.New("down") })
	time.Sleep(20 * time.Millisecond)

	_ = cb.Execute(ctx, func() error { return errors.New("still down") })

	if state := cb.GetState(); state != StateOpen {
		t.Errorf("state = %v, want %v", state, StateOpen)
	}
}
