package syncengine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunnerRunsAndStops(t *testing.T) {
	var runs atomic.Int64
	runner := NewRunner("test", 10*time.Millisecond, 0, func(context.Context) error {
		runs.Add(1)
		return nil
	}, testLogger())

	runner.Start()
	deadline := time.After(2 * time.Second)
	for runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("runner only ran %d times", runs.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	runner.Stop()

	after := runs.Load()
	time.Sleep(50 * time.Millisecond)
	if runs.Load() != after {
		t.Fatal("runner kept running after Stop")
	}
}

func TestRunnerStopCancelsInFlightCycle(t *testing.T) {
	started := make(chan struct{})
	var cancelled atomic.Bool

	runner := NewRunner("test", time.Millisecond, 0, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	}, testLogger())

	runner.Start()
	<-started
	runner.Stop()

	if !cancelled.Load() {
		t.Fatal("in-flight cycle was not cancelled by Stop")
	}
}

func TestRunnerSurvivesPanics(t *testing.T) {
	var runs atomic.Int64
	runner := NewRunner("test", 5*time.Millisecond, 0, func(context.Context) error {
		if runs.Add(1) == 1 {
			panic("boom")
		}
		return nil
	}, testLogger())

	runner.Start()
	deadline := time.After(2 * time.Second)
	for runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("runner did not continue after a panic")
		case <-time.After(5 * time.Millisecond):
		}
	}
	runner.Stop()
}

func TestRetryPolicyExhaustsAttempts(t *testing.T) {
	var calls int
	cause := errors.New("transient")
	policy := Policy{MaxAttempts: 3, Backoff: time.Millisecond}

	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		return cause
	})
	if !errors.Is(err, cause) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryPolicySucceedsMidway(t *testing.T) {
	var calls int
	policy := Policy{MaxAttempts: 3, Backoff: time.Millisecond}

	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestRetryPolicyHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := Policy{MaxAttempts: 5, Backoff: time.Hour}

	var calls int
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := policy.Do(ctx, func(context.Context) error {
		calls++
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 attempt before cancellation, got %d", calls)
	}
}
