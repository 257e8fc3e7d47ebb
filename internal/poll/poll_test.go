package poll

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestWaitForImmediateTrue(t *testing.T) {
	start := time.Now()
	err := WaitFor(context.Background(), Flag(func() bool { return true }), Options{Tick: time.Second, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("WaitFor: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("WaitFor slept before first evaluation: took %v", elapsed)
	}
}

func TestWaitForTimeout(t *testing.T) {
	start := time.Now()
	err := WaitFor(context.Background(), Flag(func() bool { return false }), Options{Tick: 10 * time.Millisecond, Timeout: 50 * time.Millisecond})
	elapsed := time.Since(start)

	if !IsTimeout(err) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if elapsed < 50*time.Millisecond {
		t.Errorf("timed out too early: %v", elapsed)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("timed out too late: %v", elapsed)
	}
}

func TestWaitForEventuallyTrue(t *testing.T) {
	var calls atomic.Int32
	cond := func(context.Context) (bool, error) {
		return calls.Add(1) >= 3, nil
	}
	if err := WaitFor(context.Background(), cond, Options{Tick: 5 * time.Millisecond, Timeout: time.Second}); err != nil {
		t.Fatalf("WaitFor: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("condition evaluated %d times, want 3", got)
	}
}

func TestWaitForRespectsTick(t *testing.T) {
	var calls atomic.Int32
	cond := func(context.Context) (bool, error) {
		calls.Add(1)
		return false, nil
	}
	WaitFor(context.Background(), cond, Options{Tick: 40 * time.Millisecond, Timeout: 100 * time.Millisecond})

	// Evaluations at ~0, ~40, ~80ms. Anything far above that means the
	// tick was not honoured.
	if got := calls.Load(); got > 4 {
		t.Errorf("condition evaluated %d times in 100ms with a 40ms tick", got)
	}
}

func TestWaitForConditionError(t *testing.T) {
	boom := errors.New("boom")
	err := WaitFor(context.Background(), func(context.Context) (bool, error) {
		return false, boom
	}, Options{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected condition error, got %v", err)
	}
}

func TestWaitForAbandonsSlowCondition(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	err := WaitFor(context.Background(), func(context.Context) (bool, error) {
		<-release
		return true, nil
	}, Options{Tick: 10 * time.Millisecond, Timeout: 30 * time.Millisecond})

	if !IsTimeout(err) {
		t.Fatalf("expected timeout while condition blocks, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("WaitFor waited for the blocked condition: %v", elapsed)
	}
}

func TestWaitForContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := WaitFor(ctx, Flag(func() bool { return false }), Options{Tick: 5 * time.Millisecond, Timeout: 5 * time.Second})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	got := Options{}.WithDefaults()
	if got.Tick != DefaultTick || got.Timeout != DefaultTimeout {
		t.Errorf("defaults = %+v", got)
	}

	got = Options{Tick: time.Second}.WithDefaults()
	if got.Tick != time.Second || got.Timeout != DefaultTimeout {
		t.Errorf("partial override = %+v", got)
	}
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep on cancelled context = %v", err)
	}
}
