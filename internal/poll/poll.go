// Package poll waits for eventually-consistent remote state.
//
// OBS does not confirm most state changes synchronously: a StartStream
// request returns before the output is live, and a freshly constructed
// handle has not finished its initial pull. Every "wait until the remote
// side reflects what I just did" site goes through WaitFor instead of a
// hand-rolled retry loop.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultTick    = 50 * time.Millisecond
	DefaultTimeout = time.Second
)

// Options bounds a WaitFor call. Zero fields take the package defaults.
type Options struct {
	// Tick is the minimum interval between the end of one evaluation and
	// the start of the next.
	Tick time.Duration
	// Timeout is the maximum total wait.
	Timeout time.Duration
}

// WithDefaults fills zero fields.
func (o Options) WithDefaults() Options {
	if o.Tick <= 0 {
		o.Tick = DefaultTick
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Condition reports whether the awaited state has been reached. It may
// issue remote requests. A non-nil error aborts the wait.
type Condition func(ctx context.Context) (bool, error)

// TimeoutError is returned when the condition did not hold within the
// configured timeout.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("poll: condition not met within %v", e.Timeout)
}

// IsTimeout reports whether err is (or wraps) a *TimeoutError.
func IsTimeout(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}

type evaluation struct {
	ok  bool
	err error
}

// WaitFor evaluates cond immediately and then every opts.Tick until it
// returns true, returns an error, or opts.Timeout elapses. On timeout an
// evaluation that is still running is abandoned: it keeps the caller's
// context and finishes on its own, its result is discarded.
func WaitFor(ctx context.Context, cond Condition, opts Options) error {
	opts = opts.WithDefaults()

	deadline := time.NewTimer(opts.Timeout)
	defer deadline.Stop()

	for {
		// Buffered so an abandoned evaluation never blocks its goroutine.
		result := make(chan evaluation, 1)
		go func() {
			ok, err := cond(ctx)
			result <- evaluation{ok: ok, err: err}
		}()

		select {
		case r := <-result:
			if r.err != nil {
				return r.err
			}
			if r.ok {
				return nil
			}
		case <-deadline.C:
			return &TimeoutError{Timeout: opts.Timeout}
		case <-ctx.Done():
			return ctx.Err()
		}

		tick := time.NewTimer(opts.Tick)
		select {
		case <-tick.C:
		case <-deadline.C:
			tick.Stop()
			return &TimeoutError{Timeout: opts.Timeout}
		case <-ctx.Done():
			tick.Stop()
			return ctx.Err()
		}
	}
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flag adapts a plain boolean accessor into a Condition.
func Flag(f func() bool) Condition {
	return func(context.Context) (bool, error) {
		return f(), nil
	}
}
