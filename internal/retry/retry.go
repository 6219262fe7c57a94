// Package retry provides bounded fixed-interval polling with an injectable clock.
package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrExhausted is returned when a poll runs out of attempts or time
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy bounds a polling loop
type Policy struct {
	MaxAttempts int           // Maximum number of checks (0 = unlimited, Timeout must be set)
	Interval    time.Duration // Wait between checks
	Timeout     time.Duration // Overall budget measured on the clock (0 = none)
}

// Validate checks that the policy terminates
func (p Policy) Validate() error {
	if p.MaxAttempts < 0 {
		return fmt.Errorf("max attempts must be non-negative (got %d)", p.MaxAttempts)
	}
	if p.Interval < 0 {
		return fmt.Errorf("interval must be non-negative (got %v)", p.Interval)
	}
	if p.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative (got %v)", p.Timeout)
	}
	if p.MaxAttempts == 0 && p.Timeout == 0 {
		return fmt.Errorf("policy must bound either attempts or time")
	}
	return nil
}

// Budget is the longest a poll under this policy can wait between checks
func (p Policy) Budget() time.Duration {
	if p.MaxAttempts <= 0 {
		return p.Timeout
	}
	d := time.Duration(p.MaxAttempts-1) * p.Interval
	if p.Timeout > 0 && p.Timeout < d {
		return p.Timeout
	}
	return d
}

// Clock abstracts time so polling loops can be driven deterministically in tests
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is backed by the time package
var RealClock Clock = realClock{}

// CheckFunc reports whether the awaited condition holds. A non-nil error stops
// the poll immediately and is returned to the caller.
type CheckFunc func(ctx context.Context, attempt int) (bool, error)

// Poll calls check until it reports done, it fails, the policy is exhausted
// or ctx is cancelled. attempt counts from 1. A nil clock means RealClock.
func Poll(ctx context.Context, clock Clock, p Policy, check CheckFunc) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if clock == nil {
		clock = RealClock
	}

	start := clock.Now()
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := check(ctx, attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return fmt.Errorf("%w after %d attempts", ErrExhausted, attempt)
		}
		if p.Timeout > 0 && clock.Now().Sub(start)+p.Interval > p.Timeout {
			return fmt.Errorf("%w after %v", ErrExhausted, p.Timeout)
		}
		if err := Sleep(ctx, clock, p.Interval); err != nil {
			return err
		}
	}
}

// Sleep waits d on clock or until ctx is done
func Sleep(ctx context.Context, clock Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if clock == nil {
		clock = RealClock
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clock.After(d):
		return nil
	}
}

// FakeClock fires every After immediately and advances its own time by the
// requested duration. Sleeps are recorded for assertions.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewFakeClock starts a fake clock at start
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the fake time
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After advances the clock by d and returns a channel that has already fired
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// Sleeps returns every duration waited so far
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// Elapsed is the sum of all sleeps
func (c *FakeClock) Elapsed() time.Duration {
	var total time.Duration
	for _, d := range c.Sleeps() {
		total += d
	}
	return total
}
