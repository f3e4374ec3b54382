package orchestrator

import (
	"context"
	"time"
)

// Clock abstracts time for the loop.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in that case.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Throttle runs a function no more often than once per interval, measured
// from the start of one run to the start of the next.
type Throttle struct {
	clock    Clock
	interval time.Duration
}

// NewThrottle creates a Throttle.
func NewThrottle(clock Clock, interval time.Duration) *Throttle {
	return &Throttle{clock: clock, interval: interval}
}

// Run calls fn, then sleeps whatever is left of the interval. An overrunning
// fn returns immediately. The error of fn is returned as is.
func (t *Throttle) Run(ctx context.Context, fn func(context.Context) error) error {
	start := t.clock.Now()
	err := fn(ctx)
	if err != nil {
		return err
	}
	if rest := t.interval - t.clock.Now().Sub(start); rest > 0 {
		return t.clock.Sleep(ctx, rest)
	}
	return nil
}
