package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances virtual time on Sleep and cancels after a sleep budget.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
	budget int
	cancel context.CancelFunc
}

func newFakeClock(budget int, cancel context.CancelFunc) *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), budget: budget, cancel: cancel}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	if d > 0 {
		c.now = c.now.Add(d)
	}
	exhausted := c.budget > 0 && len(c.sleeps) >= c.budget
	c.mu.Unlock()
	if exhausted && c.cancel != nil {
		c.cancel()
	}
	return ctx.Err()
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

func TestThrottle_SleepsRemainder(t *testing.T) {
	clock := newFakeClock(0, nil)
	th := NewThrottle(clock, 10*time.Second)

	err := th.Run(context.Background(), func(context.Context) error {
		clock.Advance(3 * time.Second)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{7 * time.Second}, clock.Sleeps())
}

func TestThrottle_OverrunDoesNotSleep(t *testing.T) {
	clock := newFakeClock(0, nil)
	th := NewThrottle(clock, 10*time.Second)

	err := th.Run(context.Background(), func(context.Context) error {
		clock.Advance(12 * time.Second)
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, clock.Sleeps())
}

func TestThrottle_ErrorSkipsSleep(t *testing.T) {
	clock := newFakeClock(0, nil)
	th := NewThrottle(clock, 10*time.Second)
	boom := assert.AnError

	err := th.Run(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, clock.Sleeps())
}

func TestRealClock_SleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := realClock{}.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
