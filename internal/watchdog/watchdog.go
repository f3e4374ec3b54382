// Package watchdog tracks control loop liveness.
package watchdog

import (
	"context"
	"sync"
	"time"

	"github.com/ermakus/freqtrade/internal/observability"
)

// DefaultTimeout is how long the loop may go without a heartbeat.
const DefaultTimeout = 5 * time.Minute

// Watchdog records heartbeats and reports stalls.
type Watchdog struct {
	timeout time.Duration
	now     func() time.Time

	mu   sync.RWMutex
	last time.Time
}

// New creates a Watchdog. The start time counts as the first heartbeat.
func New(timeout time.Duration, now func() time.Time) *Watchdog {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if now == nil {
		now = time.Now
	}
	return &Watchdog{timeout: timeout, now: now, last: now()}
}

// Beat records a heartbeat.
func (w *Watchdog) Beat(t time.Time) {
	w.mu.Lock()
	w.last = t
	w.mu.Unlock()
	observability.RecordHeartbeat(t.Unix())
}

// Last returns the time of the last heartbeat.
func (w *Watchdog) Last() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last
}

// Healthy reports whether a heartbeat arrived within the timeout.
func (w *Watchdog) Healthy() bool {
	return w.now().Sub(w.Last()) <= w.timeout
}

// Monitor checks liveness every interval and calls onStall once when the
// loop stops beating. It returns when ctx is done or after onStall.
func (w *Watchdog) Monitor(ctx context.Context, interval time.Duration, onStall func(since time.Time)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !w.Healthy() {
				onStall(w.Last())
				return
			}
		}
	}
}
