// Package timer provides the alarm abstraction that drives scheduler ticks.
package timer

import (
	"sync"
	"time"
)

// Alarm fires a callback periodically. Arm replaces any previous schedule;
// Disarm stops firing entirely.
type Alarm interface {
	Arm(period time.Duration)
	Disarm()
}

// TickerAlarm is the production Alarm backed by a time.Ticker goroutine.
type TickerAlarm struct {
	fn func()

	mu     sync.Mutex
	stop   chan struct{}
	period time.Duration
}

// NewTicker creates an alarm that invokes fn on each firing. The callback
// runs on the alarm goroutine; the tick's own single-flight guard makes
// overlapping invocations harmless.
func NewTicker(fn func()) *TickerAlarm {
	return &TickerAlarm{fn: fn}
}

// Arm schedules the callback every period, replacing any existing schedule.
// Re-arming with the current period is a no-op so callers can re-arm after
// every tick without churning the goroutine.
func (a *TickerAlarm) Arm(period time.Duration) {
	if period <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stop != nil && a.period == period {
		return
	}
	a.disarmLocked()

	stop := make(chan struct{})
	a.stop = stop
	a.period = period

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.fn()
			case <-stop:
				return
			}
		}
	}()
}

// Disarm stops the alarm until the next Arm.
func (a *TickerAlarm) Disarm() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disarmLocked()
}

func (a *TickerAlarm) disarmLocked() {
	if a.stop != nil {
		close(a.stop)
		a.stop = nil
		a.period = 0
	}
}
