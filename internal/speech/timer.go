package speech

import (
	"time"

	"github.com/erikh2000/comprendo-player/internal/loop"
)

// Timer owns at most one pending call on a clock. Re-arming replaces the
// pending call, and a call that was already in flight when it was cancelled
// or replaced does nothing when it lands. A Timer must only be used from the
// event loop.
type Timer struct {
	clock   loop.Clock
	pending loop.Timer
	gen     uint64
}

// NewTimer creates a disarmed timer.
func NewTimer(clock loop.Clock) *Timer {
	return &Timer{clock: clock}
}

// Arm schedules fn to run once after d.
func (t *Timer) Arm(d time.Duration, fn func()) {
	t.Cancel()
	gen := t.gen
	t.pending = t.clock.AfterFunc(d, func() {
		if gen != t.gen {
			return
		}
		t.pending = nil
		fn()
	})
}

// ArmRepeating schedules fn to run every interval until cancelled.
func (t *Timer) ArmRepeating(interval time.Duration, fn func()) {
	t.Cancel()
	gen := t.gen

	var tick func()
	tick = func() {
		if gen != t.gen {
			return
		}
		fn()
		if gen != t.gen {
			return
		}
		t.pending = t.clock.AfterFunc(interval, tick)
	}
	t.pending = t.clock.AfterFunc(interval, tick)
}

// Cancel disarms the timer.
func (t *Timer) Cancel() {
	t.gen++
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

// IsArmed reports whether a call is pending.
func (t *Timer) IsArmed() bool {
	return t.pending != nil
}
