package windows

import (
	"sync"
	"time"
)

// Debouncer delays a function call until the debounce duration has elapsed
// without new calls. The settings panel's hide path uses this to tolerate
// transient mouse-leave/mouse-enter flicker.
type Debouncer struct {
	mu       sync.Mutex
	timer    Timer
	clock    Clock
	duration time.Duration
}

// NewDebouncer creates a debouncer with the specified duration.
func NewDebouncer(duration time.Duration, clock Clock) *Debouncer {
	if clock == nil {
		clock = NewRealClock()
	}
	return &Debouncer{duration: duration, clock: clock}
}

// Debounce schedules fn after the debounce duration. Rapid successive
// calls reset the timer.
func (d *Debouncer) Debounce(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.clock.AfterFunc(d.duration, func() {
		d.mu.Lock()
		d.timer = nil
		d.mu.Unlock()
		fn()
	})
}

// Cancel drops any pending call.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
