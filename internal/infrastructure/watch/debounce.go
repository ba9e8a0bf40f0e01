// Package watch re-runs a sync when the interchange file is rewritten.
package watch

import (
	"sync"
	"time"
)

// Debouncer coalesces a burst of triggers into one callback. Fetch jobs
// rewrite the interchange file in several writes plus a rename; only the
// last event of the burst should start a sync.
type Debouncer struct {
	window time.Duration
	fire   func()

	mu    sync.Mutex
	timer *time.Timer
}

// NewDebouncer creates a debouncer firing after window of quiet.
func NewDebouncer(window time.Duration, fire func()) *Debouncer {
	return &Debouncer{window: window, fire: fire}
}

// Trigger restarts the quiet window.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

// Stop cancels a pending callback.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
}
