package watcher

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Debouncer runs a callback once a burst of triggers has been quiet for a
// fixed period. It holds at most one pending firing: every Trigger replaces
// the previous one. Callbacks never overlap.
type Debouncer struct {
	quiet  time.Duration
	fn     func()
	logger *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64 // bumped by every Trigger; a firing with an older value is stale
	stopped bool

	running sync.WaitGroup
	runMu   sync.Mutex
}

// NewDebouncer creates a debouncer that calls fn after quiet has elapsed
// since the last Trigger.
func NewDebouncer(quiet time.Duration, fn func(), logger *slog.Logger) *Debouncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Debouncer{quiet: quiet, fn: fn, logger: logger}
}

// Trigger (re)arms the timer. It is a no-op after Stop.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.quiet, func() { d.fire(gen) })
}

// Pending reports whether a firing is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.running.Add(1)
	d.mu.Unlock()
	defer d.running.Done()

	d.runMu.Lock()
	defer d.runMu.Unlock()
	d.run()
}

func (d *Debouncer) run() {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("debounced callback panicked",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()
	d.fn()
}

// Stop cancels any pending firing and waits for a running callback to
// return. No callback starts after Stop returns. It must not be called
// from the callback itself.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	d.running.Wait()
}
