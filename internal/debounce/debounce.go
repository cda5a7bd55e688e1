// Package debounce provides a keyed debounced task scheduler: bursts of
// Schedule calls for the same key collapse into a single delayed execution
// of the most recently scheduled action. It backs both the local blob cache
// (collapsing save bursts) and the remote channel (collapsing publish
// bursts into one physical write).
package debounce

import (
	"log/slog"
	"sync"
	"time"
)

// entry is one pending scheduling slot. gen guards against a stale
// time.AfterFunc callback firing after the slot was rescheduled or
// canceled.
type entry struct {
	timer *time.Timer
	fn    func()
	gen   uint64
}

// Debouncer runs at most one pending action per key. Each Schedule call
// for an existing key replaces the action and restarts the quiet interval,
// so a steady stream of calls postpones execution indefinitely. All
// methods are safe for concurrent use.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	entries map[string]*entry
	logger  *slog.Logger
}

// New creates a Debouncer with the given quiet interval.
func New(delay time.Duration, logger *slog.Logger) *Debouncer {
	return &Debouncer{
		delay:   delay,
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// Schedule registers fn to run after the quiet interval elapses with no
// further Schedule calls for key. A call for a pending key replaces the
// action and re-arms the delay; it never creates a second slot. The slot
// is cleared before the action runs, so fn may itself call Schedule.
// Action failures must be handled inside fn — nothing is returned.
func (d *Debouncer) Schedule(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.entries[key]; ok {
		e.timer.Stop()
		e.fn = fn
		e.gen++
		gen := e.gen
		e.timer = time.AfterFunc(d.delay, func() { d.fire(key, gen) })

		d.logger.Debug("debounce rescheduled", "key", key)

		return
	}

	e := &entry{fn: fn}
	gen := e.gen
	e.timer = time.AfterFunc(d.delay, func() { d.fire(key, gen) })
	d.entries[key] = e

	d.logger.Debug("debounce scheduled", "key", key)
}

// fire runs when a slot's timer expires. A stale generation means the slot
// was rescheduled or canceled after this timer was armed — do nothing.
func (d *Debouncer) fire(key string, gen uint64) {
	d.mu.Lock()

	e, ok := d.entries[key]
	if !ok || e.gen != gen {
		d.mu.Unlock()
		return
	}

	fn := e.fn
	delete(d.entries, key)
	d.mu.Unlock()

	fn()
}

// Cancel removes any pending action for key without running it.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.entries[key]; ok {
		e.timer.Stop()
		e.gen++
		delete(d.entries, key)

		d.logger.Debug("debounce canceled", "key", key)
	}
}

// CancelAll removes every pending action without running any of them.
// Used on logout and shutdown.
func (d *Debouncer) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, e := range d.entries {
		e.timer.Stop()
		e.gen++
		delete(d.entries, key)
	}
}

// Flush runs the pending action for key immediately, skipping the rest of
// the quiet interval. Returns false if nothing was pending.
func (d *Debouncer) Flush(key string) bool {
	d.mu.Lock()

	e, ok := d.entries[key]
	if !ok {
		d.mu.Unlock()
		return false
	}

	e.timer.Stop()
	e.gen++
	fn := e.fn
	delete(d.entries, key)
	d.mu.Unlock()

	fn()

	return true
}

// FlushAll runs every pending action immediately and returns how many ran.
func (d *Debouncer) FlushAll() int {
	d.mu.Lock()

	fns := make([]func(), 0, len(d.entries))

	for key, e := range d.entries {
		e.timer.Stop()
		e.gen++
		fns = append(fns, e.fn)
		delete(d.entries, key)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn()
	}

	return len(fns)
}

// Pending reports whether key has a scheduled action that has not run.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.entries[key]

	return ok
}
