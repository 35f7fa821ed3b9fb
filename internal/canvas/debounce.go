package canvas

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid calls per key, running only the last function
// triggered for a key once the delay elapses with no further triggers.
// Keys debounce independently, so edits to one agent never cancel a
// pending write for another.
//
// Close flushes every pending function before stopping, so an edit made
// just before teardown is never silently dropped.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*pendingCall
	closed  bool
}

type pendingCall struct {
	timer *time.Timer
	fn    func()
}

// NewDebouncer creates a debouncer with the given delay.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		pending: make(map[string]*pendingCall),
	}
}

// Trigger schedules fn to run after the delay, replacing any function
// previously scheduled for the same key.
func (d *Debouncer) Trigger(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
	}

	p := &pendingCall{fn: fn}
	p.timer = time.AfterFunc(d.delay, func() { d.fire(key, p) })
	d.pending[key] = p
}

// fire runs a pending call when its timer elapses, unless it was since
// replaced or flushed.
func (d *Debouncer) fire(key string, p *pendingCall) {
	d.mu.Lock()
	current, ok := d.pending[key]
	if !ok || current != p {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()

	p.fn()
}

// Flush runs the pending function for a key immediately, if any.
// Returns true if something was flushed.
func (d *Debouncer) Flush(key string) bool {
	d.mu.Lock()
	p, ok := d.pending[key]
	if ok {
		p.timer.Stop()
		delete(d.pending, key)
	}
	d.mu.Unlock()

	if !ok {
		return false
	}
	p.fn()
	return true
}

// Cancel drops the pending function for a key without running it.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
		delete(d.pending, key)
	}
}

// Len returns the number of keys with a pending call.
func (d *Debouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Close flushes all pending functions and rejects further triggers.
func (d *Debouncer) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	flushing := make([]*pendingCall, 0, len(d.pending))
	for key, p := range d.pending {
		p.timer.Stop()
		flushing = append(flushing, p)
		delete(d.pending, key)
	}
	d.mu.Unlock()

	for _, p := range flushing {
		p.fn()
	}
}
