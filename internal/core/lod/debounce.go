package lod

import (
	"sync"
	"time"

	"github.com/fobi-id/obsmap/internal/core/domain"
)

// Debouncer turns a stream of intermediate zoom values into one
// selection per settled gesture. Each Zoom call restarts the quiet
// period; when it elapses, fn receives the last zoom and its level.
type Debouncer struct {
	wait time.Duration
	fn   func(zoom float64, level domain.DetailLevel)

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending float64
	stopped bool
}

// NewDebouncer creates a Debouncer. A non-positive wait fires synchronously.
func NewDebouncer(wait time.Duration, fn func(zoom float64, level domain.DetailLevel)) *Debouncer {
	return &Debouncer{wait: wait, fn: fn}
}

// Zoom records an intermediate zoom value.
func (d *Debouncer) Zoom(zoom float64) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if d.wait <= 0 {
		d.mu.Unlock()
		d.fn(zoom, SelectLevel(zoom))
		return
	}
	d.pending = zoom
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.wait, func() { d.fire(gen) })
	d.mu.Unlock()
}

// Settle fires immediately with the pending zoom, as on an explicit
// zoom-end event. It is a no-op when nothing is pending.
func (d *Debouncer) Settle() {
	d.mu.Lock()
	if d.timer == nil || d.stopped {
		d.mu.Unlock()
		return
	}
	d.timer.Stop()
	d.timer = nil
	zoom := d.pending
	d.mu.Unlock()
	d.fn(zoom, SelectLevel(zoom))
}

// Stop cancels any pending selection; later calls are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// fire runs on the timer goroutine; gen drops timers superseded by a
// later Zoom that could not be stopped in time.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || d.timer == nil || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	zoom := d.pending
	d.mu.Unlock()
	d.fn(zoom, SelectLevel(zoom))
}
