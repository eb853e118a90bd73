package lod_test

import (
	"sync"
	"testing"
	"time"

	"github.com/fobi-id/obsmap/internal/core/domain"
	"github.com/fobi-id/obsmap/internal/core/lod"
)

type recorder struct {
	mu     sync.Mutex
	zooms  []float64
	levels []domain.DetailLevel
	fired  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{fired: make(chan struct{}, 16)}
}

func (r *recorder) record(zoom float64, level domain.DetailLevel) {
	r.mu.Lock()
	r.zooms = append(r.zooms, zoom)
	r.levels = append(r.levels, level)
	r.mu.Unlock()
	r.fired <- struct{}{}
}

func (r *recorder) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.zooms)
}

func TestDebouncer_CollapsesGesture(t *testing.T) {
	r := newRecorder()
	d := lod.NewDebouncer(30*time.Millisecond, r.record)
	defer d.Stop()

	for _, z := range []float64{9, 9.5, 10.2, 11, 12.4} {
		d.Zoom(z)
	}

	select {
	case <-r.fired:
	case <-time.After(time.Second):
		t.Fatal("debouncer never fired")
	}
	time.Sleep(60 * time.Millisecond)

	if n := r.calls(); n != 1 {
		t.Fatalf("expected 1 selection, got %d", n)
	}
	if r.zooms[0] != 12.4 || r.levels[0] != domain.DetailMarkers {
		t.Errorf("expected (12.4, markers), got (%v, %s)", r.zooms[0], r.levels[0])
	}
}

func TestDebouncer_Settle(t *testing.T) {
	r := newRecorder()
	d := lod.NewDebouncer(time.Hour, r.record)
	defer d.Stop()

	d.Zoom(7)
	d.Settle()
	if n := r.calls(); n != 1 {
		t.Fatalf("expected 1 selection after settle, got %d", n)
	}
	if r.levels[0] != domain.DetailLarge {
		t.Errorf("expected large, got %s", r.levels[0])
	}

	d.Settle()
	if n := r.calls(); n != 1 {
		t.Errorf("settle without pending zoom should not fire, got %d calls", n)
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	r := newRecorder()
	d := lod.NewDebouncer(20*time.Millisecond, r.record)
	d.Zoom(11)
	d.Stop()
	d.Zoom(3)

	time.Sleep(60 * time.Millisecond)
	if n := r.calls(); n != 0 {
		t.Errorf("expected no selections after stop, got %d", n)
	}
}

func TestDebouncer_ZeroWaitIsSynchronous(t *testing.T) {
	r := newRecorder()
	d := lod.NewDebouncer(0, r.record)
	d.Zoom(10)
	if n := r.calls(); n != 1 {
		t.Fatalf("expected synchronous selection, got %d", n)
	}
	if r.levels[0] != domain.DetailMedium {
		t.Errorf("expected medium, got %s", r.levels[0])
	}
}
