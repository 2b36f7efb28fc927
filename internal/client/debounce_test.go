package client

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerCoalescesSameKey(t *testing.T) {
	db := NewDebouncer()
	defer db.Stop()

	var fired atomic.Int32
	var last atomic.Int32
	for i := 1; i <= 4; i++ {
		n := int32(i)
		db.Schedule("k", 50*time.Millisecond, func() {
			fired.Add(1)
			last.Store(n)
		})
	}

	time.Sleep(150 * time.Millisecond)
	if fired.Load() != 1 {
		t.Fatalf("expected exactly one invocation, got %d", fired.Load())
	}
	if last.Load() != 4 {
		t.Fatalf("expected the last scheduled fn to run, got %d", last.Load())
	}
}

func TestDebouncerIndependentKeys(t *testing.T) {
	db := NewDebouncer()
	defer db.Stop()

	var fired atomic.Int32
	db.Schedule("a", 30*time.Millisecond, func() { fired.Add(1) })
	db.Schedule("b", 30*time.Millisecond, func() { fired.Add(1) })

	time.Sleep(100 * time.Millisecond)
	if fired.Load() != 2 {
		t.Fatalf("keys must debounce independently, got %d invocations", fired.Load())
	}
}

func TestDebouncerCancel(t *testing.T) {
	db := NewDebouncer()
	defer db.Stop()

	var fired atomic.Int32
	db.Schedule("k", 30*time.Millisecond, func() { fired.Add(1) })
	db.Cancel("k")
	db.Cancel("unknown")

	time.Sleep(80 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("cancelled timer fired %d times", fired.Load())
	}
	if db.Pending("k") {
		t.Fatal("cancelled key still pending")
	}
}

func TestDebouncerFlushRunsImmediately(t *testing.T) {
	db := NewDebouncer()
	defer db.Stop()

	var fired atomic.Int32
	db.Schedule("k", time.Hour, func() { fired.Add(1) })
	db.Flush("k")

	if fired.Load() != 1 {
		t.Fatalf("flush must run the pending fn, got %d", fired.Load())
	}
	if db.Pending("k") {
		t.Fatal("flushed key still pending")
	}

	db.Flush("k") // second flush is a no-op
	if fired.Load() != 1 {
		t.Fatalf("flush of empty key must not run anything, got %d", fired.Load())
	}
}

func TestDebouncerFlushRacingExpiryRunsOnce(t *testing.T) {
	db := NewDebouncer()
	defer db.Stop()

	// Flush just as the timer expires: whichever side claims the entry
	// runs it, the loser must not run it again.
	for i := 0; i < 200; i++ {
		var fired atomic.Int32
		db.Schedule("k", 50*time.Microsecond, func() { fired.Add(1) })
		time.Sleep(45 * time.Microsecond)
		db.Flush("k")
		time.Sleep(2 * time.Millisecond)
		if got := fired.Load(); got != 1 {
			t.Fatalf("iteration %d: fn ran %d times, want 1", i, got)
		}
	}
}

func TestDebouncerStopCancelsEverything(t *testing.T) {
	db := NewDebouncer()

	var fired atomic.Int32
	db.Schedule("a", 30*time.Millisecond, func() { fired.Add(1) })
	db.Schedule("b", 30*time.Millisecond, func() { fired.Add(1) })
	db.Stop()

	time.Sleep(80 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("stopped debouncer fired %d times", fired.Load())
	}
}
