package client

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is the coalescing interval for outbound status
// emissions during drag gestures.
const DefaultDebounceWindow = 300 * time.Millisecond

type debounceEntry struct {
	timer *time.Timer
	fn    func()
}

// Debouncer coalesces rapid calls under the same key into a single
// deferred invocation. Scheduling a key that already has a pending timer
// cancels the previous one, so only the last function runs.
type Debouncer struct {
	mu      sync.Mutex
	pending map[string]*debounceEntry
}

// NewDebouncer creates an empty debouncer.
func NewDebouncer() *Debouncer {
	return &Debouncer{pending: make(map[string]*debounceEntry)}
}

// Schedule arms (or re-arms) the timer for key to run fn after d.
func (db *Debouncer) Schedule(key string, d time.Duration, fn func()) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if e, ok := db.pending[key]; ok {
		e.timer.Stop()
	}
	entry := &debounceEntry{fn: fn}
	entry.timer = time.AfterFunc(d, func() {
		db.mu.Lock()
		// A Flush, Cancel, Stop or re-Schedule that raced the timer's
		// expiry already claimed (or dropped) this invocation.
		if db.pending[key] != entry {
			db.mu.Unlock()
			return
		}
		delete(db.pending, key)
		db.mu.Unlock()
		fn()
	})
	db.pending[key] = entry
}

// Cancel drops any pending invocation for key. Cancelling an unknown key
// is a no-op.
func (db *Debouncer) Cancel(key string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if e, ok := db.pending[key]; ok {
		e.timer.Stop()
		delete(db.pending, key)
	}
}

// Flush runs the pending invocation for key immediately, if any.
func (db *Debouncer) Flush(key string) {
	db.mu.Lock()
	e, ok := db.pending[key]
	if ok {
		e.timer.Stop()
		delete(db.pending, key)
	}
	db.mu.Unlock()
	if ok {
		e.fn()
	}
}

// Pending reports whether key has an armed timer.
func (db *Debouncer) Pending(key string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, ok := db.pending[key]
	return ok
}

// Stop cancels every pending timer. Used on view teardown so nothing
// fires after the project context has changed.
func (db *Debouncer) Stop() {
	db.mu.Lock()
	defer db.mu.Unlock()
	for key, e := range db.pending {
		e.timer.Stop()
		delete(db.pending, key)
	}
}
