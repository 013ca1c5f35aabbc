package livelog

import (
	"sync"

	"github.com/larksync/larksync-console/internal/larkapi"
)

// MaxEntries is how many pushed entries are retained.
const MaxEntries = 500

// Ring holds the most recent entries, newest first, in arrival order.
// Entries are not re-sorted by their own timestamps.
type Ring struct {
	mu      sync.RWMutex
	entries []larkapi.SyncLogEntry
	max     int
}

func NewRing(size int) *Ring {
	if size <= 0 {
		size = MaxEntries
	}
	return &Ring{max: size}
}

// Push prepends e and drops whatever falls past the cap.
func (r *Ring) Push(e larkapi.SyncLogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := min(len(r.entries)+1, r.max)
	next := make([]larkapi.SyncLogEntry, n)
	next[0] = e
	copy(next[1:], r.entries)
	r.entries = next
}

// Snapshot returns the current entries. The returned slice is never mutated
// by the ring, so callers may hold on to it.
func (r *Ring) Snapshot() []larkapi.SyncLogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries
}

func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
