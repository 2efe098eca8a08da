package enginelog

import (
	"sync"

	"live_analysis/internal/domain"
)

const (
	DefaultCapacity   = 500
	DefaultEvictBatch = 100
)

// Ring keeps the most recent log entries. When it grows past its capacity the
// oldest batch of entries is dropped at once.
type Ring struct {
	mu       sync.RWMutex
	entries  []domain.LogEntry
	capacity int
	batch    int
}

func NewRing(capacity, batch int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if batch <= 0 {
		batch = DefaultEvictBatch
	}
	if batch > capacity {
		batch = capacity
	}
	return &Ring{
		entries:  make([]domain.LogEntry, 0, capacity+1),
		capacity: capacity,
		batch:    batch,
	}
}

func (r *Ring) Append(e domain.LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, e)
	if len(r.entries) > r.capacity {
		kept := make([]domain.LogEntry, len(r.entries)-r.batch, r.capacity+1)
		copy(kept, r.entries[r.batch:])
		r.entries = kept
	}
}

// Entries returns a copy, oldest first.
func (r *Ring) Entries() []domain.LogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.LogEntry(nil), r.entries...)
}

func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
