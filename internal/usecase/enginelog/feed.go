package enginelog

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"live_analysis/internal/domain"
)

// Feed is the log ring plus the status machine behind one lock, so lines from one
// stream are applied strictly in arrival order.
type Feed struct {
	mu      sync.Mutex
	markers Markers
	ring    *Ring
	status  *StatusMachine
	now     func() time.Time
}

func NewFeed(markers Markers) *Feed {
	return &Feed{
		markers: markers,
		ring:    NewRing(DefaultCapacity, DefaultEvictBatch),
		status:  NewStatusMachine(markers),
		now:     time.Now,
	}
}

// Ingest classifies raw, stores it and updates the status. Blank lines are dropped
// and reported with ok=false.
func (f *Feed) Ingest(raw string) (entry domain.LogEntry, ok bool) {
	line, ok := f.markers.Classify(raw)
	if !ok {
		return domain.LogEntry{}, false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	entry = domain.LogEntry{
		ID:              uuid.New().String(),
		Timestamp:       f.now(),
		Message:         line.Text,
		IsError:         line.IsError,
		IsCommunication: line.IsCommunication,
	}
	f.ring.Append(entry)
	f.status.Observe(line)
	return entry, true
}

func (f *Feed) Entries() []domain.LogEntry {
	return f.ring.Entries()
}

func (f *Feed) Status() domain.EngineStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status.Status()
}

func (f *Feed) Starting() {
	f.mu.Lock()
	f.status.Starting()
	f.mu.Unlock()
}

func (f *Feed) Stopped() {
	f.mu.Lock()
	f.status.Stopped()
	f.mu.Unlock()
}

func (f *Feed) Fail(err error) {
	f.mu.Lock()
	f.status.Fail(err.Error())
	f.mu.Unlock()
}
