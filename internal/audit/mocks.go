package audit

import (
	"sync"
	"time"
)

// MemoryRecorder collects entries in memory. Intended for tests.
type MemoryRecorder struct {
	mu      sync.Mutex
	Err     error
	entries []Entry
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (r *MemoryRecorder) Record(event Event, actorID, targetID string, details map[string]any, status string) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{
		Timestamp: time.Now().UTC(),
		Event:     event,
		ActorID:   actorID,
		TargetID:  targetID,
		Status:    status,
		Details:   details,
	})
	return nil
}

// Entries returns a copy of everything recorded so far.
func (r *MemoryRecorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
