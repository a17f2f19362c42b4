package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Event identifies a class of auditable action.
type Event string

const (
	EventRoleAssigned     Event = "rbac.role.assigned"
	EventRoleRemoved      Event = "rbac.role.removed"
	EventPermissionDenied Event = "rbac.permission.denied"
	EventChangeRequested  Event = "infra.change.requested"
	EventChangeApproved   Event = "infra.change.approved"
	EventChangeRejected   Event = "infra.change.rejected"
	EventChangeCancelled  Event = "infra.change.cancelled"
)

// Outcome values recorded with each entry.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDenied  = "denied"
)

// Entry is a single record in the audit trail.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Event     Event          `json:"event"`
	ActorID   string         `json:"actor_id"`
	TargetID  string         `json:"target_id,omitempty"`
	Status    string         `json:"status"`
	Details   map[string]any `json:"details"`
}

// Recorder appends entries to an append-only audit trail. Implementations
// must never read back what they record; the trail is write-only from the
// core's point of view.
type Recorder interface {
	Record(event Event, actorID, targetID string, details map[string]any, status string) error
}

// FileRecorder writes one JSON object per line to a local audit log.
type FileRecorder struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewFileRecorder returns a recorder appending to the file at path. The
// file is created on first write.
func NewFileRecorder(path string) *FileRecorder {
	return &FileRecorder{path: path, now: time.Now}
}

func (r *FileRecorder) Record(event Event, actorID, targetID string, details map[string]any, status string) error {
	if details == nil {
		details = map[string]any{}
	}
	entry := Entry{
		Timestamp: r.now().UTC(),
		Event:     event,
		ActorID:   actorID,
		TargetID:  targetID,
		Status:    status,
		Details:   details,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: marshal entry: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("audit: open log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("audit: append entry: %w", err)
	}
	return nil
}

// NopRecorder discards every entry.
type NopRecorder struct{}

func (NopRecorder) Record(Event, string, string, map[string]any, string) error { return nil }
