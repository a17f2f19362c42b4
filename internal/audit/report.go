package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/samber/lo"
)

// Report summarises activity recorded in the audit trail.
type Report struct {
	Since   time.Time
	Total   int
	Denials int
	ByEvent map[Event]int
	ByActor map[string]int
	Entries []Entry
}

// Reporter reads a JSON-lines audit log and produces activity reports.
// This is the read side of the trail and lives outside the Recorder: the
// components emitting events never consume them.
type Reporter struct {
	path string
}

func NewReporter(path string) *Reporter {
	return &Reporter{path: path}
}

// Activity returns a report of all entries recorded at or after since,
// optionally restricted to one actor and/or one event kind (empty values
// match everything). A missing log file yields an empty report.
func (r *Reporter) Activity(since time.Time, actorID string, event Event) (*Report, error) {
	entries, err := r.load()
	if err != nil {
		return nil, err
	}

	entries = lo.Filter(entries, func(e Entry, _ int) bool {
		if e.Timestamp.Before(since) {
			return false
		}
		if actorID != "" && e.ActorID != actorID {
			return false
		}
		if event != "" && e.Event != event {
			return false
		}
		return true
	})

	report := &Report{
		Since:   since,
		Total:   len(entries),
		ByEvent: lo.CountValuesBy(entries, func(e Entry) Event { return e.Event }),
		ByActor: lo.CountValuesBy(entries, func(e Entry) string { return e.ActorID }),
		Entries: entries,
	}
	report.Denials = lo.CountBy(entries, func(e Entry) bool { return e.Status == StatusDenied })
	return report, nil
}

func (r *Reporter) load() ([]Entry, error) {
	f, err := os.Open(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("audit: open log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("audit: malformed entry at line %d: %w", line, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("audit: read log: %w", err)
	}
	return entries, nil
}
