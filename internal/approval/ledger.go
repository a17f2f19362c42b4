package approval

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloudcraver/cloudcraver/internal/state"
)

// ErrCorruptLedger is returned when the ledger file exists on disk but
// cannot be decoded. A malformed file is a hard failure: the data might
// be recoverable, so it is never silently discarded.
var ErrCorruptLedger = errors.New("approval: ledger file is corrupt")

// Ledger persists the full request table as a single JSON document keyed
// by request id. Every mutation rewrites the whole document; the write
// goes through a temp-file rename so a crash cannot corrupt it.
type Ledger struct {
	path string
}

// NewLedger returns a ledger backed by the file at path.
func NewLedger(path string) *Ledger {
	return &Ledger{path: path}
}

// Save writes the request table to disk, replacing any previous
// document atomically.
func (l *Ledger) Save(requests map[string]*Request) error {
	data, err := json.MarshalIndent(requests, "", "  ")
	if err != nil {
		return fmt.Errorf("approval: marshal ledger: %w", err)
	}
	if err := state.WriteFile(l.path, data); err != nil {
		return fmt.Errorf("approval: save ledger: %w", err)
	}
	return nil
}

// Load reads the request table from disk. A missing file is an empty
// ledger; a present but undecodable file fails with ErrCorruptLedger.
func (l *Ledger) Load() (map[string]*Request, error) {
	data, found, err := state.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("approval: load ledger: %w", err)
	}
	if !found {
		return map[string]*Request{}, nil
	}
	var requests map[string]*Request
	if err := json.Unmarshal(data, &requests); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptLedger, l.path, err)
	}
	if requests == nil {
		requests = map[string]*Request{}
	}
	return requests, nil
}
