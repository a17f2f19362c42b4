package rbac

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/cloudcraver/cloudcraver/internal/state"
)

// stateDocument is the on-disk shape of the assignment table. Role
// definitions are configuration and never persisted.
type stateDocument struct {
	UserRoles map[string][]string `json:"user_roles"`
}

// SaveState serialises the user-role assignment table to path. The file
// is replaced atomically.
func (e *Engine) SaveState(path string) error {
	e.mu.RLock()
	doc := stateDocument{UserRoles: make(map[string][]string, len(e.userRoles))}
	for userID := range e.userRoles {
		doc.UserRoles[userID] = e.userRolesLocked(userID)
	}
	e.mu.RUnlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("rbac: marshal state: %w", err)
	}
	if err := state.WriteFile(path, data); err != nil {
		return fmt.Errorf("rbac: save state: %w", err)
	}
	slog.Debug("rbac state saved", "path", path)
	return nil
}

// LoadState replaces the in-memory assignment table with the contents of
// the file at path. A missing file loads as an empty table. A present
// but undecodable file fails with ErrCorruptState and leaves the current
// in-memory table untouched.
func (e *Engine) LoadState(path string) error {
	data, found, err := state.ReadFile(path)
	if err != nil {
		return fmt.Errorf("rbac: load state: %w", err)
	}
	if !found {
		slog.Debug("rbac state file not found, starting empty", "path", path)
		e.mu.Lock()
		e.userRoles = make(map[string]map[string]struct{})
		e.mu.Unlock()
		return nil
	}

	var doc stateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptState, path, err)
	}

	loaded := make(map[string]map[string]struct{}, len(doc.UserRoles))
	for userID, roles := range doc.UserRoles {
		set := make(map[string]struct{}, len(roles))
		for _, name := range roles {
			set[name] = struct{}{}
		}
		loaded[userID] = set
	}

	e.mu.Lock()
	e.userRoles = loaded
	e.mu.Unlock()
	slog.Debug("rbac state loaded", "path", path, "users", len(loaded))
	return nil
}

// userRolesLocked returns the sorted role names for userID. Callers must
// hold at least the read lock.
func (e *Engine) userRolesLocked(userID string) []string {
	set := e.userRoles[userID]
	roles := make([]string, 0, len(set))
	for name := range set {
		roles = append(roles, name)
	}
	sort.Strings(roles)
	return roles
}
