// Package rbac is the authoritative source of "who can do what". It owns
// role definitions and the user to role-set assignment table, answers
// permission queries, and persists the assignment table between CLI
// invocations. Role definitions are configuration, not state: only the
// assignments are written to disk.
package rbac

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/cloudcraver/cloudcraver/internal/audit"
)

var (
	// ErrDuplicateRole is returned when registering a role name that
	// already exists.
	ErrDuplicateRole = errors.New("rbac: role already exists")
	// ErrUnknownRole is returned when assigning a role that was never
	// registered.
	ErrUnknownRole = errors.New("rbac: role does not exist")
	// ErrCorruptState is returned when the assignment store exists on
	// disk but cannot be decoded.
	ErrCorruptState = errors.New("rbac: state file is corrupt")
)

// Role bundles a set of permission tokens under a name.
type Role struct {
	Name        string
	Permissions map[string]struct{}
}

// NewRole constructs a role owning its own permission set.
func NewRole(name string, permissions ...string) Role {
	set := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		set[p] = struct{}{}
	}
	return Role{Name: name, Permissions: set}
}

// HasPermission reports whether the role grants the permission.
func (r Role) HasPermission(permission string) bool {
	_, ok := r.Permissions[permission]
	return ok
}

// PermissionList returns the role's permissions sorted for display.
func (r Role) PermissionList() []string {
	perms := make([]string, 0, len(r.Permissions))
	for p := range r.Permissions {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return perms
}

func (r Role) clone() Role {
	out := Role{Name: r.Name, Permissions: make(map[string]struct{}, len(r.Permissions))}
	for p := range r.Permissions {
		out.Permissions[p] = struct{}{}
	}
	return out
}

// Engine manages roles, user-role assignments, and permission checks.
// The role table is read-mostly; assignment mutations take the write
// lock. Audit failures are logged as warnings and never fail the
// underlying operation.
type Engine struct {
	mu        sync.RWMutex
	roles     map[string]Role
	userRoles map[string]map[string]struct{}
	recorder  audit.Recorder
}

// NewEngine constructs an engine seeded with the default role table.
// Every engine gets its own copy of the defaults, so mutating one
// engine's roles can never leak into another's.
func NewEngine(recorder audit.Recorder) *Engine {
	return NewEngineWithRoles(DefaultRoles(), recorder)
}

// NewEngineWithRoles constructs an engine with an explicit role table,
// bypassing the defaults. Used by callers that need full control over
// the registered roles, tests included.
func NewEngineWithRoles(roles []Role, recorder audit.Recorder) *Engine {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	table := make(map[string]Role, len(roles))
	for _, role := range roles {
		table[role.Name] = role.clone()
	}
	return &Engine{
		roles:     table,
		userRoles: make(map[string]map[string]struct{}),
		recorder:  recorder,
	}
}

// AddRole registers a new role. Registering an existing name fails with
// ErrDuplicateRole and leaves the table untouched.
func (e *Engine) AddRole(role Role) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.roles[role.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateRole, role.Name)
	}
	e.roles[role.Name] = role.clone()
	slog.Info("role added", "role", role.Name)
	return nil
}

// Roles returns the registered roles sorted by name.
func (e *Engine) Roles() []Role {
	e.mu.RLock()
	defer e.mu.RUnlock()
	roles := make([]Role, 0, len(e.roles))
	for _, role := range e.roles {
		roles = append(roles, role.clone())
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles
}

// AssignRole adds roleName to the user's role set, creating the user's
// entry if absent. Assigning an already-held role is a no-op success.
// Fails with ErrUnknownRole if the role was never registered. The actor
// performing the assignment is threaded through for audit attribution.
func (e *Engine) AssignRole(actorID, userID, roleName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.roles[roleName]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRole, roleName)
	}
	set, ok := e.userRoles[userID]
	if !ok {
		set = make(map[string]struct{})
		e.userRoles[userID] = set
	}
	if _, held := set[roleName]; held {
		return nil
	}
	set[roleName] = struct{}{}
	slog.Info("role assigned", "actor", actorID, "user", userID, "role", roleName)
	e.record(audit.EventRoleAssigned, actorID, userID, map[string]any{"role": roleName})
	return nil
}

// RemoveRole removes roleName from the user's role set. Removing an
// unassigned role is a no-op.
func (e *Engine) RemoveRole(actorID, userID, roleName string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	set, ok := e.userRoles[userID]
	if !ok {
		return
	}
	if _, held := set[roleName]; !held {
		return
	}
	delete(set, roleName)
	slog.Info("role removed", "actor", actorID, "user", userID, "role", roleName)
	e.record(audit.EventRoleRemoved, actorID, userID, map[string]any{"role": roleName})
}

// UserRoles returns the role names assigned to the user, sorted.
func (e *Engine) UserRoles(userID string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.userRolesLocked(userID)
}

// UserPermissions returns the union of permissions of every role
// assigned to the user, sorted. Unknown users have no permissions, and
// a dangling role name in the assignment table contributes nothing.
func (e *Engine) UserPermissions(userID string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	union := make(map[string]struct{})
	for roleName := range e.userRoles[userID] {
		role, ok := e.roles[roleName]
		if !ok {
			continue
		}
		for p := range role.Permissions {
			union[p] = struct{}{}
		}
	}
	perms := make([]string, 0, len(union))
	for p := range union {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return perms
}

// HasPermission reports whether any role assigned to the user grants the
// permission.
func (e *Engine) HasPermission(userID, permission string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for roleName := range e.userRoles[userID] {
		role, ok := e.roles[roleName]
		if !ok {
			continue
		}
		if role.HasPermission(permission) {
			return true
		}
	}
	return false
}

// HasAssignments reports whether any user holds any role. Used to decide
// whether the engine still needs bootstrapping.
func (e *Engine) HasAssignments() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, set := range e.userRoles {
		if len(set) > 0 {
			return true
		}
	}
	return false
}

func (e *Engine) record(event audit.Event, actorID, targetID string, details map[string]any) {
	if err := e.recorder.Record(event, actorID, targetID, details, audit.StatusSuccess); err != nil {
		slog.Warn("failed to record audit event", "event", event, "error", err)
	}
}
