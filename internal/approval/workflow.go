// Package approval enforces the change-approval request lifecycle.
// Requests move pending -> approved | rejected | cancelled, every
// privileged transition is gated through the RBAC engine by permission
// (never by role-name match), and every mutation is written through to
// the ledger before it is applied in memory.
package approval

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/cloudcraver/cloudcraver/internal/audit"
	"github.com/cloudcraver/cloudcraver/internal/rbac"
)

var (
	// ErrDuplicateRequest is returned when creating a request whose id
	// already exists in the ledger.
	ErrDuplicateRequest = errors.New("approval: request already exists")
	// ErrRequestNotFound is returned when acting on an unknown request id.
	ErrRequestNotFound = errors.New("approval: request not found")
	// ErrInvalidTransition is returned when acting on a request that has
	// already left the pending state.
	ErrInvalidTransition = errors.New("approval: request is not pending")
	// ErrPermissionDenied is returned when the actor lacks the permission
	// a transition requires.
	ErrPermissionDenied = errors.New("approval: permission denied")
)

// Authorizer answers permission queries for workflow gates. Satisfied by
// *rbac.Engine; the workflow only ever reads from it.
type Authorizer interface {
	HasPermission(userID, permission string) bool
}

// Workflow owns the approval ledger and its lifecycle. All mutators take
// the acting user id explicitly; there is no ambient "current user".
type Workflow struct {
	mu       sync.RWMutex
	authz    Authorizer
	recorder audit.Recorder
	ledger   *Ledger
	requests map[string]*Request
	now      func() time.Time
}

// NewWorkflow loads the ledger at storagePath and returns a workflow
// gated by authz. A missing ledger file starts empty; a corrupt one is a
// hard failure so the caller never proceeds on inconsistent state.
func NewWorkflow(authz Authorizer, recorder audit.Recorder, storagePath string) (*Workflow, error) {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	ledger := NewLedger(storagePath)
	requests, err := ledger.Load()
	if err != nil {
		return nil, err
	}
	return &Workflow{
		authz:    authz,
		recorder: recorder,
		ledger:   ledger,
		requests: requests,
		now:      time.Now,
	}, nil
}

// CreateRequest inserts a new pending request into the ledger. The
// ledger is persisted before the insert becomes visible.
func (w *Workflow) CreateRequest(req *Request) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.requests[req.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRequest, req.ID)
	}

	next := maps.Clone(w.requests)
	next[req.ID] = req.clone()
	if err := w.ledger.Save(next); err != nil {
		return err
	}
	w.requests = next

	slog.Info("approval request created", "request", req.ID, "requester", req.RequesterID)
	w.record(audit.EventChangeRequested, req.RequesterID, req.ID,
		map[string]any{"summary": req.ChangeSummary}, audit.StatusSuccess)
	return nil
}

// ApproveRequest transitions a pending request to approved. The approver
// must hold the approvals:approve permission; any role granting it
// qualifies.
func (w *Workflow) ApproveRequest(requestID, approverID, comment string) error {
	return w.decide(requestID, approverID, comment, StatusApproved,
		rbac.PermApproveChanges, audit.EventChangeApproved)
}

// RejectRequest transitions a pending request to rejected. Requires the
// approvals:reject permission.
func (w *Workflow) RejectRequest(requestID, approverID, comment string) error {
	return w.decide(requestID, approverID, comment, StatusRejected,
		rbac.PermRejectChanges, audit.EventChangeRejected)
}

func (w *Workflow) decide(requestID, approverID, comment string, to Status, permission string, event audit.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	cur, ok := w.requests[requestID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
	}
	if cur.Status != StatusPending {
		return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, requestID, cur.Status)
	}
	if !w.authz.HasPermission(approverID, permission) {
		w.record(audit.EventPermissionDenied, approverID, requestID,
			map[string]any{"permission": permission}, audit.StatusDenied)
		return fmt.Errorf("%w: %s required", ErrPermissionDenied, permission)
	}

	updated := cur.clone()
	updated.Status = to
	updated.ApproverID = &approverID
	updated.UpdatedAt = w.now().UTC()
	if comment != "" {
		updated.Comments = append(updated.Comments, Comment{UserID: approverID, Comment: comment})
	}

	next := maps.Clone(w.requests)
	next[requestID] = updated
	if err := w.ledger.Save(next); err != nil {
		return err
	}
	w.requests = next

	slog.Info("approval request decided", "request", requestID, "status", to, "approver", approverID)
	w.record(event, approverID, requestID, map[string]any{"comment": comment}, audit.StatusSuccess)
	return nil
}

// CancelRequest withdraws a pending request. Only the original requester
// may cancel their own request, unless the actor holds system:admin.
// Cancellation records no approver: approver_id stays null.
func (w *Workflow) CancelRequest(requestID, actorID, comment string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	cur, ok := w.requests[requestID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
	}
	if cur.Status != StatusPending {
		return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, requestID, cur.Status)
	}
	if actorID != cur.RequesterID && !w.authz.HasPermission(actorID, rbac.PermAdminAccess) {
		w.record(audit.EventPermissionDenied, actorID, requestID,
			map[string]any{"permission": rbac.PermAdminAccess}, audit.StatusDenied)
		return fmt.Errorf("%w: only the requester or an admin may cancel", ErrPermissionDenied)
	}

	updated := cur.clone()
	updated.Status = StatusCancelled
	updated.UpdatedAt = w.now().UTC()
	if comment != "" {
		updated.Comments = append(updated.Comments, Comment{UserID: actorID, Comment: comment})
	}

	next := maps.Clone(w.requests)
	next[requestID] = updated
	if err := w.ledger.Save(next); err != nil {
		return err
	}
	w.requests = next

	slog.Info("approval request cancelled", "request", requestID, "actor", actorID)
	w.record(audit.EventChangeCancelled, actorID, requestID, map[string]any{"comment": comment}, audit.StatusSuccess)
	return nil
}

// GetRequest returns a copy of the request with the given id.
func (w *Workflow) GetRequest(requestID string) (*Request, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	req, ok := w.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
	}
	return req.clone(), nil
}

// ListPendingRequests returns all pending requests ordered by creation
// time, oldest first.
func (w *Workflow) ListPendingRequests() []*Request {
	w.mu.RLock()
	defer w.mu.RUnlock()
	pending := lo.Filter(lo.Values(w.requests), func(r *Request, _ int) bool {
		return r.Status == StatusPending
	})
	return sortedCopies(pending)
}

// ListRequests returns every request in the ledger ordered by creation
// time, oldest first.
func (w *Workflow) ListRequests() []*Request {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return sortedCopies(lo.Values(w.requests))
}

func sortedCopies(requests []*Request) []*Request {
	out := lo.Map(requests, func(r *Request, _ int) *Request { return r.clone() })
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (w *Workflow) record(event audit.Event, actorID, targetID string, details map[string]any, status string) {
	if err := w.recorder.Record(event, actorID, targetID, details, status); err != nil {
		slog.Warn("failed to record audit event", "event", event, "error", err)
	}
}
