package approval

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudcraver/cloudcraver/internal/audit"
	"github.com/cloudcraver/cloudcraver/internal/rbac"
)

// newTestWorkflow wires a workflow to a default-role engine with "alice"
// holding Approver and a fresh ledger file.
func newTestWorkflow(t *testing.T, recorder audit.Recorder) (*Workflow, *rbac.Engine) {
	t.Helper()
	engine := rbac.NewEngine(audit.NopRecorder{})
	require.NoError(t, engine.AssignRole("admin", "alice", rbac.RoleApprover))

	workflow, err := NewWorkflow(engine, recorder, filepath.Join(t.TempDir(), "approvals.json"))
	require.NoError(t, err)
	return workflow, engine
}

func TestCreateRequestAppearsPendingExactlyOnce(t *testing.T) {
	workflow, _ := newTestWorkflow(t, audit.NopRecorder{})

	req := NewRequest("bob", "add subnet", map[string]any{"cidr": "10.0.1.0/24"})
	require.NoError(t, workflow.CreateRequest(req))

	pending := workflow.ListPendingRequests()
	require.Len(t, pending, 1)
	assert.Equal(t, req.ID, pending[0].ID)
	assert.Equal(t, StatusPending, pending[0].Status)
	assert.Equal(t, "bob", pending[0].RequesterID)
	assert.Nil(t, pending[0].ApproverID)
}

func TestCreateDuplicateRequest(t *testing.T) {
	workflow, _ := newTestWorkflow(t, audit.NopRecorder{})

	req := NewRequest("bob", "add subnet", nil)
	require.NoError(t, workflow.CreateRequest(req))
	err := workflow.CreateRequest(req)
	assert.ErrorIs(t, err, ErrDuplicateRequest)
	assert.Len(t, workflow.ListPendingRequests(), 1)
}

func TestApprovalScenario(t *testing.T) {
	// bob (no roles) requests a change; bob cannot approve it himself;
	// alice (Approver) can.
	recorder := audit.NewMemoryRecorder()
	workflow, _ := newTestWorkflow(t, recorder)

	req := NewRequest("bob", "add subnet", nil)
	require.NoError(t, workflow.CreateRequest(req))

	err := workflow.ApproveRequest(req.ID, "bob", "")
	require.ErrorIs(t, err, ErrPermissionDenied)

	got, err := workflow.GetRequest(req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Nil(t, got.ApproverID)

	require.NoError(t, workflow.ApproveRequest(req.ID, "alice", "looks good"))

	got, err = workflow.GetRequest(req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
	require.NotNil(t, got.ApproverID)
	assert.Equal(t, "alice", *got.ApproverID)
	assert.Equal(t, []Comment{{UserID: "alice", Comment: "looks good"}}, got.Comments)

	events := recorder.Entries()
	require.Len(t, events, 3)
	assert.Equal(t, audit.EventChangeRequested, events[0].Event)
	assert.Equal(t, audit.EventPermissionDenied, events[1].Event)
	assert.Equal(t, audit.StatusDenied, events[1].Status)
	assert.Equal(t, rbac.PermApproveChanges, events[1].Details["permission"])
	assert.Equal(t, audit.EventChangeApproved, events[2].Event)
	assert.Equal(t, "alice", events[2].ActorID)
}

func TestApproveTwiceLeavesRecordUnchanged(t *testing.T) {
	workflow, _ := newTestWorkflow(t, audit.NopRecorder{})

	req := NewRequest("bob", "resize cluster", nil)
	require.NoError(t, workflow.CreateRequest(req))
	require.NoError(t, workflow.ApproveRequest(req.ID, "alice", ""))

	first, err := workflow.GetRequest(req.ID)
	require.NoError(t, err)

	err = workflow.ApproveRequest(req.ID, "alice", "again")
	require.ErrorIs(t, err, ErrInvalidTransition)

	second, err := workflow.GetRequest(req.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.ApproverID, second.ApproverID)
	assert.True(t, first.UpdatedAt.Equal(second.UpdatedAt))
	assert.Equal(t, first.Comments, second.Comments)
}

func TestRejectRequest(t *testing.T) {
	workflow, _ := newTestWorkflow(t, audit.NopRecorder{})

	req := NewRequest("bob", "drop database", nil)
	require.NoError(t, workflow.CreateRequest(req))
	require.NoError(t, workflow.RejectRequest(req.ID, "alice", "absolutely not"))

	got, err := workflow.GetRequest(req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, got.Status)
	require.NotNil(t, got.ApproverID)
	assert.Equal(t, "alice", *got.ApproverID)
	assert.Empty(t, workflow.ListPendingRequests())
}

func TestDecisionGateIsPermissionNotRoleName(t *testing.T) {
	// Any role granting approvals:approve qualifies, not just "Approver".
	engine := rbac.NewEngine(audit.NopRecorder{})
	require.NoError(t, engine.AddRole(rbac.NewRole("ReleaseManager", rbac.PermApproveChanges)))
	require.NoError(t, engine.AssignRole("admin", "carol", "ReleaseManager"))

	workflow, err := NewWorkflow(engine, audit.NopRecorder{}, filepath.Join(t.TempDir(), "approvals.json"))
	require.NoError(t, err)

	req := NewRequest("bob", "rotate keys", nil)
	require.NoError(t, workflow.CreateRequest(req))
	require.NoError(t, workflow.ApproveRequest(req.ID, "carol", ""))

	// approvals:approve does not imply approvals:reject.
	second := NewRequest("bob", "rotate keys again", nil)
	require.NoError(t, workflow.CreateRequest(second))
	err = workflow.RejectRequest(second.ID, "carol", "")
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestUnknownRequest(t *testing.T) {
	workflow, _ := newTestWorkflow(t, audit.NopRecorder{})

	err := workflow.ApproveRequest("nope", "alice", "")
	assert.ErrorIs(t, err, ErrRequestNotFound)
	_, err = workflow.GetRequest("nope")
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestCancelRequest(t *testing.T) {
	workflow, engine := newTestWorkflow(t, audit.NopRecorder{})
	require.NoError(t, engine.AssignRole("admin", "root", rbac.RoleAdmin))

	// The requester may cancel their own pending request.
	mine := NewRequest("bob", "add subnet", nil)
	require.NoError(t, workflow.CreateRequest(mine))
	require.NoError(t, workflow.CancelRequest(mine.ID, "bob", "changed my mind"))

	got, err := workflow.GetRequest(mine.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Nil(t, got.ApproverID) // cancellation records no approver

	// A stranger may not.
	theirs := NewRequest("bob", "remove subnet", nil)
	require.NoError(t, workflow.CreateRequest(theirs))
	err = workflow.CancelRequest(theirs.ID, "mallory", "")
	require.ErrorIs(t, err, ErrPermissionDenied)

	// An admin may.
	require.NoError(t, workflow.CancelRequest(theirs.ID, "root", "superseded"))
	got, err = workflow.GetRequest(theirs.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)

	// Cancelled is terminal.
	err = workflow.ApproveRequest(mine.ID, "alice", "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestListPendingOrderedByCreation(t *testing.T) {
	workflow, _ := newTestWorkflow(t, audit.NopRecorder{})

	base := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	for i, summary := range []string{"first", "second", "third"} {
		req := NewRequest("bob", summary, nil)
		req.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		req.UpdatedAt = req.CreatedAt
		require.NoError(t, workflow.CreateRequest(req))
	}

	pending := workflow.ListPendingRequests()
	require.Len(t, pending, 3)
	assert.Equal(t, "first", pending[0].ChangeSummary)
	assert.Equal(t, "second", pending[1].ChangeSummary)
	assert.Equal(t, "third", pending[2].ChangeSummary)
}

func TestLedgerRoundTripThroughFreshWorkflow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "approvals.json")
	engine := rbac.NewEngine(audit.NopRecorder{})
	require.NoError(t, engine.AssignRole("admin", "alice", rbac.RoleApprover))

	workflow, err := NewWorkflow(engine, audit.NopRecorder{}, path)
	require.NoError(t, err)

	open := NewRequest("bob", "add subnet", map[string]any{"cidr": "10.0.1.0/24"})
	decided := NewRequest("bob", "resize cluster", nil)
	require.NoError(t, workflow.CreateRequest(open))
	require.NoError(t, workflow.CreateRequest(decided))
	require.NoError(t, workflow.ApproveRequest(decided.ID, "alice", "ok"))

	reloaded, err := NewWorkflow(engine, audit.NopRecorder{}, path)
	require.NoError(t, err)

	before := workflow.ListPendingRequests()
	after := reloaded.ListPendingRequests()
	require.Len(t, after, 1)
	assert.Equal(t, before[0].ID, after[0].ID)
	assert.Equal(t, before[0].ChangeSummary, after[0].ChangeSummary)
	assert.True(t, before[0].CreatedAt.Equal(after[0].CreatedAt))

	all := reloaded.ListRequests()
	require.Len(t, all, 2)
	got, err := reloaded.GetRequest(decided.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
	require.NotNil(t, got.ApproverID)
	assert.Equal(t, "alice", *got.ApproverID)
}

func TestFailedPersistLeavesLedgerUnchanged(t *testing.T) {
	workflow, _ := newTestWorkflow(t, audit.NopRecorder{})

	req := NewRequest("bob", "add subnet", nil)
	require.NoError(t, workflow.CreateRequest(req))

	// Point the ledger somewhere unwritable: the parent path is a file,
	// so the save must fail before any in-memory mutation applies.
	blocked := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0o600))
	workflow.ledger = NewLedger(filepath.Join(blocked, "sub", "approvals.json"))

	err := workflow.ApproveRequest(req.ID, "alice", "")
	require.Error(t, err)

	got, gerr := workflow.GetRequest(req.ID)
	require.NoError(t, gerr)
	assert.Equal(t, StatusPending, got.Status)
	assert.Nil(t, got.ApproverID)
}

func TestReturnedRequestsAreCopies(t *testing.T) {
	workflow, _ := newTestWorkflow(t, audit.NopRecorder{})

	req := NewRequest("bob", "add subnet", map[string]any{"cidr": "10.0.1.0/24"})
	require.NoError(t, workflow.CreateRequest(req))

	leaked := workflow.ListPendingRequests()[0]
	leaked.Status = StatusApproved
	leaked.ChangeDetails["cidr"] = "tampered"
	leaked.Comments = append(leaked.Comments, Comment{UserID: "mallory", Comment: "hi"})

	got, err := workflow.GetRequest(req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, "10.0.1.0/24", got.ChangeDetails["cidr"])
	assert.Empty(t, got.Comments)
}
