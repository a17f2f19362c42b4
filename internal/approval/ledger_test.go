package approval

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerLoadMissingFile(t *testing.T) {
	ledger := NewLedger(filepath.Join(t.TempDir(), "approvals.json"))
	requests, err := ledger.Load()
	require.NoError(t, err)
	assert.Empty(t, requests)
	assert.NotNil(t, requests)
}

func TestLedgerSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "approvals.json")
	ledger := NewLedger(path)

	pending := NewRequest("bob", "add subnet", map[string]any{"cidr": "10.0.1.0/24"})
	approver := "alice"
	decided := NewRequest("bob", "resize cluster", nil)
	decided.Status = StatusApproved
	decided.ApproverID = &approver
	decided.Comments = []Comment{{UserID: "alice", Comment: "ok"}}

	require.NoError(t, ledger.Save(map[string]*Request{
		pending.ID: pending,
		decided.ID: decided,
	}))

	loaded, err := ledger.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	got := loaded[pending.ID]
	require.NotNil(t, got)
	assert.Equal(t, StatusPending, got.Status)
	assert.Nil(t, got.ApproverID)
	assert.Equal(t, "10.0.1.0/24", got.ChangeDetails["cidr"])
	assert.True(t, pending.CreatedAt.Equal(got.CreatedAt))

	got = loaded[decided.ID]
	require.NotNil(t, got)
	assert.Equal(t, StatusApproved, got.Status)
	require.NotNil(t, got.ApproverID)
	assert.Equal(t, "alice", *got.ApproverID)
	assert.Equal(t, []Comment{{UserID: "alice", Comment: "ok"}}, got.Comments)
}

func TestLedgerLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "approvals.json")
	require.NoError(t, os.WriteFile(path, []byte("not json at all"), 0o600))

	ledger := NewLedger(path)
	_, err := ledger.Load()
	assert.ErrorIs(t, err, ErrCorruptLedger)
}

func TestLedgerNullApproverOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "approvals.json")
	ledger := NewLedger(path)

	req := NewRequest("bob", "add subnet", nil)
	require.NoError(t, ledger.Save(map[string]*Request{req.ID: req}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"approver_id": null`)
	assert.Contains(t, string(data), `"status": "pending"`)
}
