package approval

import (
	"time"

	"github.com/google/uuid"
)

// Status of an approval request. Pending is the only non-terminal state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// DefaultApproverRole is the role expected to act on a request when the
// caller does not name one.
const DefaultApproverRole = "Approver"

// Comment is one remark attached to a request.
type Comment struct {
	UserID  string `json:"user_id"`
	Comment string `json:"comment"`
}

// Request is one proposed infrastructure change awaiting sign-off. The
// identifying fields and the change payload are immutable after
// creation; only the status, approver, timestamps, and comments move.
type Request struct {
	ID            string         `json:"id"`
	RequesterID   string         `json:"requester_id"`
	ChangeSummary string         `json:"change_summary"`
	ChangeDetails map[string]any `json:"change_details"`
	ApproverRole  string         `json:"approver_role"`
	Status        Status         `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	ApproverID    *string        `json:"approver_id"`
	Comments      []Comment      `json:"comments"`
}

// NewRequest constructs a pending request with a generated id and UTC
// timestamps.
func NewRequest(requesterID, changeSummary string, changeDetails map[string]any) *Request {
	now := time.Now().UTC()
	if changeDetails == nil {
		changeDetails = map[string]any{}
	}
	return &Request{
		ID:            uuid.NewString(),
		RequesterID:   requesterID,
		ChangeSummary: changeSummary,
		ChangeDetails: changeDetails,
		ApproverRole:  DefaultApproverRole,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
		Comments:      []Comment{},
	}
}

// clone returns a deep copy so callers can never reach into the
// workflow's ledger through a returned record.
func (r *Request) clone() *Request {
	out := *r
	out.ChangeDetails = make(map[string]any, len(r.ChangeDetails))
	for k, v := range r.ChangeDetails {
		out.ChangeDetails[k] = v
	}
	out.Comments = make([]Comment, len(r.Comments))
	copy(out.Comments, r.Comments)
	if r.ApproverID != nil {
		approver := *r.ApproverID
		out.ApproverID = &approver
	}
	return &out
}
