package model

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus is the lifecycle state of a change request. Approved and
// Rejected are terminal.
type RequestStatus string

const (
	StatusPending  RequestStatus = "Pending"
	StatusApproved RequestStatus = "Approved"
	StatusRejected RequestStatus = "Rejected"
)

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// RequestType records how a proposal entered the system.
type RequestType string

const (
	TypeSubmission RequestType = "Submission"
	TypeImport     RequestType = "Import"
	TypeMerge      RequestType = "Merge"
	TypeInitial    RequestType = "Initial"
	TypeRename     RequestType = "Rename"
)

// Valid reports whether t is a known request type.
func (t RequestType) Valid() bool {
	switch t {
	case TypeSubmission, TypeImport, TypeMerge, TypeInitial, TypeRename:
		return true
	}
	return false
}

// ChangeRequest is a proposed edit to a cave (or a proposed new cave when
// CaveID is nil), captured as a full snapshot plus the diff computed against
// the store at submission time. Immutable once resolved, except for the
// permanently attached history records.
type ChangeRequest struct {
	ID          uuid.UUID     `json:"id"`
	CaveID      *uuid.UUID    `json:"cave_id,omitempty"`
	AccountID   uuid.UUID     `json:"account_id"`
	SubmitterID uuid.UUID     `json:"submitter_id"`
	Status      RequestStatus `json:"status"`
	Type        RequestType   `json:"type"`
	ReviewerID  *uuid.UUID    `json:"reviewer_id,omitempty"`
	ReviewedOn  *time.Time    `json:"reviewed_on,omitempty"`
	Notes       string        `json:"notes,omitempty"`
	Snapshot    CaveSnapshot  `json:"snapshot"`
	Original    *CaveSnapshot `json:"original,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// IsNewCave reports whether the request proposes a brand-new cave.
func (r ChangeRequest) IsNewCave() bool {
	return r.CaveID == nil
}
