package model

import (
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// PermissionKey names a capability a grant confers.
type PermissionKey string

const (
	// PermView allows reading caves and submitting change requests.
	PermView PermissionKey = "View"
	// PermManage allows reviewing, approving, and rejecting change requests.
	PermManage PermissionKey = "Manage"
)

// Valid reports whether k is a known permission key.
func (k PermissionKey) Valid() bool {
	return k == PermView || k == PermManage
}

// ScopeKind discriminates the breadth of a grant.
type ScopeKind string

const (
	ScopeAccount ScopeKind = "account"
	ScopeCounty  ScopeKind = "county"
	ScopeCave    ScopeKind = "cave"
)

// Scope is the breadth at which a grant applies: the whole account, one
// county, or one cave. The zero value is account-wide.
type Scope struct {
	kind ScopeKind
	id   uuid.UUID
}

// AccountWide returns the broadest scope.
func AccountWide() Scope {
	return Scope{kind: ScopeAccount}
}

// CountyScope returns a scope covering one county.
func CountyScope(countyID uuid.UUID) Scope {
	return Scope{kind: ScopeCounty, id: countyID}
}

// CaveScope returns a scope covering one cave.
func CaveScope(caveID uuid.UUID) Scope {
	return Scope{kind: ScopeCave, id: caveID}
}

// Kind returns the scope discriminator.
func (s Scope) Kind() ScopeKind {
	if s.kind == "" {
		return ScopeAccount
	}
	return s.kind
}

// CountyID returns the county id and whether the scope is county-wide.
func (s Scope) CountyID() (uuid.UUID, bool) {
	if s.Kind() != ScopeCounty {
		return uuid.Nil, false
	}
	return s.id, true
}

// CaveID returns the cave id and whether the scope is cave-specific.
func (s Scope) CaveID() (uuid.UUID, bool) {
	if s.Kind() != ScopeCave {
		return uuid.Nil, false
	}
	return s.id, true
}

// NewScope builds a scope from the nullable county/cave pair used by the
// permission_grants table. Both set is a constraint violation.
func NewScope(countyID, caveID *uuid.UUID) (Scope, error) {
	switch {
	case countyID != nil && caveID != nil:
		return Scope{}, eris.New("model: grant scope has both county and cave")
	case caveID != nil:
		return CaveScope(*caveID), nil
	case countyID != nil:
		return CountyScope(*countyID), nil
	default:
		return AccountWide(), nil
	}
}

// PermissionGrant is one stored grant row. Grants are owned by account
// administration and read-only to this subsystem.
type PermissionGrant struct {
	UserID    uuid.UUID     `json:"user_id"`
	AccountID uuid.UUID     `json:"account_id"`
	Key       PermissionKey `json:"key"`
	Scope     Scope         `json:"scope"`
}
