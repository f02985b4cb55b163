// Package perm resolves effective permissions from scoped grants.
package perm

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/ozark-survey/cavedb/internal/model"
)

// GrantSource provides the grant rows and cave scoping data the resolver
// needs. Satisfied by the store.
type GrantSource interface {
	// GrantsFor returns every grant the user holds within the account.
	GrantsFor(ctx context.Context, userID, accountID uuid.UUID) ([]model.PermissionGrant, error)
	// CaveCounty returns the county a cave belongs to, or model.ErrNotFound.
	CaveCounty(ctx context.Context, caveID uuid.UUID) (uuid.UUID, error)
}

// Resolver collapses account-wide, county-wide, and cave-specific grants to
// a single effective decision.
type Resolver struct {
	grants GrantSource
}

// NewResolver builds a resolver over a grant source.
func NewResolver(grants GrantSource) *Resolver {
	return &Resolver{grants: grants}
}

// Resolve reports whether the user holds the key at the narrowest applicable
// scope. Precedence is cave-specific, then county-wide, then account-wide;
// the presence of any grant at a narrower applicable scope masks broader
// ones entirely, so a narrower grant never adds to a broader one — it is the
// answer. Missing grants resolve to false; only an unknown caveID is an
// error.
func (r *Resolver) Resolve(ctx context.Context, userID, accountID uuid.UUID, key model.PermissionKey, caveID *uuid.UUID) (bool, error) {
	grants, err := r.grants.GrantsFor(ctx, userID, accountID)
	if err != nil {
		return false, eris.Wrap(err, "perm: load grants")
	}

	if caveID != nil {
		countyID, err := r.grants.CaveCounty(ctx, *caveID)
		if err != nil {
			return false, eris.Wrapf(err, "perm: scope cave %s", *caveID)
		}

		if level := levelGrants(grants, model.ScopeCave, *caveID); len(level) > 0 {
			return hasKey(level, key), nil
		}
		if level := levelGrants(grants, model.ScopeCounty, countyID); len(level) > 0 {
			return hasKey(level, key), nil
		}
	}

	return hasKey(levelGrants(grants, model.ScopeAccount, uuid.Nil), key), nil
}

// ResolveCounty resolves the key for an operation scoped to a county rather
// than an existing cave, such as submitting a brand-new cave. County-wide
// grants mask account-wide ones the same way cave grants do.
func (r *Resolver) ResolveCounty(ctx context.Context, userID, accountID uuid.UUID, key model.PermissionKey, countyID uuid.UUID) (bool, error) {
	grants, err := r.grants.GrantsFor(ctx, userID, accountID)
	if err != nil {
		return false, eris.Wrap(err, "perm: load grants")
	}
	if level := levelGrants(grants, model.ScopeCounty, countyID); len(level) > 0 {
		return hasKey(level, key), nil
	}
	return hasKey(levelGrants(grants, model.ScopeAccount, uuid.Nil), key), nil
}

// levelGrants filters grants to one scope level. For cave and county levels
// the scope id must match; the account level matches every account-wide row.
func levelGrants(grants []model.PermissionGrant, kind model.ScopeKind, id uuid.UUID) []model.PermissionGrant {
	var out []model.PermissionGrant
	for _, g := range grants {
		if g.Scope.Kind() != kind {
			continue
		}
		switch kind {
		case model.ScopeCave:
			if got, _ := g.Scope.CaveID(); got != id {
				continue
			}
		case model.ScopeCounty:
			if got, _ := g.Scope.CountyID(); got != id {
				continue
			}
		}
		out = append(out, g)
	}
	return out
}

func hasKey(grants []model.PermissionGrant, key model.PermissionKey) bool {
	for _, g := range grants {
		if g.Key == key {
			return true
		}
	}
	return false
}
