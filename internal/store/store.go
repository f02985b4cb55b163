package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/ozark-survey/cavedb/internal/model"
)

// RequestFilter specifies criteria for listing change requests.
type RequestFilter struct {
	AccountID uuid.UUID           `json:"account_id"`
	Status    model.RequestStatus `json:"status,omitempty"`
	Limit     int                 `json:"limit,omitempty"`
	Offset    int                 `json:"offset,omitempty"`
}

// Store is the persistence interface for the cave aggregate and the review
// subsystem. It owns no business rules beyond uniqueness constraints.
type Store interface {
	// Cave aggregate reads
	CaveSnapshot(ctx context.Context, caveID uuid.UUID) (*model.CaveSnapshot, error)
	CaveCounty(ctx context.Context, caveID uuid.UUID) (uuid.UUID, error)
	CaveDisplay(ctx context.Context, caveID uuid.UUID) (stateAbbrev, countyName string, err error)
	CountyInAccount(ctx context.Context, accountID, countyID uuid.UUID) (bool, error)
	// MissingTags returns the subset of ids with no tag row in the account.
	MissingTags(ctx context.Context, accountID uuid.UUID, tagIDs []uuid.UUID) ([]uuid.UUID, error)

	// Change requests
	CreateChangeRequest(ctx context.Context, req model.ChangeRequest, records []model.ChangeRecord) error
	ChangeRequest(ctx context.Context, id uuid.UUID) (*model.ChangeRequest, error)
	ChangeRecords(ctx context.Context, requestID uuid.UUID) ([]model.ChangeRecord, error)
	ListChangeRequests(ctx context.Context, filter RequestFilter) ([]model.ChangeRequest, error)
	CaveHistory(ctx context.Context, caveID uuid.UUID) ([]model.ChangeRecord, error)
	ResolveRequest(ctx context.Context, requestID, reviewerID uuid.UUID, status model.RequestStatus, notes string) error

	// Permission grants (read-only to this subsystem)
	GrantsFor(ctx context.Context, userID, accountID uuid.UUID) ([]model.PermissionGrant, error)

	// InTx runs fn inside a serializable transaction; fn's error rolls the
	// transaction back.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Tx is the transactional surface available during approval. Everything here
// commits or rolls back atomically with the surrounding InTx call.
type Tx interface {
	// CaveSnapshot re-reads the live aggregate inside the transaction.
	CaveSnapshot(ctx context.Context, caveID uuid.UUID) (*model.CaveSnapshot, error)
	// NextCountyNumber returns max(county_number)+1 for the county. The
	// unique constraint on (account_id, county_id, county_number) backstops
	// races; callers retry the whole transaction on violation.
	NextCountyNumber(ctx context.Context, accountID, countyID uuid.UUID) (int, error)
	// ApplySnapshot materializes the snapshot: upserts the cave row,
	// reconciles the entrance collection, and fully replaces every tag set.
	ApplySnapshot(ctx context.Context, snap model.CaveSnapshot) error
	// ReplaceChangeRecords discards the request's stored records and persists
	// the given ones as the permanent history.
	ReplaceChangeRecords(ctx context.Context, requestID uuid.UUID, records []model.ChangeRecord) error
	// ResolveRequest marks the request Approved or Rejected.
	ResolveRequest(ctx context.Context, requestID, reviewerID uuid.UUID, status model.RequestStatus, notes string) error
}

// GrantWriter is implemented by stores that support seeding permission
// grants. Grant administration is otherwise outside this subsystem.
type GrantWriter interface {
	PutGrant(ctx context.Context, grant model.PermissionGrant) error
}
