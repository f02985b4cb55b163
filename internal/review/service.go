// Package review implements change request submission, listing, and the
// approve/reject workflow.
package review

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ozark-survey/cavedb/internal/diff"
	"github.com/ozark-survey/cavedb/internal/model"
	"github.com/ozark-survey/cavedb/internal/notify"
	"github.com/ozark-survey/cavedb/internal/perm"
	"github.com/ozark-survey/cavedb/internal/store"
)

// approveRetries bounds how many times an approval transaction is restarted
// after a serialization failure or county-number collision.
const approveRetries = 3

// Permissions is the subset of the resolver the service depends on.
type Permissions interface {
	Resolve(ctx context.Context, userID, accountID uuid.UUID, key model.PermissionKey, caveID *uuid.UUID) (bool, error)
	ResolveCounty(ctx context.Context, userID, accountID uuid.UUID, key model.PermissionKey, countyID uuid.UUID) (bool, error)
}

var _ Permissions = (*perm.Resolver)(nil)

// Service coordinates the change request lifecycle: diffing proposed
// snapshots, persisting pending requests, and materializing approvals.
type Service struct {
	store    store.Store
	perms    Permissions
	notifier notify.Notifier
}

// NewService builds a review service. A nil notifier disables notifications.
func NewService(st store.Store, perms Permissions, notifier notify.Notifier) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{store: st, perms: perms, notifier: notifier}
}

// SubmitInput carries one proposed snapshot into the review queue.
type SubmitInput struct {
	UserID    uuid.UUID
	AccountID uuid.UUID
	Type      model.RequestType
	Notes     string
	Snapshot  model.CaveSnapshot
}

// Submit validates and diffs a proposed snapshot, then persists it as a
// pending change request. For edits the diff baseline is the live cave; for
// new caves the whole snapshot becomes additions.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*model.ChangeRequest, error) {
	if err := s.validateSnapshot(ctx, in.AccountID, in.Snapshot); err != nil {
		return nil, err
	}

	reqType := in.Type
	if reqType == "" {
		reqType = model.TypeSubmission
	}
	if !reqType.Valid() {
		return nil, eris.Wrapf(model.ErrValidation, "unknown request type %q", reqType)
	}

	var (
		original *model.CaveSnapshot
		caveID   *uuid.UUID
	)
	isNew := in.Snapshot.ID == uuid.Nil
	if isNew {
		in.Snapshot.ID = uuid.New()

		allowed, err := s.perms.ResolveCounty(ctx, in.UserID, in.AccountID, model.PermView, in.Snapshot.CountyID)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, eris.Wrap(model.ErrPermissionDenied, "submit new cave")
		}
	} else {
		id := in.Snapshot.ID
		caveID = &id

		allowed, err := s.perms.Resolve(ctx, in.UserID, in.AccountID, model.PermView, caveID)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, eris.Wrap(model.ErrPermissionDenied, "submit cave edit")
		}

		original, err = s.store.CaveSnapshot(ctx, id)
		if err != nil {
			return nil, err
		}
		if original.AccountID != in.AccountID {
			return nil, eris.Wrapf(model.ErrNotFound, "cave %s", id)
		}
		// County number is immutable once issued; carry it forward so the
		// diff and the approval apply cannot disturb it.
		in.Snapshot.CountyNumber = original.CountyNumber
	}
	// Clients omit ids for entrances they are adding, on edits as well as
	// new caves. Issue them here so the diff and the apply see stable ids.
	for i := range in.Snapshot.Entrances {
		if in.Snapshot.Entrances[i].ID == uuid.Nil {
			in.Snapshot.Entrances[i].ID = uuid.New()
		}
		in.Snapshot.Entrances[i].CaveID = in.Snapshot.ID
	}
	in.Snapshot.AccountID = in.AccountID

	records, err := diff.Snapshots(original, in.Snapshot)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, eris.Wrap(model.ErrValidation, "snapshot is identical to the current cave")
	}

	req := model.ChangeRequest{
		ID:          uuid.New(),
		CaveID:      caveID,
		AccountID:   in.AccountID,
		SubmitterID: in.UserID,
		Status:      model.StatusPending,
		Type:        reqType,
		Notes:       in.Notes,
		Snapshot:    in.Snapshot,
		Original:    original,
		CreatedAt:   time.Now().UTC(),
	}
	for i := range records {
		records[i].ChangeRequestID = req.ID
	}

	if err := s.store.CreateChangeRequest(ctx, req, records); err != nil {
		return nil, err
	}
	zap.L().Info("review: change request submitted",
		zap.String("request_id", req.ID.String()),
		zap.String("submitter_id", in.UserID.String()),
		zap.Bool("new_cave", isNew),
		zap.Int("records", len(records)),
	)

	s.publish(ctx, notify.Event{
		Kind:        notify.EventSubmitted,
		RequestID:   req.ID,
		CaveID:      req.CaveID,
		AccountID:   req.AccountID,
		ActorID:     in.UserID,
		Status:      req.Status,
		RecordCount: len(records),
		OccurredAt:  req.CreatedAt,
	})
	return &req, nil
}

// validateSnapshot enforces referential validity within the account before a
// snapshot enters the queue: county membership, tag existence, coordinate
// ranges, and the single-primary-entrance rule.
func (s *Service) validateSnapshot(ctx context.Context, accountID uuid.UUID, snap model.CaveSnapshot) error {
	if snap.Name == "" {
		return eris.Wrap(model.ErrValidation, "cave name is required")
	}
	if snap.CountyID == uuid.Nil || snap.StateID == uuid.Nil {
		return eris.Wrap(model.ErrValidation, "state and county are required")
	}
	if err := snap.CheckPrimaryInvariant(); err != nil {
		return eris.Wrap(model.ErrValidation, "exactly one primary entrance is required")
	}

	ok, err := s.store.CountyInAccount(ctx, accountID, snap.CountyID)
	if err != nil {
		return err
	}
	if !ok {
		return eris.Wrapf(model.ErrValidation, "county %s does not belong to the account", snap.CountyID)
	}

	missing, err := s.store.MissingTags(ctx, accountID, snap.AllTagIDs())
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return eris.Wrapf(model.ErrValidation, "unknown tag %s", missing[0])
	}

	for _, e := range snap.Entrances {
		if err := e.Location.Validate(); err != nil {
			return err
		}
		if e.LocationQualityTagID == uuid.Nil {
			return eris.Wrap(model.ErrValidation, "entrance location quality is required")
		}
	}
	return nil
}

// Get returns one change request with its stored records. Visible to the
// submitter and to anyone holding Manage at the request's scope.
func (s *Service) Get(ctx context.Context, userID, accountID, requestID uuid.UUID) (*model.ChangeRequest, []model.ChangeRecord, error) {
	req, err := s.store.ChangeRequest(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if req.AccountID != accountID {
		return nil, nil, eris.Wrapf(model.ErrNotFound, "change request %s", requestID)
	}

	if req.SubmitterID != userID {
		allowed, err := s.canManage(ctx, userID, accountID, *req)
		if err != nil {
			return nil, nil, err
		}
		if !allowed {
			return nil, nil, eris.Wrap(model.ErrPermissionDenied, "view change request")
		}
	}

	records, err := s.store.ChangeRecords(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	return req, records, nil
}

// List returns the account's change requests the user may review, filtered
// by status. Requests outside the user's Manage scope are omitted rather
// than erroring.
func (s *Service) List(ctx context.Context, userID uuid.UUID, filter store.RequestFilter) ([]model.ChangeRequest, error) {
	reqs, err := s.store.ListChangeRequests(ctx, filter)
	if err != nil {
		return nil, err
	}

	visible := make([]model.ChangeRequest, 0, len(reqs))
	for _, req := range reqs {
		if req.SubmitterID == userID {
			visible = append(visible, req)
			continue
		}
		allowed, err := s.canManage(ctx, userID, filter.AccountID, req)
		if err != nil {
			if eris.Is(err, model.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if allowed {
			visible = append(visible, req)
		}
	}
	return visible, nil
}

// canManage resolves Manage at the request's scope: the target cave for
// edits, the proposed county for new caves.
func (s *Service) canManage(ctx context.Context, userID, accountID uuid.UUID, req model.ChangeRequest) (bool, error) {
	if req.IsNewCave() {
		return s.perms.ResolveCounty(ctx, userID, accountID, model.PermManage, req.Snapshot.CountyID)
	}
	return s.perms.Resolve(ctx, userID, accountID, model.PermManage, req.CaveID)
}

// Reject marks a pending request rejected. Nothing about the cave changes,
// and the submission-time records are kept as the record of what was asked.
func (s *Service) Reject(ctx context.Context, reviewerID, accountID, requestID uuid.UUID, notes string) error {
	req, err := s.loadPending(ctx, accountID, requestID)
	if err != nil {
		return err
	}

	allowed, err := s.canManage(ctx, reviewerID, accountID, *req)
	if err != nil {
		return err
	}
	if !allowed {
		return eris.Wrap(model.ErrPermissionDenied, "reject change request")
	}

	if err := s.store.ResolveRequest(ctx, requestID, reviewerID, model.StatusRejected, notes); err != nil {
		return err
	}
	zap.L().Info("review: change request rejected",
		zap.String("request_id", requestID.String()),
		zap.String("reviewer_id", reviewerID.String()),
	)

	s.publish(ctx, notify.Event{
		Kind:       notify.EventRejected,
		RequestID:  requestID,
		CaveID:     req.CaveID,
		AccountID:  accountID,
		ActorID:    reviewerID,
		Status:     model.StatusRejected,
		Notes:      notes,
		OccurredAt: time.Now().UTC(),
	})
	return nil
}

// Approve applies a pending request to the live cave. The proposed snapshot
// is re-diffed against the cave as it exists now; if that fresh diff no
// longer matches the records captured at submission, the cave moved
// underneath the request and the approval fails with ErrConflict. On
// success the fresh diff replaces the stored records as the permanent
// history, making the audit trail describe the transition that actually
// happened.
func (s *Service) Approve(ctx context.Context, reviewerID, accountID, requestID uuid.UUID, notes string) error {
	req, err := s.loadPending(ctx, accountID, requestID)
	if err != nil {
		return err
	}

	allowed, err := s.canManage(ctx, reviewerID, accountID, *req)
	if err != nil {
		return err
	}
	if !allowed {
		return eris.Wrap(model.ErrPermissionDenied, "approve change request")
	}

	stored, err := s.store.ChangeRecords(ctx, requestID)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < approveRetries; attempt++ {
		err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return s.approveTx(ctx, tx, *req, stored, reviewerID, notes)
		})
		if err == nil {
			zap.L().Info("review: change request approved",
				zap.String("request_id", requestID.String()),
				zap.String("reviewer_id", reviewerID.String()),
				zap.Int("attempt", attempt+1),
			)
			s.publish(ctx, notify.Event{
				Kind:       notify.EventApproved,
				RequestID:  requestID,
				CaveID:     req.CaveID,
				AccountID:  accountID,
				ActorID:    reviewerID,
				Status:     model.StatusApproved,
				Notes:      notes,
				OccurredAt: time.Now().UTC(),
			})
			return nil
		}
		if !store.Retryable(err) {
			return err
		}
		lastErr = err
		zap.L().Warn("review: approval transaction retrying",
			zap.String("request_id", requestID.String()),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return eris.Wrapf(lastErr, "review: approve request %s exhausted retries", requestID)
}

// approveTx is one approval attempt inside a serializable transaction.
func (s *Service) approveTx(ctx context.Context, tx store.Tx, req model.ChangeRequest, stored []model.ChangeRecord, reviewerID uuid.UUID, notes string) error {
	snap := req.Snapshot

	var before *model.CaveSnapshot
	if req.IsNewCave() {
		number, err := tx.NextCountyNumber(ctx, req.AccountID, snap.CountyID)
		if err != nil {
			return err
		}
		snap.CountyNumber = &number
	} else {
		var err error
		before, err = tx.CaveSnapshot(ctx, *req.CaveID)
		if err != nil {
			return err
		}
		snap.CountyNumber = before.CountyNumber
	}

	fresh, err := diff.Snapshots(before, snap)
	if err != nil {
		return err
	}
	for i := range fresh {
		fresh[i].ChangeRequestID = req.ID
	}

	if !sameRecords(stored, fresh) {
		return eris.Wrapf(model.ErrConflict,
			"cave %s changed after submission of request %s", snap.ID, req.ID)
	}

	if err := tx.ApplySnapshot(ctx, snap); err != nil {
		return err
	}
	if err := tx.ReplaceChangeRecords(ctx, req.ID, fresh); err != nil {
		return err
	}
	return tx.ResolveRequest(ctx, req.ID, reviewerID, model.StatusApproved, notes)
}

// loadPending fetches a request and checks that it still awaits review
// within the caller's account.
func (s *Service) loadPending(ctx context.Context, accountID, requestID uuid.UUID) (*model.ChangeRequest, error) {
	req, err := s.store.ChangeRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.AccountID != accountID {
		return nil, eris.Wrapf(model.ErrNotFound, "change request %s", requestID)
	}
	if req.Status != model.StatusPending {
		return nil, eris.Wrapf(model.ErrValidation, "change request %s is already %s", requestID, req.Status)
	}
	return req, nil
}

func (s *Service) publish(ctx context.Context, ev notify.Event) {
	if err := s.notifier.Publish(ctx, ev); err != nil {
		zap.L().Warn("review: notification failed",
			zap.String("request_id", ev.RequestID.String()),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
	}
}

// History returns the approved change records for a cave in application
// order, visible to anyone who can view the cave.
func (s *Service) History(ctx context.Context, userID, accountID, caveID uuid.UUID) ([]model.ChangeRecord, error) {
	allowed, err := s.perms.Resolve(ctx, userID, accountID, model.PermView, &caveID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, eris.Wrap(model.ErrPermissionDenied, "view cave history")
	}
	return s.store.CaveHistory(ctx, caveID)
}

// DisplayID builds the human-readable id for a numbered cave, like
// "AR-WAS-0142". Caves that have never been approved have no number and no
// display id.
func (s *Service) DisplayID(ctx context.Context, snap model.CaveSnapshot) (string, error) {
	if snap.CountyNumber == nil {
		return "", nil
	}
	abbrev, county, err := s.store.CaveDisplay(ctx, snap.ID)
	if err != nil {
		return "", err
	}
	return model.DisplayID(abbrev, county, *snap.CountyNumber), nil
}

// Cave returns the live snapshot, gated on View.
func (s *Service) Cave(ctx context.Context, userID, accountID, caveID uuid.UUID) (*model.CaveSnapshot, error) {
	allowed, err := s.perms.Resolve(ctx, userID, accountID, model.PermView, &caveID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, eris.Wrap(model.ErrPermissionDenied, "view cave")
	}
	snap, err := s.store.CaveSnapshot(ctx, caveID)
	if err != nil {
		return nil, err
	}
	if snap.AccountID != accountID {
		return nil, eris.Wrapf(model.ErrNotFound, "cave %s", caveID)
	}
	return snap, nil
}
