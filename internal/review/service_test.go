package review

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozark-survey/cavedb/internal/model"
	"github.com/ozark-survey/cavedb/internal/store"
)

var (
	testAccountID  = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	testStateID    = uuid.MustParse("dddddddd-dddd-dddd-dddd-dddddddddddd")
	testCountyID   = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	testQualityTag = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	submitterID    = uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb")
	reviewerID     = uuid.MustParse("cccccccc-cccc-cccc-cccc-cccccccccccc")
)

// fakeStore is an in-memory store.Store for exercising the service without a
// database. Transactions are applied directly; failTx injects errors to
// drive the retry path.
type fakeStore struct {
	caves    map[uuid.UUID]model.CaveSnapshot
	requests map[uuid.UUID]model.ChangeRequest
	records  map[uuid.UUID][]model.ChangeRecord
	counties map[uuid.UUID]bool
	nextNum  int
	applied  []model.CaveSnapshot
	failTx   []error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		caves:    map[uuid.UUID]model.CaveSnapshot{},
		requests: map[uuid.UUID]model.ChangeRequest{},
		records:  map[uuid.UUID][]model.ChangeRecord{},
		counties: map[uuid.UUID]bool{testCountyID: true},
		nextNum:  1,
	}
}

func (f *fakeStore) CaveSnapshot(_ context.Context, caveID uuid.UUID) (*model.CaveSnapshot, error) {
	snap, ok := f.caves[caveID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &snap, nil
}

func (f *fakeStore) CaveCounty(_ context.Context, caveID uuid.UUID) (uuid.UUID, error) {
	snap, ok := f.caves[caveID]
	if !ok {
		return uuid.Nil, model.ErrNotFound
	}
	return snap.CountyID, nil
}

func (f *fakeStore) CaveDisplay(context.Context, uuid.UUID) (string, string, error) {
	return "AR", "Washington", nil
}

func (f *fakeStore) CountyInAccount(_ context.Context, _, countyID uuid.UUID) (bool, error) {
	return f.counties[countyID], nil
}

func (f *fakeStore) MissingTags(context.Context, uuid.UUID, []uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeStore) CreateChangeRequest(_ context.Context, req model.ChangeRequest, records []model.ChangeRecord) error {
	f.requests[req.ID] = req
	f.records[req.ID] = records
	return nil
}

func (f *fakeStore) ChangeRequest(_ context.Context, id uuid.UUID) (*model.ChangeRequest, error) {
	req, ok := f.requests[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &req, nil
}

func (f *fakeStore) ChangeRecords(_ context.Context, requestID uuid.UUID) ([]model.ChangeRecord, error) {
	return f.records[requestID], nil
}

func (f *fakeStore) ListChangeRequests(_ context.Context, filter store.RequestFilter) ([]model.ChangeRequest, error) {
	var out []model.ChangeRequest
	for _, req := range f.requests {
		if req.AccountID != filter.AccountID {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

func (f *fakeStore) CaveHistory(_ context.Context, caveID uuid.UUID) ([]model.ChangeRecord, error) {
	var out []model.ChangeRecord
	for id, req := range f.requests {
		if req.Status != model.StatusApproved {
			continue
		}
		for _, r := range f.records[id] {
			if r.CaveID == caveID {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) ResolveRequest(_ context.Context, requestID, reviewerID uuid.UUID, status model.RequestStatus, notes string) error {
	req, ok := f.requests[requestID]
	if !ok || req.Status != model.StatusPending {
		return model.ErrNotFound
	}
	now := time.Now().UTC()
	req.Status = status
	req.ReviewerID = &reviewerID
	req.ReviewedOn = &now
	req.Notes = notes
	f.requests[requestID] = req
	return nil
}

func (f *fakeStore) GrantsFor(context.Context, uuid.UUID, uuid.UUID) ([]model.PermissionGrant, error) {
	return nil, nil
}

func (f *fakeStore) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if len(f.failTx) > 0 {
		err := f.failTx[0]
		f.failTx = f.failTx[1:]
		if err != nil {
			return err
		}
	}
	return fn(ctx, &fakeTx{f})
}

func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Ping(context.Context) error    { return nil }
func (f *fakeStore) Close() error                  { return nil }

type fakeTx struct {
	s *fakeStore
}

func (t *fakeTx) CaveSnapshot(ctx context.Context, caveID uuid.UUID) (*model.CaveSnapshot, error) {
	return t.s.CaveSnapshot(ctx, caveID)
}

func (t *fakeTx) NextCountyNumber(context.Context, uuid.UUID, uuid.UUID) (int, error) {
	return t.s.nextNum, nil
}

func (t *fakeTx) ApplySnapshot(_ context.Context, snap model.CaveSnapshot) error {
	t.s.caves[snap.ID] = snap
	t.s.applied = append(t.s.applied, snap)
	return nil
}

func (t *fakeTx) ReplaceChangeRecords(_ context.Context, requestID uuid.UUID, records []model.ChangeRecord) error {
	t.s.records[requestID] = records
	return nil
}

func (t *fakeTx) ResolveRequest(ctx context.Context, requestID, reviewerID uuid.UUID, status model.RequestStatus, notes string) error {
	return t.s.ResolveRequest(ctx, requestID, reviewerID, status, notes)
}

// fakePerms answers every resolution with fixed booleans.
type fakePerms struct {
	view   bool
	manage bool
}

func (p fakePerms) Resolve(_ context.Context, _, _ uuid.UUID, key model.PermissionKey, _ *uuid.UUID) (bool, error) {
	if key == model.PermManage {
		return p.manage, nil
	}
	return p.view, nil
}

func (p fakePerms) ResolveCounty(_ context.Context, _, _ uuid.UUID, key model.PermissionKey, _ uuid.UUID) (bool, error) {
	if key == model.PermManage {
		return p.manage, nil
	}
	return p.view, nil
}

func allowAll() fakePerms { return fakePerms{view: true, manage: true} }

func proposedSnapshot() model.CaveSnapshot {
	length := 1250.0
	return model.CaveSnapshot{
		AccountID: testAccountID,
		StateID:   testStateID,
		CountyID:  testCountyID,
		Name:      "Blowing Cave",
		LengthFeet: &length,
		Narrative:  "Strong airflow at the entrance.",
		Entrances: []model.EntranceSnapshot{{
			Description: "Main entrance",
			Location: model.Location{
				Latitude:      36.07,
				Longitude:     -94.16,
				ElevationFeet: 1240,
			},
			LocationQualityTagID: testQualityTag,
			IsPrimary:            true,
		}},
	}
}

func seedCave(t *testing.T, st *fakeStore, svc *Service) uuid.UUID {
	t.Helper()
	req, err := svc.Submit(context.Background(), SubmitInput{
		UserID:    submitterID,
		AccountID: testAccountID,
		Snapshot:  proposedSnapshot(),
	})
	require.NoError(t, err)
	require.NoError(t, svc.Approve(context.Background(), reviewerID, testAccountID, req.ID, ""))
	return req.Snapshot.ID
}

func TestSubmit_NewCave(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, allowAll(), nil)

	req, err := svc.Submit(context.Background(), SubmitInput{
		UserID:    submitterID,
		AccountID: testAccountID,
		Snapshot:  proposedSnapshot(),
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusPending, req.Status)
	assert.True(t, req.IsNewCave())
	assert.NotEqual(t, uuid.Nil, req.Snapshot.ID)

	records := st.records[req.ID]
	require.NotEmpty(t, records)
	assert.Equal(t, model.ChangeAdd, records[0].ChangeType)
	for _, r := range records {
		assert.Equal(t, model.ChangeAdd, r.ChangeType)
		assert.Equal(t, req.ID, r.ChangeRequestID)
	}
	// Nothing materializes until approval.
	assert.Empty(t, st.caves)
}

func TestSubmit_PermissionDenied(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, fakePerms{}, nil)

	_, err := svc.Submit(context.Background(), SubmitInput{
		UserID:    submitterID,
		AccountID: testAccountID,
		Snapshot:  proposedSnapshot(),
	})
	assert.ErrorIs(t, err, model.ErrPermissionDenied)
}

func TestSubmit_UnknownCounty(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, allowAll(), nil)

	snap := proposedSnapshot()
	snap.CountyID = uuid.New()
	_, err := svc.Submit(context.Background(), SubmitInput{
		UserID:    submitterID,
		AccountID: testAccountID,
		Snapshot:  snap,
	})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestSubmit_TwoPrimaryEntrances(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, allowAll(), nil)

	snap := proposedSnapshot()
	second := snap.Entrances[0]
	second.Description = "Upper entrance"
	snap.Entrances = append(snap.Entrances, second)

	_, err := svc.Submit(context.Background(), SubmitInput{
		UserID:    submitterID,
		AccountID: testAccountID,
		Snapshot:  snap,
	})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestSubmit_IdenticalSnapshotRejected(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, allowAll(), nil)
	caveID := seedCave(t, st, svc)

	current, err := svc.Cave(context.Background(), submitterID, testAccountID, caveID)
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), SubmitInput{
		UserID:    submitterID,
		AccountID: testAccountID,
		Snapshot:  *current,
	})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestSubmit_EditIssuesEntranceIDs(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, allowAll(), nil)
	caveID := seedCave(t, st, svc)

	edit := st.caves[caveID]
	for _, desc := range []string{"Sink entrance", "Upper entrance"} {
		edit.Entrances = append(edit.Entrances, model.EntranceSnapshot{
			Description: desc,
			Location: model.Location{
				Latitude:      36.08,
				Longitude:     -94.17,
				ElevationFeet: 1260,
			},
			LocationQualityTagID: testQualityTag,
		})
	}

	req, err := svc.Submit(context.Background(), SubmitInput{
		UserID:    submitterID,
		AccountID: testAccountID,
		Snapshot:  edit,
	})
	require.NoError(t, err)

	require.Len(t, req.Snapshot.Entrances, 3)
	seen := map[uuid.UUID]bool{}
	for _, e := range req.Snapshot.Entrances {
		assert.NotEqual(t, uuid.Nil, e.ID)
		assert.False(t, seen[e.ID], "entrance id %s issued twice", e.ID)
		seen[e.ID] = true
		assert.Equal(t, caveID, e.CaveID)
	}
	for _, r := range st.records[req.ID] {
		if r.EntranceID != nil {
			assert.NotEqual(t, uuid.Nil, *r.EntranceID)
		}
	}
}

func TestApprove_NewCaveAllocatesCountyNumber(t *testing.T) {
	st := newFakeStore()
	st.nextNum = 42
	svc := NewService(st, allowAll(), nil)

	caveID := seedCave(t, st, svc)

	snap := st.caves[caveID]
	require.NotNil(t, snap.CountyNumber)
	assert.Equal(t, 42, *snap.CountyNumber)
}

func TestApprove_EditConflictWhenCaveMoved(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, allowAll(), nil)
	caveID := seedCave(t, st, svc)

	// Submit an edit on top of the live cave.
	edit, err := svc.Cave(context.Background(), submitterID, testAccountID, caveID)
	require.NoError(t, err)
	newLength := 1400.0
	edit.LengthFeet = &newLength
	req, err := svc.Submit(context.Background(), SubmitInput{
		UserID:    submitterID,
		AccountID: testAccountID,
		Snapshot:  *edit,
	})
	require.NoError(t, err)

	// The cave moves underneath the pending request.
	moved := st.caves[caveID]
	movedLength := 1500.0
	moved.LengthFeet = &movedLength
	st.caves[caveID] = moved

	err = svc.Approve(context.Background(), reviewerID, testAccountID, req.ID, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrConflict)

	// The moved value survives, and the request stays pending for a
	// resubmission against the new baseline.
	assert.Equal(t, 1500.0, *st.caves[caveID].LengthFeet)
	assert.Equal(t, model.StatusPending, st.requests[req.ID].Status)
}

func TestApprove_EditAppliesFreshDiff(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, allowAll(), nil)
	caveID := seedCave(t, st, svc)

	edit, err := svc.Cave(context.Background(), submitterID, testAccountID, caveID)
	require.NoError(t, err)
	newLength := 1400.0
	edit.LengthFeet = &newLength
	req, err := svc.Submit(context.Background(), SubmitInput{
		UserID:    submitterID,
		AccountID: testAccountID,
		Snapshot:  *edit,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Approve(context.Background(), reviewerID, testAccountID, req.ID, "looks right"))

	assert.Equal(t, 1400.0, *st.caves[caveID].LengthFeet)
	assert.Equal(t, model.StatusApproved, st.requests[req.ID].Status)

	records := st.records[req.ID]
	require.Len(t, records, 1)
	assert.Equal(t, model.ChangeUpdate, records[0].ChangeType)
	val, ok := records[0].Value.(model.DoubleValue)
	require.True(t, ok)
	assert.Equal(t, 1400.0, val.Value)
	require.NotNil(t, val.Previous)
	assert.Equal(t, 1250.0, *val.Previous)
}

func TestApprove_RetriesOnSerializationFailure(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, allowAll(), nil)

	req, err := svc.Submit(context.Background(), SubmitInput{
		UserID:    submitterID,
		AccountID: testAccountID,
		Snapshot:  proposedSnapshot(),
	})
	require.NoError(t, err)

	st.failTx = []error{&pgconn.PgError{Code: "40001"}}
	require.NoError(t, svc.Approve(context.Background(), reviewerID, testAccountID, req.ID, ""))
	assert.Equal(t, model.StatusApproved, st.requests[req.ID].Status)
}

func TestApprove_GivesUpAfterRepeatedFailures(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, allowAll(), nil)

	req, err := svc.Submit(context.Background(), SubmitInput{
		UserID:    submitterID,
		AccountID: testAccountID,
		Snapshot:  proposedSnapshot(),
	})
	require.NoError(t, err)

	st.failTx = []error{
		&pgconn.PgError{Code: "23505"},
		&pgconn.PgError{Code: "23505"},
		&pgconn.PgError{Code: "23505"},
	}
	err = svc.Approve(context.Background(), reviewerID, testAccountID, req.ID, "")
	require.Error(t, err)
	assert.Equal(t, model.StatusPending, st.requests[req.ID].Status)
}

func TestApprove_PermissionDenied(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, allowAll(), nil)
	req, err := svc.Submit(context.Background(), SubmitInput{
		UserID:    submitterID,
		AccountID: testAccountID,
		Snapshot:  proposedSnapshot(),
	})
	require.NoError(t, err)

	viewer := NewService(st, fakePerms{view: true}, nil)
	err = viewer.Approve(context.Background(), reviewerID, testAccountID, req.ID, "")
	assert.ErrorIs(t, err, model.ErrPermissionDenied)
	assert.Empty(t, st.caves)
}

func TestReject_LeavesCaveUntouched(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, allowAll(), nil)
	caveID := seedCave(t, st, svc)

	edit, err := svc.Cave(context.Background(), submitterID, testAccountID, caveID)
	require.NoError(t, err)
	edit.Name = "Roaring Cave"
	req, err := svc.Submit(context.Background(), SubmitInput{
		UserID:    submitterID,
		AccountID: testAccountID,
		Snapshot:  *edit,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Reject(context.Background(), reviewerID, testAccountID, req.ID, "needs a source"))

	assert.Equal(t, "Blowing Cave", st.caves[caveID].Name)
	assert.Equal(t, model.StatusRejected, st.requests[req.ID].Status)
	assert.Equal(t, "needs a source", st.requests[req.ID].Notes)

	// A rejected request cannot be approved afterwards.
	err = svc.Approve(context.Background(), reviewerID, testAccountID, req.ID, "")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestList_FiltersByManageScope(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, allowAll(), nil)
	_, err := svc.Submit(context.Background(), SubmitInput{
		UserID:    submitterID,
		AccountID: testAccountID,
		Snapshot:  proposedSnapshot(),
	})
	require.NoError(t, err)

	filter := store.RequestFilter{AccountID: testAccountID, Status: model.StatusPending}

	reviewer := NewService(st, fakePerms{manage: true}, nil)
	reqs, err := reviewer.List(context.Background(), reviewerID, filter)
	require.NoError(t, err)
	assert.Len(t, reqs, 1)

	outsider := NewService(st, fakePerms{}, nil)
	reqs, err = outsider.List(context.Background(), reviewerID, filter)
	require.NoError(t, err)
	assert.Empty(t, reqs)

	// Submitters always see their own pending requests.
	reqs, err = outsider.List(context.Background(), submitterID, filter)
	require.NoError(t, err)
	assert.Len(t, reqs, 1)
}

func TestHistory_ReturnsApprovedRecordsOnly(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, allowAll(), nil)
	caveID := seedCave(t, st, svc)

	edit, err := svc.Cave(context.Background(), submitterID, testAccountID, caveID)
	require.NoError(t, err)
	edit.Narrative = "Updated narrative after resurvey."
	req, err := svc.Submit(context.Background(), SubmitInput{
		UserID:    submitterID,
		AccountID: testAccountID,
		Snapshot:  *edit,
	})
	require.NoError(t, err)
	require.NoError(t, svc.Reject(context.Background(), reviewerID, testAccountID, req.ID, "no"))

	history, err := svc.History(context.Background(), reviewerID, testAccountID, caveID)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	for _, r := range history {
		assert.Equal(t, caveID, r.CaveID)
	}
	// Only the approved initial submission contributes records.
	initialCount := len(st.records[findInitialRequest(t, st, caveID)])
	assert.Len(t, history, initialCount)
}

func findInitialRequest(t *testing.T, st *fakeStore, caveID uuid.UUID) uuid.UUID {
	t.Helper()
	for id, req := range st.requests {
		if req.Status == model.StatusApproved && req.Snapshot.ID == caveID {
			return id
		}
	}
	t.Fatal("no approved request found")
	return uuid.Nil
}
