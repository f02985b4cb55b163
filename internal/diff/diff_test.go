package diff

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozark-survey/cavedb/internal/model"
)

func float(v float64) *float64 { return &v }
func number(v int) *int        { return &v }

func testSnapshot() model.CaveSnapshot {
	caveID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	entID := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	reported := time.Date(2023, 6, 10, 0, 0, 0, 0, time.UTC)

	return model.CaveSnapshot{
		ID:             caveID,
		AccountID:      uuid.MustParse("33333333-3333-3333-3333-333333333333"),
		StateID:        uuid.MustParse("44444444-4444-4444-4444-444444444444"),
		CountyID:       uuid.MustParse("55555555-5555-5555-5555-555555555555"),
		Name:           "Blowing Spring Cave",
		AlternateNames: []string{"Blowing Cave"},
		LengthFeet:     float(1250),
		DepthFeet:      float(85),
		NumberOfPits:   number(2),
		Narrative:      "Stream passage with two pits near the back.",
		ReportedOn:     &reported,
		Tags: map[model.TagCategory][]uuid.UUID{
			model.TagGeology: {uuid.MustParse("66666666-6666-6666-6666-666666666666")},
			model.TagBiology: {uuid.MustParse("77777777-7777-7777-7777-777777777777")},
		},
		Entrances: []model.EntranceSnapshot{{
			ID:                   entID,
			CaveID:               caveID,
			Description:          "Main entrance at the bluff base",
			Location:             model.Location{Latitude: 36.1, Longitude: -92.7, ElevationFeet: 1150},
			PitDepthFeet:         float(30),
			LocationQualityTagID: uuid.MustParse("88888888-8888-8888-8888-888888888888"),
			IsPrimary:            true,
			Tags: map[model.TagCategory][]uuid.UUID{
				model.TagEntranceHydrology: {uuid.MustParse("99999999-9999-9999-9999-999999999999")},
			},
		}},
	}
}

func TestSnapshots_RoundTripIdentity(t *testing.T) {
	s := testSnapshot()
	records, err := Snapshots(&s, s)
	require.NoError(t, err)
	assert.Empty(t, records, "Diff(S, S) must be empty")
}

func TestSnapshots_NewCaveCompleteness(t *testing.T) {
	s := testSnapshot()
	records, err := Snapshots(nil, s)
	require.NoError(t, err)

	require.NotEmpty(t, records)
	assert.Equal(t, PropCave, records[0].Property, "Add(Cave) marker leads the list")
	assert.Equal(t, model.ChangeAdd, records[0].ChangeType)

	for _, r := range records {
		assert.Equal(t, model.ChangeAdd, r.ChangeType, "new-cave diff is Add-only (%s)", r.Property)
	}

	byProp := map[string]int{}
	for _, r := range records {
		byProp[r.Property]++
	}
	// One Add per non-default scalar field.
	for _, p := range []string{PropName, PropStateID, PropCountyID, PropLengthFeet, PropDepthFeet, PropNumberOfPits, PropNarrative, PropReportedOn} {
		assert.Equal(t, 1, byProp[p], "property %s", p)
	}
	assert.Zero(t, byProp[PropMaxPitDepth], "unset optional emits nothing")
	assert.Zero(t, byProp[PropIsArchived], "default bool emits nothing")
	// One Add(Entrance) per entrance, one Add per tag id.
	assert.Equal(t, 1, byProp[PropEntrance])
	assert.Equal(t, 1, byProp[model.TagGeology.Property()])
	assert.Equal(t, 1, byProp[model.TagBiology.Property()])
	assert.Equal(t, 1, byProp[model.TagEntranceHydrology.Property()])
	assert.Equal(t, 1, byProp[PropAlternateNames])
}

func TestSnapshots_AddDeleteSymmetry(t *testing.T) {
	a := testSnapshot()
	b := testSnapshot()
	b.Tags = map[model.TagCategory][]uuid.UUID{
		model.TagGeology: {
			uuid.MustParse("66666666-6666-6666-6666-666666666666"),
			uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"),
		},
	}

	forward, err := Snapshots(&a, b)
	require.NoError(t, err)
	reverse, err := Snapshots(&b, a)
	require.NoError(t, err)

	adds := map[string][]string{}
	for _, r := range forward {
		if r.ChangeType == model.ChangeAdd {
			adds[r.Property] = append(adds[r.Property], r.Value.(model.StringValue).Value)
		}
	}
	deletes := map[string][]string{}
	for _, r := range reverse {
		if r.ChangeType == model.ChangeDelete {
			deletes[r.Property] = append(deletes[r.Property], r.Value.(model.StringValue).Value)
		}
	}
	assert.Equal(t, adds, deletes, "forward Adds mirror reverse Deletes")
}

func TestSnapshots_PrimaryInvariant(t *testing.T) {
	s := testSnapshot()
	s.Entrances[0].IsPrimary = false
	_, err := Snapshots(nil, s)
	assert.ErrorIs(t, err, model.ErrInvariant, "zero primaries")

	s = testSnapshot()
	second := s.Entrances[0]
	second.ID = uuid.New()
	s.Entrances = append(s.Entrances, second)
	_, err = Snapshots(nil, s)
	assert.ErrorIs(t, err, model.ErrInvariant, "two primaries")
}

func TestSnapshots_ScalarUpdateCarriesPrevious(t *testing.T) {
	before := testSnapshot()
	after := testSnapshot()
	after.LengthFeet = float(1400)

	records, err := Snapshots(&before, after)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, PropLengthFeet, r.Property)
	assert.Equal(t, model.ChangeUpdate, r.ChangeType)
	v := r.Value.(model.DoubleValue)
	assert.Equal(t, 1400.0, v.Value)
	require.NotNil(t, v.Previous)
	assert.Equal(t, 1250.0, *v.Previous)
}

func TestSnapshots_DatesComparedByInstant(t *testing.T) {
	before := testSnapshot()
	after := testSnapshot()
	local := before.ReportedOn.In(time.FixedZone("CST", -6*3600))
	after.ReportedOn = &local

	records, err := Snapshots(&before, after)
	require.NoError(t, err)
	assert.Empty(t, records, "same instant in another zone is not a change")
}

func TestSnapshots_OptionalClearedEmitsDelete(t *testing.T) {
	before := testSnapshot()
	after := testSnapshot()
	after.NumberOfPits = nil

	records, err := Snapshots(&before, after)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, PropNumberOfPits, records[0].Property)
	assert.Equal(t, model.ChangeDelete, records[0].ChangeType)
	assert.Equal(t, 2, records[0].Value.(model.IntValue).Value)
}

func TestSnapshots_EntranceAddAndDelete(t *testing.T) {
	before := testSnapshot()
	after := testSnapshot()

	// Replace the entrance with a different one.
	newEnt := model.EntranceSnapshot{
		ID:                   uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"),
		CaveID:               after.ID,
		Description:          "Sink entrance",
		Location:             model.Location{Latitude: 36.11, Longitude: -92.71, ElevationFeet: 1180},
		LocationQualityTagID: uuid.MustParse("88888888-8888-8888-8888-888888888888"),
		IsPrimary:            true,
	}
	after.Entrances = []model.EntranceSnapshot{newEnt}

	records, err := Snapshots(&before, after)
	require.NoError(t, err)

	var addMarker, deleteMarker *model.ChangeRecord
	var newEntFields int
	for i := range records {
		r := records[i]
		if r.Property == PropEntrance {
			if r.ChangeType == model.ChangeAdd {
				addMarker = &records[i]
			} else {
				deleteMarker = &records[i]
			}
			continue
		}
		if r.EntranceID != nil && *r.EntranceID == newEnt.ID {
			assert.Equal(t, model.ChangeAdd, r.ChangeType, "new entrance fields diff against a null baseline")
			newEntFields++
		}
	}
	require.NotNil(t, addMarker)
	assert.Equal(t, newEnt.ID, addMarker.Value.(model.EntranceValue).ID)
	require.NotNil(t, deleteMarker)
	assert.Equal(t, before.Entrances[0].ID, deleteMarker.Value.(model.EntranceValue).ID)
	assert.Greater(t, newEntFields, 0)
}

func TestSnapshots_Deterministic(t *testing.T) {
	before := testSnapshot()
	after := testSnapshot()
	after.Name = "Renamed Cave"
	after.Tags[model.TagGeology] = []uuid.UUID{
		uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"),
		uuid.MustParse("66666666-6666-6666-6666-666666666666"),
		uuid.MustParse("cccccccc-cccc-cccc-cccc-cccccccccccc"),
	}

	first, err := Snapshots(&before, after)
	require.NoError(t, err)
	for range 10 {
		again, err := Snapshots(&before, after)
		require.NoError(t, err)
		require.Len(t, again, len(first))
		for i := range first {
			assert.True(t, first[i].SameChange(again[i]), "record %d differs between runs", i)
		}
	}
}
