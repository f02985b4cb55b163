// Package diff computes the typed change records between two cave snapshots.
// The differ is pure: identical inputs always produce the identical ordered
// record list, which is what makes re-diffing at approval time a valid
// conflict check.
package diff

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ozark-survey/cavedb/internal/model"
)

// Property names for cave-level change records.
const (
	PropCave           = "Cave"
	PropEntrance       = "Entrance"
	PropName           = "Name"
	PropAlternateNames = "AlternateNames"
	PropStateID        = "StateID"
	PropCountyID       = "CountyID"
	PropLengthFeet     = "LengthFeet"
	PropDepthFeet      = "DepthFeet"
	PropMaxPitDepth    = "MaxPitDepthFeet"
	PropNumberOfPits   = "NumberOfPits"
	PropNarrative      = "Narrative"
	PropReportedOn     = "ReportedOn"
	PropIsArchived     = "IsArchived"
)

// Property names for entrance-level change records.
const (
	PropDescription     = "Description"
	PropLatitude        = "Latitude"
	PropLongitude       = "Longitude"
	PropElevationFeet   = "ElevationFeet"
	PropPitDepthFeet    = "PitDepthFeet"
	PropLocationQuality = "LocationQualityTag"
	PropIsPrimary       = "IsPrimary"
)

// Snapshots diffs a proposed snapshot against the current canonical one.
// A nil before means a brand-new cave: the output starts with an Add(Cave)
// marker and contains one Add record per non-default field, entrance, and
// tag id. A malformed after snapshot (zero or multiple primary entrances)
// fails with model.ErrInvariant rather than producing a diff.
func Snapshots(before *model.CaveSnapshot, after model.CaveSnapshot) ([]model.ChangeRecord, error) {
	if err := after.CheckPrimaryInvariant(); err != nil {
		return nil, err
	}

	d := &differ{caveID: after.ID}
	if before == nil {
		d.adding = true
		d.emit(PropCave, nil, model.ChangeAdd, model.CaveValue{ID: after.ID})
		d.caveFields(model.CaveSnapshot{}, after)
		for _, e := range after.Entrances {
			d.addEntrance(e)
		}
		return d.records, nil
	}

	d.caveFields(*before, after)

	// Match entrances by id; after order drives output, deletions trail.
	seen := make(map[uuid.UUID]bool, len(after.Entrances))
	for _, ae := range after.Entrances {
		seen[ae.ID] = true
		if be := before.Entrance(ae.ID); be != nil {
			d.entranceFields(*be, ae)
		} else {
			d.addEntrance(ae)
		}
	}
	for _, be := range before.Entrances {
		if !seen[be.ID] {
			id := be.ID
			d.emit(PropEntrance, &id, model.ChangeDelete, model.EntranceValue{ID: be.ID})
		}
	}
	return d.records, nil
}

type differ struct {
	caveID  uuid.UUID
	adding  bool
	records []model.ChangeRecord
}

func (d *differ) emit(prop string, entranceID *uuid.UUID, ct model.ChangeType, v model.ChangeValue) {
	d.records = append(d.records, model.ChangeRecord{
		CaveID:     d.caveID,
		EntranceID: entranceID,
		Property:   prop,
		ChangeType: ct,
		Value:      v,
	})
}

func (d *differ) caveFields(before, after model.CaveSnapshot) {
	d.str(PropName, nil, before.Name, after.Name)
	d.stringSet(PropAlternateNames, nil, before.AlternateNames, after.AlternateNames)
	d.id(PropStateID, nil, before.StateID, after.StateID)
	d.id(PropCountyID, nil, before.CountyID, after.CountyID)
	d.optDouble(PropLengthFeet, nil, before.LengthFeet, after.LengthFeet)
	d.optDouble(PropDepthFeet, nil, before.DepthFeet, after.DepthFeet)
	d.optDouble(PropMaxPitDepth, nil, before.MaxPitDepth, after.MaxPitDepth)
	d.optInt(PropNumberOfPits, nil, before.NumberOfPits, after.NumberOfPits)
	d.str(PropNarrative, nil, before.Narrative, after.Narrative)
	d.optTime(PropReportedOn, nil, before.ReportedOn, after.ReportedOn)
	d.boolean(PropIsArchived, nil, before.IsArchived, after.IsArchived)
	for _, c := range model.CaveTagCategories {
		d.tagSet(c.Property(), nil, before.TagIDs(c), after.TagIDs(c))
	}
}

func (d *differ) addEntrance(e model.EntranceSnapshot) {
	id := e.ID
	d.emit(PropEntrance, &id, model.ChangeAdd, model.EntranceValue{ID: e.ID})

	wasAdding := d.adding
	d.adding = true
	d.entranceScalars(model.EntranceSnapshot{}, e)
	d.adding = wasAdding
}

func (d *differ) entranceFields(before, after model.EntranceSnapshot) {
	d.entranceScalars(before, after)
}

func (d *differ) entranceScalars(before, after model.EntranceSnapshot) {
	id := after.ID
	d.str(PropDescription, &id, before.Description, after.Description)
	d.double(PropLatitude, &id, before.Location.Latitude, after.Location.Latitude)
	d.double(PropLongitude, &id, before.Location.Longitude, after.Location.Longitude)
	d.double(PropElevationFeet, &id, before.Location.ElevationFeet, after.Location.ElevationFeet)
	d.optTime(PropReportedOn, &id, before.ReportedOn, after.ReportedOn)
	d.optDouble(PropPitDepthFeet, &id, before.PitDepthFeet, after.PitDepthFeet)
	d.id(PropLocationQuality, &id, before.LocationQualityTagID, after.LocationQualityTagID)
	d.boolean(PropIsPrimary, &id, before.IsPrimary, after.IsPrimary)
	for _, c := range model.EntranceTagCategories {
		d.tagSet(c.Property(), &id, before.TagIDs(c), after.TagIDs(c))
	}
}

// str diffs a string field, treating the empty string as unset.
func (d *differ) str(prop string, scope *uuid.UUID, before, after string) {
	switch {
	case before == after:
	case before == "":
		d.emit(prop, scope, model.ChangeAdd, model.StringValue{Value: after})
	case after == "":
		d.emit(prop, scope, model.ChangeDelete, model.StringValue{Value: before})
	default:
		prev := before
		d.emit(prop, scope, model.ChangeUpdate, model.StringValue{Value: after, Previous: &prev})
	}
}

// id diffs a required uuid field, recorded as a String change.
func (d *differ) id(prop string, scope *uuid.UUID, before, after uuid.UUID) {
	b, a := "", ""
	if before != uuid.Nil {
		b = before.String()
	}
	if after != uuid.Nil {
		a = after.String()
	}
	d.str(prop, scope, b, a)
}

func (d *differ) optDouble(prop string, scope *uuid.UUID, before, after *float64) {
	switch {
	case before == nil && after == nil:
	case before == nil:
		d.emit(prop, scope, model.ChangeAdd, model.DoubleValue{Value: *after})
	case after == nil:
		d.emit(prop, scope, model.ChangeDelete, model.DoubleValue{Value: *before})
	case *before != *after:
		prev := *before
		d.emit(prop, scope, model.ChangeUpdate, model.DoubleValue{Value: *after, Previous: &prev})
	}
}

func (d *differ) optInt(prop string, scope *uuid.UUID, before, after *int) {
	switch {
	case before == nil && after == nil:
	case before == nil:
		d.emit(prop, scope, model.ChangeAdd, model.IntValue{Value: *after})
	case after == nil:
		d.emit(prop, scope, model.ChangeDelete, model.IntValue{Value: *before})
	case *before != *after:
		prev := *before
		d.emit(prop, scope, model.ChangeUpdate, model.IntValue{Value: *after, Previous: &prev})
	}
}

func (d *differ) optTime(prop string, scope *uuid.UUID, before, after *time.Time) {
	switch {
	case before == nil && after == nil:
	case before == nil:
		d.emit(prop, scope, model.ChangeAdd, model.DateTimeValue{Value: *after})
	case after == nil:
		d.emit(prop, scope, model.ChangeDelete, model.DateTimeValue{Value: *before})
	case !before.Equal(*after):
		prev := *before
		d.emit(prop, scope, model.ChangeUpdate, model.DateTimeValue{Value: *after, Previous: &prev})
	}
}

// double diffs a required float field. Against a null baseline only a
// non-zero value is worth a record.
func (d *differ) double(prop string, scope *uuid.UUID, before, after float64) {
	if before == after {
		return
	}
	if d.adding {
		if after != 0 {
			d.emit(prop, scope, model.ChangeAdd, model.DoubleValue{Value: after})
		}
		return
	}
	prev := before
	d.emit(prop, scope, model.ChangeUpdate, model.DoubleValue{Value: after, Previous: &prev})
}

func (d *differ) boolean(prop string, scope *uuid.UUID, before, after bool) {
	if before == after {
		return
	}
	if d.adding {
		if after {
			d.emit(prop, scope, model.ChangeAdd, model.BoolValue{Value: true})
		}
		return
	}
	prev := before
	d.emit(prop, scope, model.ChangeUpdate, model.BoolValue{Value: after, Previous: &prev})
}

// tagSet diffs one tag-id set. Output is sorted by id text so the record
// order is stable regardless of input ordering.
func (d *differ) tagSet(prop string, scope *uuid.UUID, before, after []uuid.UUID) {
	added, removed := setDifference(before, after)
	for _, id := range added {
		d.emit(prop, scope, model.ChangeAdd, model.StringValue{Value: id.String()})
	}
	for _, id := range removed {
		d.emit(prop, scope, model.ChangeDelete, model.StringValue{Value: id.String()})
	}
}

// stringSet diffs alternate names as an unordered set.
func (d *differ) stringSet(prop string, scope *uuid.UUID, before, after []string) {
	beforeSet := make(map[string]bool, len(before))
	for _, s := range before {
		beforeSet[s] = true
	}
	afterSet := make(map[string]bool, len(after))
	for _, s := range after {
		afterSet[s] = true
	}

	var added, removed []string
	for s := range afterSet {
		if !beforeSet[s] {
			added = append(added, s)
		}
	}
	for s := range beforeSet {
		if !afterSet[s] {
			removed = append(removed, s)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	for _, s := range added {
		d.emit(prop, scope, model.ChangeAdd, model.StringValue{Value: s})
	}
	for _, s := range removed {
		d.emit(prop, scope, model.ChangeDelete, model.StringValue{Value: s})
	}
}

func setDifference(before, after []uuid.UUID) (added, removed []uuid.UUID) {
	beforeSet := make(map[uuid.UUID]bool, len(before))
	for _, id := range before {
		beforeSet[id] = true
	}
	afterSet := make(map[uuid.UUID]bool, len(after))
	for _, id := range after {
		afterSet[id] = true
	}
	for id := range afterSet {
		if !beforeSet[id] {
			added = append(added, id)
		}
	}
	for id := range beforeSet {
		if !afterSet[id] {
			removed = append(removed, id)
		}
	}
	sortIDs(added)
	sortIDs(removed)
	return added, removed
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}
