package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// CaveSnapshot is a complete, immutable value describing a cave's scalar
// fields, entrance list, and tag-id sets at one point in time. Proposals and
// diffs operate on fully materialized snapshots, never on live rows.
type CaveSnapshot struct {
	ID             uuid.UUID                   `json:"id"`
	AccountID      uuid.UUID                   `json:"account_id"`
	StateID        uuid.UUID                   `json:"state_id"`
	CountyID       uuid.UUID                   `json:"county_id"`
	Name           string                      `json:"name"`
	AlternateNames []string                    `json:"alternate_names,omitempty"`
	LengthFeet     *float64                    `json:"length_feet,omitempty"`
	DepthFeet      *float64                    `json:"depth_feet,omitempty"`
	MaxPitDepth    *float64                    `json:"max_pit_depth_feet,omitempty"`
	NumberOfPits   *int                        `json:"number_of_pits,omitempty"`
	Narrative      string                      `json:"narrative,omitempty"`
	ReportedOn     *time.Time                  `json:"reported_on,omitempty"`
	IsArchived     bool                        `json:"is_archived"`
	CountyNumber   *int                        `json:"county_number,omitempty"`
	Tags           map[TagCategory][]uuid.UUID `json:"tags,omitempty"`
	Entrances      []EntranceSnapshot          `json:"entrances,omitempty"`
}

// EntranceSnapshot is the entrance portion of a cave snapshot.
type EntranceSnapshot struct {
	ID                   uuid.UUID                   `json:"id"`
	CaveID               uuid.UUID                   `json:"cave_id"`
	Description          string                      `json:"description,omitempty"`
	Location             Location                    `json:"location"`
	ReportedOn           *time.Time                  `json:"reported_on,omitempty"`
	PitDepthFeet         *float64                    `json:"pit_depth_feet,omitempty"`
	LocationQualityTagID uuid.UUID                   `json:"location_quality_tag_id"`
	IsPrimary            bool                        `json:"is_primary"`
	Tags                 map[TagCategory][]uuid.UUID `json:"tags,omitempty"`
}

// TagIDs returns the ids for one category, never nil.
func (s CaveSnapshot) TagIDs(c TagCategory) []uuid.UUID {
	return s.Tags[c]
}

// TagIDs returns the ids for one category, never nil.
func (e EntranceSnapshot) TagIDs(c TagCategory) []uuid.UUID {
	return e.Tags[c]
}

// Entrance returns the entrance with the given id, or nil.
func (s CaveSnapshot) Entrance(id uuid.UUID) *EntranceSnapshot {
	for i := range s.Entrances {
		if s.Entrances[i].ID == id {
			return &s.Entrances[i]
		}
	}
	return nil
}

// PrimaryEntrance returns the entrance flagged primary, or nil when the
// snapshot has none.
func (s CaveSnapshot) PrimaryEntrance() *EntranceSnapshot {
	for i := range s.Entrances {
		if s.Entrances[i].IsPrimary {
			return &s.Entrances[i]
		}
	}
	return nil
}

// PrimaryCount returns the number of entrances flagged primary.
func (s CaveSnapshot) PrimaryCount() int {
	n := 0
	for _, e := range s.Entrances {
		if e.IsPrimary {
			n++
		}
	}
	return n
}

// CheckPrimaryInvariant verifies that exactly one entrance is primary
// whenever the snapshot has entrances at all.
func (s CaveSnapshot) CheckPrimaryInvariant() error {
	if len(s.Entrances) == 0 {
		return nil
	}
	if n := s.PrimaryCount(); n != 1 {
		return eris.Wrapf(ErrInvariant, "snapshot has %d primary entrances, want 1", n)
	}
	return nil
}

// AllTagIDs collects every tag id referenced anywhere in the snapshot,
// including entrance location-quality tags. Used for cross-account
// reference validation at submission time.
func (s CaveSnapshot) AllTagIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, c := range CaveTagCategories {
		ids = append(ids, s.Tags[c]...)
	}
	for _, e := range s.Entrances {
		if e.LocationQualityTagID != uuid.Nil {
			ids = append(ids, e.LocationQualityTagID)
		}
		for _, c := range EntranceTagCategories {
			ids = append(ids, e.Tags[c]...)
		}
	}
	return ids
}
