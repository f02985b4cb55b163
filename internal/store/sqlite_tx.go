package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/ozark-survey/cavedb/internal/model"
)

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) CaveSnapshot(ctx context.Context, caveID uuid.UUID) (*model.CaveSnapshot, error) {
	return sqliteCaveSnapshot(ctx, t.tx, caveID)
}

func (t *sqliteTx) NextCountyNumber(ctx context.Context, accountID, countyID uuid.UUID) (int, error) {
	var next int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(county_number), 0) + 1 FROM caves WHERE account_id = ? AND county_id = ?`,
		accountID, countyID,
	).Scan(&next)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: next county number")
	}
	return next, nil
}

func (t *sqliteTx) ApplySnapshot(ctx context.Context, snap model.CaveSnapshot) error {
	altsJSON, err := json.Marshal(snap.AlternateNames)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal alternate names")
	}
	var reportedOn any
	if snap.ReportedOn != nil {
		reportedOn = *snap.ReportedOn
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO caves
		 (id, account_id, state_id, county_id, name, alternate_names, length_feet, depth_feet,
		  max_pit_depth_feet, number_of_pits, narrative, reported_on, is_archived, county_number)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   state_id = excluded.state_id,
		   county_id = excluded.county_id,
		   name = excluded.name,
		   alternate_names = excluded.alternate_names,
		   length_feet = excluded.length_feet,
		   depth_feet = excluded.depth_feet,
		   max_pit_depth_feet = excluded.max_pit_depth_feet,
		   number_of_pits = excluded.number_of_pits,
		   narrative = excluded.narrative,
		   reported_on = excluded.reported_on,
		   is_archived = excluded.is_archived,
		   updated_at = datetime('now')`,
		snap.ID, snap.AccountID, snap.StateID, snap.CountyID, snap.Name, string(altsJSON),
		snap.LengthFeet, snap.DepthFeet, snap.MaxPitDepth, snap.NumberOfPits,
		snap.Narrative, reportedOn, boolToInt(snap.IsArchived), snap.CountyNumber,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert cave %s", snap.ID)
	}

	keepIDs := make([]uuid.UUID, 0, len(snap.Entrances))
	for _, e := range snap.Entrances {
		keepIDs = append(keepIDs, e.ID)
	}
	if len(keepIDs) == 0 {
		if _, err := t.tx.ExecContext(ctx, `DELETE FROM entrances WHERE cave_id = ?`, snap.ID); err != nil {
			return eris.Wrap(err, "sqlite: delete entrances")
		}
	} else {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keepIDs)), ",")
		args := []any{snap.ID}
		for _, id := range keepIDs {
			args = append(args, id)
		}
		_, err := t.tx.ExecContext(ctx,
			`DELETE FROM entrances WHERE cave_id = ? AND id NOT IN (`+placeholders+`)`,
			args...,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: delete absent entrances")
		}
	}

	for _, e := range snap.Entrances {
		var entReported any
		if e.ReportedOn != nil {
			entReported = *e.ReportedOn
		}
		_, err := t.tx.ExecContext(ctx,
			`INSERT INTO entrances
			 (id, cave_id, description, latitude, longitude, elevation_feet,
			  reported_on, pit_depth_feet, location_quality_tag_id, is_primary)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET
			   description = excluded.description,
			   latitude = excluded.latitude,
			   longitude = excluded.longitude,
			   elevation_feet = excluded.elevation_feet,
			   reported_on = excluded.reported_on,
			   pit_depth_feet = excluded.pit_depth_feet,
			   location_quality_tag_id = excluded.location_quality_tag_id,
			   is_primary = excluded.is_primary`,
			e.ID, snap.ID, e.Description, e.Location.Latitude, e.Location.Longitude,
			e.Location.ElevationFeet, entReported, e.PitDepthFeet, e.LocationQualityTagID,
			boolToInt(e.IsPrimary),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert entrance %s", e.ID)
		}
	}

	if _, err := t.tx.ExecContext(ctx, `DELETE FROM cave_tags WHERE cave_id = ?`, snap.ID); err != nil {
		return eris.Wrap(err, "sqlite: clear cave tags")
	}
	for _, cat := range model.CaveTagCategories {
		for _, tagID := range snap.Tags[cat] {
			_, err := t.tx.ExecContext(ctx,
				`INSERT INTO cave_tags (cave_id, category, tag_id) VALUES (?, ?, ?)`,
				snap.ID, string(cat), tagID,
			)
			if err != nil {
				return eris.Wrap(err, "sqlite: insert cave tag")
			}
		}
	}

	for _, e := range snap.Entrances {
		if _, err := t.tx.ExecContext(ctx, `DELETE FROM entrance_tags WHERE entrance_id = ?`, e.ID); err != nil {
			return eris.Wrap(err, "sqlite: clear entrance tags")
		}
		for _, cat := range model.EntranceTagCategories {
			for _, tagID := range e.Tags[cat] {
				_, err := t.tx.ExecContext(ctx,
					`INSERT INTO entrance_tags (entrance_id, category, tag_id) VALUES (?, ?, ?)`,
					e.ID, string(cat), tagID,
				)
				if err != nil {
					return eris.Wrap(err, "sqlite: insert entrance tag")
				}
			}
		}
	}
	return nil
}

func (t *sqliteTx) ReplaceChangeRecords(ctx context.Context, requestID uuid.UUID, records []model.ChangeRecord) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM change_records WHERE change_request_id = ?`, requestID); err != nil {
		return eris.Wrap(err, "sqlite: delete change records")
	}
	return sqliteInsertRecords(ctx, t.tx, requestID, records)
}

func (t *sqliteTx) ResolveRequest(ctx context.Context, requestID, reviewerID uuid.UUID, status model.RequestStatus, notes string) error {
	return sqliteResolveRequest(ctx, t.tx, requestID, reviewerID, status, notes)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
