package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/ozark-survey/cavedb/internal/db"
	"github.com/ozark-survey/cavedb/internal/model"
)

// pgTx implements Tx over an open pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) CaveSnapshot(ctx context.Context, caveID uuid.UUID) (*model.CaveSnapshot, error) {
	return loadCaveSnapshot(ctx, t.tx, caveID)
}

func (t *pgTx) NextCountyNumber(ctx context.Context, accountID, countyID uuid.UUID) (int, error) {
	var next int
	err := t.tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(county_number), 0) + 1 FROM caves
		 WHERE account_id = $1 AND county_id = $2`,
		accountID, countyID,
	).Scan(&next)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: next county number")
	}
	return next, nil
}

func (t *pgTx) ApplySnapshot(ctx context.Context, snap model.CaveSnapshot) error {
	altsJSON, err := json.Marshal(snap.AlternateNames)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal alternate names")
	}

	_, err = t.tx.Exec(ctx,
		`INSERT INTO caves
		 (id, account_id, state_id, county_id, name, alternate_names, length_feet, depth_feet,
		  max_pit_depth_feet, number_of_pits, narrative, reported_on, is_archived, county_number,
		  created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())
		 ON CONFLICT (id) DO UPDATE SET
		   state_id = $3, county_id = $4, name = $5, alternate_names = $6, length_feet = $7,
		   depth_feet = $8, max_pit_depth_feet = $9, number_of_pits = $10, narrative = $11,
		   reported_on = $12, is_archived = $13, updated_at = now()`,
		snap.ID, snap.AccountID, snap.StateID, snap.CountyID, snap.Name, altsJSON,
		snap.LengthFeet, snap.DepthFeet, snap.MaxPitDepth, snap.NumberOfPits,
		snap.Narrative, snap.ReportedOn, snap.IsArchived, snap.CountyNumber,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert cave %s", snap.ID)
	}

	// Reconcile the entrance collection: drop entrances absent from the
	// proposal, upsert the rest. Association rows cascade on delete.
	keep := make([]uuid.UUID, 0, len(snap.Entrances))
	for _, e := range snap.Entrances {
		keep = append(keep, e.ID)
	}
	if len(keep) == 0 {
		_, err = t.tx.Exec(ctx, `DELETE FROM entrances WHERE cave_id = $1`, snap.ID)
	} else {
		_, err = t.tx.Exec(ctx, `DELETE FROM entrances WHERE cave_id = $1 AND NOT (id = ANY($2))`, snap.ID, keep)
	}
	if err != nil {
		return eris.Wrap(err, "postgres: delete removed entrances")
	}

	for _, e := range snap.Entrances {
		_, err = t.tx.Exec(ctx,
			`INSERT INTO entrances
			 (id, cave_id, description, latitude, longitude, elevation_feet,
			  reported_on, pit_depth_feet, location_quality_tag_id, is_primary)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (id) DO UPDATE SET
			   description = $3, latitude = $4, longitude = $5, elevation_feet = $6,
			   reported_on = $7, pit_depth_feet = $8, location_quality_tag_id = $9, is_primary = $10`,
			e.ID, snap.ID, e.Description, e.Location.Latitude, e.Location.Longitude,
			e.Location.ElevationFeet, e.ReportedOn, e.PitDepthFeet, e.LocationQualityTagID, e.IsPrimary,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: upsert entrance %s", e.ID)
		}
	}

	// Replace tag sets wholesale.
	if _, err = t.tx.Exec(ctx, `DELETE FROM cave_tags WHERE cave_id = $1`, snap.ID); err != nil {
		return eris.Wrap(err, "postgres: clear cave tags")
	}
	var caveTagRows [][]any
	for _, c := range model.CaveTagCategories {
		for _, id := range snap.TagIDs(c) {
			caveTagRows = append(caveTagRows, []any{snap.ID, string(c), id})
		}
	}
	if _, err = db.CopyFrom(ctx, t.tx, "cave_tags", []string{"cave_id", "category", "tag_id"}, caveTagRows); err != nil {
		return err
	}

	if len(keep) > 0 {
		if _, err = t.tx.Exec(ctx, `DELETE FROM entrance_tags WHERE entrance_id = ANY($1)`, keep); err != nil {
			return eris.Wrap(err, "postgres: clear entrance tags")
		}
	}
	var entTagRows [][]any
	for _, e := range snap.Entrances {
		for _, c := range model.EntranceTagCategories {
			for _, id := range e.TagIDs(c) {
				entTagRows = append(entTagRows, []any{e.ID, string(c), id})
			}
		}
	}
	if _, err = db.CopyFrom(ctx, t.tx, "entrance_tags", []string{"entrance_id", "category", "tag_id"}, entTagRows); err != nil {
		return err
	}
	return nil
}

func (t *pgTx) ReplaceChangeRecords(ctx context.Context, requestID uuid.UUID, records []model.ChangeRecord) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM change_records WHERE change_request_id = $1`, requestID); err != nil {
		return eris.Wrap(err, "postgres: clear change records")
	}
	return insertChangeRecords(ctx, t.tx, requestID, records)
}

func (t *pgTx) ResolveRequest(ctx context.Context, requestID, reviewerID uuid.UUID, status model.RequestStatus, notes string) error {
	return resolveRequest(ctx, t.tx, requestID, reviewerID, status, notes)
}
