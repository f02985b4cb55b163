package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/ozark-survey/cavedb/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Intended for local
// development; the serializable approval boundary maps to SQLite's
// single-writer transactions.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sdb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sdb.Exec(pragma); err != nil {
			sdb.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sdb}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS states (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	abbreviation TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS counties (
	id         TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	state_id   TEXT NOT NULL REFERENCES states(id),
	name       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tags (
	id         TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	category   TEXT NOT NULL,
	name       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS caves (
	id                 TEXT PRIMARY KEY,
	account_id         TEXT NOT NULL,
	state_id           TEXT NOT NULL REFERENCES states(id),
	county_id          TEXT NOT NULL REFERENCES counties(id),
	name               TEXT NOT NULL,
	alternate_names    TEXT NOT NULL DEFAULT '[]',
	length_feet        REAL,
	depth_feet         REAL,
	max_pit_depth_feet REAL,
	number_of_pits     INTEGER,
	narrative          TEXT NOT NULL DEFAULT '',
	reported_on        DATETIME,
	is_archived        INTEGER NOT NULL DEFAULT 0,
	county_number      INTEGER,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (account_id, county_id, county_number)
);

CREATE TABLE IF NOT EXISTS entrances (
	id                      TEXT PRIMARY KEY,
	cave_id                 TEXT NOT NULL REFERENCES caves(id) ON DELETE CASCADE,
	description             TEXT NOT NULL DEFAULT '',
	latitude                REAL NOT NULL,
	longitude               REAL NOT NULL,
	elevation_feet          REAL NOT NULL,
	reported_on             DATETIME,
	pit_depth_feet          REAL,
	location_quality_tag_id TEXT NOT NULL REFERENCES tags(id),
	is_primary              INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_entrances_cave ON entrances(cave_id);

CREATE TABLE IF NOT EXISTS cave_tags (
	cave_id  TEXT NOT NULL REFERENCES caves(id) ON DELETE CASCADE,
	category TEXT NOT NULL,
	tag_id   TEXT NOT NULL REFERENCES tags(id),
	PRIMARY KEY (cave_id, category, tag_id)
);

CREATE TABLE IF NOT EXISTS entrance_tags (
	entrance_id TEXT NOT NULL REFERENCES entrances(id) ON DELETE CASCADE,
	category    TEXT NOT NULL,
	tag_id      TEXT NOT NULL REFERENCES tags(id),
	PRIMARY KEY (entrance_id, category, tag_id)
);

CREATE TABLE IF NOT EXISTS change_requests (
	id           TEXT PRIMARY KEY,
	cave_id      TEXT,
	account_id   TEXT NOT NULL,
	submitter_id TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'Pending',
	type         TEXT NOT NULL DEFAULT 'Submission',
	reviewer_id  TEXT,
	reviewed_on  DATETIME,
	notes        TEXT NOT NULL DEFAULT '',
	snapshot     TEXT NOT NULL,
	original     TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_change_requests_account_status ON change_requests(account_id, status);

CREATE TABLE IF NOT EXISTS change_records (
	id                TEXT PRIMARY KEY,
	change_request_id TEXT NOT NULL REFERENCES change_requests(id) ON DELETE CASCADE,
	cave_id           TEXT NOT NULL,
	entrance_id       TEXT,
	property          TEXT NOT NULL,
	ordinal           INTEGER NOT NULL,
	change_type       TEXT NOT NULL,
	value             TEXT NOT NULL,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_change_records_request ON change_records(change_request_id);
CREATE INDEX IF NOT EXISTS idx_change_records_cave ON change_records(cave_id);

CREATE TABLE IF NOT EXISTS permission_grants (
	user_id    TEXT NOT NULL,
	account_id TEXT NOT NULL,
	key        TEXT NOT NULL,
	county_id  TEXT,
	cave_id    TEXT,
	CHECK (county_id IS NULL OR cave_id IS NULL),
	UNIQUE (user_id, account_id, key, county_id, cave_id)
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runner abstracts *sql.DB and *sql.Tx for the shared query helpers.
type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) CaveSnapshot(ctx context.Context, caveID uuid.UUID) (*model.CaveSnapshot, error) {
	return sqliteCaveSnapshot(ctx, s.db, caveID)
}

func sqliteCaveSnapshot(ctx context.Context, r runner, caveID uuid.UUID) (*model.CaveSnapshot, error) {
	var (
		snap       model.CaveSnapshot
		altsJSON   string
		reportedOn sql.NullTime
		archived   int
	)
	err := r.QueryRowContext(ctx,
		`SELECT id, account_id, state_id, county_id, name, alternate_names,
		        length_feet, depth_feet, max_pit_depth_feet, number_of_pits,
		        narrative, reported_on, is_archived, county_number
		 FROM caves WHERE id = ?`,
		caveID,
	).Scan(&snap.ID, &snap.AccountID, &snap.StateID, &snap.CountyID, &snap.Name, &altsJSON,
		&snap.LengthFeet, &snap.DepthFeet, &snap.MaxPitDepth, &snap.NumberOfPits,
		&snap.Narrative, &reportedOn, &archived, &snap.CountyNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "cave %s", caveID)
		}
		return nil, eris.Wrapf(err, "sqlite: get cave %s", caveID)
	}
	if reportedOn.Valid {
		t := reportedOn.Time
		snap.ReportedOn = &t
	}
	snap.IsArchived = archived != 0
	if err := json.Unmarshal([]byte(altsJSON), &snap.AlternateNames); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal alternate names")
	}

	snap.Tags = map[model.TagCategory][]uuid.UUID{}
	rows, err := r.QueryContext(ctx, `SELECT category, tag_id FROM cave_tags WHERE cave_id = ? ORDER BY category, tag_id`, caveID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list cave tags")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cat model.TagCategory
			id  uuid.UUID
		)
		if err := rows.Scan(&cat, &id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cave tag")
		}
		snap.Tags[cat] = append(snap.Tags[cat], id)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate cave tags")
	}

	entRows, err := r.QueryContext(ctx,
		`SELECT id, cave_id, description, latitude, longitude, elevation_feet,
		        reported_on, pit_depth_feet, location_quality_tag_id, is_primary
		 FROM entrances WHERE cave_id = ? ORDER BY id`,
		caveID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list entrances")
	}
	defer entRows.Close()
	byID := map[uuid.UUID]int{}
	for entRows.Next() {
		var (
			e        model.EntranceSnapshot
			reported sql.NullTime
			primary  int
		)
		if err := entRows.Scan(&e.ID, &e.CaveID, &e.Description,
			&e.Location.Latitude, &e.Location.Longitude, &e.Location.ElevationFeet,
			&reported, &e.PitDepthFeet, &e.LocationQualityTagID, &primary); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entrance")
		}
		if reported.Valid {
			t := reported.Time
			e.ReportedOn = &t
		}
		e.IsPrimary = primary != 0
		e.Tags = map[model.TagCategory][]uuid.UUID{}
		byID[e.ID] = len(snap.Entrances)
		snap.Entrances = append(snap.Entrances, e)
	}
	if err := entRows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate entrances")
	}

	tagRows, err := r.QueryContext(ctx,
		`SELECT et.entrance_id, et.category, et.tag_id
		 FROM entrance_tags et
		 JOIN entrances e ON e.id = et.entrance_id
		 WHERE e.cave_id = ?
		 ORDER BY et.entrance_id, et.category, et.tag_id`,
		caveID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list entrance tags")
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var (
			entID uuid.UUID
			cat   model.TagCategory
			id    uuid.UUID
		)
		if err := tagRows.Scan(&entID, &cat, &id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entrance tag")
		}
		if idx, ok := byID[entID]; ok {
			snap.Entrances[idx].Tags[cat] = append(snap.Entrances[idx].Tags[cat], id)
		}
	}
	if err := tagRows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate entrance tags")
	}
	return &snap, nil
}

func (s *SQLiteStore) CaveCounty(ctx context.Context, caveID uuid.UUID) (uuid.UUID, error) {
	var countyID uuid.UUID
	err := s.db.QueryRowContext(ctx, `SELECT county_id FROM caves WHERE id = ?`, caveID).Scan(&countyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, eris.Wrapf(model.ErrNotFound, "cave %s", caveID)
		}
		return uuid.Nil, eris.Wrapf(err, "sqlite: get cave county %s", caveID)
	}
	return countyID, nil
}

func (s *SQLiteStore) CaveDisplay(ctx context.Context, caveID uuid.UUID) (string, string, error) {
	var abbrev, countyName string
	err := s.db.QueryRowContext(ctx,
		`SELECT st.abbreviation, co.name
		 FROM caves c
		 JOIN states st ON st.id = c.state_id
		 JOIN counties co ON co.id = c.county_id
		 WHERE c.id = ?`,
		caveID,
	).Scan(&abbrev, &countyName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", eris.Wrapf(model.ErrNotFound, "cave %s", caveID)
		}
		return "", "", eris.Wrapf(err, "sqlite: get cave display %s", caveID)
	}
	return abbrev, countyName, nil
}

func (s *SQLiteStore) CountyInAccount(ctx context.Context, accountID, countyID uuid.UUID) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM counties WHERE id = ? AND account_id = ?`,
		countyID, accountID,
	).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, eris.Wrap(err, "sqlite: check county account")
	}
	return true, nil
}

func (s *SQLiteStore) MissingTags(ctx context.Context, accountID uuid.UUID, tagIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(tagIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tagIDs)), ",")
	args := []any{accountID}
	for _, id := range tagIDs {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM tags WHERE account_id = ? AND id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: check tags")
	}
	defer rows.Close()

	found := map[uuid.UUID]bool{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tag id")
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate tags")
	}

	var missing []uuid.UUID
	seen := map[uuid.UUID]bool{}
	for _, id := range tagIDs {
		if !found[id] && !seen[id] {
			missing = append(missing, id)
			seen[id] = true
		}
	}
	return missing, nil
}

func (s *SQLiteStore) CreateChangeRequest(ctx context.Context, req model.ChangeRequest, records []model.ChangeRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin create request")
	}
	defer tx.Rollback()

	snapJSON, err := json.Marshal(req.Snapshot)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal snapshot")
	}
	var origJSON any
	if req.Original != nil {
		data, err := json.Marshal(req.Original)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal original snapshot")
		}
		origJSON = string(data)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO change_requests
		 (id, cave_id, account_id, submitter_id, status, type, notes, snapshot, original, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, nullableID(req.CaveID), req.AccountID, req.SubmitterID,
		string(req.Status), string(req.Type), req.Notes, string(snapJSON), origJSON, req.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert change request")
	}

	if err := sqliteInsertRecords(ctx, tx, req.ID, records); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit create request")
}

func sqliteInsertRecords(ctx context.Context, r runner, requestID uuid.UUID, records []model.ChangeRecord) error {
	now := time.Now().UTC()
	for i, rec := range records {
		valueJSON, err := model.EncodeChangeValue(rec.Value)
		if err != nil {
			return err
		}
		id := rec.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		_, err = r.ExecContext(ctx,
			`INSERT INTO change_records
			 (id, change_request_id, cave_id, entrance_id, property, ordinal, change_type, value, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, requestID, rec.CaveID, nullableID(rec.EntranceID), rec.Property, i,
			string(rec.ChangeType), string(valueJSON), now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert change record %s", rec.Property)
		}
	}
	return nil
}

func (s *SQLiteStore) ChangeRequest(ctx context.Context, id uuid.UUID) (*model.ChangeRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, cave_id, account_id, submitter_id, status, type,
		        reviewer_id, reviewed_on, notes, snapshot, original, created_at
		 FROM change_requests WHERE id = ?`,
		id,
	)
	req, err := scanSQLiteRequest(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "change request %s", id)
		}
		return nil, err
	}
	return req, nil
}

func scanSQLiteRequest(scan func(dest ...any) error) (*model.ChangeRequest, error) {
	var (
		req        model.ChangeRequest
		caveID     uuid.NullUUID
		reviewerID uuid.NullUUID
		reviewedOn sql.NullTime
		snapJSON   string
		origJSON   sql.NullString
	)
	err := scan(&req.ID, &caveID, &req.AccountID, &req.SubmitterID, &req.Status, &req.Type,
		&reviewerID, &reviewedOn, &req.Notes, &snapJSON, &origJSON, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "sqlite: scan change request")
	}
	if caveID.Valid {
		id := caveID.UUID
		req.CaveID = &id
	}
	if reviewerID.Valid {
		id := reviewerID.UUID
		req.ReviewerID = &id
	}
	if reviewedOn.Valid {
		t := reviewedOn.Time
		req.ReviewedOn = &t
	}
	if err := json.Unmarshal([]byte(snapJSON), &req.Snapshot); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal snapshot")
	}
	if origJSON.Valid {
		req.Original = &model.CaveSnapshot{}
		if err := json.Unmarshal([]byte(origJSON.String), req.Original); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal original snapshot")
		}
	}
	return &req, nil
}

func (s *SQLiteStore) ChangeRecords(ctx context.Context, requestID uuid.UUID) ([]model.ChangeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, change_request_id, cave_id, entrance_id, property, change_type, value, created_at
		 FROM change_records WHERE change_request_id = ? ORDER BY ordinal`,
		requestID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list change records")
	}
	defer rows.Close()
	return scanSQLiteRecords(rows)
}

func scanSQLiteRecords(rows *sql.Rows) ([]model.ChangeRecord, error) {
	var records []model.ChangeRecord
	for rows.Next() {
		var (
			r          model.ChangeRecord
			entranceID uuid.NullUUID
			valueJSON  string
		)
		if err := rows.Scan(&r.ID, &r.ChangeRequestID, &r.CaveID, &entranceID,
			&r.Property, &r.ChangeType, &valueJSON, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan change record")
		}
		if entranceID.Valid {
			id := entranceID.UUID
			r.EntranceID = &id
		}
		value, err := model.DecodeChangeValue([]byte(valueJSON))
		if err != nil {
			return nil, err
		}
		r.Value = value
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: iterate change records")
}

func (s *SQLiteStore) ListChangeRequests(ctx context.Context, filter RequestFilter) ([]model.ChangeRequest, error) {
	query := `SELECT id, cave_id, account_id, submitter_id, status, type,
	                 reviewer_id, reviewed_on, notes, snapshot, original, created_at
	          FROM change_requests WHERE account_id = ?`
	args := []any{filter.AccountID}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list change requests")
	}
	defer rows.Close()

	var reqs []model.ChangeRequest
	for rows.Next() {
		req, err := scanSQLiteRequest(rows.Scan)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, *req)
	}
	return reqs, eris.Wrap(rows.Err(), "sqlite: list change requests iterate")
}

func (s *SQLiteStore) CaveHistory(ctx context.Context, caveID uuid.UUID) ([]model.ChangeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.change_request_id, r.cave_id, r.entrance_id, r.property, r.change_type, r.value, r.created_at
		 FROM change_records r
		 JOIN change_requests q ON q.id = r.change_request_id
		 WHERE r.cave_id = ? AND q.status = 'Approved'
		 ORDER BY r.created_at, r.ordinal`,
		caveID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list cave history")
	}
	defer rows.Close()
	return scanSQLiteRecords(rows)
}

func (s *SQLiteStore) ResolveRequest(ctx context.Context, requestID, reviewerID uuid.UUID, status model.RequestStatus, notes string) error {
	return sqliteResolveRequest(ctx, s.db, requestID, reviewerID, status, notes)
}

func sqliteResolveRequest(ctx context.Context, r runner, requestID, reviewerID uuid.UUID, status model.RequestStatus, notes string) error {
	res, err := r.ExecContext(ctx,
		`UPDATE change_requests
		 SET status = ?, reviewer_id = ?, reviewed_on = ?, notes = ?
		 WHERE id = ? AND status = 'Pending'`,
		string(status), reviewerID, time.Now().UTC(), notes, requestID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: resolve request %s", requestID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(model.ErrNotFound, "pending change request %s", requestID)
	}
	return nil
}

func (s *SQLiteStore) GrantsFor(ctx context.Context, userID, accountID uuid.UUID) ([]model.PermissionGrant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, county_id, cave_id FROM permission_grants
		 WHERE user_id = ? AND account_id = ?`,
		userID, accountID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list grants")
	}
	defer rows.Close()

	var grants []model.PermissionGrant
	for rows.Next() {
		var (
			key      string
			countyID uuid.NullUUID
			caveID   uuid.NullUUID
		)
		if err := rows.Scan(&key, &countyID, &caveID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan grant")
		}
		var countyPtr, cavePtr *uuid.UUID
		if countyID.Valid {
			countyPtr = &countyID.UUID
		}
		if caveID.Valid {
			cavePtr = &caveID.UUID
		}
		scope, err := model.NewScope(countyPtr, cavePtr)
		if err != nil {
			return nil, err
		}
		grants = append(grants, model.PermissionGrant{
			UserID:    userID,
			AccountID: accountID,
			Key:       model.PermissionKey(key),
			Scope:     scope,
		})
	}
	return grants, eris.Wrap(rows.Err(), "sqlite: iterate grants")
}

// PutGrant upserts a grant row. Used by the seeding command only.
func (s *SQLiteStore) PutGrant(ctx context.Context, grant model.PermissionGrant) error {
	var countyID, caveID any
	if id, ok := grant.Scope.CountyID(); ok {
		countyID = id
	}
	if id, ok := grant.Scope.CaveID(); ok {
		caveID = id
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO permission_grants (user_id, account_id, key, county_id, cave_id)
		 VALUES (?, ?, ?, ?, ?)`,
		grant.UserID, grant.AccountID, string(grant.Key), countyID, caveID,
	)
	return eris.Wrap(err, "sqlite: put grant")
}

func (s *SQLiteStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	if err := fn(ctx, &sqliteTx{tx: tx}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

func nullableID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return *id
}
