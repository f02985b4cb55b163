package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/ozark-survey/cavedb/internal/db"
	"github.com/ozark-survey/cavedb/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS states (
	id           UUID PRIMARY KEY,
	name         TEXT NOT NULL,
	abbreviation TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS counties (
	id         UUID PRIMARY KEY,
	account_id UUID NOT NULL,
	state_id   UUID NOT NULL REFERENCES states(id),
	name       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_counties_account ON counties(account_id);

CREATE TABLE IF NOT EXISTS tags (
	id         UUID PRIMARY KEY,
	account_id UUID NOT NULL,
	category   TEXT NOT NULL,
	name       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tags_account ON tags(account_id);

CREATE TABLE IF NOT EXISTS caves (
	id                 UUID PRIMARY KEY,
	account_id         UUID NOT NULL,
	state_id           UUID NOT NULL REFERENCES states(id),
	county_id          UUID NOT NULL REFERENCES counties(id),
	name               TEXT NOT NULL,
	alternate_names    JSONB NOT NULL DEFAULT '[]',
	length_feet        DOUBLE PRECISION,
	depth_feet         DOUBLE PRECISION,
	max_pit_depth_feet DOUBLE PRECISION,
	number_of_pits     INTEGER,
	narrative          TEXT NOT NULL DEFAULT '',
	reported_on        TIMESTAMPTZ,
	is_archived        BOOLEAN NOT NULL DEFAULT false,
	county_number      INTEGER,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT uq_caves_county_number UNIQUE (account_id, county_id, county_number)
);

CREATE INDEX IF NOT EXISTS idx_caves_account ON caves(account_id);
CREATE INDEX IF NOT EXISTS idx_caves_county ON caves(county_id);

CREATE TABLE IF NOT EXISTS entrances (
	id                      UUID PRIMARY KEY,
	cave_id                 UUID NOT NULL REFERENCES caves(id) ON DELETE CASCADE,
	description             TEXT NOT NULL DEFAULT '',
	latitude                DOUBLE PRECISION NOT NULL,
	longitude               DOUBLE PRECISION NOT NULL,
	elevation_feet          DOUBLE PRECISION NOT NULL,
	reported_on             TIMESTAMPTZ,
	pit_depth_feet          DOUBLE PRECISION,
	location_quality_tag_id UUID NOT NULL REFERENCES tags(id),
	is_primary              BOOLEAN NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS idx_entrances_cave ON entrances(cave_id);

CREATE TABLE IF NOT EXISTS cave_tags (
	cave_id  UUID NOT NULL REFERENCES caves(id) ON DELETE CASCADE,
	category TEXT NOT NULL,
	tag_id   UUID NOT NULL REFERENCES tags(id),
	PRIMARY KEY (cave_id, category, tag_id)
);

CREATE TABLE IF NOT EXISTS entrance_tags (
	entrance_id UUID NOT NULL REFERENCES entrances(id) ON DELETE CASCADE,
	category    TEXT NOT NULL,
	tag_id      UUID NOT NULL REFERENCES tags(id),
	PRIMARY KEY (entrance_id, category, tag_id)
);

CREATE TABLE IF NOT EXISTS change_requests (
	id           UUID PRIMARY KEY,
	cave_id      UUID,
	account_id   UUID NOT NULL,
	submitter_id UUID NOT NULL,
	status       TEXT NOT NULL DEFAULT 'Pending',
	type         TEXT NOT NULL DEFAULT 'Submission',
	reviewer_id  UUID,
	reviewed_on  TIMESTAMPTZ,
	notes        TEXT NOT NULL DEFAULT '',
	snapshot     JSONB NOT NULL,
	original     JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_change_requests_account_status ON change_requests(account_id, status);
CREATE INDEX IF NOT EXISTS idx_change_requests_cave ON change_requests(cave_id);

CREATE TABLE IF NOT EXISTS change_records (
	id                UUID PRIMARY KEY,
	change_request_id UUID NOT NULL REFERENCES change_requests(id) ON DELETE CASCADE,
	cave_id           UUID NOT NULL,
	entrance_id       UUID,
	property          TEXT NOT NULL,
	ordinal           INTEGER NOT NULL,
	change_type       TEXT NOT NULL,
	value             JSONB NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_change_records_request ON change_records(change_request_id);
CREATE INDEX IF NOT EXISTS idx_change_records_cave ON change_records(cave_id);

CREATE TABLE IF NOT EXISTS permission_grants (
	user_id    UUID NOT NULL,
	account_id UUID NOT NULL,
	key        TEXT NOT NULL,
	county_id  UUID,
	cave_id    UUID,
	CONSTRAINT ck_grant_scope CHECK (county_id IS NULL OR cave_id IS NULL),
	CONSTRAINT uq_grant UNIQUE NULLS NOT DISTINCT (user_id, account_id, key, county_id, cave_id)
);

CREATE INDEX IF NOT EXISTS idx_grants_user_account ON permission_grants(user_id, account_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// querier is what snapshot assembly runs against: the pool or an open tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) CaveSnapshot(ctx context.Context, caveID uuid.UUID) (*model.CaveSnapshot, error) {
	return loadCaveSnapshot(ctx, s.pool, caveID)
}

func loadCaveSnapshot(ctx context.Context, q querier, caveID uuid.UUID) (*model.CaveSnapshot, error) {
	var (
		snap      model.CaveSnapshot
		altsJSON  []byte
	)
	err := q.QueryRow(ctx,
		`SELECT id, account_id, state_id, county_id, name, alternate_names,
		        length_feet, depth_feet, max_pit_depth_feet, number_of_pits,
		        narrative, reported_on, is_archived, county_number
		 FROM caves WHERE id = $1`,
		caveID,
	).Scan(&snap.ID, &snap.AccountID, &snap.StateID, &snap.CountyID, &snap.Name, &altsJSON,
		&snap.LengthFeet, &snap.DepthFeet, &snap.MaxPitDepth, &snap.NumberOfPits,
		&snap.Narrative, &snap.ReportedOn, &snap.IsArchived, &snap.CountyNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "cave %s", caveID)
		}
		return nil, eris.Wrapf(err, "postgres: get cave %s", caveID)
	}
	if len(altsJSON) > 0 {
		if err := json.Unmarshal(altsJSON, &snap.AlternateNames); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal alternate names")
		}
	}

	snap.Tags = map[model.TagCategory][]uuid.UUID{}
	rows, err := q.Query(ctx, `SELECT category, tag_id FROM cave_tags WHERE cave_id = $1 ORDER BY category, tag_id`, caveID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list cave tags")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cat model.TagCategory
			id  uuid.UUID
		)
		if err := rows.Scan(&cat, &id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cave tag")
		}
		snap.Tags[cat] = append(snap.Tags[cat], id)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate cave tags")
	}
	rows.Close()

	entRows, err := q.Query(ctx,
		`SELECT id, cave_id, description, latitude, longitude, elevation_feet,
		        reported_on, pit_depth_feet, location_quality_tag_id, is_primary
		 FROM entrances WHERE cave_id = $1 ORDER BY id`,
		caveID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list entrances")
	}
	defer entRows.Close()
	byID := map[uuid.UUID]int{}
	for entRows.Next() {
		var e model.EntranceSnapshot
		if err := entRows.Scan(&e.ID, &e.CaveID, &e.Description,
			&e.Location.Latitude, &e.Location.Longitude, &e.Location.ElevationFeet,
			&e.ReportedOn, &e.PitDepthFeet, &e.LocationQualityTagID, &e.IsPrimary); err != nil {
			return nil, eris.Wrap(err, "postgres: scan entrance")
		}
		e.Tags = map[model.TagCategory][]uuid.UUID{}
		byID[e.ID] = len(snap.Entrances)
		snap.Entrances = append(snap.Entrances, e)
	}
	if err := entRows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate entrances")
	}
	entRows.Close()

	tagRows, err := q.Query(ctx,
		`SELECT et.entrance_id, et.category, et.tag_id
		 FROM entrance_tags et
		 JOIN entrances e ON e.id = et.entrance_id
		 WHERE e.cave_id = $1
		 ORDER BY et.entrance_id, et.category, et.tag_id`,
		caveID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list entrance tags")
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var (
			entID uuid.UUID
			cat   model.TagCategory
			id    uuid.UUID
		)
		if err := tagRows.Scan(&entID, &cat, &id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan entrance tag")
		}
		if idx, ok := byID[entID]; ok {
			snap.Entrances[idx].Tags[cat] = append(snap.Entrances[idx].Tags[cat], id)
		}
	}
	if err := tagRows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate entrance tags")
	}
	return &snap, nil
}

func (s *PostgresStore) CaveCounty(ctx context.Context, caveID uuid.UUID) (uuid.UUID, error) {
	var countyID uuid.UUID
	err := s.pool.QueryRow(ctx, `SELECT county_id FROM caves WHERE id = $1`, caveID).Scan(&countyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, eris.Wrapf(model.ErrNotFound, "cave %s", caveID)
		}
		return uuid.Nil, eris.Wrapf(err, "postgres: get cave county %s", caveID)
	}
	return countyID, nil
}

func (s *PostgresStore) CaveDisplay(ctx context.Context, caveID uuid.UUID) (string, string, error) {
	var abbrev, countyName string
	err := s.pool.QueryRow(ctx,
		`SELECT st.abbreviation, co.name
		 FROM caves c
		 JOIN states st ON st.id = c.state_id
		 JOIN counties co ON co.id = c.county_id
		 WHERE c.id = $1`,
		caveID,
	).Scan(&abbrev, &countyName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", eris.Wrapf(model.ErrNotFound, "cave %s", caveID)
		}
		return "", "", eris.Wrapf(err, "postgres: get cave display %s", caveID)
	}
	return abbrev, countyName, nil
}

func (s *PostgresStore) CountyInAccount(ctx context.Context, accountID, countyID uuid.UUID) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM counties WHERE id = $1 AND account_id = $2`,
		countyID, accountID,
	).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, eris.Wrap(err, "postgres: check county account")
	}
	return true, nil
}

func (s *PostgresStore) MissingTags(ctx context.Context, accountID uuid.UUID, tagIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(tagIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM tags WHERE account_id = $1 AND id = ANY($2)`,
		accountID, tagIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: check tags")
	}
	defer rows.Close()

	found := map[uuid.UUID]bool{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan tag id")
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate tags")
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

func (s *PostgresStore) CreateChangeRequest(ctx context.Context, req model.ChangeRequest, records []model.ChangeRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin create request")
	}
	defer tx.Rollback(ctx)

	snapJSON, err := json.Marshal(req.Snapshot)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal snapshot")
	}
	var origJSON []byte
	if req.Original != nil {
		if origJSON, err = json.Marshal(req.Original); err != nil {
			return eris.Wrap(err, "postgres: marshal original snapshot")
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO change_requests
		 (id, cave_id, account_id, submitter_id, status, type, notes, snapshot, original, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		req.ID, req.CaveID, req.AccountID, req.SubmitterID,
		string(req.Status), string(req.Type), req.Notes, snapJSON, origJSON, req.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert change request")
	}

	if err := insertChangeRecords(ctx, tx, req.ID, records); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit create request")
}

func insertChangeRecords(ctx context.Context, q querier, requestID uuid.UUID, records []model.ChangeRecord) error {
	now := time.Now().UTC()
	for i, r := range records {
		valueJSON, err := model.EncodeChangeValue(r.Value)
		if err != nil {
			return err
		}
		id := r.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		_, err = q.Exec(ctx,
			`INSERT INTO change_records
			 (id, change_request_id, cave_id, entrance_id, property, ordinal, change_type, value, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			id, requestID, r.CaveID, r.EntranceID, r.Property, i, string(r.ChangeType), valueJSON, now,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert change record %s", r.Property)
		}
	}
	return nil
}

func (s *PostgresStore) ChangeRequest(ctx context.Context, id uuid.UUID) (*model.ChangeRequest, error) {
	return loadChangeRequest(ctx, s.pool, id)
}

func loadChangeRequest(ctx context.Context, q querier, id uuid.UUID) (*model.ChangeRequest, error) {
	var (
		req      model.ChangeRequest
		snapJSON []byte
		origJSON []byte
	)
	err := q.QueryRow(ctx,
		`SELECT id, cave_id, account_id, submitter_id, status, type,
		        reviewer_id, reviewed_on, notes, snapshot, original, created_at
		 FROM change_requests WHERE id = $1`,
		id,
	).Scan(&req.ID, &req.CaveID, &req.AccountID, &req.SubmitterID, &req.Status, &req.Type,
		&req.ReviewerID, &req.ReviewedOn, &req.Notes, &snapJSON, &origJSON, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "change request %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get change request %s", id)
	}
	if err := json.Unmarshal(snapJSON, &req.Snapshot); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal snapshot")
	}
	if len(origJSON) > 0 {
		req.Original = &model.CaveSnapshot{}
		if err := json.Unmarshal(origJSON, req.Original); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal original snapshot")
		}
	}
	return &req, nil
}

func (s *PostgresStore) ChangeRecords(ctx context.Context, requestID uuid.UUID) ([]model.ChangeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, change_request_id, cave_id, entrance_id, property, change_type, value, created_at
		 FROM change_records WHERE change_request_id = $1 ORDER BY ordinal`,
		requestID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list change records")
	}
	defer rows.Close()
	return scanChangeRecords(rows)
}

func scanChangeRecords(rows pgx.Rows) ([]model.ChangeRecord, error) {
	var records []model.ChangeRecord
	for rows.Next() {
		var (
			r         model.ChangeRecord
			valueJSON []byte
		)
		if err := rows.Scan(&r.ID, &r.ChangeRequestID, &r.CaveID, &r.EntranceID,
			&r.Property, &r.ChangeType, &valueJSON, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan change record")
		}
		value, err := model.DecodeChangeValue(valueJSON)
		if err != nil {
			return nil, err
		}
		r.Value = value
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate change records")
}

func (s *PostgresStore) ListChangeRequests(ctx context.Context, filter RequestFilter) ([]model.ChangeRequest, error) {
	query := `SELECT id, cave_id, account_id, submitter_id, status, type,
	                 reviewer_id, reviewed_on, notes, snapshot, original, created_at
	          FROM change_requests WHERE account_id = $1`
	args := []any{filter.AccountID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $2`
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list change requests")
	}
	defer rows.Close()

	var reqs []model.ChangeRequest
	for rows.Next() {
		var (
			req      model.ChangeRequest
			snapJSON []byte
			origJSON []byte
		)
		if err := rows.Scan(&req.ID, &req.CaveID, &req.AccountID, &req.SubmitterID, &req.Status, &req.Type,
			&req.ReviewerID, &req.ReviewedOn, &req.Notes, &snapJSON, &origJSON, &req.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan change request")
		}
		if err := json.Unmarshal(snapJSON, &req.Snapshot); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal snapshot")
		}
		if len(origJSON) > 0 {
			req.Original = &model.CaveSnapshot{}
			if err := json.Unmarshal(origJSON, req.Original); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal original snapshot")
			}
		}
		reqs = append(reqs, req)
	}
	return reqs, eris.Wrap(rows.Err(), "postgres: iterate change requests")
}

func (s *PostgresStore) CaveHistory(ctx context.Context, caveID uuid.UUID) ([]model.ChangeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.id, r.change_request_id, r.cave_id, r.entrance_id, r.property, r.change_type, r.value, r.created_at
		 FROM change_records r
		 JOIN change_requests q ON q.id = r.change_request_id
		 WHERE r.cave_id = $1 AND q.status = 'Approved'
		 ORDER BY r.created_at, r.ordinal`,
		caveID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list cave history")
	}
	defer rows.Close()
	return scanChangeRecords(rows)
}

func (s *PostgresStore) ResolveRequest(ctx context.Context, requestID, reviewerID uuid.UUID, status model.RequestStatus, notes string) error {
	return resolveRequest(ctx, s.pool, requestID, reviewerID, status, notes)
}

func resolveRequest(ctx context.Context, q querier, requestID, reviewerID uuid.UUID, status model.RequestStatus, notes string) error {
	tag, err := q.Exec(ctx,
		`UPDATE change_requests
		 SET status = $1, reviewer_id = $2, reviewed_on = $3, notes = $4
		 WHERE id = $5 AND status = 'Pending'`,
		string(status), reviewerID, time.Now().UTC(), notes, requestID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: resolve request %s", requestID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "pending change request %s", requestID)
	}
	return nil
}

func (s *PostgresStore) GrantsFor(ctx context.Context, userID, accountID uuid.UUID) ([]model.PermissionGrant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, county_id, cave_id FROM permission_grants
		 WHERE user_id = $1 AND account_id = $2`,
		userID, accountID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list grants")
	}
	defer rows.Close()

	var grants []model.PermissionGrant
	for rows.Next() {
		var (
			key      string
			countyID *uuid.UUID
			caveID   *uuid.UUID
		)
		if err := rows.Scan(&key, &countyID, &caveID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan grant")
		}
		scope, err := model.NewScope(countyID, caveID)
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
	return grants, eris.Wrap(rows.Err(), "postgres: iterate grants")
}

// PutGrant upserts a grant row. Used by the seeding command only.
func (s *PostgresStore) PutGrant(ctx context.Context, grant model.PermissionGrant) error {
	var countyID, caveID *uuid.UUID
	if id, ok := grant.Scope.CountyID(); ok {
		countyID = &id
	}
	if id, ok := grant.Scope.CaveID(); ok {
		caveID = &id
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO permission_grants (user_id, account_id, key, county_id, cave_id)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT ON CONSTRAINT uq_grant DO NOTHING`,
		grant.UserID, grant.AccountID, string(grant.Key), countyID, caveID,
	)
	return eris.Wrap(err, "postgres: put grant")
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit tx")
}
