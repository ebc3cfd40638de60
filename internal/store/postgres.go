package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/mapyard/marker-ingest/internal/db"
	"github.com/mapyard/marker-ingest/internal/model"
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

// preparedStatements lists queries to prepare on each new connection. The
// marker insert and the run bookkeeping statements run once per record, so
// they benefit the most.
var preparedStatements = map[string]string{
	"insert_marker":      `INSERT INTO markers (id, account_id, map_id, name, address, lat, lng, visible, marker_type, tags, group_hint, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
	"existing_markers":   `SELECT name, address, lat, lng FROM markers WHERE account_id = $1 AND map_id = $2`,
	"account_limits":     `SELECT max_markers_per_map, geocoding_allowed FROM accounts WHERE id = $1`,
	"insert_run":         `INSERT INTO import_runs (id, account_id, map_id, status, total_rows, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"set_run_total":      `UPDATE import_runs SET total_rows = $1, updated_at = $2 WHERE id = $3`,
	"update_run_status":  `UPDATE import_runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"complete_run":       `UPDATE import_runs SET status = $1, result = $2, updated_at = $3 WHERE id = $4`,
	"get_run":            `SELECT id, account_id, map_id, status, total_rows, result, created_at, updated_at FROM import_runs WHERE id = $1`,
	"insert_audit_event": `INSERT INTO audit_events (id, account_id, map_id, run_id, kind, detail, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
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

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

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
CREATE TABLE IF NOT EXISTS accounts (
	id                  TEXT PRIMARY KEY,
	name                TEXT NOT NULL DEFAULT '',
	max_markers_per_map INTEGER NOT NULL DEFAULT 100,
	geocoding_allowed   BOOLEAN NOT NULL DEFAULT false,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS markers (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	account_id  TEXT NOT NULL REFERENCES accounts(id),
	map_id      TEXT NOT NULL,
	name        TEXT NOT NULL,
	address     TEXT NOT NULL DEFAULT '',
	lat         DOUBLE PRECISION NOT NULL,
	lng         DOUBLE PRECISION NOT NULL,
	visible     BOOLEAN NOT NULL DEFAULT true,
	marker_type TEXT NOT NULL DEFAULT 'other',
	tags        TEXT[] NOT NULL DEFAULT '{}',
	group_hint  TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_markers_account_map ON markers(account_id, map_id);

CREATE TABLE IF NOT EXISTS import_runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	account_id TEXT NOT NULL,
	map_id     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	total_rows INTEGER NOT NULL DEFAULT 0,
	result     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_import_runs_account_map ON import_runs(account_id, map_id);
CREATE INDEX IF NOT EXISTS idx_import_runs_status ON import_runs(status);

CREATE TABLE IF NOT EXISTS audit_events (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	account_id TEXT NOT NULL,
	map_id     TEXT NOT NULL,
	run_id     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	detail     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_audit_events_run_id ON audit_events(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) AccountLimits(ctx context.Context, accountID string) (*model.AccountLimits, error) {
	var limits model.AccountLimits
	err := s.pool.QueryRow(ctx,
		`SELECT max_markers_per_map, geocoding_allowed FROM accounts WHERE id = $1`,
		accountID,
	).Scan(&limits.MaxMarkersPerMap, &limits.GeocodingAllowed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("account not found: %s", accountID)
		}
		return nil, eris.Wrapf(err, "postgres: account limits %s", accountID)
	}
	return &limits, nil
}

func (s *PostgresStore) EnsureAccount(ctx context.Context, acct *model.Account) error {
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (id, name, max_markers_per_map, geocoding_allowed, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name,
		     max_markers_per_map = EXCLUDED.max_markers_per_map,
		     geocoding_allowed = EXCLUDED.geocoding_allowed`,
		acct.ID, acct.Name, acct.MaxMarkersPerMap, acct.GeocodingAllowed, acct.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: ensure account %s", acct.ID)
}

func (s *PostgresStore) ExistingMarkers(ctx context.Context, accountID, mapID string) ([]model.MarkerFingerprint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, address, lat, lng FROM markers WHERE account_id = $1 AND map_id = $2`,
		accountID, mapID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: existing markers")
	}
	defer rows.Close()

	var fps []model.MarkerFingerprint
	for rows.Next() {
		var fp model.MarkerFingerprint
		var lat, lng float64
		if err := rows.Scan(&fp.Name, &fp.Address, &lat, &lng); err != nil {
			return nil, eris.Wrap(err, "postgres: scan marker fingerprint")
		}
		fp.Lat, fp.Lng = &lat, &lng
		fps = append(fps, fp)
	}
	return fps, eris.Wrap(rows.Err(), "postgres: existing markers iterate")
}

func (s *PostgresStore) InsertMarker(ctx context.Context, m *model.Marker) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO markers (id, account_id, map_id, name, address, lat, lng, visible, marker_type, tags, group_hint, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		m.ID, m.AccountID, m.MapID, m.Name, m.Address, m.Lat, m.Lng, m.Visible, m.Type, tags, m.GroupHint, m.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert marker %q", m.Name)
}

func (s *PostgresStore) CreateRun(ctx context.Context, accountID, mapID string, totalRows int) (*model.ImportRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO import_runs (id, account_id, map_id, status, total_rows, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, accountID, mapID, string(model.RunStatusQueued), totalRows, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.ImportRun{
		ID:        id,
		AccountID: accountID,
		MapID:     mapID,
		Status:    model.RunStatusQueued,
		TotalRows: totalRows,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) SetRunTotal(ctx context.Context, runID string, totalRows int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE import_runs SET total_rows = $1, updated_at = $2 WHERE id = $3`,
		totalRows, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set run total %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE import_runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE import_runs SET status = $1, result = $2, updated_at = $3 WHERE id = $4`,
		string(status), resultJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.ImportRun, error) {
	var r model.ImportRun
	var resultNull *[]byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, account_id, map_id, status, total_rows, result, created_at, updated_at FROM import_runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.AccountID, &r.MapID, &r.Status, &r.TotalRows, &resultNull, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("run not found: %s", runID)
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if resultNull != nil {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal(*resultNull, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ImportRun, error) {
	query := `SELECT id, account_id, map_id, status, total_rows, result, created_at, updated_at FROM import_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.AccountID != "" {
		query += fmt.Sprintf(` AND account_id = $%d`, argIdx)
		args = append(args, filter.AccountID)
		argIdx++
	}
	if filter.MapID != "" {
		query += fmt.Sprintf(` AND map_id = $%d`, argIdx)
		args = append(args, filter.MapID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.ImportRun
	for rows.Next() {
		var r model.ImportRun
		var resultNull *[]byte

		if err := rows.Scan(&r.ID, &r.AccountID, &r.MapID, &r.Status, &r.TotalRows, &resultNull, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if resultNull != nil {
			r.Result = &model.RunResult{}
			if err := json.Unmarshal(*resultNull, r.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal result")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) InsertAuditEvent(ctx context.Context, ev *model.AuditEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	detailJSON, err := json.Marshal(ev.Detail)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal audit detail")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_events (id, account_id, map_id, run_id, kind, detail, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.AccountID, ev.MapID, ev.RunID, ev.Kind, detailJSON, ev.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert audit event %s", ev.Kind)
}

func (s *PostgresStore) ListAuditEvents(ctx context.Context, runID string) ([]model.AuditEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, map_id, run_id, kind, detail, created_at FROM audit_events WHERE run_id = $1 ORDER BY created_at ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audit events")
	}
	defer rows.Close()

	var events []model.AuditEvent
	for rows.Next() {
		var ev model.AuditEvent
		var detailNull *[]byte

		if err := rows.Scan(&ev.ID, &ev.AccountID, &ev.MapID, &ev.RunID, &ev.Kind, &detailNull, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit event")
		}
		if detailNull != nil {
			if err := json.Unmarshal(*detailNull, &ev.Detail); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal audit detail")
			}
		}
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "postgres: list audit events iterate")
}
