package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/mapyard/marker-ingest/internal/model"
)

// SQLiteStore implements Store on a local SQLite file. It covers the same
// operations as PostgresStore and is the default backend for single-machine
// imports where standing up Postgres is overkill.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the SQLite database at path.
func NewSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}

	pragmas := []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA busy_timeout=5000`,
		`PRAGMA synchronous=NORMAL`,
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: %s", pragma)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: ping")
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS accounts (
	id                  TEXT PRIMARY KEY,
	name                TEXT NOT NULL DEFAULT '',
	max_markers_per_map INTEGER NOT NULL DEFAULT 100,
	geocoding_allowed   INTEGER NOT NULL DEFAULT 0,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS markers (
	id          TEXT PRIMARY KEY,
	account_id  TEXT NOT NULL REFERENCES accounts(id),
	map_id      TEXT NOT NULL,
	name        TEXT NOT NULL,
	address     TEXT NOT NULL DEFAULT '',
	lat         REAL NOT NULL,
	lng         REAL NOT NULL,
	visible     INTEGER NOT NULL DEFAULT 1,
	marker_type TEXT NOT NULL DEFAULT 'other',
	tags        TEXT NOT NULL DEFAULT '[]',
	group_hint  TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS import_runs (
	id         TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	map_id     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	total_rows INTEGER NOT NULL DEFAULT 0,
	result     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS audit_events (
	id         TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	map_id     TEXT NOT NULL,
	run_id     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	detail     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_markers_account_map ON markers(account_id, map_id);
CREATE INDEX IF NOT EXISTS idx_import_runs_account_map ON import_runs(account_id, map_id);
CREATE INDEX IF NOT EXISTS idx_import_runs_status ON import_runs(status);
CREATE INDEX IF NOT EXISTS idx_audit_events_run_id ON audit_events(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AccountLimits(ctx context.Context, accountID string) (*model.AccountLimits, error) {
	var limits model.AccountLimits
	err := s.db.QueryRowContext(ctx,
		`SELECT max_markers_per_map, geocoding_allowed FROM accounts WHERE id = ?`,
		accountID,
	).Scan(&limits.MaxMarkersPerMap, &limits.GeocodingAllowed)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("account not found: %s", accountID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: account limits %s", accountID)
	}
	return &limits, nil
}

func (s *SQLiteStore) EnsureAccount(ctx context.Context, acct *model.Account) error {
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name, max_markers_per_map, geocoding_allowed, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name,
		     max_markers_per_map = excluded.max_markers_per_map,
		     geocoding_allowed = excluded.geocoding_allowed`,
		acct.ID, acct.Name, acct.MaxMarkersPerMap, acct.GeocodingAllowed, acct.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: ensure account %s", acct.ID)
}

func (s *SQLiteStore) ExistingMarkers(ctx context.Context, accountID, mapID string) ([]model.MarkerFingerprint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, address, lat, lng FROM markers WHERE account_id = ? AND map_id = ?`,
		accountID, mapID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: existing markers")
	}
	defer rows.Close()

	var fps []model.MarkerFingerprint
	for rows.Next() {
		var fp model.MarkerFingerprint
		var lat, lng float64
		if err := rows.Scan(&fp.Name, &fp.Address, &lat, &lng); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan marker fingerprint")
		}
		fp.Lat, fp.Lng = &lat, &lng
		fps = append(fps, fp)
	}
	return fps, eris.Wrap(rows.Err(), "sqlite: existing markers iterate")
}

func (s *SQLiteStore) InsertMarker(ctx context.Context, m *model.Marker) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	tagsJSON, err := json.Marshal(m.Tags)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal tags")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO markers (id, account_id, map_id, name, address, lat, lng, visible, marker_type, tags, group_hint, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.AccountID, m.MapID, m.Name, m.Address, m.Lat, m.Lng, m.Visible, m.Type, string(tagsJSON), m.GroupHint, m.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert marker %q", m.Name)
}

func (s *SQLiteStore) CreateRun(ctx context.Context, accountID, mapID string, totalRows int) (*model.ImportRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO import_runs (id, account_id, map_id, status, total_rows, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, accountID, mapID, string(model.RunStatusQueued), totalRows, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) SetRunTotal(ctx context.Context, runID string, totalRows int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE import_runs SET total_rows = ?, updated_at = ? WHERE id = ?`,
		totalRows, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set run total %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE import_runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE import_runs SET status = ?, result = ?, updated_at = ? WHERE id = ?`,
		string(status), string(resultJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.ImportRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, account_id, map_id, status, total_rows, result, created_at, updated_at FROM import_runs WHERE id = ?`,
		runID,
	)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	return run, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ImportRun, error) {
	query := `SELECT id, account_id, map_id, status, total_rows, result, created_at, updated_at FROM import_runs WHERE 1=1`
	var args []any

	if filter.AccountID != "" {
		query += ` AND account_id = ?`
		args = append(args, filter.AccountID)
	}
	if filter.MapID != "" {
		query += ` AND map_id = ?`
		args = append(args, filter.MapID)
	}
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
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.ImportRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) InsertAuditEvent(ctx context.Context, ev *model.AuditEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	detailJSON, err := json.Marshal(ev.Detail)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal audit detail")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, account_id, map_id, run_id, kind, detail, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.AccountID, ev.MapID, ev.RunID, ev.Kind, string(detailJSON), ev.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert audit event %s", ev.Kind)
}

func (s *SQLiteStore) ListAuditEvents(ctx context.Context, runID string) ([]model.AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, map_id, run_id, kind, detail, created_at FROM audit_events WHERE run_id = ? ORDER BY created_at ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit events")
	}
	defer rows.Close()

	var events []model.AuditEvent
	for rows.Next() {
		var ev model.AuditEvent
		var detailJSON sql.NullString

		if err := rows.Scan(&ev.ID, &ev.AccountID, &ev.MapID, &ev.RunID, &ev.Kind, &detailJSON, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit event")
		}
		if detailJSON.Valid && detailJSON.String != "" {
			if err := json.Unmarshal([]byte(detailJSON.String), &ev.Detail); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal audit detail")
			}
		}
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: list audit events iterate")
}

// scannable covers both sql.Row and sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.ImportRun, error) {
	var r model.ImportRun
	var resultJSON sql.NullString

	err := row.Scan(&r.ID, &r.AccountID, &r.MapID, &r.Status, &r.TotalRows, &resultJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if resultJSON.Valid {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &r, nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", entity, id)
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
