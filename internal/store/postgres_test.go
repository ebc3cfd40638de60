package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapyard/marker-ingest/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_AccountLimits(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT max_markers_per_map, geocoding_allowed FROM accounts WHERE id = \$1`).
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{"max_markers_per_map", "geocoding_allowed"}).AddRow(500, true))

	limits, err := s.AccountLimits(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 500, limits.MaxMarkersPerMap)
	assert.True(t, limits.GeocodingAllowed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AccountLimits_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT max_markers_per_map, geocoding_allowed FROM accounts`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.AccountLimits(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EnsureAccount(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO accounts .* ON CONFLICT \(id\) DO UPDATE`).
		WithArgs("acct-1", "Pro", 500, true, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.EnsureAccount(context.Background(), &model.Account{
		ID: "acct-1", Name: "Pro", MaxMarkersPerMap: 500, GeocodingAllowed: true,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ExistingMarkers(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT name, address, lat, lng FROM markers WHERE account_id = \$1 AND map_id = \$2`).
		WithArgs("acct-1", "map-1").
		WillReturnRows(pgxmock.NewRows([]string{"name", "address", "lat", "lng"}).
			AddRow("Acme HQ", "1 Main St", 40.75, -73.99).
			AddRow("Acme Depot", "9 Dock Rd", 40.71, -74.01))

	fps, err := s.ExistingMarkers(context.Background(), "acct-1", "map-1")
	require.NoError(t, err)
	require.Len(t, fps, 2)
	assert.Equal(t, "Acme HQ", fps[0].Name)
	require.NotNil(t, fps[0].Lat)
	assert.InDelta(t, 40.75, *fps[0].Lat, 0.0001)
	assert.Equal(t, "Acme Depot", fps[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertMarker_FillsDefaults(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO markers`).
		WithArgs(pgxmock.AnyArg(), "acct-1", "map-1", "Acme HQ", "1 Main St", 40.75, -73.99,
			true, "other", pgxmock.AnyArg(), "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	m := &model.Marker{
		AccountID: "acct-1",
		MapID:     "map-1",
		Name:      "Acme HQ",
		Address:   "1 Main St",
		Lat:       40.75,
		Lng:       -73.99,
		Visible:   true,
		Type:      "other",
	}
	err := s.InsertMarker(context.Background(), m)
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.False(t, m.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO import_runs`).
		WithArgs(pgxmock.AnyArg(), "acct-1", "map-1", "queued", 42, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "acct-1", "map-1", 42)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.Equal(t, 42, run.TotalRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetRunTotal(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE import_runs SET total_rows = \$1, updated_at = \$2 WHERE id = \$3`).
		WithArgs(120, pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.SetRunTotal(context.Background(), "run-1", 120)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetRunTotal_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE import_runs SET total_rows = \$1, updated_at = \$2 WHERE id = \$3`).
		WithArgs(5, pgxmock.AnyArg(), "nonexistent-run").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SetRunTotal(context.Background(), "nonexistent-run", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE import_runs SET status = \$1, updated_at = \$2 WHERE id = \$3`).
		WithArgs("cancelled", pgxmock.AnyArg(), "nonexistent-run").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "nonexistent-run", model.RunStatusCancelled)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE import_runs SET status = \$1, result = \$2, updated_at = \$3 WHERE id = \$4`).
		WithArgs("complete", pgxmock.AnyArg(), pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	result := &model.RunResult{MarkersAdded: 7, DuplicatesSkipped: 2}
	err := s.CompleteRun(context.Background(), "run-1", model.RunStatusComplete, result)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, account_id, map_id, status, total_rows, result, created_at, updated_at FROM import_runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_WithResult(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	resultJSON := []byte(`{"markers_added":3,"duplicates_skipped":1}`)
	mock.ExpectQuery(`SELECT id, account_id, map_id, status, total_rows, result, created_at, updated_at FROM import_runs`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "account_id", "map_id", "status", "total_rows", "result", "created_at", "updated_at"}).
			AddRow("run-1", "acct-1", "map-1", model.RunStatusComplete, 10, &resultJSON, now, now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, 3, run.Result.MarkersAdded)
	assert.Equal(t, 1, run.Result.DuplicatesSkipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM import_runs WHERE true AND account_id = \$1 AND status = \$2 ORDER BY created_at DESC LIMIT \$3`).
		WithArgs("acct-1", "complete", 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "account_id", "map_id", "status", "total_rows", "result", "created_at", "updated_at"}).
			AddRow("run-1", "acct-1", "map-1", model.RunStatusComplete, 5, nil, now, now))

	runs, err := s.ListRuns(context.Background(), RunFilter{
		AccountID: "acct-1",
		Status:    model.RunStatusComplete,
		Limit:     10,
	})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Nil(t, runs[0].Result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertAuditEvent(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO audit_events`).
		WithArgs(pgxmock.AnyArg(), "acct-1", "map-1", "run-1", "geocode_denied", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ev := &model.AuditEvent{
		AccountID: "acct-1",
		MapID:     "map-1",
		RunID:     "run-1",
		Kind:      model.AuditGeocodeDenied,
		Detail:    map[string]any{"row": 4},
	}
	err := s.InsertAuditEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAuditEvents(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	detailJSON := []byte(`{"row":4}`)
	mock.ExpectQuery(`FROM audit_events WHERE run_id = \$1 ORDER BY created_at ASC`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "account_id", "map_id", "run_id", "kind", "detail", "created_at"}).
			AddRow("ev-1", "acct-1", "map-1", "run-1", "geocode_denied", &detailJSON, now))

	events, err := s.ListAuditEvents(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.AuditGeocodeDenied, events[0].Kind)
	assert.Equal(t, float64(4), events[0].Detail["row"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
