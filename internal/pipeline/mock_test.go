package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mapyard/marker-ingest/internal/model"
	"github.com/mapyard/marker-ingest/internal/store"
	"github.com/mapyard/marker-ingest/pkg/geocode"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) AccountLimits(ctx context.Context, accountID string) (*model.AccountLimits, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccountLimits), args.Error(1)
}

func (m *mockStore) EnsureAccount(ctx context.Context, acct *model.Account) error {
	args := m.Called(ctx, acct)
	return args.Error(0)
}

func (m *mockStore) ExistingMarkers(ctx context.Context, accountID, mapID string) ([]model.MarkerFingerprint, error) {
	args := m.Called(ctx, accountID, mapID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MarkerFingerprint), args.Error(1)
}

func (m *mockStore) InsertMarker(ctx context.Context, marker *model.Marker) error {
	args := m.Called(ctx, marker)
	return args.Error(0)
}

func (m *mockStore) CreateRun(ctx context.Context, accountID, mapID string, totalRows int) (*model.ImportRun, error) {
	args := m.Called(ctx, accountID, mapID, totalRows)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ImportRun), args.Error(1)
}

func (m *mockStore) SetRunTotal(ctx context.Context, runID string, totalRows int) error {
	args := m.Called(ctx, runID, totalRows)
	return args.Error(0)
}

func (m *mockStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	args := m.Called(ctx, runID, status)
	return args.Error(0)
}

func (m *mockStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	args := m.Called(ctx, runID, status, result)
	return args.Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*model.ImportRun, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ImportRun), args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.ImportRun, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ImportRun), args.Error(1)
}

func (m *mockStore) InsertAuditEvent(ctx context.Context, ev *model.AuditEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *mockStore) ListAuditEvents(ctx context.Context, runID string) ([]model.AuditEvent, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AuditEvent), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Geocoder Mock ---

type mockGeocoder struct {
	mock.Mock
}

func (m *mockGeocoder) Resolve(ctx context.Context, address string) (*geocode.Result, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*geocode.Result), args.Error(1)
}

// --- Recorder Mock ---

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) GeocodeDenied(ctx context.Context, accountID, mapID, runID, label string) {
	m.Called(ctx, accountID, mapID, runID, label)
}

func (m *mockRecorder) CeilingReached(ctx context.Context, accountID, mapID, runID string, limit, existing, added int) {
	m.Called(ctx, accountID, mapID, runID, limit, existing, added)
}
