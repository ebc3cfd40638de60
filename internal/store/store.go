// Package store persists accounts, markers, import runs, and audit events
// behind a backend-agnostic interface with Postgres and SQLite
// implementations.
package store

import (
	"context"
	"strings"

	"github.com/mapyard/marker-ingest/internal/model"
)

// RunFilter specifies criteria for listing import runs.
type RunFilter struct {
	AccountID string          `json:"account_id,omitempty"`
	MapID     string          `json:"map_id,omitempty"`
	Status    model.RunStatus `json:"status,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the ingestion pipeline.
type Store interface {
	// Accounts
	AccountLimits(ctx context.Context, accountID string) (*model.AccountLimits, error)
	EnsureAccount(ctx context.Context, acct *model.Account) error

	// Markers
	ExistingMarkers(ctx context.Context, accountID, mapID string) ([]model.MarkerFingerprint, error)
	InsertMarker(ctx context.Context, m *model.Marker) error

	// Import runs
	CreateRun(ctx context.Context, accountID, mapID string, totalRows int) (*model.ImportRun, error)
	SetRunTotal(ctx context.Context, runID string, totalRows int) error
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.ImportRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.ImportRun, error)

	// Audit
	InsertAuditEvent(ctx context.Context, ev *model.AuditEvent) error
	ListAuditEvents(ctx context.Context, runID string) ([]model.AuditEvent, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// IsNotFound reports whether err is a lookup miss rather than a storage
// failure. Both backends phrase misses as "<entity> not found: <id>".
func IsNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not found")
}
