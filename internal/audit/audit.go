// Package audit records plan-enforcement decisions made during an import run
// so support can answer "why did this import stop" without log archaeology.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/mapyard/marker-ingest/internal/model"
)

// Recorder captures enforcement events. Implementations must never fail the
// run: recording is best-effort.
type Recorder interface {
	GeocodeDenied(ctx context.Context, accountID, mapID, runID, label string)
	CeilingReached(ctx context.Context, accountID, mapID, runID string, limit, existing, added int)
}

// EventWriter is the slice of the store the recorder needs.
type EventWriter interface {
	InsertAuditEvent(ctx context.Context, ev *model.AuditEvent) error
}

// StoreRecorder persists audit events through the store.
type StoreRecorder struct {
	store EventWriter
}

func NewStoreRecorder(st EventWriter) *StoreRecorder {
	return &StoreRecorder{store: st}
}

func (r *StoreRecorder) GeocodeDenied(ctx context.Context, accountID, mapID, runID, label string) {
	zap.L().Warn("audit: geocoding denied by plan",
		zap.String("account_id", accountID),
		zap.String("map_id", mapID),
		zap.String("run_id", runID),
		zap.String("record", label),
	)
	r.record(ctx, &model.AuditEvent{
		AccountID: accountID,
		MapID:     mapID,
		RunID:     runID,
		Kind:      model.AuditGeocodeDenied,
		Detail:    map[string]any{"record": label},
	})
}

func (r *StoreRecorder) CeilingReached(ctx context.Context, accountID, mapID, runID string, limit, existing, added int) {
	zap.L().Warn("audit: marker ceiling reached",
		zap.String("account_id", accountID),
		zap.String("map_id", mapID),
		zap.String("run_id", runID),
		zap.Int("limit", limit),
		zap.Int("existing", existing),
		zap.Int("added", added),
	)
	r.record(ctx, &model.AuditEvent{
		AccountID: accountID,
		MapID:     mapID,
		RunID:     runID,
		Kind:      model.AuditCeilingReached,
		Detail:    map[string]any{"limit": limit, "existing": existing, "added": added},
	})
}

func (r *StoreRecorder) record(ctx context.Context, ev *model.AuditEvent) {
	if err := r.store.InsertAuditEvent(ctx, ev); err != nil {
		zap.L().Warn("audit: failed to persist event",
			zap.String("kind", ev.Kind),
			zap.Error(err),
		)
	}
}

// NopRecorder discards all events. It stands in when no recorder is wired.
type NopRecorder struct{}

func (NopRecorder) GeocodeDenied(ctx context.Context, accountID, mapID, runID, label string) {}

func (NopRecorder) CeilingReached(ctx context.Context, accountID, mapID, runID string, limit, existing, added int) {
}
