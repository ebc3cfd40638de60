// Package pipeline turns rows from an uploaded location file into markers
// on a map: normalize, validate, dedupe, geocode, persist. Runs are
// sequential and stop cleanly at record boundaries on cancellation.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mapyard/marker-ingest/internal/audit"
	"github.com/mapyard/marker-ingest/internal/model"
	"github.com/mapyard/marker-ingest/internal/resilience"
	"github.com/mapyard/marker-ingest/internal/store"
	"github.com/mapyard/marker-ingest/pkg/geocode"
)

// MarkerDefaults is applied to every marker built during a run.
type MarkerDefaults struct {
	Type      string
	Tags      []string
	GroupHint string
}

// Request describes one import run. RunID is set when the caller already
// created the run row, as the HTTP API does before handing off to a
// background import; when empty the pipeline creates the run itself.
type Request struct {
	AccountID string
	MapID     string
	RunID     string
	Rows      []model.RawRow
	Mapping   model.ColumnMapping
	Defaults  MarkerDefaults
}

// Pipeline runs imports against a store and a geocoder.
type Pipeline struct {
	store    store.Store
	geocoder geocode.Client
	recorder audit.Recorder
	progress ProgressFunc
	retry    resilience.RetryConfig
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithProgress registers a callback invoked after every progress change.
func WithProgress(fn ProgressFunc) Option {
	return func(p *Pipeline) {
		p.progress = fn
	}
}

// WithRetry overrides the retry policy for marker inserts.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(p *Pipeline) {
		p.retry = cfg
	}
}

// New creates a Pipeline. A nil recorder disables audit events.
func New(st store.Store, gc geocode.Client, rec audit.Recorder, opts ...Option) *Pipeline {
	retry := resilience.DefaultRetryConfig()
	retry.ShouldRetry = resilience.IsTransient
	retry.OnRetry = resilience.RetryLogger("pipeline: insert marker")

	p := &Pipeline{
		store:    st,
		geocoder: gc,
		recorder: rec,
		retry:    retry,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.recorder == nil {
		p.recorder = audit.NopRecorder{}
	}
	return p
}

// Run executes one import. The returned RunResult is always usable, also
// alongside a non-nil error. Non-nil errors mean the persistence layer was
// unreachable at a required step; everything else degrades into counters
// and Errors entries on the result.
func (p *Pipeline) Run(ctx context.Context, req Request) (*model.RunResult, error) {
	log := zap.L().With(
		zap.String("account_id", req.AccountID),
		zap.String("map_id", req.MapID),
	)
	log.Info("pipeline: starting import", zap.Int("rows", len(req.Rows)))

	result := &model.RunResult{}
	state := newRunState(p.progress)
	state.phase(model.PhaseParsing, len(req.Rows))

	limits, err := p.store.AccountLimits(ctx, req.AccountID)
	if err != nil {
		return result, eris.Wrap(err, "pipeline: load account limits")
	}

	var run *model.ImportRun
	if req.RunID != "" {
		run = &model.ImportRun{ID: req.RunID}
		if totalErr := p.store.SetRunTotal(ctx, run.ID, len(req.Rows)); totalErr != nil {
			log.Warn("pipeline: failed to set run total", zap.Error(totalErr))
		}
	} else {
		run, err = p.store.CreateRun(ctx, req.AccountID, req.MapID, len(req.Rows))
		if err != nil {
			return result, eris.Wrap(err, "pipeline: create run")
		}
	}
	log = log.With(zap.String("run_id", run.ID))

	if statusErr := p.store.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); statusErr != nil {
		log.Warn("pipeline: failed to update status", zap.Error(statusErr))
	}

	// Result writes must survive cancellation of the run context.
	finalize := func(status model.RunStatus) {
		if finErr := p.store.CompleteRun(context.WithoutCancel(ctx), run.ID, status, result); finErr != nil {
			log.Warn("pipeline: failed to record result", zap.Error(finErr))
		}
	}
	fail := func(fnErr error) (*model.RunResult, error) {
		result.Errors = append(result.Errors, fnErr.Error())
		finalize(model.RunStatusFailed)
		state.finish()
		log.Error("pipeline: import aborted", zap.Error(fnErr))
		return result, fnErr
	}

	state.phase(model.PhaseValidating, len(req.Rows))
	candidates := make([]model.CandidateRecord, 0, len(req.Rows))
	for i, row := range req.Rows {
		rec, skip := normalizeRow(row, req.Mapping, i)
		if skip != nil {
			result.RowsSkipped++
			result.Skipped = append(result.Skipped, *skip)
			log.Debug("pipeline: row skipped",
				zap.Int("row", skip.RowIndex),
				zap.String("reason", string(skip.Reason)),
				zap.String("detail", skip.Detail),
			)
			state.recordDone("")
			continue
		}
		candidates = append(candidates, rec)
		state.recordDone(rec.Name)
	}

	state.phase(model.PhaseDeduplicating, len(candidates))
	// Snapshot of the map taken once per run. Two concurrent runs against
	// the same map can each pass the ceiling gate on a stale count; imports
	// are single-operator today, so the race is accepted rather than locked
	// around.
	existing, err := p.store.ExistingMarkers(ctx, req.AccountID, req.MapID)
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: load existing markers"))
	}
	survivors, duplicates := dedupe(candidates, existing)
	result.DuplicatesSkipped = duplicates

	state.phase(model.PhaseGeocoding, len(survivors))
	bounds := newBoundsTracker()
	persisted := 0
	deniedLogged := false

	cancelled := func() (*model.RunResult, error) {
		log.Warn("pipeline: run cancelled", zap.Int("persisted", persisted))
		result.Cancelled = true
		finalize(model.RunStatusCancelled)
		state.finish()
		return result, nil
	}

	for _, rec := range survivors {
		if ctx.Err() != nil {
			return cancelled()
		}

		// The gate runs before geocoding so a record that cannot be
		// persisted never spends a rate-limited provider call.
		if len(existing)+persisted+1 > limits.MaxMarkersPerMap {
			result.Errors = append(result.Errors, fmt.Sprintf(
				"marker limit reached: map has %d of %d markers",
				len(existing)+persisted, limits.MaxMarkersPerMap,
			))
			p.recorder.CeilingReached(ctx, req.AccountID, req.MapID, run.ID,
				limits.MaxMarkersPerMap, len(existing), persisted)
			finalize(model.RunStatusPartial)
			state.finish()
			log.Warn("pipeline: marker ceiling reached",
				zap.Int("limit", limits.MaxMarkersPerMap),
				zap.Int("existing", len(existing)),
				zap.Int("added", persisted),
			)
			return result, nil
		}

		if !rec.HasCoordinates() {
			if !limits.GeocodingAllowed {
				if !deniedLogged {
					result.Errors = append(result.Errors,
						"geocoding is not included in this plan; rows without coordinates were skipped")
					deniedLogged = true
				}
				result.GeocodeFailures++
				p.recorder.GeocodeDenied(ctx, req.AccountID, req.MapID, run.ID, rec.Name)
				state.recordDone(rec.Name)
				continue
			}

			state.working(model.PhaseGeocoding, rec.Name)
			res, gcErr := p.geocoder.Resolve(ctx, rec.Address)
			if gcErr != nil {
				if ctx.Err() != nil {
					return cancelled()
				}
				result.GeocodeFailures++
				log.Warn("pipeline: geocode failed",
					zap.String("name", rec.Name), zap.Error(gcErr))
				state.recordDone(rec.Name)
				continue
			}
			if !res.Matched {
				result.GeocodeFailures++
				log.Debug("pipeline: address unmatched",
					zap.String("name", rec.Name), zap.String("address", rec.Address))
				state.recordDone(rec.Name)
				continue
			}
			lat, lng := res.Lat, res.Lng
			rec.Lat, rec.Lng = &lat, &lng
		}

		state.working(model.PhasePersisting, rec.Name)
		m := buildMarker(req, rec)
		if insErr := resilience.Do(ctx, p.retry, func(ctx context.Context) error {
			return p.store.InsertMarker(ctx, m)
		}); insErr != nil {
			return fail(eris.Wrapf(insErr, "pipeline: insert marker %q", rec.Name))
		}
		persisted++
		result.MarkersAdded++
		bounds.add(*rec.Lat, *rec.Lng)
		state.recordDone(rec.Name)
	}

	result.Bounds = bounds.box()

	status := model.RunStatusComplete
	if len(result.Errors) > 0 {
		status = model.RunStatusPartial
	}
	finalize(status)
	state.finish()

	log.Info("pipeline: import finished",
		zap.String("status", string(status)),
		zap.Int("added", result.MarkersAdded),
		zap.Int("duplicates", result.DuplicatesSkipped),
		zap.Int("skipped", result.RowsSkipped),
		zap.Int("geocode_failures", result.GeocodeFailures),
	)
	return result, nil
}

// buildMarker assembles the persisted marker for a record. The ID is fixed
// before the insert so a retried insert reuses it.
func buildMarker(req Request, rec model.CandidateRecord) *model.Marker {
	markerType := req.Defaults.Type
	if markerType == "" {
		markerType = model.DefaultMarkerType
	}
	return &model.Marker{
		ID:        uuid.New().String(),
		AccountID: req.AccountID,
		MapID:     req.MapID,
		Name:      rec.Name,
		Address:   rec.Address,
		Lat:       *rec.Lat,
		Lng:       *rec.Lng,
		Visible:   true,
		Type:      markerType,
		Tags:      req.Defaults.Tags,
		GroupHint: req.Defaults.GroupHint,
		CreatedAt: time.Now().UTC(),
	}
}
