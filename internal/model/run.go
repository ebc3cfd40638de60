package model

import "time"

// Phase identifies a stage of an import run.
type Phase string

const (
	PhaseParsing       Phase = "parsing"
	PhaseValidating    Phase = "validating"
	PhaseDeduplicating Phase = "deduplicating"
	PhaseGeocoding     Phase = "geocoding"
	PhasePersisting    Phase = "persisting"
	PhaseDone          Phase = "done"
)

// RunProgress is a point-in-time snapshot of a run, emitted on every phase
// change and after every processed record. Label carries the current
// record's display name during the geocode and persist phases.
type RunProgress struct {
	Phase     Phase  `json:"phase"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Label     string `json:"label,omitempty"`
}

// Bounds is the bounding box of the markers a run added.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// RunResult summarizes an import run. Every processed row lands in exactly
// one counter; rows never reached after a ceiling or fatal stop land in none.
type RunResult struct {
	MarkersAdded      int          `json:"markers_added"`
	DuplicatesSkipped int          `json:"duplicates_skipped"`
	RowsSkipped       int          `json:"rows_skipped"`
	GeocodeFailures   int          `json:"geocode_failures"`
	Errors            []string     `json:"errors,omitempty"`
	Skipped           []SkipRecord `json:"skipped,omitempty"`
	Cancelled         bool         `json:"cancelled,omitempty"`
	Bounds            *Bounds      `json:"bounds,omitempty"`
}

// RunStatus represents the stored state of an import run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusComplete  RunStatus = "complete"
	RunStatusPartial   RunStatus = "partial"
	RunStatusCancelled RunStatus = "cancelled"
	RunStatusFailed    RunStatus = "failed"
)

// ImportRun is the stored record of one import.
type ImportRun struct {
	ID        string     `json:"id"`
	AccountID string     `json:"account_id"`
	MapID     string     `json:"map_id"`
	Status    RunStatus  `json:"status"`
	TotalRows int        `json:"total_rows"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Audit event kinds recorded by the pipeline.
const (
	AuditGeocodeDenied  = "geocode_denied"
	AuditCeilingReached = "ceiling_reached"
)

// AuditEvent records a plan-enforcement decision made during a run.
type AuditEvent struct {
	ID        string         `json:"id"`
	AccountID string         `json:"account_id"`
	MapID     string         `json:"map_id"`
	RunID     string         `json:"run_id"`
	Kind      string         `json:"kind"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
