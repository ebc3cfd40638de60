package pipeline

import "github.com/mapyard/marker-ingest/internal/model"

// PreviewResult summarizes what a run would do without touching the store
// or any geocoding provider.
type PreviewResult struct {
	Candidates     int                `json:"candidates"`
	Duplicates     int                `json:"duplicates"`
	NeedsGeocoding int                `json:"needs_geocoding"`
	Skipped        []model.SkipRecord `json:"skipped,omitempty"`
}

// Preview normalizes rows and runs the internal duplicate pass. Duplicates
// against markers already on the map are not counted here; that comparison
// needs a store snapshot and belongs to a real run.
func Preview(rows []model.RawRow, mapping model.ColumnMapping) *PreviewResult {
	out := &PreviewResult{}

	candidates := make([]model.CandidateRecord, 0, len(rows))
	for i, row := range rows {
		rec, skip := normalizeRow(row, mapping, i)
		if skip != nil {
			out.Skipped = append(out.Skipped, *skip)
			continue
		}
		candidates = append(candidates, rec)
	}

	survivors, duplicates := dedupe(candidates, nil)
	out.Candidates = len(survivors)
	out.Duplicates = duplicates
	for _, rec := range survivors {
		if !rec.HasCoordinates() {
			out.NeedsGeocoding++
		}
	}
	return out
}
