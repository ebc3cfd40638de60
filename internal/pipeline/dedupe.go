package pipeline

import (
	"strings"

	"github.com/mapyard/marker-ingest/internal/model"
)

// fingerprintSep joins name and address in a fingerprint. A unit separator
// cannot appear in either field, so "a b"+"c" and "a"+"b c" never collide.
const fingerprintSep = "\x1f"

// fingerprint produces the dedupe key for a name/address pair: both fields
// lowercased with runs of whitespace collapsed to single spaces.
func fingerprint(name, address string) string {
	return normalizeField(name) + fingerprintSep + normalizeField(address)
}

func normalizeField(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// dedupe removes candidates that duplicate an earlier candidate in the same
// batch or a marker already on the map. The first occurrence of each
// fingerprint wins; order is otherwise preserved. Returns survivors and the
// number dropped across both passes.
func dedupe(candidates []model.CandidateRecord, existing []model.MarkerFingerprint) ([]model.CandidateRecord, int) {
	dropped := 0

	seen := make(map[string]struct{}, len(candidates))
	internal := make([]model.CandidateRecord, 0, len(candidates))
	for _, c := range candidates {
		fp := fingerprint(c.Name, c.Address)
		if _, dup := seen[fp]; dup {
			dropped++
			continue
		}
		seen[fp] = struct{}{}
		internal = append(internal, c)
	}

	existingSet := make(map[string]struct{}, len(existing))
	for _, m := range existing {
		existingSet[fingerprint(m.Name, m.Address)] = struct{}{}
	}

	survivors := make([]model.CandidateRecord, 0, len(internal))
	for _, c := range internal {
		if _, dup := existingSet[fingerprint(c.Name, c.Address)]; dup {
			dropped++
			continue
		}
		survivors = append(survivors, c)
	}

	return survivors, dropped
}
