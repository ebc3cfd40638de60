package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapyard/marker-ingest/internal/model"
)

func TestRunState_PhaseResetsProcessed(t *testing.T) {
	var got []model.RunProgress
	s := newRunState(func(p model.RunProgress) { got = append(got, p) })

	s.phase(model.PhaseValidating, 10)
	s.recordDone("Acme HQ")
	s.recordDone("Bravo Cafe")
	s.phase(model.PhaseGeocoding, 2)

	require.Len(t, got, 4)
	assert.Equal(t, model.PhaseValidating, got[0].Phase)
	assert.Equal(t, 10, got[0].Total)
	assert.Equal(t, 0, got[0].Processed)

	assert.Equal(t, 1, got[1].Processed)
	assert.Equal(t, "Acme HQ", got[1].Label)
	assert.Equal(t, 2, got[2].Processed)

	assert.Equal(t, model.PhaseGeocoding, got[3].Phase)
	assert.Equal(t, 2, got[3].Total)
	assert.Equal(t, 0, got[3].Processed)
	assert.Empty(t, got[3].Label)
}

func TestRunState_WorkingDoesNotAdvance(t *testing.T) {
	var got []model.RunProgress
	s := newRunState(func(p model.RunProgress) { got = append(got, p) })

	s.phase(model.PhaseGeocoding, 3)
	s.working(model.PhaseGeocoding, "Acme HQ")
	s.working(model.PhasePersisting, "Acme HQ")
	s.recordDone("Acme HQ")

	require.Len(t, got, 4)
	assert.Equal(t, 0, got[1].Processed)
	assert.Equal(t, "Acme HQ", got[1].Label)
	assert.Equal(t, model.PhasePersisting, got[2].Phase)
	assert.Equal(t, 0, got[2].Processed)
	assert.Equal(t, 1, got[3].Processed)
}

func TestRunState_FinishKeepsCounters(t *testing.T) {
	var got []model.RunProgress
	s := newRunState(func(p model.RunProgress) { got = append(got, p) })

	s.phase(model.PhasePersisting, 2)
	s.recordDone("Acme HQ")
	s.recordDone("Bravo Cafe")
	s.finish()

	last := got[len(got)-1]
	assert.Equal(t, model.PhaseDone, last.Phase)
	assert.Equal(t, 2, last.Processed)
	assert.Equal(t, 2, last.Total)
	assert.Empty(t, last.Label)
}

func TestRunState_NilEmitter(t *testing.T) {
	s := newRunState(nil)
	s.phase(model.PhaseValidating, 1)
	s.recordDone("Acme HQ")
	s.finish()
	assert.Equal(t, 1, s.progress.Processed)
}
