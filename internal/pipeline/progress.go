package pipeline

import (
	"github.com/mapyard/marker-ingest/internal/model"
)

// ProgressFunc receives a snapshot of run progress after every state change.
// Implementations must not block; the pipeline calls it synchronously.
type ProgressFunc func(model.RunProgress)

// runState tracks where the pipeline is within a run. All mutation happens
// through its methods so every change is followed by exactly one emission.
type runState struct {
	progress model.RunProgress
	emit     ProgressFunc
}

func newRunState(emit ProgressFunc) *runState {
	return &runState{emit: emit}
}

// phase moves the run to a new phase, resetting the processed counter for
// the new total.
func (s *runState) phase(p model.Phase, total int) {
	s.progress.Phase = p
	s.progress.Total = total
	s.progress.Processed = 0
	s.progress.Label = ""
	s.send()
}

// working announces activity on a record without advancing the processed
// counter, for long operations like a geocode lookup mid-record.
func (s *runState) working(p model.Phase, label string) {
	s.progress.Phase = p
	s.progress.Label = label
	s.send()
}

// recordDone advances the processed counter after a record has fully
// cleared the current phase.
func (s *runState) recordDone(label string) {
	s.progress.Processed++
	s.progress.Label = label
	s.send()
}

// finish marks the run complete, keeping the final counters visible.
func (s *runState) finish() {
	s.progress.Phase = model.PhaseDone
	s.progress.Label = ""
	s.send()
}

func (s *runState) send() {
	if s.emit == nil {
		return
	}
	s.emit(s.progress)
}
