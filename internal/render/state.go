package render

import (
	"time"

	"github.com/AbdelazizMoustafa10m/drover/internal/stats"
	"github.com/AbdelazizMoustafa10m/drover/internal/stream"
)

// PendingBatch holds tool invocations that have not been rendered yet. Calls
// that arrive within the cluster threshold of each other are shown together
// as one "parallel" group.
type PendingBatch struct {
	Tools  []stream.ToolInvocation
	LastAt time.Time
}

// Len returns the number of pending invocations.
func (b *PendingBatch) Len() int { return len(b.Tools) }

// ActiveScope is the sub-task currently open. Only one scope is tracked; a
// second sub-task started while one is open replaces it.
type ActiveScope struct {
	ID          string
	Name        string
	Description string
	Stats       *stats.RunStats
	StartedAt   time.Time
}

// toolStart records when a tool call was observed.
type toolStart struct {
	name string
	at   time.Time
}

// RunState is the mutable state of one controller invocation. Step-scoped
// fields are reset by BeginStep; Run accumulates across steps.
type RunState struct {
	Batch      PendingBatch
	Scope      *ActiveScope
	ToolStarts map[string]toolStart

	Step  int
	Stats *stats.RunStats // step scope
	Run   *stats.RunStats // run scope

	// SuppressStepSummary stops the classifier from printing its own step
	// completion line; the controller prints one instead.
	SuppressStepSummary bool

	// LastStepDuration is the duration reported by the most recent StepResult.
	LastStepDuration time.Duration
	// Model is the model reported by the most recent SystemInit.
	Model string

	seenUsage map[string]bool
}

// NewRunState returns an empty RunState.
func NewRunState() *RunState {
	return &RunState{
		ToolStarts: make(map[string]toolStart),
		Stats:      stats.New(),
		Run:        stats.New(),
		seenUsage:  make(map[string]bool),
	}
}

// BeginStep resets every step-scoped field and sets the step number. Run
// statistics are left untouched.
func (s *RunState) BeginStep(n int) {
	s.Batch = PendingBatch{}
	s.Scope = nil
	s.ToolStarts = make(map[string]toolStart)
	s.Step = n
	s.Stats.Reset()
	s.LastStepDuration = 0
	s.seenUsage = make(map[string]bool)
}

// EndStep folds the step statistics (and any scope left open) into the run
// statistics.
func (s *RunState) EndStep() {
	if s.Scope != nil {
		stats.Merge(s.Stats, s.Scope.Stats)
		s.Scope = nil
	}
	stats.Merge(s.Run, s.Stats)
}

// current returns the statistics that new activity is attributed to: the open
// scope's, or the step's.
func (s *RunState) current() *stats.RunStats {
	if s.Scope != nil {
		return s.Scope.Stats
	}
	return s.Stats
}
