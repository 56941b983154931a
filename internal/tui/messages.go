package tui

import (
	"github.com/AbdelazizMoustafa10m/drover/internal/loop"
)

// TranscriptMsg carries complete lines of rendered transcript.
type TranscriptMsg struct {
	Lines []string
}

// LoopEventMsg wraps a loop.LoopEvent for the Bubble Tea runtime.
type LoopEventMsg struct {
	Event loop.LoopEvent
}

// RunDoneMsg is sent once every step has finished. Status is the final
// status of the run; Err is the reason for a non-ok status, if any.
type RunDoneMsg struct {
	Status loop.Status
	Err    error
}
