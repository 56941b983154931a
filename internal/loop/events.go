package loop

import (
	"time"

	"github.com/AbdelazizMoustafa10m/drover/internal/sentinel"
)

// LoopEventType identifies the type of loop event.
type LoopEventType string

const (
	EventLoopStarted    LoopEventType = "loop_started"
	EventAgentStarted   LoopEventType = "agent_started"
	EventAgentCompleted LoopEventType = "agent_completed"
	EventAgentError     LoopEventType = "agent_error"
	EventSleeping       LoopEventType = "sleeping"
	EventBudgetExceeded LoopEventType = "budget_exceeded"
	EventLoopAborted    LoopEventType = "loop_aborted"
	EventLoopFinished   LoopEventType = "loop_finished"
	EventDryRun         LoopEventType = "dry_run"
)

// LoopEvent is a structured event emitted while a step runs.
type LoopEvent struct {
	Type      LoopEventType
	Iteration int
	Label     string
	Message   string
	Timestamp time.Time
	Duration  time.Duration

	Signal   sentinel.Signal // EventAgentCompleted
	ExitCode int             // EventAgentCompleted
	Status   Status          // EventLoopFinished
}
