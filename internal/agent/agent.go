// Package agent spawns the external coding agent under a pseudo-terminal and
// turns its streamed output into classified events and accumulated text.
package agent

import (
	"context"
	"errors"

	"github.com/AbdelazizMoustafa10m/drover/internal/stream"
)

// ErrNoPrompt is returned by Run when RunOpts carries an empty prompt.
var ErrNoPrompt = errors.New("empty prompt")

// Agent is the contract the iteration controller depends on. The pty-backed
// Supervisor is the production implementation; MockAgent scripts responses
// for tests.
type Agent interface {
	// Name returns the agent's identifier (the executable name).
	Name() string

	// Run executes one step and blocks until the child process exits. A
	// non-zero exit code is reported in RunResult, not as an error; only a
	// failure to start the process is returned as an error.
	Run(ctx context.Context, opts RunOpts) (*RunResult, error)

	// CheckPrerequisites verifies that the agent executable is installed.
	CheckPrerequisites() error

	// DryRunCommand returns the command line Run would execute.
	DryRunCommand(opts RunOpts) string
}

// EventHandler consumes decoded stream events in order and returns the
// agent-authored text each one carried ("" for none). The render.Classifier
// satisfies it.
type EventHandler interface {
	Handle(ev stream.Event) string
}

// EventHandlerFunc adapts a plain function to EventHandler.
type EventHandlerFunc func(ev stream.Event) string

// Handle calls f(ev).
func (f EventHandlerFunc) Handle(ev stream.Event) string { return f(ev) }

// Config holds agent settings from the [agent] section of drover.toml.
type Config struct {
	// Command is the agent executable (default "claude").
	Command string `toml:"command"`

	// Model is the default model passed with --model.
	Model string `toml:"model"`

	// ExtraArgs are appended after the fixed flags and before the prompt.
	ExtraArgs []string `toml:"extra_args"`

	// SkipPermissions adds --dangerously-skip-permissions.
	SkipPermissions bool `toml:"skip_permissions"`

	// Cols and Rows set the pseudo-terminal geometry.
	Cols int `toml:"cols"`
	Rows int `toml:"rows"`
}
