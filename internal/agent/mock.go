package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AbdelazizMoustafa10m/drover/internal/stream"
)

// Compile-time check that MockAgent implements Agent.
var _ Agent = (*MockAgent)(nil)

// MockStep scripts one Run call of a MockAgent.
type MockStep struct {
	// Events are handed to RunOpts.Handler in order, as if decoded from the
	// agent's output. Text returned by the handler forms FullText.
	Events []stream.Event

	// Text is appended to FullText after Events when non-empty.
	Text string

	ExitCode int

	// Err makes Run fail as if the process could not be started.
	Err error
}

// MockAgent is a scripted Agent for tests. Each Run call consumes the next
// entry of Steps; once they are exhausted the last entry repeats. It records
// every RunOpts it receives.
type MockAgent struct {
	// AgentName is the value returned by Name().
	AgentName string

	// Steps are consumed one per Run call.
	Steps []MockStep

	// RunFunc, when set, replaces the scripted behavior.
	RunFunc func(ctx context.Context, opts RunOpts) (*RunResult, error)

	// PrereqError is returned by CheckPrerequisites.
	PrereqError error

	// Calls records every RunOpts passed to Run, in order.
	Calls []RunOpts
}

// NewMockAgent creates a MockAgent that plays steps in order.
func NewMockAgent(name string, steps ...MockStep) *MockAgent {
	return &MockAgent{AgentName: name, Steps: steps}
}

// Name returns the agent's identifier.
func (m *MockAgent) Name() string {
	return m.AgentName
}

// Run records the call and plays the next scripted step.
func (m *MockAgent) Run(ctx context.Context, opts RunOpts) (*RunResult, error) {
	m.Calls = append(m.Calls, opts)
	if m.RunFunc != nil {
		return m.RunFunc(ctx, opts)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(m.Steps) == 0 {
		return &RunResult{Duration: time.Millisecond}, nil
	}

	idx := len(m.Calls) - 1
	if idx >= len(m.Steps) {
		idx = len(m.Steps) - 1
	}
	step := m.Steps[idx]
	if step.Err != nil {
		return nil, step.Err
	}

	var parts []string
	for _, ev := range step.Events {
		if text := handle(opts.Handler, ev); text != "" {
			parts = append(parts, text)
		}
	}
	if step.Text != "" {
		parts = append(parts, step.Text)
	}
	return &RunResult{
		ExitCode: step.ExitCode,
		FullText: strings.Join(parts, "\n"),
		Duration: time.Millisecond,
	}, nil
}

// CheckPrerequisites returns PrereqError, which is nil by default.
func (m *MockAgent) CheckPrerequisites() error {
	return m.PrereqError
}

// DryRunCommand returns a fixed description of the call.
func (m *MockAgent) DryRunCommand(opts RunOpts) string {
	return fmt.Sprintf("mock-agent %q", opts.Prompt)
}

// WithRunFunc sets a custom Run function and returns the receiver.
func (m *MockAgent) WithRunFunc(fn func(ctx context.Context, opts RunOpts) (*RunResult, error)) *MockAgent {
	m.RunFunc = fn
	return m
}

// WithPrereqError sets the CheckPrerequisites error and returns the receiver.
func (m *MockAgent) WithPrereqError(err error) *MockAgent {
	m.PrereqError = err
	return m
}
