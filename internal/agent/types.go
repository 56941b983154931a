package agent

import (
	"io"
	"time"
)

// OutputFormatStreamJSON requests newline-delimited JSON records from the
// agent. It is the only output format the decoder understands.
const OutputFormatStreamJSON = "stream-json"

// DefaultCommand is the agent executable used when Config.Command is empty.
const DefaultCommand = "claude"

// DefaultCols and DefaultRows are the pseudo-terminal geometry. The width is
// large so the agent never wraps a JSON record across lines.
const (
	DefaultCols = 500
	DefaultRows = 50
)

// RunOpts specifies a single agent invocation.
type RunOpts struct {
	Prompt  string   `json:"prompt,omitempty"`
	WorkDir string   `json:"work_dir,omitempty"`
	Model   string   `json:"model,omitempty"`
	Env     []string `json:"env,omitempty"`

	// Handler receives every decoded event. When nil, only AgentText events
	// contribute to RunResult.FullText.
	Handler EventHandler `json:"-"`

	// RawLog receives every raw output chunk before decoding. Nil disables
	// raw logging.
	RawLog io.Writer `json:"-"`
}

// RunResult captures the outcome of one agent invocation. Duration is
// serialized as nanoseconds.
type RunResult struct {
	ExitCode int           `json:"exit_code"`
	FullText string        `json:"full_text"`
	Duration time.Duration `json:"duration"`
}

// Success returns true if the agent exited with code 0.
func (r *RunResult) Success() bool {
	return r.ExitCode == 0
}
