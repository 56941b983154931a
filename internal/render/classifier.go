// Package render classifies decoded stream events, updates per-run state and
// statistics, and renders a human-readable console view of agent activity.
//
// The "parallel" grouping of tool calls is a display heuristic only: the
// stream is strictly sequential and tool calls that arrive within the cluster
// threshold of one another are simply printed together.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/AbdelazizMoustafa10m/drover/internal/stats"
	"github.com/AbdelazizMoustafa10m/drover/internal/stream"
)

// DefaultClusterThreshold is the maximum gap between two tool invocations for
// them to be rendered as one batch.
const DefaultClusterThreshold = 100 * time.Millisecond

// maxResultRunes is the truncation length of tool result lines in normal mode.
const maxResultRunes = 200

// maxHintRunes is the truncation length of the input hint shown on tool lines.
const maxHintRunes = 80

// maxRawRunes is the truncation length of unrecognized record dumps.
const maxRawRunes = 400

// subTaskTools are tool names that start a sub-task scope.
var subTaskTools = map[string]bool{
	"Task":  true,
	"Agent": true,
}

// errorMarkers are prefixes of tool result content that indicate failure even
// when the result is not flagged with is_error.
var errorMarkers = []string{
	"<tool_use_error>",
	"Error:",
	"error:",
	"Exit code 1",
}

// planningPrefixes identify agent text that narrates what it is about to do.
// Quiet mode hides such text.
var planningPrefixes = []string{
	"I'll ",
	"I will ",
	"I'm going to ",
	"I need to ",
	"Let me ",
	"Now let me",
	"Now ",
	"Next, ",
	"First, ",
}

// hintKeys are tool input fields worth showing on a tool line, in preference
// order.
var hintKeys = []string{"file_path", "command", "pattern", "path", "url", "description", "query"}

// Options configures a Classifier.
type Options struct {
	Verbosity        Verbosity
	ClusterThreshold time.Duration
	// NoColor selects PlainTheme when Theme is nil.
	NoColor bool
	Theme   *Theme
	// Now is the clock used for tool latencies and scope durations.
	Now func() time.Time
}

// Classifier consumes decoded events in order, mutates a RunState, and writes
// rendered lines to an io.Writer. It is driven by a single goroutine.
type Classifier struct {
	out   io.Writer
	opts  Options
	theme Theme
	state *RunState
}

// NewClassifier creates a classifier writing to out. A nil state allocates a
// fresh RunState.
func NewClassifier(out io.Writer, state *RunState, opts Options) *Classifier {
	if out == nil {
		out = io.Discard
	}
	if state == nil {
		state = NewRunState()
	}
	if opts.ClusterThreshold <= 0 {
		opts.ClusterThreshold = DefaultClusterThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	theme := DefaultTheme()
	switch {
	case opts.Theme != nil:
		theme = *opts.Theme
	case opts.NoColor:
		theme = PlainTheme()
	}
	return &Classifier{out: out, opts: opts, theme: theme, state: state}
}

// State returns the classifier's RunState.
func (c *Classifier) State() *RunState { return c.state }

// Verbosity returns the configured verbosity.
func (c *Classifier) Verbosity() Verbosity { return c.opts.Verbosity }

// Handle processes one event and returns the agent-authored text it carried,
// or "" for events without agent text.
func (c *Classifier) Handle(ev stream.Event) string {
	switch e := ev.(type) {
	case stream.SystemInit:
		c.state.Model = e.Model
	case stream.UsageReport:
		c.handleUsage(e)
	case stream.AgentText:
		return c.handleText(e)
	case stream.ToolInvocation:
		c.handleToolUse(e)
	case stream.ToolResult:
		c.handleToolResult(e)
	case stream.StepResult:
		c.handleStepResult(e)
	case stream.Unrecognized:
		if c.opts.Verbosity >= Verbose {
			c.line(c.theme.paint(c.theme.Muted, fmt.Sprintf("[%s] %s", e.Type, truncate(e.Raw, maxRawRunes))))
		}
	}
	return ""
}

// FlushBatch renders and clears the pending tool batch. An empty batch
// renders nothing.
func (c *Classifier) FlushBatch() {
	b := &c.state.Batch
	if b.Len() == 0 {
		return
	}
	if c.opts.Verbosity > Quiet {
		if b.Len() == 1 {
			c.line(c.toolLine("● ", b.Tools[0]))
		} else {
			c.line(c.theme.paint(c.theme.Tool, fmt.Sprintf("● ×%d parallel", b.Len())))
			for i, t := range b.Tools {
				branch := "  ├ "
				if i == b.Len()-1 {
					branch = "  └ "
				}
				c.line(c.toolLine(branch, t))
			}
		}
	}
	c.state.Batch = PendingBatch{}
}

func (c *Classifier) handleUsage(e stream.UsageReport) {
	if e.MessageID != "" {
		if c.state.seenUsage[e.MessageID] {
			return
		}
		c.state.seenUsage[e.MessageID] = true
	}
	five, one := e.Usage.CacheWriteTiers()
	c.state.current().UpdateTokenCounts(stats.Usage{
		InputTokens:     e.Usage.InputTokens,
		CacheWrite5m:    five,
		CacheWrite1h:    one,
		CacheReadTokens: e.Usage.CacheReadTokens,
	})
}

func (c *Classifier) handleText(e stream.AgentText) string {
	c.FlushBatch()
	st := c.state.current()
	st.IncrementMessageCount()
	st.RecordOutputChars(len([]rune(e.Text)))

	text := strings.TrimRight(e.Text, "\n")
	switch {
	case c.opts.Verbosity > Quiet:
		c.line(text)
	case !IsPlanning(text):
		c.line(c.theme.paint(c.theme.Answer, "answer:") + " " + text)
	}
	return e.Text
}

func (c *Classifier) handleToolUse(e stream.ToolInvocation) {
	st := c.state.current()
	st.RecordToolUse(e.Name)
	st.RecordOutputChars(len(e.Input))
	c.state.ToolStarts[e.ID] = toolStart{name: e.Name, at: e.StartedAt}

	if subTaskTools[e.Name] {
		c.FlushBatch()
		c.openScope(e)
		return
	}

	b := &c.state.Batch
	if b.Len() > 0 && absDuration(e.StartedAt.Sub(b.LastAt)) > c.opts.ClusterThreshold {
		c.FlushBatch()
	}
	b.Tools = append(b.Tools, e)
	b.LastAt = e.StartedAt
}

func (c *Classifier) openScope(e stream.ToolInvocation) {
	if prev := c.state.Scope; prev != nil {
		// Only one level is tracked; keep the replaced scope's counts.
		stats.Merge(c.state.Stats, prev.Stats)
		c.state.Scope = nil
	}
	name := inputField(e.Input, "subagent_type")
	if name == "" {
		name = e.Name
	}
	desc := inputField(e.Input, "description")
	if c.opts.Verbosity > Quiet {
		header := "▸ " + name
		if desc != "" {
			header += " " + c.theme.paint(c.theme.Hint, truncate(desc, maxHintRunes))
		}
		c.line(c.theme.paint(c.theme.Scope, header))
	}
	c.state.Scope = &ActiveScope{
		ID:          e.ID,
		Name:        name,
		Description: desc,
		Stats:       stats.New(),
		StartedAt:   c.opts.Now(),
	}
}

func (c *Classifier) handleToolResult(e stream.ToolResult) {
	c.FlushBatch()

	elapsed := time.Duration(e.ElapsedMs) * time.Millisecond
	start, known := c.state.ToolStarts[e.ToolUseID]
	if known {
		delete(c.state.ToolStarts, e.ToolUseID)
		if e.ElapsedMs == 0 && !start.at.IsZero() {
			elapsed = c.opts.Now().Sub(start.at)
		}
	}

	isError := e.IsError || hasErrorMarker(e.Content)
	scope := c.state.Scope
	closesScope := scope != nil && scope.ID == e.ToolUseID

	if isError {
		name := start.name
		if name == "" {
			name = "tool"
		}
		c.line(c.theme.paint(c.theme.Error, fmt.Sprintf("✗ %s failed: %s", name, firstLine(e.Content))))
	}

	if closesScope {
		c.closeScope(scope, isError)
		return
	}
	if isError || c.opts.Verbosity == Quiet {
		return
	}

	content := strings.TrimRight(e.Content, "\n")
	suffix := ""
	if elapsed > 0 {
		suffix = " " + c.theme.paint(c.theme.Muted, "("+formatElapsed(elapsed)+")")
	}
	if c.opts.Verbosity >= Verbose {
		c.line(c.theme.paint(c.theme.Result, "  ⎿ "+strings.ReplaceAll(content, "\n", "\n    ")) + suffix)
		return
	}
	summary := truncate(firstLine(content), maxResultRunes)
	if n := strings.Count(content, "\n"); n > 0 {
		summary += fmt.Sprintf(" (+%d lines)", n)
	}
	c.line(c.theme.paint(c.theme.Result, "  ⎿ "+summary) + suffix)
}

func (c *Classifier) closeScope(scope *ActiveScope, failed bool) {
	stats.Merge(c.state.Stats, scope.Stats)
	c.state.Scope = nil

	if c.opts.Verbosity == Quiet {
		return
	}
	status := "done"
	if failed {
		status = "failed"
	}
	d := c.opts.Now().Sub(scope.StartedAt)
	msg := fmt.Sprintf("◂ %s %s in %s · %d tools · %d messages",
		scope.Name, status, formatElapsed(d), scope.Stats.ToolUseCount, scope.Stats.MessageCount)
	style := c.theme.Success
	if failed {
		style = c.theme.Error
	}
	c.line(c.theme.paint(style, msg))
}

func (c *Classifier) handleStepResult(e stream.StepResult) {
	c.FlushBatch()
	c.state.LastStepDuration = time.Duration(e.DurationMs) * time.Millisecond
	if c.state.SuppressStepSummary || c.opts.Verbosity == Quiet {
		return
	}
	msg := fmt.Sprintf("✓ step %d complete in %s", c.state.Step, formatElapsed(c.state.LastStepDuration))
	if c.opts.Verbosity >= Verbose {
		msg += fmt.Sprintf(" · %d turns · $%.4f", e.NumTurns, e.CostUSD)
	}
	c.line(c.theme.paint(c.theme.Success, msg))
}

// toolLine formats one tool invocation with its input hint.
func (c *Classifier) toolLine(prefix string, t stream.ToolInvocation) string {
	s := prefix + c.theme.paint(c.theme.Tool, t.Name)
	if hint := toolHint(t); hint != "" {
		s += " " + c.theme.paint(c.theme.Hint, hint)
	}
	return s
}

// line writes s, indented when a sub-task scope is open.
func (c *Classifier) line(s string) {
	if c.state.Scope != nil {
		s = "│ " + strings.ReplaceAll(s, "\n", "\n│ ")
	}
	fmt.Fprintln(c.out, s)
}

// IsPlanning reports whether text looks like the agent narrating its next
// action rather than answering.
func IsPlanning(text string) bool {
	t := strings.TrimSpace(text)
	for _, p := range planningPrefixes {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}

func hasErrorMarker(content string) bool {
	t := strings.TrimSpace(content)
	for _, m := range errorMarkers {
		if strings.HasPrefix(t, m) {
			return true
		}
	}
	return false
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
