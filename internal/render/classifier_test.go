package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdelazizMoustafa10m/drover/internal/stream"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// manualClock is a settable time source.
type manualClock struct {
	now time.Time
}

func (m *manualClock) Now() time.Time { return m.now }

func (m *manualClock) set(d time.Duration) { m.now = t0.Add(d) }

func newTestClassifier(v Verbosity) (*Classifier, *bytes.Buffer, *manualClock) {
	var buf bytes.Buffer
	clk := &manualClock{now: t0}
	c := NewClassifier(&buf, nil, Options{Verbosity: v, NoColor: true, Now: clk.Now})
	c.State().BeginStep(1)
	return c, &buf, clk
}

func toolUse(id, name, input string, at time.Duration) stream.ToolInvocation {
	return stream.ToolInvocation{ID: id, Name: name, Input: json.RawMessage(input), StartedAt: t0.Add(at)}
}

func TestFlushBatch_EmptyIsNoop(t *testing.T) {
	t.Parallel()

	for _, v := range []Verbosity{Quiet, Normal, Verbose} {
		c, buf, _ := newTestClassifier(v)
		c.FlushBatch()
		c.FlushBatch()
		assert.Empty(t, buf.String(), "verbosity %s", v)
	}
}

func TestToolClustering(t *testing.T) {
	t.Parallel()

	t.Run("within threshold joins one batch", func(t *testing.T) {
		t.Parallel()
		c, buf, _ := newTestClassifier(Normal)

		c.Handle(toolUse("t1", "Read", `{"file_path":"/a.go"}`, 0))
		c.Handle(toolUse("t2", "Grep", `{"pattern":"func"}`, 50*time.Millisecond))
		assert.Empty(t, buf.String(), "batch is not rendered until flushed")
		assert.Equal(t, 2, c.State().Batch.Len())

		c.FlushBatch()
		assert.Equal(t, "● ×2 parallel\n  ├ Read /a.go\n  └ Grep func\n", buf.String())
		assert.Equal(t, 0, c.State().Batch.Len())
	})

	t.Run("beyond threshold renders separate batches", func(t *testing.T) {
		t.Parallel()
		c, buf, _ := newTestClassifier(Normal)

		c.Handle(toolUse("t1", "Read", `{"file_path":"/a.go"}`, 0))
		c.Handle(toolUse("t2", "Grep", `{"pattern":"func"}`, 150*time.Millisecond))
		assert.Equal(t, "● Read /a.go\n", buf.String())

		c.FlushBatch()
		assert.Equal(t, "● Read /a.go\n● Grep func\n", buf.String())
	})

	t.Run("threshold measured from most recent addition", func(t *testing.T) {
		t.Parallel()
		c, buf, _ := newTestClassifier(Normal)

		c.Handle(toolUse("t1", "Read", `{}`, 0))
		c.Handle(toolUse("t2", "Read", `{}`, 80*time.Millisecond))
		c.Handle(toolUse("t3", "Read", `{}`, 160*time.Millisecond))
		c.FlushBatch()
		assert.True(t, strings.HasPrefix(buf.String(), "● ×3 parallel\n"), buf.String())
	})

	t.Run("custom threshold", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		c := NewClassifier(&buf, nil, Options{Verbosity: Normal, NoColor: true, ClusterThreshold: 200 * time.Millisecond})
		c.Handle(toolUse("t1", "Read", `{}`, 0))
		c.Handle(toolUse("t2", "Bash", `{"command":"go test"}`, 150*time.Millisecond))
		c.FlushBatch()
		assert.Equal(t, "● ×2 parallel\n  ├ Read\n  └ Bash go test\n", buf.String())
	})
}

func TestToolInvocation_RecordsStats(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestClassifier(Normal)
	c.Handle(toolUse("t1", "Read", `{"file_path":"/a.go"}`, 0))
	c.Handle(toolUse("t2", "Read", `{}`, 0))

	st := c.State()
	assert.Equal(t, 2, st.Stats.ToolUseCount)
	assert.Equal(t, []string{"Read"}, st.Stats.ToolNames())
	assert.Equal(t, len(`{"file_path":"/a.go"}`)+2, st.Stats.Tokens.OutputCharsSeen)
	assert.Contains(t, st.ToolStarts, "t1")
	assert.Contains(t, st.ToolStarts, "t2")
}

func TestAgentText(t *testing.T) {
	t.Parallel()

	c, buf, _ := newTestClassifier(Normal)
	c.Handle(toolUse("t1", "Read", `{"file_path":"/a.go"}`, 0))

	got := c.Handle(stream.AgentText{Text: "Found the bug.\n"})

	assert.Equal(t, "Found the bug.\n", got)
	assert.Equal(t, "● Read /a.go\nFound the bug.\n", buf.String(), "text flushes the pending batch first")
	assert.Equal(t, 1, c.State().Stats.MessageCount)
	assert.Equal(t, len("Found the bug.\n")+len(`{"file_path":"/a.go"}`), c.State().Stats.Tokens.OutputCharsSeen)
}

func TestAgentText_QuietMode(t *testing.T) {
	t.Parallel()

	c, buf, _ := newTestClassifier(Quiet)

	assert.Equal(t, "Let me look at the tests.", c.Handle(stream.AgentText{Text: "Let me look at the tests."}))
	assert.Empty(t, buf.String(), "planning text is hidden in quiet mode")

	c.Handle(toolUse("t1", "Read", `{}`, 0))
	c.Handle(stream.AgentText{Text: "All tests pass."})
	assert.Equal(t, "answer: All tests pass.\n", buf.String(), "tool lines are hidden in quiet mode")
	assert.Equal(t, 2, c.State().Stats.MessageCount)
}

func TestIsPlanning(t *testing.T) {
	t.Parallel()

	assert.True(t, IsPlanning("I'll start by reading main.go"))
	assert.True(t, IsPlanning("  Let me check"))
	assert.True(t, IsPlanning("Now let me run the tests"))
	assert.False(t, IsPlanning("The fix is in place."))
	assert.False(t, IsPlanning("Nowhere to be found"))
}

func TestToolResult(t *testing.T) {
	t.Parallel()

	t.Run("normal result with computed latency", func(t *testing.T) {
		t.Parallel()
		c, buf, clk := newTestClassifier(Normal)
		c.Handle(toolUse("t1", "Read", `{"file_path":"/a.go"}`, 0))
		clk.set(1200 * time.Millisecond)

		assert.Empty(t, c.Handle(stream.ToolResult{ToolUseID: "t1", Content: "line1\nline2\nline3"}))

		assert.Equal(t, "● Read /a.go\n  ⎿ line1 (+2 lines) (1.2s)\n", buf.String())
		assert.NotContains(t, c.State().ToolStarts, "t1", "timing entry is removed")
	})

	t.Run("reported elapsed wins", func(t *testing.T) {
		t.Parallel()
		c, buf, clk := newTestClassifier(Normal)
		c.Handle(toolUse("t1", "Bash", `{}`, 0))
		clk.set(10 * time.Second)
		c.Handle(stream.ToolResult{ToolUseID: "t1", Content: "ok", ElapsedMs: 250})
		assert.Contains(t, buf.String(), "  ⎿ ok (250ms)\n")
	})

	t.Run("unknown tool id", func(t *testing.T) {
		t.Parallel()
		c, buf, _ := newTestClassifier(Normal)
		c.Handle(stream.ToolResult{ToolUseID: "nope", Content: "data"})
		assert.Equal(t, "  ⎿ data\n", buf.String())
	})

	t.Run("long result truncated in normal mode", func(t *testing.T) {
		t.Parallel()
		c, buf, _ := newTestClassifier(Normal)
		c.Handle(stream.ToolResult{ToolUseID: "x", Content: strings.Repeat("a", 500)})
		line := strings.TrimSuffix(buf.String(), "\n")
		assert.Equal(t, maxResultRunes+len([]rune("  ⎿ ")), len([]rune(line)))
		assert.True(t, strings.HasSuffix(line, "…"))
	})

	t.Run("verbose shows full content", func(t *testing.T) {
		t.Parallel()
		c, buf, _ := newTestClassifier(Verbose)
		c.Handle(stream.ToolResult{ToolUseID: "x", Content: "one\ntwo"})
		assert.Equal(t, "  ⎿ one\n    two\n", buf.String())
	})

	t.Run("quiet hides results", func(t *testing.T) {
		t.Parallel()
		c, buf, _ := newTestClassifier(Quiet)
		c.Handle(toolUse("t1", "Read", `{}`, 0))
		c.Handle(stream.ToolResult{ToolUseID: "t1", Content: "data"})
		assert.Empty(t, buf.String())
	})
}

func TestToolResult_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		result stream.ToolResult
	}{
		{"is_error flag", stream.ToolResult{ToolUseID: "t1", Content: "permission denied", IsError: true}},
		{"tool_use_error marker", stream.ToolResult{ToolUseID: "t1", Content: "<tool_use_error>File not found</tool_use_error>"}},
		{"Error: prefix", stream.ToolResult{ToolUseID: "t1", Content: "Error: exit status 2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			for _, v := range []Verbosity{Quiet, Normal} {
				c, buf, _ := newTestClassifier(v)
				c.Handle(toolUse("t1", "Bash", `{}`, 0))
				c.Handle(tt.result)
				assert.Contains(t, buf.String(), "✗ Bash failed: ", "verbosity %s", v)
				assert.NotContains(t, buf.String(), "⎿")
				assert.Empty(t, c.State().ToolStarts)
			}
		})
	}
}

func TestSubTaskScope(t *testing.T) {
	t.Parallel()

	c, buf, clk := newTestClassifier(Normal)
	st := c.State()

	c.Handle(toolUse("t0", "Read", `{"file_path":"/a.go"}`, 0))
	c.Handle(toolUse("task_1", "Task", `{"description":"Fix flaky test","subagent_type":"general-purpose","prompt":"..."}`, 10*time.Millisecond))

	require.NotNil(t, st.Scope)
	assert.Equal(t, "task_1", st.Scope.ID)
	assert.Equal(t, "general-purpose", st.Scope.Name)
	assert.Equal(t, "Fix flaky test", st.Scope.Description)
	assert.Equal(t, 0, st.Batch.Len(), "sub-task does not join the batch")

	c.Handle(stream.AgentText{Text: "inside"})
	c.Handle(toolUse("t2", "Bash", `{"command":"go test ./..."}`, 20*time.Millisecond))
	c.Handle(stream.ToolResult{ToolUseID: "t2", Content: "ok", ElapsedMs: 5})

	assert.Equal(t, 1, st.Scope.Stats.MessageCount)
	assert.Equal(t, 1, st.Scope.Stats.ToolUseCount)
	assert.Equal(t, 2, st.Stats.ToolUseCount, "Read and Task count at step scope before merge")

	clk.set(5 * time.Second)
	c.Handle(stream.ToolResult{ToolUseID: "task_1", Content: "subagent report"})

	assert.Nil(t, st.Scope)
	assert.Equal(t, 3, st.Stats.ToolUseCount)
	assert.Equal(t, 1, st.Stats.MessageCount)
	assert.Equal(t, []string{"Bash", "Read", "Task"}, st.Stats.ToolNames())

	want := strings.Join([]string{
		"● Read /a.go",
		"▸ general-purpose Fix flaky test",
		"│ inside",
		"│ ● Bash go test ./...",
		"│   ⎿ ok (5ms)",
		"◂ general-purpose done in 5.0s · 1 tools · 1 messages",
	}, "\n") + "\n"
	assert.Equal(t, want, buf.String())
}

func TestSubTaskScope_ErrorStillCloses(t *testing.T) {
	t.Parallel()

	c, buf, _ := newTestClassifier(Normal)
	c.Handle(toolUse("task_1", "Task", `{"description":"x"}`, 0))
	c.Handle(stream.ToolResult{ToolUseID: "task_1", Content: "agent crashed", IsError: true})

	assert.Nil(t, c.State().Scope)
	assert.Contains(t, buf.String(), "│ ✗ Task failed: agent crashed")
	assert.Contains(t, buf.String(), "◂ Task failed in")
}

func TestSubTaskScope_SecondOverwrites(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestClassifier(Normal)
	st := c.State()
	c.Handle(toolUse("task_1", "Task", `{}`, 0))
	c.Handle(stream.AgentText{Text: "first"})
	c.Handle(toolUse("task_2", "Task", `{}`, 0))

	require.NotNil(t, st.Scope)
	assert.Equal(t, "task_2", st.Scope.ID, "single level: the new scope replaces the old one")
	assert.Equal(t, 1, st.Stats.MessageCount, "replaced scope's counters are kept")
	assert.Equal(t, 0, st.Scope.Stats.MessageCount)

	// The first sub-task's result now renders as an ordinary result.
	c.Handle(stream.ToolResult{ToolUseID: "task_1", Content: "done"})
	assert.NotNil(t, st.Scope)
}

func TestUsageReport_CountsEachMessageOnce(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestClassifier(Normal)
	u := stream.Usage{InputTokens: 32, CacheReadTokens: 312838}
	c.Handle(stream.UsageReport{MessageID: "msg_1", Usage: u})
	c.Handle(stream.UsageReport{MessageID: "msg_1", Usage: u})
	c.Handle(stream.UsageReport{MessageID: "msg_2", Usage: stream.Usage{InputTokens: 1, CacheCreateTotal: 7}})

	tok := c.State().Stats.Tokens
	assert.Equal(t, 33, tok.Prompt)
	assert.Equal(t, 312838, tok.CacheRead)
	assert.Equal(t, 7, tok.CacheWrite5m)
}

func TestStepResult(t *testing.T) {
	t.Parallel()

	t.Run("renders completion line", func(t *testing.T) {
		t.Parallel()
		c, buf, _ := newTestClassifier(Normal)
		c.Handle(toolUse("t1", "Read", `{}`, 0))
		c.Handle(stream.StepResult{DurationMs: 15230})
		assert.Equal(t, "● Read\n✓ step 1 complete in 15.2s\n", buf.String())
		assert.Equal(t, 15230*time.Millisecond, c.State().LastStepDuration)
	})

	t.Run("suppressed", func(t *testing.T) {
		t.Parallel()
		c, buf, _ := newTestClassifier(Normal)
		c.State().SuppressStepSummary = true
		c.Handle(stream.StepResult{DurationMs: 900})
		assert.Empty(t, buf.String())
		assert.Equal(t, 900*time.Millisecond, c.State().LastStepDuration)
	})

	t.Run("verbose adds cost", func(t *testing.T) {
		t.Parallel()
		c, buf, _ := newTestClassifier(Verbose)
		c.Handle(stream.StepResult{DurationMs: 2000, NumTurns: 3, CostUSD: 0.5})
		assert.Equal(t, "✓ step 1 complete in 2.0s · 3 turns · $0.5000\n", buf.String())
	})
}

func TestUnrecognized_OnlyVerbose(t *testing.T) {
	t.Parallel()

	ev := stream.Unrecognized{Type: "stream_event", Raw: `{"type":"stream_event"}`}

	c, buf, _ := newTestClassifier(Normal)
	c.Handle(ev)
	assert.Empty(t, buf.String())

	c, buf, _ = newTestClassifier(Verbose)
	c.Handle(ev)
	assert.Equal(t, "[stream_event] {\"type\":\"stream_event\"}\n", buf.String())
}

func TestSystemInit_NoOutput(t *testing.T) {
	t.Parallel()

	c, buf, _ := newTestClassifier(Verbose)
	assert.Empty(t, c.Handle(stream.SystemInit{Model: "claude-opus-4-6"}))
	assert.Empty(t, buf.String())
	assert.Equal(t, "claude-opus-4-6", c.State().Model)
}

func TestRunState_StepLifecycle(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestClassifier(Normal)
	st := c.State()

	c.Handle(toolUse("t1", "Read", `{}`, 0))
	c.Handle(stream.AgentText{Text: "one"})
	c.Handle(toolUse("task", "Task", `{}`, 0))
	c.Handle(stream.AgentText{Text: "two"})
	st.EndStep()

	assert.Nil(t, st.Scope, "open scope is folded on EndStep")
	assert.Equal(t, 2, st.Run.MessageCount)
	assert.Equal(t, 2, st.Run.ToolUseCount)

	st.BeginStep(2)
	assert.Equal(t, 2, st.Step)
	assert.Zero(t, st.Stats.MessageCount)
	assert.Empty(t, st.ToolStarts)
	assert.Equal(t, 0, st.Batch.Len())
	assert.Equal(t, 2, st.Run.MessageCount, "run stats survive BeginStep")

	c.Handle(stream.AgentText{Text: "three"})
	st.EndStep()
	assert.Equal(t, 3, st.Run.MessageCount)
}

func TestParseVerbosity(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Verbosity{"": Normal, "quiet": Quiet, "NORMAL": Normal, " verbose ": Verbose} {
		got, err := ParseVerbosity(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseVerbosity("loud")
	assert.Error(t, err)
}

func TestFormatElapsed(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0ms", formatElapsed(-time.Second))
	assert.Equal(t, "850ms", formatElapsed(850*time.Millisecond))
	assert.Equal(t, "1.2s", formatElapsed(1200*time.Millisecond))
	assert.Equal(t, "2m5s", formatElapsed(125*time.Second))
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab…", truncate("abcd", 3))
	assert.Equal(t, "héé…", truncate("héééé", 4))
}
