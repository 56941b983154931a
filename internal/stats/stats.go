// Package stats accumulates message, tool, and token counters for agent steps
// and whole runs.
//
// A RunStats value is plain data. The classifier keeps one instance scoped to
// the current step and one scoped to the run; at the end of every step the
// step instance is folded into the run instance with Merge.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// charsPerToken is the divisor used to estimate output tokens from the number
// of characters the agent produced. Output tokens are never reported on the
// stream, so this is an approximation.
const charsPerToken = 4

// TokenCounts holds the input-side token categories reported by the agent
// plus the number of output characters observed.
type TokenCounts struct {
	Prompt          int `json:"prompt"`
	CacheWrite5m    int `json:"cache_write_5m"`
	CacheWrite1h    int `json:"cache_write_1h"`
	CacheRead       int `json:"cache_read"`
	OutputCharsSeen int `json:"output_chars_seen"`
}

// Usage is a single usage record as reported on one assistant message.
type Usage struct {
	InputTokens     int
	CacheWrite5m    int
	CacheWrite1h    int
	CacheReadTokens int
}

// RunStats tracks counters for one scope (sub-task, step, or run).
type RunStats struct {
	MessageCount int             `json:"message_count"`
	Tokens       TokenCounts     `json:"tokens"`
	ToolsUsed    map[string]bool `json:"tools_used"`
	ToolUseCount int             `json:"tool_use_count"`
}

// New returns an empty RunStats.
func New() *RunStats {
	return &RunStats{ToolsUsed: make(map[string]bool)}
}

// Reset clears every counter in place.
func (s *RunStats) Reset() {
	s.MessageCount = 0
	s.Tokens = TokenCounts{}
	s.ToolsUsed = make(map[string]bool)
	s.ToolUseCount = 0
}

// RecordToolUse counts one tool invocation and remembers its name.
func (s *RunStats) RecordToolUse(name string) {
	if s.ToolsUsed == nil {
		s.ToolsUsed = make(map[string]bool)
	}
	s.ToolUseCount++
	if name != "" {
		s.ToolsUsed[name] = true
	}
}

// RecordOutputChars adds n characters of agent-authored output.
func (s *RunStats) RecordOutputChars(n int) {
	if n > 0 {
		s.Tokens.OutputCharsSeen += n
	}
}

// IncrementMessageCount counts one agent message.
func (s *RunStats) IncrementMessageCount() {
	s.MessageCount++
}

// UpdateTokenCounts adds the input-side categories of u. Callers must pass
// each usage record once; the stream repeats the same usage on every content
// block of a message.
func (s *RunStats) UpdateTokenCounts(u Usage) {
	s.Tokens.Prompt += u.InputTokens
	s.Tokens.CacheWrite5m += u.CacheWrite5m
	s.Tokens.CacheWrite1h += u.CacheWrite1h
	s.Tokens.CacheRead += u.CacheReadTokens
}

// EstimatedOutputTokens returns ceil(OutputCharsSeen / 4).
func (s *RunStats) EstimatedOutputTokens() int {
	return (s.Tokens.OutputCharsSeen + charsPerToken - 1) / charsPerToken
}

// TotalInputTokens sums every input-side category.
func (s *RunStats) TotalInputTokens() int {
	t := s.Tokens
	return t.Prompt + t.CacheWrite5m + t.CacheWrite1h + t.CacheRead
}

// ToolNames returns the de-duplicated tool names in sorted order.
func (s *RunStats) ToolNames() []string {
	names := make([]string, 0, len(s.ToolsUsed))
	for name := range s.ToolsUsed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of s.
func (s *RunStats) Clone() *RunStats {
	c := New()
	Merge(c, s)
	return c
}

// Merge adds every numeric field of source into target and unions the tool
// name sets. source is left unchanged.
func Merge(target, source *RunStats) {
	if target == nil || source == nil {
		return
	}
	if target.ToolsUsed == nil {
		target.ToolsUsed = make(map[string]bool)
	}
	target.MessageCount += source.MessageCount
	target.ToolUseCount += source.ToolUseCount
	target.Tokens.Prompt += source.Tokens.Prompt
	target.Tokens.CacheWrite5m += source.Tokens.CacheWrite5m
	target.Tokens.CacheWrite1h += source.Tokens.CacheWrite1h
	target.Tokens.CacheRead += source.Tokens.CacheRead
	target.Tokens.OutputCharsSeen += source.Tokens.OutputCharsSeen
	for name := range source.ToolsUsed {
		target.ToolsUsed[name] = true
	}
}

// InputBreakdown renders the non-zero input categories, for example
// "prompt 32, cache read 312,838". Returns "0" when every category is zero.
func (s *RunStats) InputBreakdown() string {
	parts := make([]string, 0, 4)
	add := func(label string, n int) {
		if n != 0 {
			parts = append(parts, label+" "+humanize.Comma(int64(n)))
		}
	}
	add("prompt", s.Tokens.Prompt)
	add("cache write 5m", s.Tokens.CacheWrite5m)
	add("cache write 1h", s.Tokens.CacheWrite1h)
	add("cache read", s.Tokens.CacheRead)
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, ", ")
}

// Summary renders a multi-line human-readable report of s over the elapsed
// duration d.
func (s *RunStats) Summary(d time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "duration: %s  messages: %d\n", d.Round(time.Second), s.MessageCount)
	fmt.Fprintf(&b, "input tokens: %s\n", s.InputBreakdown())
	fmt.Fprintf(&b, "output tokens (est.): %s\n", humanize.Comma(int64(s.EstimatedOutputTokens())))
	names := s.ToolNames()
	if len(names) == 0 {
		b.WriteString("tools: none")
	} else {
		fmt.Fprintf(&b, "tools (%d calls): %s", s.ToolUseCount, strings.Join(names, ", "))
	}
	return b.String()
}
