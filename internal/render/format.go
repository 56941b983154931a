package render

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AbdelazizMoustafa10m/drover/internal/stream"
)

// Verbosity controls how much of the agent's activity is rendered.
type Verbosity int

const (
	// Quiet shows final answers and errors only.
	Quiet Verbosity = iota
	// Normal shows agent text, tool calls, and truncated results.
	Normal
	// Verbose shows full results, costs, and unrecognized records.
	Verbose
)

// ParseVerbosity parses "quiet", "normal", or "verbose". The empty string
// means Normal.
func ParseVerbosity(s string) (Verbosity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quiet":
		return Quiet, nil
	case "", "normal":
		return Normal, nil
	case "verbose":
		return Verbose, nil
	default:
		return Normal, fmt.Errorf("unknown verbosity %q (want quiet, normal, or verbose)", s)
	}
}

// String returns the verbosity name.
func (v Verbosity) String() string {
	switch v {
	case Quiet:
		return "quiet"
	case Verbose:
		return "verbose"
	default:
		return "normal"
	}
}

// truncate shortens s to at most n runes, appending "…" when cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// firstLine returns the first non-empty line of s, trimmed.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}

// formatElapsed renders d as "850ms" below one second and "1.2s" above.
func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Round(time.Second).String()
}

// inputField returns the string value of key in a tool's JSON input.
func inputField(input json.RawMessage, key string) string {
	if len(input) == 0 {
		return ""
	}
	var m map[string]any
	if err := json.Unmarshal(input, &m); err != nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// toolHint picks the most useful input field to show next to a tool name.
func toolHint(t stream.ToolInvocation) string {
	if len(t.Input) == 0 {
		return ""
	}
	var m map[string]any
	if err := json.Unmarshal(t.Input, &m); err != nil {
		return ""
	}
	for _, k := range hintKeys {
		if v, ok := m[k].(string); ok && v != "" {
			return truncate(firstLine(v), maxHintRunes)
		}
	}
	return ""
}
