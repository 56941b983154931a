package render

import "github.com/charmbracelet/lipgloss"

// ---------------------------------------------------------------------------
// Color Palette
// ---------------------------------------------------------------------------

// ColorAccent marks tool names and scope headers.
var ColorAccent = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7B78FF"}

// ColorSuccess marks completed steps and scopes.
var ColorSuccess = lipgloss.AdaptiveColor{Light: "#16A34A", Dark: "#4ADE80"}

// ColorWarning marks the "answer" label in quiet mode.
var ColorWarning = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

// ColorError marks error-flagged tool results.
var ColorError = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#F87171"}

// ColorMuted is used for tool results, hints, and timings.
var ColorMuted = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}

// ---------------------------------------------------------------------------
// Theme
// ---------------------------------------------------------------------------

// Theme holds the styles used by the console renderer.
type Theme struct {
	Tool    lipgloss.Style
	Hint    lipgloss.Style
	Result  lipgloss.Style
	Error   lipgloss.Style
	Scope   lipgloss.Style
	Success lipgloss.Style
	Answer  lipgloss.Style
	Muted   lipgloss.Style

	// plain disables styling entirely so output is byte-for-byte predictable.
	plain bool
}

// DefaultTheme returns the colored theme.
func DefaultTheme() Theme {
	return Theme{
		Tool:    lipgloss.NewStyle().Foreground(ColorAccent).Bold(true),
		Hint:    lipgloss.NewStyle().Foreground(ColorMuted),
		Result:  lipgloss.NewStyle().Foreground(ColorMuted),
		Error:   lipgloss.NewStyle().Foreground(ColorError).Bold(true),
		Scope:   lipgloss.NewStyle().Foreground(ColorAccent).Bold(true),
		Success: lipgloss.NewStyle().Foreground(ColorSuccess),
		Answer:  lipgloss.NewStyle().Foreground(ColorWarning).Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(ColorMuted),
	}
}

// PlainTheme returns a theme that renders text unchanged.
func PlainTheme() Theme {
	return Theme{plain: true}
}

// paint renders s with style unless the theme is plain.
func (t Theme) paint(style lipgloss.Style, s string) string {
	if t.plain || s == "" {
		return s
	}
	return style.Render(s)
}
