package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/AbdelazizMoustafa10m/drover/internal/loop"
)

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7B78FF"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "#16A34A", Dark: "#4ADE80"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}
	colorError   = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#F87171"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	colorBar     = lipgloss.AdaptiveColor{Light: "#F3F4F6", Dark: "#1F2937"}
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	barStyle    = lipgloss.NewStyle().Background(colorBar).Padding(0, 1)
	statusStyle = map[loop.Status]lipgloss.Style{
		loop.StatusOK:      lipgloss.NewStyle().Bold(true).Foreground(colorSuccess),
		loop.StatusBlocked: lipgloss.NewStyle().Bold(true).Foreground(colorWarning),
		loop.StatusError:   lipgloss.NewStyle().Bold(true).Foreground(colorError),
	}
)
