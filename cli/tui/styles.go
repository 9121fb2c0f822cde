// Package tui provides Bubble Tea views for the testbridge CLI.
//
// TUI mode is opt-in (--tui) and read-only. It renders the same payloads as
// the json/yaml/table output; there is no TUI-only data.
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	successColor   = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#EF4444") // Red
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	highlightColor = lipgloss.Color("#3B82F6") // Blue
)

// Styles for TUI components.
var (
	// TitleStyle for headers and titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	// LabelStyle for field names.
	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Bold(true)

	// ValueStyle for field values.
	ValueStyle = lipgloss.NewStyle()

	// SuccessStyle for passing states.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	// WarningStyle for skipped and expected-failure states.
	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	// ErrorStyle for failing states.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)

	// StatBoxStyle for stat display boxes.
	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlightColor).
			Padding(0, 2).
			Width(20).
			Align(lipgloss.Center)

	// StatLabelStyle for stat labels.
	StatLabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Align(lipgloss.Center)

	// StatValueStyle for stat values.
	StatValueStyle = lipgloss.NewStyle().
			Bold(true).
			Align(lipgloss.Center)
)

// StateStyle returns the style for a result category or exit status name.
func StateStyle(state string) lipgloss.Style {
	switch stateColor(state) {
	case successColor:
		return SuccessStyle
	case warningColor:
		return WarningStyle
	case errorColor:
		return ErrorStyle
	default:
		return ValueStyle
	}
}

func stateColor(state string) lipgloss.Color {
	switch state {
	case "passed", "xpassed", "ok", "no_tests_collected":
		return successColor
	case "skipped", "xfailed", "interrupted":
		return warningColor
	case "failed", "error", "tests_failed", "internal_error", "usage_error":
		return errorColor
	default:
		return highlightColor
	}
}
