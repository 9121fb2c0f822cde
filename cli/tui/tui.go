package tui

import (
	"fmt"
	"slices"

	tea "github.com/charmbracelet/bubbletea"
)

// View types with TUI support.
const (
	ViewInspect = "inspect"
	ViewStats   = "stats"
)

// Run starts the view for viewType.
func Run(viewType string, data any) error {
	var model tea.Model
	switch viewType {
	case ViewInspect:
		m, err := NewInspectModel(data)
		if err != nil {
			return err
		}
		model = m
	case ViewStats:
		m, err := NewStatsModel(data)
		if err != nil {
			return err
		}
		model = m
	default:
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}

	_, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

// IsTUISupported returns true if the view type supports TUI mode.
func IsTUISupported(viewType string) bool {
	return slices.Contains(SupportedTUIViews(), viewType)
}

// SupportedTUIViews returns the view types that support TUI.
func SupportedTUIViews() []string {
	return []string{ViewInspect, ViewStats}
}
