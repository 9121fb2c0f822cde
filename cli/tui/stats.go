package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/testbridge/cli/reader"
)

// StatsModel shows stream statistics as stat boxes.
type StatsModel struct {
	data     *reader.StreamStats
	quitting bool
}

// NewStatsModel creates the stats view. data must be *reader.StreamStats.
func NewStatsModel(data any) (*StatsModel, error) {
	st, ok := data.(*reader.StreamStats)
	if !ok {
		return nil, fmt.Errorf("stats view: unexpected data type %T", data)
	}
	return &StatsModel{data: st}, nil
}

// Init implements tea.Model.
func (m *StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model.
func (m *StatsModel) View() string {
	if m.quitting {
		return ""
	}
	return m.render() + "\n" + HelpStyle.Render("Press q or Ctrl+C to quit")
}

func (m *StatsModel) render() string {
	d := m.data
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Session"))
	b.WriteString("\n")

	status := "incomplete"
	if d.ExitStatus != nil {
		status = d.ExitStatusName
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		renderStatBox("Messages", fmt.Sprint(d.Messages), highlightColor),
		renderStatBox("Tests", fmt.Sprint(d.Tests), highlightColor),
		renderStatBox("Exit", status, stateColor(status)),
	))
	if d.Truncated {
		b.WriteString("\n" + ErrorStyle.Render("stream ended inside a message"))
	}

	if len(d.Outcomes) > 0 {
		b.WriteString("\n\n" + TitleStyle.Render("Outcomes") + "\n")
		var boxes []string
		for _, cat := range sortedCounts(d.Outcomes) {
			boxes = append(boxes, renderStatBox(cat, fmt.Sprint(d.Outcomes[cat]), stateColor(cat)))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	}

	if len(d.ByName) > 0 {
		b.WriteString("\n\n" + TitleStyle.Render("Messages") + "\n")
		for _, name := range sortedCounts(d.ByName) {
			fmt.Fprintf(&b, "%s %d\n", LabelStyle.Width(22).Render(name), d.ByName[name])
		}
	}
	return b.String()
}

func renderStatBox(label, value string, color lipgloss.Color) string {
	valueStr := StatValueStyle.Foreground(color).Render(value)
	labelStr := StatLabelStyle.Render(label)
	return StatBoxStyle.BorderForeground(color).Render(lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr))
}

func sortedCounts(m map[string]int) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RenderStatsStatic renders the stats view without starting a program.
func RenderStatsStatic(st *reader.StreamStats) string {
	return (&StatsModel{data: st}).View()
}
