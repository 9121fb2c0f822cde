package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/testbridge/cli/reader"
)

// InspectModel browses decoded messages one at a time.
type InspectModel struct {
	messages []*reader.MessageDetail
	current  int
	view     viewport.Model
	ready    bool
	quitting bool
}

// NewInspectModel creates the message browser. data must be
// []*reader.MessageDetail.
func NewInspectModel(data any) (*InspectModel, error) {
	msgs, ok := data.([]*reader.MessageDetail)
	if !ok {
		return nil, fmt.Errorf("inspect view: unexpected data type %T", data)
	}
	return &InspectModel{messages: msgs}, nil
}

// Init implements tea.Model.
func (m *InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// Title line, blank line, help line.
		height := max(msg.Height-4, 1)
		if !m.ready {
			m.view = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.view.Width = msg.Width
			m.view.Height = height
		}
		m.view.SetContent(m.body())
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Next):
			m.move(1)
			return m, nil
		case key.Matches(msg, keys.Prev):
			m.move(-1)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

func (m *InspectModel) move(delta int) {
	next := m.current + delta
	if next < 0 || next >= len(m.messages) {
		return
	}
	m.current = next
	m.view.SetContent(m.body())
	m.view.GotoTop()
}

// View implements tea.Model.
func (m *InspectModel) View() string {
	if m.quitting {
		return ""
	}
	help := HelpStyle.Render("n/p next/previous message • ↑/↓ scroll • q quit")
	if !m.ready {
		return m.title() + "\n\n" + m.body() + "\n" + help
	}
	return m.title() + "\n\n" + m.view.View() + "\n" + help
}

func (m *InspectModel) title() string {
	if len(m.messages) == 0 {
		return TitleStyle.Render("No messages")
	}
	msg := m.messages[m.current]
	return TitleStyle.Render(fmt.Sprintf("[%d/%d] #%d %s", m.current+1, len(m.messages), msg.Index, msg.Name))
}

// body renders every field of the current message, multi-line values
// indented under their name.
func (m *InspectModel) body() string {
	if len(m.messages) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range m.messages[m.current].Fields {
		b.WriteString(LabelStyle.Render(f.Name + ":"))
		if !strings.Contains(f.Value, "\n") {
			b.WriteString(" " + ValueStyle.Render(f.Value) + "\n")
			continue
		}
		b.WriteString("\n")
		for _, line := range strings.Split(f.Value, "\n") {
			b.WriteString("    " + line + "\n")
		}
	}
	return b.String()
}

type keyMap struct {
	Quit key.Binding
	Next key.Binding
	Prev key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Next: key.NewBinding(
		key.WithKeys("n", "right", "l"),
		key.WithHelp("n", "next message"),
	),
	Prev: key.NewBinding(
		key.WithKeys("p", "left", "h"),
		key.WithHelp("p", "previous message"),
	),
}
