// Package tui is the interactive relay panel: a bubbletea program that
// ticks a session on a timer and accepts stimuli typed on a console line.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dd0wney/cluso-relaysim/pkg/simulation"
)

type view int

const (
	dashboardView view = iota
	relaysView
	circuitsView
	consoleView
	viewCount
)

var viewNames = [viewCount]string{"Dashboard", "Relays", "Circuits", "Console"}

type keyMap struct {
	Tab      key.Binding
	ShiftTab key.Binding
	Enter    key.Binding
	Pause    key.Binding
	Step     key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next view"),
	),
	ShiftTab: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "prev view"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "apply"),
	),
	Pause: key.NewBinding(
		key.WithKeys("ctrl+p"),
		key.WithHelp("ctrl+p", "pause/resume"),
	),
	Step: key.NewBinding(
		key.WithKeys("ctrl+t"),
		key.WithHelp("ctrl+t", "single tick"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "esc"),
		key.WithHelp("esc", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Enter, k.Pause, k.Step, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ShiftTab, k.Enter},
		{k.Pause, k.Step, k.Quit},
	}
}

// Model is the bubbletea model of the panel
type Model struct {
	session  *simulation.Session
	interval time.Duration
	paused   bool

	currentView view
	console     textinput.Model
	relayTable  table.Model
	help        help.Model
	keys        keyMap
	width       int
	height      int

	status     simulation.Status
	message    string
	messageErr bool
	history    []string
}

type tickMsg time.Time

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// New builds a panel for s that ticks every interval
func New(s *simulation.Session, interval time.Duration) Model {
	ti := textinput.New()
	ti.Placeholder = "press PB"
	ti.CharLimit = 120
	ti.Width = 50

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Relay", Width: 16},
			{Title: "State", Width: 12},
			{Title: "Position", Width: 22},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	st := table.DefaultStyles()
	st.Header = st.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#00FFFF")).
		BorderBottom(true).
		Bold(true)
	st.Selected = st.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#FF00FF")).
		Bold(false)
	t.SetStyles(st)

	m := Model{
		session:     s,
		interval:    interval,
		currentView: dashboardView,
		console:     ti,
		relayTable:  t,
		help:        help.New(),
		keys:        keys,
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tickCmd(m.interval))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tickMsg:
		if !m.paused {
			m.tick()
		}
		return m, tickCmd(m.interval)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Tab):
			m.setView((m.currentView + 1) % viewCount)
			return m, nil

		case key.Matches(msg, m.keys.ShiftTab):
			m.setView((m.currentView + viewCount - 1) % viewCount)
			return m, nil

		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
			if m.paused {
				m.note(false, "paused")
			} else {
				m.note(false, "running")
			}
			return m, nil

		case key.Matches(msg, m.keys.Step):
			m.tick()
			return m, nil

		case key.Matches(msg, m.keys.Enter):
			if m.currentView == consoleView {
				m.execute(m.console.Value())
				m.console.SetValue("")
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	switch m.currentView {
	case consoleView:
		m.console, cmd = m.console.Update(msg)
		cmds = append(cmds, cmd)
	case relaysView:
		m.relayTable, cmd = m.relayTable.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) setView(v view) {
	m.currentView = v
	if v == consoleView {
		m.console.Focus()
	} else {
		m.console.Blur()
	}
}

func (m *Model) tick() {
	if _, err := m.session.Tick(); err != nil {
		m.note(true, "tick: %v", err)
	}
	m.refresh()
}

// execute applies one console line, or runs the verify command
func (m *Model) execute(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	m.history = append(m.history, line)
	if len(m.history) > 8 {
		m.history = m.history[1:]
	}

	if line == "verify" {
		if err := m.session.Verify(); err != nil {
			m.note(true, "%v", err)
		} else {
			m.note(false, "circuits match enumeration")
		}
		return
	}

	st, err := simulation.ParseLine(line)
	if err != nil {
		m.note(true, "%v", err)
		return
	}
	if err := m.session.Apply(st); err != nil {
		m.note(true, "%v", err)
	} else {
		m.note(false, "applied %s", st)
	}
	m.refresh()
}

func (m *Model) note(isErr bool, format string, args ...any) {
	m.message = fmt.Sprintf(format, args...)
	m.messageErr = isErr
}

func (m *Model) refresh() {
	m.status = m.session.Status()
	rows := make([]table.Row, 0, len(m.status.Relays))
	for _, r := range m.status.Relays {
		rows = append(rows, table.Row{r.Name, r.State, positionBar(r.Position, 20)})
	}
	m.relayTable.SetRows(rows)
}

// positionBar draws an armature position in [0,1] as a bar of width cells
func positionBar(p float64, width int) string {
	p = min(max(p, 0), 1)
	n := int(p*float64(width) + 0.5)
	return strings.Repeat("█", n) + strings.Repeat("·", width-n)
}
