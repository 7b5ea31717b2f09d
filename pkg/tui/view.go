package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF")).
			MarginLeft(2).
			MarginTop(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FFFF")).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#FF00FF")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666")).
				Padding(0, 2)

	contentStyle = lipgloss.NewStyle().
			MarginLeft(2).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(1, 2).
			MarginRight(2)

	litStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFF00")).
			Bold(true)

	darkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)
)

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var s strings.Builder
	title := "Relay panel: " + m.status.Layout
	if m.paused {
		title += " (paused)"
	}
	s.WriteString(titleStyle.Render(title))
	s.WriteString("\n\n")
	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")

	switch m.currentView {
	case dashboardView:
		s.WriteString(m.renderDashboard())
	case relaysView:
		s.WriteString(m.renderRelays())
	case circuitsView:
		s.WriteString(m.renderCircuits())
	case consoleView:
		s.WriteString(m.renderConsole())
	}

	if m.message != "" {
		s.WriteString("\n\n")
		if m.messageErr {
			s.WriteString(errorStyle.Render("✗ " + m.message))
		} else {
			s.WriteString(successStyle.Render("✓ " + m.message))
		}
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp())))
	return s.String()
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, viewCount)
	for i, name := range viewNames {
		if view(i) == m.currentView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderDashboard() string {
	st := m.status
	c := st.Circuits

	stats := fmt.Sprintf(`Circuits
────────────────
Closed:      %d
Open:        %d
Longest:     %d hops
Energized:   %d contacts

Session
────────────────
Stimuli:     %d
Uptime:      %s`,
		c.Closed, c.Open, c.LongestLen, c.EnergizedContacts,
		st.Applied, st.Uptime.Round(time.Second))

	var panel strings.Builder
	panel.WriteString("Lamps\n────────────────\n")
	for _, l := range st.Lamps {
		if l.Lit {
			panel.WriteString(litStyle.Render("● " + l.Name))
		} else {
			panel.WriteString(darkStyle.Render("○ " + l.Name))
		}
		panel.WriteString("\n")
	}
	panel.WriteString("\nButtons\n────────────────\n")
	for _, b := range st.Buttons {
		mark := "[ ]"
		if b.Pressed {
			mark = "[x]"
		}
		fmt.Fprintf(&panel, "%s %s\n", mark, b.Name)
	}
	if len(st.Levers) > 0 {
		panel.WriteString("\nLevers\n────────────────\n")
		for _, lv := range st.Levers {
			fmt.Fprintf(&panel, "%3d %s\n", lv.Position, lv.Name)
		}
	}
	if len(st.Screens) > 0 {
		panel.WriteString("\nScreens\n────────────────\n")
		for _, sr := range st.Screens {
			fmt.Fprintf(&panel, "%+.2f %s\n", sr.Position, sr.Name)
		}
	}
	panel.WriteString("\nSources\n────────────────\n")
	for _, src := range st.Sources {
		fmt.Fprintf(&panel, "%-4s %s\n", onOff(src.Enabled), src.Name)
	}

	return contentStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top,
		boxStyle.Render(stats), boxStyle.Render(strings.TrimRight(panel.String(), "\n"))))
}

func (m Model) renderRelays() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render("Relays"))
	s.WriteString("\n\n")
	if len(m.status.Relays) == 0 {
		s.WriteString(helpStyle.Render("This layout has no relays"))
	} else {
		s.WriteString(m.relayTable.View())
	}
	return contentStyle.Render(s.String())
}

func (m Model) renderCircuits() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render(fmt.Sprintf("Closed circuits (%d)", len(m.status.Closed))))
	s.WriteString("\n\n")
	if len(m.status.Closed) == 0 {
		s.WriteString(helpStyle.Render("Nothing is powered"))
	}
	limit := max(m.height-14, 5)
	for i, c := range m.status.Closed {
		if i == limit {
			fmt.Fprintf(&s, "... and %d more\n", len(m.status.Closed)-limit)
			break
		}
		s.WriteString(c)
		s.WriteString("\n")
	}
	return contentStyle.Render(s.String())
}

func (m Model) renderConsole() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render("Console"))
	s.WriteString("\n\n")
	s.WriteString(m.console.View())
	s.WriteString("\n\n")
	for _, line := range m.history {
		s.WriteString(darkStyle.Render("> " + line))
		s.WriteString("\n")
	}
	s.WriteString(helpStyle.Render("press X · release X · source X on|off · contact X up|down|both|none · tick [n] · settle [n] · verify"))
	return contentStyle.Render(s.String())
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
