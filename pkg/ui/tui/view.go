package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View renders the run panel and recent log lines
func (m Model) View() string {
	var sections []string

	sections = append(sections, titleStyle.Render(" IGHASHTAG RUN "))
	sections = append(sections, m.renderRunPanel())
	if len(m.logMessages) > 0 {
		sections = append(sections, m.renderLogs())
	}

	if m.result == nil {
		sections = append(sections, helpStyle.Render("Press q to cancel"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func (m Model) renderRunPanel() string {
	runID := m.runID
	if runID == "" {
		runID = "-"
	}

	indicator := m.spinner.View()
	if m.result != nil {
		indicator = " "
	}

	lines := []string{
		field("Hashtags", strings.Join(m.hashtags, ", ")),
		field("Run", runID),
		fmt.Sprintf("%s %s %s", labelStyle.Render("Status:"), statusStyle(m.status).Render(m.status), indicator),
		field("Polls", fmt.Sprintf("%d", m.attempts)),
		field("Elapsed", formatDuration(m.now().Sub(m.started))),
	}

	if r := m.result; r != nil {
		switch {
		case r.Path != "":
			lines = append(lines, successStyle.Render(fmt.Sprintf("Saved %d posts to %s", r.Rows, r.Path)))
		case r.Succeeded():
			lines = append(lines, warningStyle.Render("No data to save."))
		default:
			lines = append(lines, errorStyle.Render(fmt.Sprintf("Failed at %s: %v", r.Stage, r.Err)))
		}
	}

	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m Model) renderLogs() string {
	lines := make([]string, 0, len(m.logMessages))
	for _, msg := range m.logMessages {
		ts := logStyle.Render(msg.Time.Format("15:04:05"))
		text := lipgloss.NewStyle().Foreground(msg.Color).Render(msg.Message)
		lines = append(lines, ts+" "+text)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func field(label, value string) string {
	return fmt.Sprintf("%s %s", labelStyle.Render(label+":"), valueStyle.Render(value))
}
