package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"ighashtag/pkg/apify"
	"ighashtag/pkg/orchestrator"
)

// RunAttachedMsg is sent once a run id is known
type RunAttachedMsg struct {
	RunID    string
	Hashtags []string
}

// StatusMsg is sent for every status poll
type StatusMsg struct {
	RunID   string
	Status  apify.RunStatus
	Attempt int
}

// FinishedMsg carries the final result and ends the program
type FinishedMsg struct {
	Result orchestrator.Result
}

// LogMsg adds a line to the log panel
type LogMsg struct {
	Level   string
	Message string
}

// Update handles all messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case RunAttachedMsg:
		m.runID = msg.RunID
		if len(msg.Hashtags) > 0 {
			m.hashtags = msg.Hashtags
		}
		m.status = string(apify.StatusReady)
		m.addLogMessage("INFO", "Run attached: "+msg.RunID)
		return m, nil

	case StatusMsg:
		if msg.Status != apify.RunStatus(m.status) {
			m.addLogMessage("INFO", fmt.Sprintf("Status %s (poll %d)", msg.Status, msg.Attempt))
		}
		m.status = string(msg.Status)
		m.attempts = msg.Attempt
		return m, nil

	case FinishedMsg:
		result := msg.Result
		m.result = &result
		if result.Succeeded() {
			m.addLogMessage("SUCCESS", "Finished: "+string(result.Outcome))
		} else {
			m.addLogMessage("ERROR", "Finished: "+string(result.Outcome))
		}
		return m, tea.Quit

	case LogMsg:
		m.addLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		if m.result == nil && !m.quitting {
			m.quitting = true
			m.addLogMessage("WARN", "Cancelling scrape")
			m.cancel()
		}
		return m, nil
	}

	return m, nil
}
