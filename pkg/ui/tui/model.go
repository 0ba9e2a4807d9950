package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ighashtag/pkg/orchestrator"
)

const maxLogMessages = 8

// LogMessage represents a log entry shown under the run panel
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// Model is the bubbletea model watching one scrape
type Model struct {
	spinner spinner.Model
	cancel  func()
	now     func() time.Time

	hashtags []string
	runID    string
	status   string
	attempts int
	started  time.Time

	result      *orchestrator.Result
	logMessages []LogMessage
	quitting    bool
	width       int
}

// NewModel creates a model for a scrape of hashtags. cancel is invoked
// when the user quits before the scrape finishes.
func NewModel(hashtags []string, cancel func()) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	if cancel == nil {
		cancel = func() {}
	}

	return Model{
		spinner:  s,
		cancel:   cancel,
		now:      time.Now,
		hashtags: hashtags,
		status:   "SUBMITTING",
		started:  time.Now(),
	}
}

// Init starts the spinner
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Done reports whether the scrape has finished
func (m Model) Done() bool {
	return m.result != nil
}

// Result returns the final result once Done
func (m Model) Result() *orchestrator.Result {
	return m.result
}

func (m *Model) addLogMessage(level, message string) {
	color := dimWhite
	switch level {
	case "ERROR":
		color = alertRed
	case "WARN":
		color = neonOrange
	case "SUCCESS":
		color = neonGreen
	case "INFO":
		color = neonCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    m.now(),
		Level:   level,
		Message: strings.TrimSpace(message),
		Color:   color,
	})

	if len(m.logMessages) > maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-maxLogMessages:]
	}
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}
