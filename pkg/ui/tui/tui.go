package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"ighashtag/pkg/apify"
	"ighashtag/pkg/orchestrator"
)

// TUI renders scrape progress in the terminal. It satisfies
// orchestrator.Observer so it can be handed straight to the orchestrator.
type TUI struct {
	program *tea.Program
}

// NewTUI creates a terminal UI. cancel aborts the scrape when the user quits.
func NewTUI(hashtags []string, cancel func(), opts ...tea.ProgramOption) *TUI {
	model := NewModel(hashtags, cancel)
	return &TUI{program: tea.NewProgram(model, opts...)}
}

// Start runs the UI until a FinishedMsg arrives
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// RunAttached implements orchestrator.Observer
func (t *TUI) RunAttached(runID string, hashtags []string) {
	t.program.Send(RunAttachedMsg{RunID: runID, Hashtags: hashtags})
}

// StatusObserved implements orchestrator.Observer
func (t *TUI) StatusObserved(runID string, status apify.RunStatus, attempt int) {
	t.program.Send(StatusMsg{RunID: runID, Status: status, Attempt: attempt})
}

// Finished implements orchestrator.Observer
func (t *TUI) Finished(result orchestrator.Result) {
	t.program.Send(FinishedMsg{Result: result})
}

var _ orchestrator.Observer = (*TUI)(nil)
