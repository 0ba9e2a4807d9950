package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

// logHook copies warnings and errors into the log panel
type logHook struct {
	send func(tea.Msg)
}

func (h logHook) Run(_ *zerolog.Event, level zerolog.Level, msg string) {
	if level < zerolog.WarnLevel || level == zerolog.NoLevel || msg == "" {
		return
	}
	h.send(LogMsg{Level: strings.ToUpper(level.String()), Message: msg})
}

// LogHook returns a zerolog hook that shows warnings and errors logged
// during the scrape in the log panel
func (t *TUI) LogHook() zerolog.Hook {
	return logHook{send: t.program.Send}
}
