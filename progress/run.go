package progress

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the progress TUI against reporter and blocks until the user
// quits or the program errors. Intended to be started in its own
// goroutine by the CLI when --progress is set, alongside the Driver's
// BuildAndRun call, the way the teacher's RunStatsTUI wraps
// tea.NewProgram(model, tea.WithAltScreen()).
func Run(reporter *Reporter, interval time.Duration) error {
	model := NewModel(reporter, interval)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
