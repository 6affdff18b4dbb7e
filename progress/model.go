package progress

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// snapshotMsg carries a fresh Reporter reading into the Bubble Tea loop.
type snapshotMsg Snapshot

// tickMsg drives the periodic re-read of the Reporter.
type tickMsg time.Time

var keys = struct {
	Quit key.Binding
}{
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c")),
}

// Model is a Bubble Tea model rendering the latest Reporter Snapshot.
// Grounded on the teacher's cli/tui.StatsModel: the same
// width/height/quitting fields, the same WindowSizeMsg/KeyMsg Update
// cases, and the same stat-box rendering via lipgloss.JoinHorizontal.
type Model struct {
	reporter *Reporter
	interval time.Duration

	snapshot Snapshot
	width    int
	height   int
	quitting bool
}

// NewModel builds a Model polling reporter every interval.
func NewModel(reporter *Reporter, interval time.Duration) Model {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return Model{reporter: reporter, interval: interval}
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		m.snapshot = m.reporter.Snapshot()
		return m, m.tick()

	case snapshotMsg:
		m.snapshot = Snapshot(msg)
		return m, nil
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b string
	b += titleStyle.Render("Action Driver Progress")
	b += "\n\n"

	boxes := []string{
		m.renderStatBox("Builders", m.snapshot.BuildersActive, highlightColor),
		m.renderStatBox("Runners", m.snapshot.RunnersActive, highlightColor),
		m.renderStatBox("Queue", m.snapshot.QueueDepth, warningColor),
		m.renderStatBox("Armed Timers", m.snapshot.ArmedTimers, warningColor),
		m.renderStatBox("Success", m.snapshot.Successes, successColor),
		m.renderStatBox("Failures", m.snapshot.Failures, errorColor),
	}
	b += lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
	b += "\n"
	b += helpStyle.Render("Press q or Ctrl+C to quit")

	return b
}

func (m Model) renderStatBox(label string, value int64, color lipgloss.Color) string {
	box := statBoxStyle.BorderForeground(color)
	valueStr := statValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := statLabelStyle.Render(label)
	return box.Render(lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr))
}

var _ tea.Model = Model{}
