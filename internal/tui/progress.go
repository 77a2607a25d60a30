// Package tui renders assembly progress in a terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jackzampolin/binder/internal/assemble"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	countStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
)

type progressMsg assemble.Progress

type doneMsg struct{}

// Model is the bubbletea model for one assembly run.
type Model struct {
	title   string
	bar     progress.Model
	current int
	total   int
	done    bool
}

// NewModel creates a progress model titled title.
func NewModel(title string) Model {
	return Model{
		title: title,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		// The final reset to {0,0} is not shown; the bar stays full.
		if msg.Total > 0 {
			m.current, m.total = msg.Current, msg.Total
		}
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.bar.Width = max(10, min(60, msg.Width-30))
	}
	return m, nil
}

// Percent is the completed fraction of the run.
func (m Model) Percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.current) / float64(m.total)
}

func (m Model) View() string {
	title := titleStyle.Render(m.title)
	if m.done {
		title = doneStyle.Render(m.title + " done")
	}
	count := countStyle.Render(fmt.Sprintf("%d/%d sections", m.current, m.total))
	return fmt.Sprintf("%s\n%s %s\n", title, m.bar.ViewAs(m.Percent()), count)
}

// Run renders events until the channel closes or ctx is done.
func Run(ctx context.Context, title string, events <-chan assemble.Progress, w io.Writer) error {
	p := tea.NewProgram(NewModel(title),
		tea.WithContext(ctx),
		tea.WithOutput(w),
		tea.WithInput(nil),
	)

	go func() {
		for ev := range events {
			p.Send(progressMsg(ev))
		}
		p.Send(doneMsg{})
	}()

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to render progress: %w", err)
	}
	return nil
}
