package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ProgressMsg reports finished systems to a running [Progress].
type ProgressMsg struct {
	Done  int
	Total int
}

type finishedMsg struct{ err error }

// Progress is a Bubble Tea model showing how far an ensemble has come.
type Progress struct {
	label       string
	done        int
	total       int
	started     time.Time
	width       int
	err         error
	finished    bool
	interrupted bool
}

func NewProgress(label string, total int) Progress {
	return Progress{label: label, total: total, started: time.Now(), width: 40}
}

func (m Progress) Init() tea.Cmd { return nil }

func (m Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ProgressMsg:
		m.done, m.total = msg.Done, msg.Total
	case finishedMsg:
		m.finished, m.err = true, msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.interrupted = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = max(10, min(60, msg.Width-30))
	}
	return m, nil
}

func (m Progress) Fraction() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.done) / float64(m.total)
}

func (m Progress) Interrupted() bool { return m.interrupted }

func (m Progress) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(CurrentTheme.Secondary).Render(m.label)
	status := StatusRunning.Render("running")
	switch {
	case m.err != nil:
		status = StatusFailed.Render("failed")
	case m.interrupted:
		status = StatusFailed.Render("interrupted")
	case m.finished:
		status = StatusRunning.Render("done")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", title, status)
	fmt.Fprintf(&b, "%s %s\n", ProgressBar(m.Fraction(), m.width),
		MetricValue.Render(fmt.Sprintf("%d/%d", m.done, m.total)))
	elapsed := time.Since(m.started).Truncate(time.Second)
	fmt.Fprintf(&b, "%s\n", Subtle.Render(fmt.Sprintf("elapsed %s", elapsed)))
	if !m.finished {
		b.WriteString(KeyHint.Render("ctrl+c to stop") + "\n")
	}
	return b.String()
}

// RunWithProgress runs work while a [Progress] view tracks it. work reports
// through the callback it is given, which is safe for concurrent use.
// Interrupting the view cancels the context passed to work; RunWithProgress
// then waits for work to return.
func RunWithProgress(ctx context.Context, label string, total int, work func(context.Context, func(done, total int)) error, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewProgress(label, total), opts...)
	report := func(done, total int) { p.Send(ProgressMsg{Done: done, Total: total}) }

	errc := make(chan error, 1)
	go func() {
		err := work(ctx, report)
		p.Send(finishedMsg{err: err})
		errc <- err
	}()

	final, runErr := p.Run()
	if m, ok := final.(Progress); ok && m.Interrupted() {
		cancel()
	}
	if err := <-errc; err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("progress view: %w", runErr)
	}
	return nil
}
