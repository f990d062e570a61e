package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/forPelevin/timewarp/internal/domain/lut"
	"github.com/forPelevin/timewarp/internal/pipeline"
	"github.com/forPelevin/timewarp/internal/usecase"
)

const barWidth = 40

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	hintStyle  = lipgloss.NewStyle().Faint(true)
)

type progressMsg usecase.Progress

type logMsg string

type doneMsg struct {
	report pipeline.Report
	err    error
}

type tickMsg time.Time

// progressModel shows one warp run. Quitting cancels the run and waits for
// the pipelines to stop before exiting.
type progressModel struct {
	input     string
	fraction  float64
	previews  int
	lastFrame int
	lastAt    float64
	lastLog   string
	start     time.Time
	elapsed   time.Duration
	cancel    context.CancelFunc
	stopping  bool
	done      bool
	report    pipeline.Report
	err       error
}

func newProgressModel(input string, cancel context.CancelFunc, now time.Time) progressModel {
	return progressModel{input: input, cancel: cancel, start: now}
}

func (m progressModel) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			if !m.stopping && m.cancel != nil {
				m.cancel()
			}
			m.stopping = true
		}

	case tickMsg:
		if m.done {
			return m, nil
		}
		m.elapsed = time.Time(msg).Sub(m.start)
		return m, tickEvery()

	case progressMsg:
		if msg.Fraction > m.fraction {
			m.fraction = msg.Fraction
		}
		if msg.Preview != nil {
			m.previews++
			m.lastFrame = msg.Preview.Index
			m.lastAt = msg.Preview.Warped
		}

	case logMsg:
		m.lastLog = string(msg)

	case doneMsg:
		m.done = true
		m.report = msg.report
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("timewarp"))
	b.WriteString("\n\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}
	row("Input:    ", m.input)
	row("Elapsed:  ", m.elapsed.Round(time.Second).String())
	if m.previews > 0 {
		row("Frame:    ", fmt.Sprintf("#%d at %s", m.lastFrame, lut.FormatSeconds(m.lastAt)))
	}
	b.WriteString("\n")
	b.WriteString(renderBar(m.fraction))
	b.WriteString(valueStyle.Render(fmt.Sprintf(" %5.1f%%", m.fraction*100)))
	b.WriteString("\n\n")

	if m.lastLog != "" {
		b.WriteString(hintStyle.Render(m.lastLog))
		b.WriteString("\n")
	}
	switch {
	case m.done && m.err != nil:
		b.WriteString(errStyle.Render("failed: " + m.err.Error()))
		b.WriteString("\n")
	case m.done:
		b.WriteString(valueStyle.Render("written to " + m.report.RunDir))
		b.WriteString("\n")
	case m.stopping:
		b.WriteString(hintStyle.Render("Cancelling..."))
		b.WriteString("\n")
	default:
		b.WriteString(hintStyle.Render("Press 'q' or Ctrl+C to cancel"))
		b.WriteString("\n")
	}
	return b.String()
}

func renderBar(frac float64) string {
	n := int(frac * barWidth)
	n = max(0, min(n, barWidth))
	return barStyle.Render(strings.Repeat("█", n)) + hintStyle.Render(strings.Repeat("░", barWidth-n))
}

// runTUI runs the pipeline behind the progress view. Progress and log lines
// are forwarded as messages.
func runTUI(ctx context.Context, cfg pipeline.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel(cfg.Input, cancel, time.Now()))
	cfg.Logf = func(format string, args ...any) {
		p.Send(logMsg(fmt.Sprintf(format, args...)))
	}
	cfg.OnProgress = func(pr usecase.Progress) {
		p.Send(progressMsg(pr))
	}
	go func() {
		rep, err := pipeline.Run(ctx, cfg)
		p.Send(doneMsg{report: rep, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		cancel()
		return err
	}
	m, ok := final.(progressModel)
	if !ok {
		return errors.New("unexpected tui model")
	}
	if m.err != nil {
		return m.err
	}
	fmt.Println(m.report.RunDir)
	return nil
}
