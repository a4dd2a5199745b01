package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type simulationDoneMsg struct {
	err error
}

type simulationProgressMsg string

type simulationSpinnerModel struct {
	spinner spinner.Model
	label   string
	work    tea.Cmd
	err     error
	done    bool
}

func newSimulationSpinnerModel(label string, work tea.Cmd) simulationSpinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return simulationSpinnerModel{
		spinner: s,
		label:   label,
		work:    work,
	}
}

func (m simulationSpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.work)
}

func (m simulationSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case simulationProgressMsg:
		m.label = string(msg)
		return m, nil
	case simulationDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m simulationSpinnerModel) View() string {
	if m.done {
		return ""
	}

	return fmt.Sprintf("%s %s", m.spinner.View(), m.label)
}

// runSimulationSpinner runs work behind a spinner on output. work may call
// progress to replace the spinner label.
func runSimulationSpinner(ctx context.Context, output io.Writer, label string, work func(ctx context.Context, progress func(string)) error) error {
	var p *tea.Program
	workCmd := func() tea.Msg {
		return simulationDoneMsg{err: work(ctx, func(label string) {
			p.Send(simulationProgressMsg(label))
		})}
	}

	p = tea.NewProgram(
		newSimulationSpinnerModel(label, workCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	result, ok := finalModel.(simulationSpinnerModel)
	if !ok {
		return fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.err
}
