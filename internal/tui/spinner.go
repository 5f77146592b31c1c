package tui

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrCanceled is returned when the user quits a running spinner.
var ErrCanceled = errors.New("canceled")

type spinnerModel struct {
	spinner  spinner.Model
	message  string
	done     bool
	result   string
	err      error
	styles   *Styles
	quitting bool
}

type spinnerDoneMsg struct {
	result string
	err    error
}

func newSpinnerModel(message string) spinnerModel {
	styles := NewStyles()
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Spinner
	return spinnerModel{spinner: s, message: message, styles: styles}
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	case spinnerDoneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinnerModel) View() string {
	if m.quitting {
		return ""
	}
	if m.done {
		if m.err != nil {
			return m.styles.RenderStatus(false, m.err.Error()) + "\n"
		}
		return m.styles.RenderStatus(true, m.result) + "\n"
	}
	return fmt.Sprintf("%s %s\n", m.spinner.View(), m.message)
}

// Spinner shows progress on stderr while a request runs.
type Spinner struct {
	message string
}

// NewSpinner creates a new spinner with a message.
func NewSpinner(message string) *Spinner {
	return &Spinner{message: message}
}

// Run executes fn while displaying the spinner. The string fn returns is
// shown as the completion line. Quitting the spinner cancels the context
// passed to fn and waits for fn to return. If fn still succeeded, its
// result is returned; otherwise Run returns ErrCanceled.
func (s *Spinner) Run(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	p := tea.NewProgram(newSpinnerModel(s.message), tea.WithOutput(os.Stderr))
	return runProgram(ctx, p, fn)
}

func runProgram(ctx context.Context, p *tea.Program, fn func(context.Context) (string, error)) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type fnResult struct {
		result string
		err    error
	}
	done := make(chan fnResult, 1)
	go func() {
		result, err := fn(ctx)
		done <- fnResult{result, err}
		p.Send(spinnerDoneMsg{result: result, err: err})
	}()

	finalModel, err := p.Run()
	if err != nil {
		cancel()
		<-done
		return "", err
	}

	final := finalModel.(spinnerModel) //nolint:errcheck // type assertion always succeeds here
	if final.quitting {
		cancel()
		res := <-done
		if res.err != nil {
			return "", ErrCanceled
		}
		return res.result, nil
	}
	return final.result, final.err
}
