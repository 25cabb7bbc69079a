package console

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/roach88/setuper/internal/ir"
	"github.com/roach88/setuper/internal/validator"
)

// Terminal is the interactive IO. Each prompt runs a short bubbletea
// program around a single text input and leaves the answered question in
// the scrollback.
type Terminal struct {
	in    io.Reader
	out   io.Writer
	level Verbosity
}

// NewTerminal creates a terminal IO reading keys from in.
func NewTerminal(in io.Reader, out io.Writer, level Verbosity) *Terminal {
	return &Terminal{in: in, out: out, level: level}
}

func (t *Terminal) Write(message string, v Verbosity) {
	if v <= t.level {
		fmt.Fprintln(t.out, message)
	}
}

func (t *Terminal) Ask(ctx context.Context, question string, def ir.IRValue) (ir.IRValue, error) {
	answer, err := t.prompt(ctx, question, defaultHint(def), false)
	if err != nil {
		return nil, err
	}
	return answerOrDefault(answer, def), nil
}

func (t *Terminal) AskAndValidate(ctx context.Context, question string, validate validator.Func, def ir.IRValue) (ir.IRValue, error) {
	for {
		v, err := t.Ask(ctx, question, def)
		if err != nil {
			return nil, err
		}
		out, err := validate(v)
		if err == nil {
			return out, nil
		}
		if !validator.IsFailure(err) {
			return nil, err
		}
		fmt.Fprintln(t.out, errorStyle.Render(err.Error()))
	}
}

func (t *Terminal) AskHidden(ctx context.Context, question string) (ir.IRValue, error) {
	answer, err := t.prompt(ctx, question, "", true)
	if err != nil {
		return nil, err
	}
	return answerOrDefault(answer, nil), nil
}

func (t *Terminal) Select(ctx context.Context, question string, choices []Choice, def string, errorMessage string, multiple bool) ([]string, error) {
	fmt.Fprint(t.out, formatChoices(choices))
	for {
		answer, err := t.prompt(ctx, question, def, false)
		if err != nil {
			return nil, err
		}
		keys, err := parseSelection(answer, choices, def, errorMessage, multiple)
		if err == nil {
			return keys, nil
		}
		fmt.Fprintln(t.out, errorStyle.Render(err.Error()))
	}
}

func (t *Terminal) Confirm(ctx context.Context, question string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	answer, err := t.prompt(ctx, question, hint, false)
	if err != nil {
		return false, err
	}
	return parseConfirmation(answer, def), nil
}

func (t *Terminal) prompt(ctx context.Context, question, placeholder string, hidden bool) (string, error) {
	input := textinput.New()
	input.Prompt = ""
	input.Placeholder = placeholder
	if hidden {
		input.EchoMode = textinput.EchoPassword
		input.EchoCharacter = '*'
	}
	input.Focus()

	p := tea.NewProgram(
		promptModel{question: question, input: input, hidden: hidden},
		tea.WithInput(t.in),
		tea.WithOutput(t.out),
		tea.WithContext(ctx),
	)
	final, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("prompt: %w", err)
	}

	m := final.(promptModel)
	if m.aborted {
		return "", ErrAborted
	}
	return m.answer, nil
}

func defaultHint(def ir.IRValue) string {
	if s, ok := ir.Text(def); ok {
		return s
	}
	return ""
}

// promptModel is the bubbletea model of one question.
type promptModel struct {
	question string
	input    textinput.Model
	hidden   bool
	answer   string
	done     bool
	aborted  bool
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.answer = m.input.Value()
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.aborted = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	q := questionStyle.Render(m.question)
	switch {
	case m.aborted:
		return q + " " + mutedStyle.Render("(aborted)") + "\n"
	case m.done:
		shown := m.answer
		if m.hidden {
			shown = strings.Repeat("*", len([]rune(m.answer)))
		}
		return q + " " + infoStyle.Render(shown) + "\n"
	}
	return q + " " + m.input.View()
}
