package console

import (
	"context"
	"fmt"
	"io"

	"github.com/roach88/setuper/internal/ir"
	"github.com/roach88/setuper/internal/validator"
)

// Scripted answers prompts from a fixed queue. With UseDefaults set, prompts
// past the end of the queue take their default answer, which is how
// non-interactive runs behave.
//
// Prompts and written messages go to the output writer as plain text so
// tests can compare transcripts.
type Scripted struct {
	answers     []string
	out         io.Writer
	level       Verbosity
	UseDefaults bool
}

// NewScripted creates a scripted IO writing to out (nil discards).
func NewScripted(out io.Writer, answers ...string) *Scripted {
	if out == nil {
		out = io.Discard
	}
	return &Scripted{answers: answers, out: out, level: Normal}
}

// SetVerbosity sets the output level.
func (s *Scripted) SetVerbosity(v Verbosity) {
	s.level = v
}

// Remaining returns the number of unused answers.
func (s *Scripted) Remaining() int {
	return len(s.answers)
}

func (s *Scripted) next() (string, bool) {
	if len(s.answers) == 0 {
		return "", false
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, true
}

func (s *Scripted) Write(message string, v Verbosity) {
	if v <= s.level {
		fmt.Fprintln(s.out, message)
	}
}

func (s *Scripted) echo(question, answer string) {
	fmt.Fprintf(s.out, "%s %s\n", question, answer)
}

func (s *Scripted) Ask(_ context.Context, question string, def ir.IRValue) (ir.IRValue, error) {
	a, ok := s.next()
	if !ok && !s.UseDefaults {
		return nil, fmt.Errorf("%s: %w", question, ErrNoAnswer)
	}
	s.echo(question, a)
	return answerOrDefault(a, def), nil
}

func (s *Scripted) AskAndValidate(_ context.Context, question string, validate validator.Func, def ir.IRValue) (ir.IRValue, error) {
	for {
		a, ok := s.next()
		if !ok && !s.UseDefaults {
			return nil, fmt.Errorf("%s: %w", question, ErrNoAnswer)
		}
		s.echo(question, a)

		out, err := validate(answerOrDefault(a, def))
		if err == nil {
			return out, nil
		}
		if !validator.IsFailure(err) || !ok {
			// A rejected default cannot be re-asked.
			return nil, err
		}
		fmt.Fprintln(s.out, err.Error())
	}
}

func (s *Scripted) AskHidden(_ context.Context, question string) (ir.IRValue, error) {
	a, ok := s.next()
	if !ok && !s.UseDefaults {
		return nil, fmt.Errorf("%s: %w", question, ErrNoAnswer)
	}
	s.echo(question, "********")
	return answerOrDefault(a, nil), nil
}

func (s *Scripted) Select(_ context.Context, question string, choices []Choice, def string, errorMessage string, multiple bool) ([]string, error) {
	for {
		a, ok := s.next()
		if !ok && !s.UseDefaults {
			return nil, fmt.Errorf("%s: %w", question, ErrNoAnswer)
		}
		s.echo(question, a)

		keys, err := parseSelection(a, choices, def, errorMessage, multiple)
		if err == nil {
			return keys, nil
		}
		if !ok {
			return nil, err
		}
		fmt.Fprintln(s.out, err.Error())
	}
}

func (s *Scripted) Confirm(_ context.Context, question string, def bool) (bool, error) {
	a, ok := s.next()
	if !ok && !s.UseDefaults {
		return false, fmt.Errorf("%s: %w", question, ErrNoAnswer)
	}
	s.echo(question, a)
	return parseConfirmation(a, def), nil
}
