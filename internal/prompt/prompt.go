// Package prompt abstracts the interactive questions a run may ask, so the
// pipeline can be driven headlessly in tests or batch jobs.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks the operator for input. Implementations must be safe to call
// sequentially from a single goroutine.
type Prompter interface {
	// Confirm asks a yes/no question; only an explicit affirmative answer
	// returns true.
	Confirm(question string) (bool, error)
	// Input asks for one line of text.
	Input(question string) (string, error)
	// Password asks for a secret without echoing it.
	Password(question string) (string, error)
}

// Terminal is the stdin/stdout Prompter used by the CLI.
type Terminal struct {
	In  io.Reader
	Out io.Writer
}

// NewTerminal returns a Prompter on stdin/stdout.
func NewTerminal() *Terminal {
	return &Terminal{In: os.Stdin, Out: os.Stdout}
}

func (t *Terminal) Confirm(question string) (bool, error) {
	answer, err := t.Input(question + " (y/n) ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (t *Terminal) Input(question string) (string, error) {
	fmt.Fprint(t.Out, question)
	line, err := bufio.NewReader(t.In).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (t *Terminal) Password(question string) (string, error) {
	fmt.Fprint(t.Out, question)
	if f, ok := t.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(t.Out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(secret), nil
	}
	// Not a terminal (tests, pipes): fall back to a plain line read.
	return t.Input("")
}

// Scripted is a Prompter with canned answers, for headless runs and tests.
type Scripted struct {
	ConfirmAnswer  bool
	InputAnswer    string
	PasswordAnswer string
}

func (s *Scripted) Confirm(string) (bool, error)    { return s.ConfirmAnswer, nil }
func (s *Scripted) Input(string) (string, error)    { return s.InputAnswer, nil }
func (s *Scripted) Password(string) (string, error) { return s.PasswordAnswer, nil }
