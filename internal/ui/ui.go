// Package ui is rsenv's narrow interactive and output seam. The core
// never imports survey directly; cmd/rsenv wires a survey-backed
// Selector/Confirm/Input here, keeping the interactive collaborator an
// external dependency of the CLI shell, not of the domain packages.
package ui

import (
	"io"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mattn/go-isatty"
)

// Selector prompts the user to pick one of options, returning the chosen
// value. Used by `env select`.
type Selector interface {
	Select(message string, options []string) (string, error)
}

// Confirm prompts the user for a yes/no decision.
type Confirm interface {
	Confirm(message string, defaultYes bool) (bool, error)
}

// Input prompts the user for a free-text line.
type Input interface {
	Input(message, defaultValue string) (string, error)
}

// Survey implements Selector, Confirm, and Input via
// github.com/AlecAivazis/survey/v2.
type Survey struct{}

func (Survey) Select(message string, options []string) (string, error) {
	var choice string
	prompt := &survey.Select{Message: message, Options: options}
	if err := survey.AskOne(prompt, &choice); err != nil {
		return "", err
	}
	return choice, nil
}

func (Survey) Confirm(message string, defaultYes bool) (bool, error) {
	var ok bool
	prompt := &survey.Confirm{Message: message, Default: defaultYes}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (Survey) Input(message, defaultValue string) (string, error) {
	var value string
	prompt := &survey.Input{Message: message, Default: defaultValue}
	if err := survey.AskOne(prompt, &value); err != nil {
		return "", err
	}
	return value, nil
}

// IsTerminal reports whether w is an interactive terminal, using
// mattn/go-isatty the way survey itself detects terminal-ness.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ColorEnabled reports whether colored output should be produced for w:
// NO_COLOR unsets it unconditionally, otherwise it follows terminal
// detection.
func ColorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return IsTerminal(w)
}
