// Package tui holds the interactive terminal prompts: the login form and
// confirmations for destructive commands.
package tui

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/felixgeelhaar/losctl/internal/errors"
)

// LoginInput receives the values typed into the login form.
type LoginInput struct {
	Username string
	Password string
}

// NewLoginForm builds the login form. Fields already set in in are kept as
// defaults; the password is never echoed.
func NewLoginForm(in *LoginInput) *huh.Form {
	username := huh.NewInput().
		Title("Username").
		Placeholder("loan.officer").
		Value(&in.Username).
		Validate(required("username"))

	password := huh.NewInput().
		Title("Password").
		EchoMode(huh.EchoModePassword).
		Value(&in.Password).
		Validate(required("password"))

	return huh.NewForm(huh.NewGroup(username, password)).
		WithShowHelp(false)
}

// PromptLogin asks for whatever credentials are missing from in.
func PromptLogin(ctx context.Context, in LoginInput) (LoginInput, error) {
	if in.Username != "" && in.Password != "" {
		return in, nil
	}
	if !ShouldPrompt() {
		return in, errors.NewValidationError("username and password are required").
			WithSuggestion("Pass --username and --password, or run losctl from a terminal to be prompted")
	}
	if err := NewLoginForm(&in).RunWithContext(ctx); err != nil {
		return in, promptError(err)
	}
	in.Username = strings.TrimSpace(in.Username)
	return in, nil
}

// Confirm asks a yes/no question. Without a terminal it returns defaultValue.
func Confirm(ctx context.Context, message string, defaultValue bool) (bool, error) {
	if !ShouldPrompt() {
		return defaultValue, nil
	}

	confirmed := defaultValue
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(message).
			Affirmative("Yes").
			Negative("No").
			Value(&confirmed),
	))
	if err := form.RunWithContext(ctx); err != nil {
		return false, promptError(err)
	}
	return confirmed, nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return stderrors.New(field + " is required")
		}
		return nil
	}
}

// promptError turns Ctrl+C or a cancelled context into an aborted error.
func promptError(err error) error {
	if stderrors.Is(err, huh.ErrUserAborted) || stderrors.Is(err, context.Canceled) {
		return errors.NewAbortedError(err)
	}
	return errors.Wrap(errors.KindInternal, errors.ErrCodeTerminal, "prompt failed", err)
}

// IsInteractive returns true if stdin is a terminal (not piped)
func IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// ShouldPrompt returns true if prompts should be shown based on environment
// Prompts are disabled in CI environments or when stdin is not a terminal
func ShouldPrompt() bool {
	ciEnvVars := []string{
		"CI",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"TRAVIS",
		"CIRCLECI",
		"BUILDKITE",
		"LOSCTL_NO_PROMPT",
	}

	for _, envVar := range ciEnvVars {
		if os.Getenv(envVar) != "" {
			return false
		}
	}

	return IsInteractive()
}
