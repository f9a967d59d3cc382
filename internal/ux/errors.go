package ux

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/felixgeelhaar/losctl/internal/errors"
)

// ErrorWithSuggestion wraps an error with helpful recovery suggestions
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface
func (e *ErrorWithSuggestion) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%v\n\nSuggestion: %s", e.Err, e.Suggestion)
	}
	return e.Err.Error()
}

// Unwrap provides access to the underlying error
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// NewErrorWithSuggestion creates a new error with a suggestion
func NewErrorWithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// EnhanceError adds a suggestion to errors that do not already carry one.
// Coded errors from the client are returned unchanged.
func EnhanceError(err error) error {
	if err == nil {
		return nil
	}

	var losErr *errors.LOSError
	if stderrors.As(err, &losErr) {
		return err
	}

	errMsg := err.Error()

	if strings.Contains(errMsg, "permission denied") {
		return NewErrorWithSuggestion(err,
			"Check the permissions of ~/.losctl and the credential file")
	}

	if strings.Contains(errMsg, "no such file or directory") && strings.Contains(errMsg, "config") {
		return NewErrorWithSuggestion(err,
			"Run 'losctl config path' to see where losctl looks for its configuration")
	}

	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no route to host") {
		return NewErrorWithSuggestion(err,
			"Check your network connection and the configured API URL")
	}

	return err
}

// FormatError provides consistent error formatting with context
func FormatError(err error, context string) error {
	if err == nil {
		return nil
	}

	enhanced := EnhanceError(err)
	if context != "" {
		return fmt.Errorf("%s: %w", context, enhanced)
	}
	return enhanced
}

// RenderError writes err for a person: the message, the error code, then
// any suggestions. Aborted operations render as a short notice.
func RenderError(w io.Writer, err error, styles Styles) {
	if err == nil {
		return
	}
	if errors.IsAborted(err) {
		fmt.Fprintln(w, styles.Muted.Render("Operation cancelled"))
		return
	}

	var losErr *errors.LOSError
	if !stderrors.As(err, &losErr) {
		fmt.Fprintf(w, "%s %v\n", styles.Error.Render("Error:"), err)
		var hinted *ErrorWithSuggestion
		if stderrors.As(err, &hinted) && hinted.Suggestion != "" {
			fmt.Fprintf(w, "  %s %s\n", styles.Muted.Render("•"), hinted.Suggestion)
		}
		return
	}

	fmt.Fprintf(w, "%s %s %s\n",
		styles.Error.Render("Error:"),
		losErr.Message,
		styles.Muted.Render("["+string(losErr.Code)+"]"))
	if losErr.Cause != nil && losErr.Kind != errors.KindValidation {
		fmt.Fprintf(w, "  %s\n", styles.Muted.Render(losErr.Cause.Error()))
	}
	for _, s := range losErr.Suggestions {
		fmt.Fprintf(w, "  %s %s\n", styles.Muted.Render("•"), s)
	}
	if losErr.DocsURL != "" {
		fmt.Fprintf(w, "  %s %s\n", styles.Label.Render("Docs:"), losErr.DocsURL)
	}
}
