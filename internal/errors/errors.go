package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error codes
const (
	// Client-side validation (VALIDATION-001 to VALIDATION-099)
	ErrCodeValidation         ErrorCode = "VALIDATION-001"
	ErrCodeInvalidCredentials ErrorCode = "VALIDATION-002"
	ErrCodeInvalidPayload     ErrorCode = "VALIDATION-003"

	// Authentication and authorization (AUTH-001 to AUTH-099)
	ErrCodeUnauthorized  ErrorCode = "AUTH-001"
	ErrCodeLoginRejected ErrorCode = "AUTH-002"
	ErrCodeRefreshFailed ErrorCode = "AUTH-003"
	ErrCodeNoSession     ErrorCode = "AUTH-004"
	ErrCodeForbidden     ErrorCode = "AUTH-005"

	// Backend responses (API-001 to API-099)
	ErrCodeNotFound        ErrorCode = "API-001"
	ErrCodeServer          ErrorCode = "API-002"
	ErrCodeBadResponse     ErrorCode = "API-003"
	ErrCodeRequestRejected ErrorCode = "API-004"

	// Transport (NET-001 to NET-099)
	ErrCodeNetwork ErrorCode = "NET-001"
	ErrCodeTimeout ErrorCode = "NET-002"
	ErrCodeAborted ErrorCode = "NET-003"

	// Local storage and configuration (IO-001 to IO-099)
	ErrCodeStorageRead  ErrorCode = "IO-001"
	ErrCodeStorageWrite ErrorCode = "IO-002"
	ErrCodeConfig       ErrorCode = "IO-003"
	ErrCodeTerminal     ErrorCode = "IO-004"
)

// Kind classifies an error for callers that only care about the category.
// Kinds compare with errors.Is against any *LOSError.
type Kind string

const (
	KindValidation   Kind = "ValidationError"
	KindUnauthorized Kind = "UnauthorizedError"
	KindForbidden    Kind = "ForbiddenError"
	KindNotFound     Kind = "NotFoundError"
	KindServer       Kind = "ServerError"
	KindNetwork      Kind = "NetworkError"
	KindTimeout      Kind = "TimeoutError"
	KindAborted      Kind = "AbortedError"
	KindInternal     Kind = "InternalError"
)

// Error makes a Kind usable as an errors.Is target.
func (k Kind) Error() string {
	return string(k)
}

// LOSError represents an error with a code, a kind, suggestions, and documentation
type LOSError struct {
	Code        ErrorCode
	Kind        Kind
	Message     string
	Status      int
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *LOSError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *LOSError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the Kind of this error.
func (e *LOSError) Is(target error) bool {
	if k, ok := target.(Kind); ok {
		return e.Kind == k
	}
	return false
}

// New creates a new LOSError
func New(kind Kind, code ErrorCode, message string) *LOSError {
	return &LOSError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// Wrap creates a new LOSError wrapping an existing error
func Wrap(kind Kind, code ErrorCode, message string, cause error) *LOSError {
	return &LOSError{
		Code:    code,
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

// WithStatus records the HTTP status that produced the error
func (e *LOSError) WithStatus(status int) *LOSError {
	e.Status = status
	return e
}

// WithSuggestion adds a suggestion to the error
func (e *LOSError) WithSuggestion(suggestion string) *LOSError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *LOSError) WithSuggestions(suggestions ...string) *LOSError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *LOSError) WithDocs(url string) *LOSError {
	e.DocsURL = url
	return e
}

// KindOf returns the Kind of the first LOSError in err's chain.
// Errors that carry no kind report KindInternal; nil reports "".
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var losErr *LOSError
	if errors.As(err, &losErr) {
		return losErr.Kind
	}
	return KindInternal
}

// CodeOf returns the ErrorCode of the first LOSError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var losErr *LOSError
	if errors.As(err, &losErr) {
		return losErr.Code
	}
	return ""
}

// Message returns the user-facing message of err, without code or suggestions.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var losErr *LOSError
	if errors.As(err, &losErr) && losErr.Message != "" {
		return losErr.Message
	}
	return err.Error()
}

// IsAborted reports whether err is an explicit cancellation.
// Callers treat aborted operations as a no-op.
func IsAborted(err error) bool {
	return errors.Is(err, KindAborted)
}

// FromStatus classifies a non-2xx HTTP status into an LOSError.
// message is the backend-provided text; empty falls back to the status text.
func FromStatus(status int, message string) *LOSError {
	if message == "" {
		message = http.StatusText(status)
	}
	if message == "" {
		message = fmt.Sprintf("request failed with status %d", status)
	}

	var e *LOSError
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		e = New(KindValidation, ErrCodeRequestRejected, message).
			WithSuggestion("Check the submitted values and try again")
	case status == http.StatusUnauthorized:
		e = New(KindUnauthorized, ErrCodeUnauthorized, message).
			WithSuggestion("Run 'losctl auth login' to sign in again")
	case status == http.StatusForbidden:
		e = New(KindForbidden, ErrCodeForbidden, message).
			WithSuggestion("Ask an administrator for the required permission")
	case status == http.StatusNotFound:
		e = New(KindNotFound, ErrCodeNotFound, message)
	default:
		e = New(KindServer, ErrCodeServer, message)
	}
	return e.WithStatus(status)
}

// Common error constructors

// NewValidationError creates a local pre-flight validation error
func NewValidationError(message string) *LOSError {
	return New(KindValidation, ErrCodeValidation, message)
}

// NewUnauthorizedError creates an authentication failure
func NewUnauthorizedError(message string, cause error) *LOSError {
	return Wrap(KindUnauthorized, ErrCodeUnauthorized, message, cause).
		WithStatus(http.StatusUnauthorized).
		WithSuggestion("Run 'losctl auth login' to sign in again")
}

// NewNoSessionError reports that no stored credentials are available
func NewNoSessionError() *LOSError {
	return New(KindUnauthorized, ErrCodeNoSession, "not logged in").
		WithSuggestion("Run 'losctl auth login' first")
}

// NewNetworkError creates a transport failure error
func NewNetworkError(cause error) *LOSError {
	return Wrap(KindNetwork, ErrCodeNetwork, "unable to reach the LOS server", cause).
		WithSuggestion("Check your network connection and the configured API URL").
		WithSuggestion("Run 'losctl health' to verify connectivity")
}

// NewTimeoutError creates a deadline exceeded error
func NewTimeoutError(cause error) *LOSError {
	return Wrap(KindTimeout, ErrCodeTimeout, "the LOS server did not respond in time", cause).
		WithSuggestion("Retry the request or increase api.timeout in the configuration")
}

// NewAbortedError creates an explicit cancellation error
func NewAbortedError(cause error) *LOSError {
	return Wrap(KindAborted, ErrCodeAborted, "request cancelled", cause)
}

// NewBadResponseError reports a response body that could not be decoded
func NewBadResponseError(cause error) *LOSError {
	return Wrap(KindServer, ErrCodeBadResponse, "unexpected response from the LOS server", cause)
}

// NewStorageError reports a durable storage failure
func NewStorageError(code ErrorCode, message string, cause error) *LOSError {
	return Wrap(KindInternal, code, message, cause)
}

// NewConfigError reports an invalid or unreadable configuration
func NewConfigError(message string, cause error) *LOSError {
	return Wrap(KindInternal, ErrCodeConfig, message, cause).
		WithSuggestion("Run 'losctl config view' to inspect the effective configuration")
}
