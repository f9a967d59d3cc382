package exitcode

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/felixgeelhaar/losctl/internal/errors"
)

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		expected int
	}{
		{"Success", Success, 0},
		{"GeneralError", GeneralError, 1},
		{"UsageError", UsageError, 2},
		{"NotFound", NotFound, 3},
		{"ServerError", ServerError, 4},
		{"AuthError", AuthError, 5},
		{"NetworkError", NetworkError, 6},
		{"Interrupted", Interrupted, 130},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code != tt.expected {
				t.Errorf("Exit code %s = %d, want %d", tt.name, tt.code, tt.expected)
			}
		})
	}
}

func TestDetermineExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "nil error returns success",
			err:      nil,
			expected: Success,
		},
		{
			name:     "validation error",
			err:      errors.NewValidationError("username is required"),
			expected: UsageError,
		},
		{
			name:     "unauthorized",
			err:      errors.NewUnauthorizedError("session expired", nil),
			expected: AuthError,
		},
		{
			name:     "forbidden from status",
			err:      errors.FromStatus(403, "Access denied"),
			expected: AuthError,
		},
		{
			name:     "wrapped network error",
			err:      fmt.Errorf("listing customers: %w", errors.NewNetworkError(nil)),
			expected: NetworkError,
		},
		{
			name:     "timeout",
			err:      errors.NewTimeoutError(nil),
			expected: NetworkError,
		},
		{
			name:     "not found",
			err:      errors.FromStatus(404, "Customer not found"),
			expected: NotFound,
		},
		{
			name:     "server error",
			err:      errors.FromStatus(500, ""),
			expected: ServerError,
		},
		{
			name:     "aborted",
			err:      errors.NewAbortedError(nil),
			expected: Interrupted,
		},
		{
			name:     "cobra unknown flag",
			err:      stderrors.New("unknown flag: --bogus"),
			expected: UsageError,
		},
		{
			name:     "cobra arg count",
			err:      stderrors.New("accepts 1 arg(s), received 0"),
			expected: UsageError,
		},
		{
			name:     "config error is general",
			err:      errors.NewConfigError("invalid configuration", nil),
			expected: GeneralError,
		},
		{
			name:     "plain error",
			err:      stderrors.New("something went wrong"),
			expected: GeneralError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineExitCode(tt.err); got != tt.expected {
				t.Errorf("DetermineExitCode(%v) = %d, want %d", tt.err, got, tt.expected)
			}
		})
	}
}

func TestGetExitCodeDescription(t *testing.T) {
	codes := []int{Success, GeneralError, UsageError, NotFound, ServerError, AuthError, NetworkError, Interrupted}
	for _, code := range codes {
		if GetExitCodeDescription(code) == "Unknown error" {
			t.Errorf("code %d has no description", code)
		}
	}
	if GetExitCodeDescription(99) != "Unknown error" {
		t.Error("unexpected description for unknown code")
	}
}
