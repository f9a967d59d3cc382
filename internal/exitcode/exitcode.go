package exitcode

import (
	"os"
	"strings"

	"github.com/felixgeelhaar/losctl/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage or input that failed local validation
	UsageError = 2

	// NotFound indicates the requested resource does not exist
	NotFound = 3

	// ServerError indicates the LOS backend failed or answered with something unreadable
	ServerError = 4

	// AuthError indicates an authentication or authorization failure
	AuthError = 5

	// NetworkError indicates the backend could not be reached in time
	NetworkError = 6

	// Interrupted indicates the user cancelled the operation (128 + SIGINT)
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}

	code := DetermineExitCode(err)
	Exit(code)
}

// DetermineExitCode maps an error to an exit code by its kind. Errors without a
// kind are cobra usage errors or unexpected failures.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	switch errors.KindOf(err) {
	case errors.KindValidation:
		return UsageError
	case errors.KindUnauthorized, errors.KindForbidden:
		return AuthError
	case errors.KindNetwork, errors.KindTimeout:
		return NetworkError
	case errors.KindNotFound:
		return NotFound
	case errors.KindServer:
		return ServerError
	case errors.KindAborted:
		return Interrupted
	}

	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "unknown flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "accepts ") {
		return UsageError
	}

	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags, arguments or input)"
	case NotFound:
		return "Resource not found"
	case ServerError:
		return "LOS server error"
	case AuthError:
		return "Authentication error"
	case NetworkError:
		return "Network error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
