package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors
const (
	ErrConfig    = "CONFIG"
	ErrArchive   = "ARCHIVE"
	ErrTransfer  = "TRANSFER"
	ErrRemote    = "REMOTE"
	ErrSSH       = "SSH"
	ErrExec      = "EXEC"
	ErrCancelled = "CANCELLED"
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// Rendered as:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var sgErr *Error
	if errors.As(err, &sgErr) {
		return sgErr.Code == code
	}
	return false
}

// ExitError carries a process exit code without any message of its own.
// Used when the failure was already reported to the user.
type ExitError struct {
	Code int

	// Cause is the reported failure, kept so IsCode still sees it.
	Cause error
}

// NewExitError creates an ExitError for the given code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// Reported marks err as already shown to the user.
func Reported(err error, code int) *ExitError {
	return &ExitError{Code: code, Cause: err}
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// Unwrap returns the reported failure, if any.
func (e *ExitError) Unwrap() error {
	return e.Cause
}

// GetExitCode extracts the exit code from an ExitError anywhere in the chain.
func GetExitCode(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

// ExitCodeFor maps an error to the process exit code: 0 for nil, 130 for
// cancellation, the carried code for an ExitError, 1 otherwise.
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if code, ok := GetExitCode(err); ok {
		return code
	}
	if IsCode(err, ErrCancelled) {
		return 130
	}
	return 1
}
