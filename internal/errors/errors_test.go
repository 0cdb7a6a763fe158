package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	codes := []string{
		ErrConfig,
		ErrArchive,
		ErrTransfer,
		ErrRemote,
		ErrSSH,
		ErrCancelled,
	}

	for _, code := range codes {
		assert.NotEmpty(t, code, "error code should not be empty")
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.False(t, seen[code], "error code %q should be unique", code)
		seen[code] = true
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		message    string
		suggestion string
	}{
		{
			name:       "config error",
			code:       ErrConfig,
			message:    "Key file 'jorge-aws.pem' not found",
			suggestion: "Put the private key next to the project or set key_file",
		},
		{
			name:       "archive error",
			code:       ErrArchive,
			message:    "Error creating archive",
			suggestion: "Check file permissions in the project tree",
		},
		{
			name:       "transfer error",
			code:       ErrTransfer,
			message:    "Error uploading file",
			suggestion: "Check SSH connection and key",
		},
		{
			name:       "remote error",
			code:       ErrRemote,
			message:    "Deployment failed during remote execution",
			suggestion: "Scroll up for the failing step's output",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, tt.suggestion)

			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.suggestion, err.Suggestion)
			assert.Nil(t, err.Cause)
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name          string
		err           *Error
		expectedParts []string
		notExpected   []string
	}{
		{
			name: "basic error formatting",
			err:  New(ErrConfig, "Invalid configuration", "Check .sgdeploy.yaml syntax"),
			expectedParts: []string{
				"Invalid configuration",
				"Check .sgdeploy.yaml syntax",
			},
		},
		{
			name: "error with failure symbol",
			err:  New(ErrTransfer, "Upload failed", "Try again"),
			expectedParts: []string{
				"✗",
				"Upload failed",
			},
		},
		{
			name: "error without suggestion",
			err:  New(ErrRemote, "Remote step failed", ""),
			expectedParts: []string{
				"Remote step failed",
			},
			notExpected: []string{
				"\n\n  \n",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := tt.err.Error()

			for _, part := range tt.expectedParts {
				assert.Contains(t, output, part, "output should contain %q", part)
			}

			for _, part := range tt.notExpected {
				assert.NotContains(t, output, part, "output should not contain %q", part)
			}
		})
	}
}

func TestWrapWithCode(t *testing.T) {
	cause := errors.New("permission denied")
	wrapped := WrapWithCode(cause, ErrArchive, "Error creating archive", "Check permissions")

	require.NotNil(t, wrapped)
	assert.Equal(t, ErrArchive, wrapped.Code)
	assert.Equal(t, "Error creating archive", wrapped.Message)
	assert.Equal(t, "Check permissions", wrapped.Suggestion)
	assert.Equal(t, cause, wrapped.Cause)
	assert.Contains(t, wrapped.Error(), "permission denied")
}

func TestErrorsIsAndAs(t *testing.T) {
	wrapped := WrapWithCode(context.Canceled, ErrCancelled, "Deployment cancelled.", "")

	assert.True(t, errors.Is(wrapped, context.Canceled))

	var sgErr *Error
	require.True(t, errors.As(fmt.Errorf("outer: %w", wrapped), &sgErr))
	assert.Equal(t, ErrCancelled, sgErr.Code)
}

func TestIsCode(t *testing.T) {
	err := New(ErrConfig, "Config error", "")

	assert.True(t, IsCode(err, ErrConfig))
	assert.False(t, IsCode(err, ErrSSH))
	assert.False(t, IsCode(errors.New("standard error"), ErrConfig))
	assert.False(t, IsCode(nil, ErrConfig))
}

func TestErrorMessageStructure(t *testing.T) {
	err := WrapWithCode(
		errors.New("exit status 1"),
		ErrTransfer,
		"Error uploading file. Check SSH connection and key.",
		"Try: scp -i jorge-aws.pem deploy_package.tar.gz ubuntu@host:~/",
	)

	lines := strings.Split(err.Error(), "\n")

	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[0]), "✗"), "first line should start with failure symbol")
	assert.Contains(t, lines[0], "Error uploading file")
}

func TestExitError(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		wantMsg string
	}{
		{name: "zero exit code", code: 0, wantMsg: "exit code 0"},
		{name: "non-zero exit code", code: 1, wantMsg: "exit code 1"},
		{name: "signal exit code", code: 130, wantMsg: "exit code 130"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewExitError(tt.code)

			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOk   bool
	}{
		{name: "ExitError returns code", err: NewExitError(42), wantCode: 42, wantOk: true},
		{name: "wrapped ExitError", err: fmt.Errorf("wrap: %w", NewExitError(7)), wantCode: 7, wantOk: true},
		{name: "standard error returns false", err: errors.New("standard error")},
		{name: "nil error returns false", err: nil},
		{name: "structured Error returns false", err: New(ErrRemote, "test", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := GetExitCode(tt.err)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", err: nil, want: 0},
		{name: "missing key", err: New(ErrConfig, "Key file not found", ""), want: 1},
		{name: "archive failure", err: New(ErrArchive, "Error creating archive", ""), want: 1},
		{name: "upload failure", err: New(ErrTransfer, "Error uploading file", ""), want: 1},
		{name: "remote failure", err: New(ErrRemote, "Deployment failed", ""), want: 1},
		{name: "cancelled", err: WrapWithCode(context.Canceled, ErrCancelled, "Deployment cancelled.", ""), want: 130},
		{name: "explicit exit code", err: NewExitError(3), want: 3},
		{name: "plain error", err: errors.New("boom"), want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeFor(tt.err))
		})
	}
}

func TestReported(t *testing.T) {
	cause := New(ErrRemote, "Deployment failed during remote execution.", "")
	err := Reported(cause, 1)

	code, ok := GetExitCode(err)
	assert.True(t, ok)
	assert.Equal(t, 1, code)
	assert.True(t, IsCode(err, ErrRemote), "the reported failure stays visible")
	assert.Equal(t, 1, ExitCodeFor(err))
	assert.Equal(t, "exit code 1", err.Error())
}
