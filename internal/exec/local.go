// Package exec runs local programs (ssh, scp, /bin/sh) with the exit code
// conventions used everywhere else: a non-zero exit is a result, not an error.
package exec

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/sgflota/sgdeploy/internal/errors"
)

// CancelledExitCode is reported when a command is stopped by its context.
const CancelledExitCode = 130

const waitDelay = 2 * time.Second

// Command describes one local program invocation.
type Command struct {
	Name   string
	Args   []string
	Dir    string
	Env    []string // appended to the current environment
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the command for debug logs.
func (c Command) String() string {
	return fmt.Sprintf("%s %q", c.Name, c.Args)
}

// Run starts c and waits for it. The process is killed when ctx is done.
// Returns the exit code and any execution error; a command that ran and
// exited non-zero returns its code with a nil error.
func Run(ctx context.Context, c Command) (exitCode int, err error) {
	if ctx.Err() != nil {
		return CancelledExitCode, cancelled(ctx.Err())
	}

	command := exec.CommandContext(ctx, c.Name, c.Args...)
	command.Dir = c.Dir
	if len(c.Env) > 0 {
		command.Env = append(os.Environ(), c.Env...)
	}
	command.Stdin = c.Stdin
	command.Stdout = c.Stdout
	command.Stderr = c.Stderr
	// Children that outlive a killed parent must not hold Wait open on our pipes.
	command.WaitDelay = waitDelay

	runErr := command.Run()
	if ctx.Err() != nil {
		return CancelledExitCode, cancelled(ctx.Err())
	}
	if runErr != nil {
		// Check if it's an exit error (command ran but returned non-zero)
		var exitErr *exec.ExitError
		if stderrors.As(runErr, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, errors.WrapWithCode(runErr, errors.ErrExec,
			fmt.Sprintf("Couldn't run %s", c.Name),
			fmt.Sprintf("Make sure %s is installed and on your PATH.", c.Name))
	}

	return 0, nil
}

// Capture runs c and returns its stdout and stderr.
func Capture(ctx context.Context, c Command) (stdout, stderr []byte, exitCode int, err error) {
	var stdoutBuf, stderrBuf bytes.Buffer
	c.Stdout = &stdoutBuf
	c.Stderr = &stderrBuf

	exitCode, err = Run(ctx, c)
	return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitCode, err
}

// LookPath reports where name is found on PATH.
func LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Can't find %s", name),
			"Install the OpenSSH client, or set transport: native in .sgdeploy.yaml.")
	}
	return path, nil
}

func cancelled(err error) error {
	return errors.WrapWithCode(err, errors.ErrCancelled, "Deployment cancelled.", "")
}
