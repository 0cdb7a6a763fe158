package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/sgflota/sgdeploy/internal/errors"
	"github.com/sgflota/sgdeploy/internal/util"
	"golang.org/x/crypto/ssh"
)

// Exec runs a command on the remote host and returns the output.
// Returns stdout, stderr, exit code, and any error.
// Exit code is -1 if the command couldn't be executed at all.
func (c *Client) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	var stdoutBuf, stderrBuf bytes.Buffer
	exitCode, err = c.ExecStreamContext(context.Background(), cmd, &stdoutBuf, &stderrBuf)
	if err != nil {
		return nil, nil, exitCode, err
	}
	return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitCode, nil
}

// ExecStreamContext runs a command and streams output to the provided writers.
// Cancelling ctx closes the session; the exit code is then 130.
func (c *Client) ExecStreamContext(ctx context.Context, cmd string, stdout, stderr io.Writer) (exitCode int, err error) {
	return c.run(ctx, cmd, nil, stdout, stderr)
}

// Upload streams r into remotePath on the remote host. A leading ~/ in
// remotePath is expanded by the remote shell.
func (c *Client) Upload(ctx context.Context, r io.Reader, remotePath string) error {
	var stderr bytes.Buffer
	cmd := "cat > " + util.ShellQuotePreserveTilde(remotePath)

	exitCode, err := c.run(ctx, cmd, r, io.Discard, &stderr)
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return errors.New(errors.ErrTransfer,
			fmt.Sprintf("Couldn't write %s on %s (exit %d): %s", remotePath, c.Host, exitCode, bytes.TrimSpace(stderr.Bytes())),
			"Check free disk space and permissions in the remote home directory.")
	}
	return nil
}

func (c *Client) run(ctx context.Context, cmd string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	if ctx.Err() != nil {
		return 130, ctx.Err()
	}

	session, err := c.newSSHSession()
	if err != nil {
		return -1, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	session.Stdin = stdin
	session.Stdout = stdout
	session.Stderr = stderr

	if err := session.Start(cmd); err != nil {
		return -1, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Failed to start command: %s", cmd),
			"Check that your user has shell access on the remote host.")
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGINT)
		session.Close()
		return 130, ctx.Err()
	case err := <-done:
		return exitCodeFor(cmd, err)
	}
}

// newSSHSession creates a new *ssh.Session for internal use by exec methods.
func (c *Client) newSSHSession() (*ssh.Session, error) {
	return c.Client.NewSession()
}

func exitCodeFor(cmd string, err error) (int, error) {
	if err == nil {
		return 0, nil
	}

	var exitErr *ssh.ExitError
	if stderrors.As(err, &exitErr) {
		// Command ran, just had non-zero exit
		return exitErr.ExitStatus(), nil
	}

	var missing *ssh.ExitMissingError
	if stderrors.As(err, &missing) {
		return -1, errors.WrapWithCode(err, errors.ErrSSH,
			"Remote command ended without an exit status",
			"The connection may have dropped mid-command.")
	}

	return -1, errors.WrapWithCode(err, errors.ErrSSH,
		fmt.Sprintf("Failed to execute command: %s", cmd),
		"Check if the command exists on the remote host.")
}
