// Package testing provides runner doubles for the remote package.
package testing

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sgflota/sgdeploy/internal/exec"
)

// FakeRunner records scripts and replies with a canned result.
type FakeRunner struct {
	mu sync.Mutex

	ExitCode int
	Err      error
	Stdout   string
	Stderr   string

	scripts []string
}

// NewFakeRunner creates a runner that succeeds with no output.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{}
}

// Run records script and returns the configured result.
func (f *FakeRunner) Run(ctx context.Context, script string, stdout, stderr io.Writer) (int, error) {
	f.mu.Lock()
	f.scripts = append(f.scripts, script)
	exitCode, err := f.ExitCode, f.Err
	out, errOut := f.Stdout, f.Stderr
	f.mu.Unlock()

	if ctx.Err() != nil {
		return exec.CancelledExitCode, ctx.Err()
	}
	if stdout != nil && out != "" {
		io.WriteString(stdout, out)
	}
	if stderr != nil && errOut != "" {
		io.WriteString(stderr, errOut)
	}
	return exitCode, err
}

// Scripts returns every script run so far.
func (f *FakeRunner) Scripts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.scripts...)
}

// Calls returns how many times Run was called.
func (f *FakeRunner) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scripts)
}

// ShellRunner runs scripts with the local /bin/sh, standing in for the
// host. Home becomes $HOME so ~ paths resolve inside it, and Bin is put
// first on PATH so stub tools shadow real ones.
type ShellRunner struct {
	Home string
	Bin  string
}

// Run executes script locally.
func (s *ShellRunner) Run(ctx context.Context, script string, stdout, stderr io.Writer) (int, error) {
	path := os.Getenv("PATH")
	if s.Bin != "" {
		path = strings.Join([]string{s.Bin, path}, string(os.PathListSeparator))
	}
	return exec.Run(ctx, exec.Command{
		Name:   "/bin/sh",
		Args:   []string{"-c", script},
		Dir:    s.Home,
		Env:    []string{"HOME=" + s.Home, "PATH=" + path},
		Stdout: stdout,
		Stderr: stderr,
	})
}
