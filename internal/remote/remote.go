// Package remote builds and runs the provisioning command line executed on
// the host after the archive lands there.
package remote

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sgflota/sgdeploy/internal/config"
	"github.com/sgflota/sgdeploy/internal/errors"
	"github.com/sgflota/sgdeploy/internal/util"
)

// Separator chains steps so each runs only if every earlier one succeeded.
const Separator = " && "

// Runner executes a command line in one remote session.
type Runner interface {
	Run(ctx context.Context, script string, stdout, stderr io.Writer) (exitCode int, err error)
}

// Step is one command of the chain. Announce, when set, is echoed on the
// host right before Command runs.
type Step struct {
	Name     string
	Announce string
	Command  string
}

// Script is an ordered, fail-fast sequence of steps.
type Script struct {
	Steps []Step
}

// DefaultSteps builds the provisioning sequence for cfg.
func DefaultSteps(cfg *config.Config) []Step {
	dir := util.ShellQuotePreserveTilde(cfg.Remote.Dir)
	archive := util.ShellQuotePreserveTilde("~/" + cfg.ArchiveName)
	name := util.ShellArg(cfg.Remote.Process.Name)

	return []Step{
		{Name: "mkdir", Command: "mkdir -p " + dir},
		{Name: "extract", Command: fmt.Sprintf("tar -xzf %s -C %s", archive, dir)},
		{Name: "cleanup", Command: "rm " + archive},
		{Name: "cd", Command: "cd " + dir},
		{Name: "install", Announce: "Installing dependencies...", Command: cfg.Remote.Install},
		{Name: "generate", Announce: "Generating Prisma Client...", Command: cfg.Remote.Generate},
		{Name: "build", Announce: "Building application...", Command: cfg.Remote.Build},
		{Name: "process", Announce: "Updating PM2 process...", Command: ReloadOrStart(name, cfg.Remote.Process.StartArgs())},
		{Name: "save", Command: "pm2 save"},
	}
}

// ReloadOrStart reloads the pm2 process if it is registered, otherwise
// starts it. The branch is a single compound command so its exit status
// is the status of whichever branch ran.
func ReloadOrStart(name, start string) string {
	return fmt.Sprintf("if pm2 describe %s > /dev/null 2>&1; then pm2 reload %s; else pm2 start %s; fi",
		name, name, start)
}

// NewScript returns the default provisioning script for cfg.
func NewScript(cfg *config.Config) Script {
	return Script{Steps: DefaultSteps(cfg)}
}

// Commands returns the chain's commands in order, announcements included.
func (s Script) Commands() []string {
	cmds := make([]string, 0, len(s.Steps)*2)
	for _, step := range s.Steps {
		if step.Command == "" {
			continue
		}
		if step.Announce != "" {
			cmds = append(cmds, "echo "+util.ShellQuote(step.Announce))
		}
		cmds = append(cmds, step.Command)
	}
	return cmds
}

// String renders the script as one command line.
func (s Script) String() string {
	return strings.Join(s.Commands(), Separator)
}

// Execute runs script through runner, streaming remote output to stdout
// and stderr. A non-zero exit is a REMOTE error; which step failed is not
// reported, the session only yields one status.
func Execute(ctx context.Context, runner Runner, script Script, stdout, stderr io.Writer) error {
	exitCode, err := runner.Run(ctx, script.String(), stdout, stderr)
	if err != nil {
		if errors.IsCode(err, errors.ErrCancelled) || ctx.Err() != nil {
			return errors.WrapWithCode(err, errors.ErrCancelled, "Deployment cancelled.",
				"Steps that already ran on the host are left as they are.")
		}
		return errors.WrapWithCode(err, errors.ErrRemote,
			"Deployment failed during remote execution.",
			"Check the SSH connection and try again.")
	}
	if exitCode != 0 {
		return errors.New(errors.ErrRemote,
			"Deployment failed during remote execution.",
			fmt.Sprintf("The remote command chain exited with status %d. Scroll up for the failing step's output.", exitCode))
	}
	return nil
}
