package doctor

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sgflota/sgdeploy/internal/config"
	"github.com/sgflota/sgdeploy/internal/transport"
	"github.com/sgflota/sgdeploy/internal/util"
)

// DefaultRemoteTimeout bounds each remote check.
const DefaultRemoteTimeout = 20 * time.Second

// remoteRun runs one command with a timeout and captures its output.
func remoteRun(runner transport.Runner, timeout time.Duration, script string) (stdout, stderr string, exitCode int, err error) {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var out, errOut bytes.Buffer
	exitCode, err = runner.Run(ctx, script, &out, &errOut)
	return out.String(), errOut.String(), exitCode, err
}

// lastLine returns the final non-empty line of s.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// ConnectionCheck verifies a session can be opened on the host.
type ConnectionCheck struct {
	Destination string
	Runner      transport.Runner
	Timeout     time.Duration
}

func (c *ConnectionCheck) Name() string     { return "connection" }
func (c *ConnectionCheck) Category() string { return "REMOTE" }

func (c *ConnectionCheck) Run() CheckResult {
	start := time.Now()
	_, stderr, exitCode, err := remoteRun(c.Runner, c.Timeout, "true")

	if err != nil || exitCode != 0 {
		reason := fmt.Sprintf("exit status %d", exitCode)
		if err != nil {
			reason = lastLine(err.Error())
		} else if strings.TrimSpace(stderr) != "" {
			reason = lastLine(stderr)
		}
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Can't open a session on %s: %s", c.Destination, reason),
			Suggestion: "Try by hand: ssh -i <key_file> " + c.Destination,
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("Connected to %s (%s)", c.Destination, time.Since(start).Round(time.Millisecond)),
	}
}

// HostToolsCheck verifies the programs the remote chain calls are installed.
type HostToolsCheck struct {
	Tools   []string
	Runner  transport.Runner
	Timeout time.Duration
}

func (c *HostToolsCheck) Name() string     { return "host_tools" }
func (c *HostToolsCheck) Category() string { return "REMOTE" }

// Script prints the name of every tool that is not on the remote PATH.
func (c *HostToolsCheck) Script() string {
	quoted := make([]string, len(c.Tools))
	for i, t := range c.Tools {
		quoted[i] = util.ShellArg(t)
	}
	return fmt.Sprintf(`for t in %s; do command -v "$t" >/dev/null 2>&1 || echo "$t"; done`, strings.Join(quoted, " "))
}

func (c *HostToolsCheck) Run() CheckResult {
	stdout, _, exitCode, err := remoteRun(c.Runner, c.Timeout, c.Script())
	if err != nil || exitCode != 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "Can't check the tools on the host",
			Suggestion: "Fix the connection first",
		}
	}

	missing := strings.Fields(stdout)
	if len(missing) > 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Missing on the host: %s", strings.Join(missing, ", ")),
			Suggestion: "Install them for the deploy user (non-interactive shells must find them on PATH)",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("Host has %s", strings.Join(c.Tools, ", ")),
	}
}

// RemoteDirCheck reports whether the application directory exists yet.
type RemoteDirCheck struct {
	Dir     string
	Runner  transport.Runner
	Timeout time.Duration
}

func (c *RemoteDirCheck) Name() string     { return "remote_dir" }
func (c *RemoteDirCheck) Category() string { return "REMOTE" }

func (c *RemoteDirCheck) Run() CheckResult {
	_, _, exitCode, err := remoteRun(c.Runner, c.Timeout, "test -d "+util.ShellQuotePreserveTilde(c.Dir))
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Cannot check directory: %s", lastLine(err.Error())),
			Suggestion: "Check SSH connection",
		}
	}

	if exitCode != 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("App directory does not exist: %s", c.Dir),
			Suggestion: "It is created on the first deploy",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("App directory exists: %s", c.Dir),
	}
}

// HostTools lists the programs the remote chain for cfg depends on.
func HostTools(cfg *config.Config) []string {
	tools := []string{"tar"}
	for _, cmd := range []string{cfg.Remote.Install, cfg.Remote.Generate, cfg.Remote.Build} {
		if fields := strings.Fields(cmd); len(fields) > 0 {
			tools = append(tools, fields[0])
		}
	}
	tools = append(tools, "pm2")

	seen := make(map[string]bool, len(tools))
	unique := tools[:0]
	for _, t := range tools {
		if !seen[t] {
			seen[t] = true
			unique = append(unique, t)
		}
	}
	return unique
}
