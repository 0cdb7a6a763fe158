package doctor

import (
	"fmt"
	"os"

	"github.com/sgflota/sgdeploy/internal/config"
	"github.com/sgflota/sgdeploy/internal/exec"
	"github.com/sgflota/sgdeploy/internal/util"
	"github.com/sgflota/sgdeploy/pkg/sshutil"
)

// ConfigCheck reports the outcome of loading and validating the config.
type ConfigCheck struct {
	Source string // File path, or empty when running on defaults
	Err    error
}

func (c *ConfigCheck) Name() string     { return "config" }
func (c *ConfigCheck) Category() string { return "CONFIG" }

func (c *ConfigCheck) Run() CheckResult {
	if c.Err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "Config is invalid",
			Suggestion: c.Err.Error(),
		}
	}
	if c.Source == "" {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusPass,
			Message:    "No " + config.ConfigFileName + " found, using built-in defaults",
			Suggestion: "Run 'sgdeploy init' to write one",
		}
	}
	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: "Config loaded from " + c.Source,
	}
}

// KeyFileCheck verifies the private key exists and is private to its owner.
// OpenSSH refuses to use a key that others can read.
type KeyFileCheck struct {
	Path    string // Resolved path
	Display string // As written in the config, for messages
}

func (c *KeyFileCheck) Name() string     { return "key_file" }
func (c *KeyFileCheck) Category() string { return "LOCAL" }

func (c *KeyFileCheck) Run() CheckResult {
	info, err := os.Stat(c.Path)
	if err != nil || info.IsDir() {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Key file '%s' not found.", c.Display),
			Suggestion: "Put the key next to the project or set key_file in " + config.ConfigFileName,
		}
	}

	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Key file '%s' is readable by others (%#o)", c.Display, perm),
			Suggestion: "Fix: chmod 600 " + c.Path,
			Fixable:    true,
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("Key file '%s' found", c.Display),
	}
}

func (c *KeyFileCheck) Fix() error {
	return os.Chmod(c.Path, 0600)
}

// BinaryCheck verifies a program the transport shells out to is on PATH.
type BinaryCheck struct {
	Binary string
}

func (c *BinaryCheck) Name() string     { return "binary_" + c.Binary }
func (c *BinaryCheck) Category() string { return "LOCAL" }

func (c *BinaryCheck) Run() CheckResult {
	path, err := exec.LookPath(c.Binary)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("%s not found on PATH", c.Binary),
			Suggestion: "Install the OpenSSH client, or set transport: native",
		}
	}
	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("%s found at %s", c.Binary, path),
	}
}

// SSHAgentCheck reports whether an agent can supply keys to the native
// transport. The key file is tried first, so a missing agent only warns.
type SSHAgentCheck struct{}

func (c *SSHAgentCheck) Name() string     { return "ssh_agent" }
func (c *SSHAgentCheck) Category() string { return "LOCAL" }

func (c *SSHAgentCheck) Run() CheckResult {
	n, err := sshutil.AgentKeyCount()
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "SSH agent not available",
			Suggestion: "Only needed when the key file is passphrase-protected: eval $(ssh-agent) && ssh-add <key>",
		}
	}
	if n == 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "SSH agent running but no keys loaded",
			Suggestion: "Add a key with: ssh-add <key>",
		}
	}
	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("SSH agent running with %d %s loaded", n, util.Pluralize(n, "key", "keys")),
	}
}
