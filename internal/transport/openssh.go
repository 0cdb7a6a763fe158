package transport

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sgflota/sgdeploy/internal/config"
	"github.com/sgflota/sgdeploy/internal/errors"
	"github.com/sgflota/sgdeploy/internal/exec"
	"github.com/sgflota/sgdeploy/internal/logger"
)

// OpenSSH drives the system scp and ssh binaries.
type OpenSSH struct {
	SCP string // scp binary, "scp" by default
	SSH string // ssh binary, "ssh" by default

	KeyFile         string
	Destination     string // user@host
	HostKeyChecking string
	ConnectTimeout  time.Duration

	Log logger.Logger
}

// NewOpenSSH creates an OpenSSH transport for cfg.
func NewOpenSSH(cfg *config.Config, log logger.Logger) *OpenSSH {
	return &OpenSSH{
		SCP:             "scp",
		SSH:             "ssh",
		KeyFile:         cfg.KeyFile,
		Destination:     cfg.Destination(),
		HostKeyChecking: cfg.HostKeyChecking,
		ConnectTimeout:  cfg.ConnectTimeout,
		Log:             log,
	}
}

func (o *OpenSSH) commonArgs() []string {
	mode := o.HostKeyChecking
	if mode == "" {
		mode = config.HostKeyNo
	}
	args := []string{"-o", "StrictHostKeyChecking=" + mode}
	if o.ConnectTimeout > 0 {
		secs := int((o.ConnectTimeout + time.Second - 1) / time.Second)
		args = append(args, "-o", fmt.Sprintf("ConnectTimeout=%d", secs))
	}
	return append(args, "-i", o.KeyFile)
}

// BuildScpArgs returns the scp arguments that copy localPath to the remote home.
func (o *OpenSSH) BuildScpArgs(localPath string) []string {
	return append(o.commonArgs(), localPath, o.Destination+":~/")
}

// BuildSSHArgs returns the ssh arguments that run script in one session.
func (o *OpenSSH) BuildSSHArgs(script string) []string {
	return append(o.commonArgs(), o.Destination, script)
}

// Upload runs scp. Any non-zero exit is a TRANSFER error.
func (o *OpenSSH) Upload(ctx context.Context, localPath string) error {
	cmd := exec.Command{
		Name: o.SCP,
		Args: o.BuildScpArgs(localPath),
	}
	o.logger().Debug("running %s", cmd)

	_, stderr, exitCode, err := exec.Capture(ctx, cmd)
	if err != nil {
		if errors.IsCode(err, errors.ErrCancelled) {
			return err
		}
		return uploadFailed(err)
	}
	if exitCode != 0 {
		o.logger().Debug("scp stderr: %s", stderr)
		return uploadFailed(classifyOutput(exitCode, string(stderr)))
	}
	return nil
}

// Run executes script through ssh and returns its exit code. ssh itself
// exits 255 when the connection fails.
func (o *OpenSSH) Run(ctx context.Context, script string, stdout, stderr io.Writer) (int, error) {
	cmd := exec.Command{
		Name:   o.SSH,
		Args:   o.BuildSSHArgs(script),
		Stdout: stdout,
		Stderr: stderr,
	}
	o.logger().Debug("running %s", cmd)
	return exec.Run(ctx, cmd)
}

// Check verifies the scp and ssh binaries can be found.
func (o *OpenSSH) Check() error {
	for _, bin := range []string{o.SCP, o.SSH} {
		if _, err := exec.LookPath(bin); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op; every call is its own process.
func (o *OpenSSH) Close() error {
	return nil
}

func (o *OpenSSH) logger() logger.Logger {
	if o.Log == nil {
		return logger.Noop()
	}
	return o.Log
}

// classifyOutput turns scp's stderr into a short cause.
func classifyOutput(exitCode int, output string) error {
	output = strings.TrimSpace(output)
	switch {
	case strings.Contains(output, "Permission denied"):
		return fmt.Errorf("permission denied (exit %d)", exitCode)
	case strings.Contains(output, "Connection refused"):
		return fmt.Errorf("connection refused (exit %d)", exitCode)
	case strings.Contains(output, "Could not resolve hostname"):
		return fmt.Errorf("could not resolve hostname (exit %d)", exitCode)
	case strings.Contains(output, "Host key verification failed"):
		return fmt.Errorf("host key verification failed (exit %d)", exitCode)
	case output == "":
		return fmt.Errorf("scp exited %d", exitCode)
	default:
		return fmt.Errorf("scp exited %d: %s", exitCode, output)
	}
}
