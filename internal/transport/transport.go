// Package transport moves the archive to the host and runs the remote
// command line there. Two implementations exist: OpenSSH shells out to the
// scp and ssh binaries, Native uses the built-in SSH client.
package transport

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/sgflota/sgdeploy/internal/config"
	"github.com/sgflota/sgdeploy/internal/errors"
	"github.com/sgflota/sgdeploy/internal/logger"
)

// Uploader copies a local file into the remote user's home directory,
// keeping its base name.
type Uploader interface {
	Upload(ctx context.Context, localPath string) error
}

// Runner executes one command line in a single remote session and reports
// its exit code. Output is streamed to stdout and stderr as it arrives.
type Runner interface {
	Run(ctx context.Context, script string, stdout, stderr io.Writer) (exitCode int, err error)
}

// Transport is both halves plus connection cleanup.
type Transport interface {
	Uploader
	Runner
	io.Closer
}

// Checker is implemented by transports that can verify their local
// prerequisites before any work starts.
type Checker interface {
	Check() error
}

// RemotePath is where an uploaded file lands: ~/<base name>.
func RemotePath(localPath string) string {
	return "~/" + filepath.Base(localPath)
}

// New builds the transport selected by cfg.Transport.
func New(cfg *config.Config, log logger.Logger) (Transport, error) {
	if log == nil {
		log = logger.Noop()
	}

	switch cfg.Transport {
	case "", config.TransportOpenSSH:
		return NewOpenSSH(cfg, log), nil
	case config.TransportNative:
		return NewNative(cfg, log), nil
	default:
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown transport '%s'", cfg.Transport),
			"Use 'openssh' or 'native'.")
	}
}

func uploadFailed(cause error) error {
	return errors.WrapWithCode(cause, errors.ErrTransfer,
		"Error uploading file. Check SSH connection and key.",
		"Try connecting by hand with the same key: ssh -i <key_file> <user>@<host>")
}
