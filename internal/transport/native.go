package transport

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/sgflota/sgdeploy/internal/config"
	"github.com/sgflota/sgdeploy/internal/errors"
	"github.com/sgflota/sgdeploy/internal/logger"
	"github.com/sgflota/sgdeploy/pkg/sshutil"
)

// DialFunc opens the SSH connection used by Native.
type DialFunc func(ctx context.Context) (sshutil.SSHClient, error)

// Native uses the built-in SSH client. The connection is opened on first
// use and shared by Upload and Run.
type Native struct {
	Dial DialFunc
	Log  logger.Logger

	mu     sync.Mutex
	client sshutil.SSHClient
}

// NewNative creates a Native transport dialing the host in cfg.
func NewNative(cfg *config.Config, log logger.Logger) *Native {
	target := sshutil.Target{
		Host:    cfg.Host,
		User:    cfg.User,
		KeyFile: cfg.KeyFile,
	}
	opts := sshutil.DialOptions{
		HostKeyPolicy: cfg.HostKeyChecking,
		Timeout:       cfg.ConnectTimeout,
	}

	return &Native{
		Log: log,
		Dial: func(ctx context.Context) (sshutil.SSHClient, error) {
			log.Debug("dialing %s", cfg.Destination())
			return sshutil.Dial(ctx, target, opts)
		},
	}
}

func (n *Native) connect(ctx context.Context) (sshutil.SSHClient, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.client != nil {
		return n.client, nil
	}
	client, err := n.Dial(ctx)
	if err != nil {
		return nil, err
	}
	n.client = client
	return client, nil
}

// Upload streams localPath to ~/<name> on the host.
func (n *Native) Upload(ctx context.Context, localPath string) error {
	client, err := n.connect(ctx)
	if err != nil {
		if errors.IsCode(err, errors.ErrCancelled) {
			return err
		}
		return uploadFailed(err)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return uploadFailed(err)
	}
	defer f.Close()

	if err := client.Upload(ctx, f, RemotePath(localPath)); err != nil {
		if ctx.Err() != nil {
			return errors.WrapWithCode(ctx.Err(), errors.ErrCancelled, "Deployment cancelled.", "")
		}
		return uploadFailed(err)
	}
	return nil
}

// Run executes script in a new session on the shared connection.
func (n *Native) Run(ctx context.Context, script string, stdout, stderr io.Writer) (int, error) {
	client, err := n.connect(ctx)
	if err != nil {
		return -1, err
	}
	return client.ExecStreamContext(ctx, script, stdout, stderr)
}

// Close releases the connection if one was opened.
func (n *Native) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.client == nil {
		return nil
	}
	err := n.client.Close()
	n.client = nil
	return err
}
