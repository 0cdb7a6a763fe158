package cli

import (
	"fmt"
	"time"

	"github.com/sgflota/sgdeploy/internal/config"
	"github.com/sgflota/sgdeploy/internal/errors"
	"github.com/spf13/cobra"
)

// DeployFlags holds the per-run overrides accepted by the deploy command.
type DeployFlags struct {
	Transport      string
	ConnectTimeout string
	DryRun         bool
}

// AddDeployFlags registers --transport, --connect-timeout, and --dry-run on a command.
func AddDeployFlags(cmd *cobra.Command, flags *DeployFlags) {
	AddOverrideFlags(cmd, flags)
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "build and list the archive, print the remote script, skip the network")
}

// AddOverrideFlags registers only the flags that change the loaded config.
func AddOverrideFlags(cmd *cobra.Command, flags *DeployFlags) {
	cmd.Flags().StringVar(&flags.Transport, "transport", "", "override the transport (openssh or native)")
	cmd.Flags().StringVar(&flags.ConnectTimeout, "connect-timeout", "", "override the connection timeout (e.g., 10s, 1m)")
}

// Apply writes the flag overrides into cfg.
func (f DeployFlags) Apply(cfg *config.Config) error {
	if f.Transport != "" {
		cfg.Transport = f.Transport
	}
	if f.ConnectTimeout != "" {
		d, err := ParseTimeout(f.ConnectTimeout)
		if err != nil {
			return err
		}
		cfg.ConnectTimeout = d
	}
	return nil
}

// ParseTimeout parses a timeout flag into a duration.
// Returns zero duration if the flag is empty.
func ParseTimeout(flag string) (time.Duration, error) {
	if flag == "" {
		return 0, nil
	}

	duration, err := time.ParseDuration(flag)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a valid timeout", flag),
			"Try something like 5s, 2m, or 500ms.")
	}
	return duration, nil
}
