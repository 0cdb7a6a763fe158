package doctor

import (
	"time"

	"github.com/sgflota/sgdeploy/internal/config"
	"github.com/sgflota/sgdeploy/internal/transport"
)

// Options selects which checks NewChecks builds.
type Options struct {
	Config    *config.Config // Nil when loading failed
	Source    string         // Config file path, empty for defaults
	ConfigErr error
	KeyPath   string // Key file resolved against the project directory

	// Runner opens sessions on the host. Remote checks are skipped when it
	// is nil or Offline is set.
	Runner  transport.Runner
	Offline bool
	Timeout time.Duration
}

// NewChecks builds the checks for one doctor run, in display order.
func NewChecks(opts Options) []Check {
	checks := []Check{&ConfigCheck{Source: opts.Source, Err: opts.ConfigErr}}
	cfg := opts.Config
	if cfg == nil {
		return checks
	}

	checks = append(checks, &KeyFileCheck{Path: opts.KeyPath, Display: cfg.KeyFile})

	switch cfg.Transport {
	case config.TransportNative:
		checks = append(checks, &SSHAgentCheck{})
	default:
		checks = append(checks, &BinaryCheck{Binary: "scp"}, &BinaryCheck{Binary: "ssh"})
	}

	if opts.Offline || opts.Runner == nil {
		return checks
	}

	return append(checks,
		&ConnectionCheck{Destination: cfg.Destination(), Runner: opts.Runner, Timeout: opts.Timeout},
		&HostToolsCheck{Tools: HostTools(cfg), Runner: opts.Runner, Timeout: opts.Timeout},
		&RemoteDirCheck{Dir: cfg.Remote.Dir, Runner: opts.Runner, Timeout: opts.Timeout},
	)
}
