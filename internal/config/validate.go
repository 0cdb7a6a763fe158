package config

import (
	"fmt"
	"strings"

	"github.com/sgflota/sgdeploy/internal/errors"
)

// Validate checks the config for structural errors. It never touches the
// filesystem; key file existence is checked when a deploy starts.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but sgdeploy only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade sgdeploy or lower the version field.")
	}

	required := []struct {
		field string
		value string
	}{
		{"host", cfg.Host},
		{"user", cfg.User},
		{"key_file", cfg.KeyFile},
		{"archive_name", cfg.ArchiveName},
		{"remote.dir", cfg.Remote.Dir},
		{"remote.process.name", cfg.Remote.Process.Name},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("'%s' can't be empty", r.field),
				fmt.Sprintf("Set %s in %s or remove it to use the default.", r.field, ConfigFileName))
		}
	}

	if strings.ContainsAny(cfg.ArchiveName, `/\`) {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Archive name '%s' contains a path separator", cfg.ArchiveName),
			"Use a plain file name like deploy_package.tar.gz.")
	}

	if strings.ContainsAny(cfg.Remote.Process.Name, " \t\n'\"") {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Process name '%s' contains whitespace or quotes", cfg.Remote.Process.Name),
			"Use a simple name like sgflota.")
	}

	if name, ok := cfg.Remote.Process.StartName(); ok && name != cfg.Remote.Process.Name {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("remote.process.start registers '%s' but remote.process.name is '%s'", name, cfg.Remote.Process.Name),
			"Use the same name in both, or remove start to derive it from the name.")
	}

	switch cfg.Transport {
	case TransportOpenSSH, TransportNative:
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown transport '%s'", cfg.Transport),
			fmt.Sprintf("Use '%s' or '%s'.", TransportOpenSSH, TransportNative))
	}

	switch cfg.HostKeyChecking {
	case HostKeyNo, HostKeyAcceptNew, HostKeyYes:
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown host_key_checking mode '%s'", cfg.HostKeyChecking),
			fmt.Sprintf("Use '%s', '%s', or '%s'.", HostKeyNo, HostKeyAcceptNew, HostKeyYes))
	}

	if cfg.ConnectTimeout < 0 {
		return errors.New(errors.ErrConfig,
			"connect_timeout can't be negative",
			"Use 0 to wait forever, or a duration like 10s.")
	}

	return nil
}
