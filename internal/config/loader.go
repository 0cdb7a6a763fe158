package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sgflota/sgdeploy/internal/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = ".sgdeploy.yaml"
	// EnvPrefix prefixes environment overrides, e.g. SGDEPLOY_HOST.
	EnvPrefix = "SGDEPLOY"
)

// Load reads config from the specified path, layered over defaults and
// under environment overrides.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found: "+path,
				"Run 'sgdeploy init' to create one, or drop --config to use the defaults")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return parseConfig(v, path)
}

// Find locates the config file:
// 1. Explicit path (from --config flag)
// 2. .sgdeploy.yaml in workDir
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit, workDir string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	local := filepath.Join(workDir, ConfigFileName)
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}

	return "", nil
}

// LoadOrDefault loads the found config file, or the defaults (still subject
// to environment overrides) when there is none.
func LoadOrDefault(explicit, workDir string) (*Config, error) {
	path, err := Find(explicit, workDir)
	if err != nil {
		return nil, err
	}

	if path == "" {
		return parseConfig(newViper(), "environment")
	}

	return Load(path)
}

// newViper returns a viper instance with every known key defaulted, so
// environment overrides resolve even without a config file.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("host", d.Host)
	v.SetDefault("user", d.User)
	v.SetDefault("key_file", d.KeyFile)
	v.SetDefault("archive_name", d.ArchiveName)
	v.SetDefault("transport", d.Transport)
	v.SetDefault("host_key_checking", d.HostKeyChecking)
	v.SetDefault("connect_timeout", "0s")
	v.SetDefault("exclude", d.Exclude)
	v.SetDefault("uploads_marker", d.UploadsMarker)
	v.SetDefault("remote.dir", d.Remote.Dir)
	v.SetDefault("remote.install", d.Remote.Install)
	v.SetDefault("remote.generate", d.Remote.Generate)
	v.SetDefault("remote.build", d.Remote.Build)
	v.SetDefault("remote.process.name", d.Remote.Process.Name)
	v.SetDefault("remote.process.start", d.Remote.Process.Start)
	return v
}

// parseConfig converts viper config to our Config struct.
func parseConfig(v *viper.Viper, source string) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+source)
	}

	cfg.KeyFile = ExpandTilde(cfg.KeyFile)
	cfg.Remote.Dir = ExpandRemote(cfg.Remote.Dir)

	return cfg, nil
}
