package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/sgflota/sgdeploy/internal/util"
)

// CurrentConfigVersion is the schema version for the config file.
const CurrentConfigVersion = 1

// Transport names accepted in the transport field.
const (
	TransportOpenSSH = "openssh"
	TransportNative  = "native"
)

// Host key checking modes, named after the OpenSSH StrictHostKeyChecking values.
const (
	HostKeyNo        = "no"
	HostKeyAcceptNew = "accept-new"
	HostKeyYes       = "yes"
)

// DefaultUploadsMarker is the path fragment for uploaded user content.
// Entries whose path contains it are left out of the archive.
const DefaultUploadsMarker = "public/uploads"

// BaseExcludes are never shipped, regardless of configuration.
var BaseExcludes = []string{
	"node_modules",
	".next",
	".git",
	".vscode",
	".idea",
	".env",
	"scripts/deploy.py",
}

// Config represents a complete .sgdeploy.yaml file.
type Config struct {
	Version int `yaml:"version" mapstructure:"version"`

	// Host is the remote address, or an alias from ~/.ssh/config.
	Host string `yaml:"host" mapstructure:"host"`

	// User is the remote login.
	User string `yaml:"user" mapstructure:"user"`

	// KeyFile is the private key used for both the copy and the remote session.
	KeyFile string `yaml:"key_file" mapstructure:"key_file"`

	// ArchiveName is the local archive file, also its name in the remote home.
	ArchiveName string `yaml:"archive_name" mapstructure:"archive_name"`

	// Transport is "openssh" (scp/ssh binaries) or "native" (built-in client).
	Transport string `yaml:"transport" mapstructure:"transport"`

	// HostKeyChecking is "no", "accept-new", or "yes".
	HostKeyChecking string `yaml:"host_key_checking" mapstructure:"host_key_checking"`

	// ConnectTimeout bounds connection setup for either transport. Zero waits forever.
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`

	// Exclude lists extra top-level names or relative paths to leave out.
	Exclude []string `yaml:"exclude" mapstructure:"exclude"`

	// UploadsMarker drops any entry whose path contains it.
	UploadsMarker string `yaml:"uploads_marker" mapstructure:"uploads_marker"`

	Remote RemoteConfig `yaml:"remote" mapstructure:"remote"`
}

// RemoteConfig describes the provisioning commands run on the host.
type RemoteConfig struct {
	// Dir is the application directory. Keep ~ so the remote shell expands it.
	Dir string `yaml:"dir" mapstructure:"dir"`

	Install  string `yaml:"install" mapstructure:"install"`
	Generate string `yaml:"generate" mapstructure:"generate"`
	Build    string `yaml:"build" mapstructure:"build"`

	Process ProcessConfig `yaml:"process" mapstructure:"process"`
}

// ProcessConfig names the pm2-managed process.
type ProcessConfig struct {
	Name string `yaml:"name" mapstructure:"name"`

	// Start is everything after "pm2 start" when the process is not registered
	// yet. Empty means StartArgs derives it from Name.
	Start string `yaml:"start,omitempty" mapstructure:"start"`
}

// StartArgs returns Start, or "npm --name 'NAME' -- start" when it is unset,
// so the started process is always registered under Name.
func (p ProcessConfig) StartArgs() string {
	if strings.TrimSpace(p.Start) != "" {
		return p.Start
	}
	return "npm --name " + util.ShellQuote(p.Name) + " -- start"
}

// StartName returns the value given to --name in Start, if any.
func (p ProcessConfig) StartName() (string, bool) {
	fields := strings.Fields(p.StartArgs())
	for i, f := range fields {
		if f == "--name" && i+1 < len(fields) {
			return strings.Trim(fields[i+1], `'"`), true
		}
		if v, ok := strings.CutPrefix(f, "--name="); ok {
			return strings.Trim(v, `'"`), true
		}
	}
	return "", false
}

// DefaultConfig returns the configuration of the SGflota production host.
func DefaultConfig() *Config {
	return &Config{
		Version:         CurrentConfigVersion,
		Host:            "ec2-13-48-67-55.eu-north-1.compute.amazonaws.com",
		User:            "ubuntu",
		KeyFile:         "jorge-aws.pem",
		ArchiveName:     "deploy_package.tar.gz",
		Transport:       TransportOpenSSH,
		HostKeyChecking: HostKeyNo,
		Exclude:         []string{},
		UploadsMarker:   DefaultUploadsMarker,
		Remote: RemoteConfig{
			Dir:      "~/SGflota",
			Install:  "npm install",
			Generate: "npx prisma generate",
			Build:    "npm run build",
			Process: ProcessConfig{
				Name:  "sgflota",
			},
		},
	}
}

// Destination returns user@host.
func (c *Config) Destination() string {
	if c.User == "" {
		return c.Host
	}
	return c.User + "@" + c.Host
}

// ExclusionNames returns every name or path kept out of the archive: the
// base set, the archive itself, the key file, and configured extras.
func (c *Config) ExclusionNames() []string {
	names := make([]string, 0, len(BaseExcludes)+len(c.Exclude)+2)
	names = append(names, BaseExcludes...)
	if c.ArchiveName != "" {
		names = append(names, c.ArchiveName)
	}
	if c.KeyFile != "" {
		names = append(names, filepath.Base(c.KeyFile))
	}
	names = append(names, c.Exclude...)
	return names
}
