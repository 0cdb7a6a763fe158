package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/sgflota/sgdeploy/internal/config"
	"github.com/sgflota/sgdeploy/internal/errors"
	"github.com/sgflota/sgdeploy/internal/logger"
	"github.com/sgflota/sgdeploy/internal/ui"
	"github.com/sgflota/sgdeploy/pkg/sshutil"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// InitOptions holds options for the init command.
type InitOptions struct {
	Dir            string // Directory to write the config into
	Host           string // Pre-specified host or SSH config alias
	User           string
	KeyFile        string
	RemoteDir      string
	Transport      string
	Overwrite      bool // Overwrite existing config without asking
	NonInteractive bool // Skip prompts, use flags and defaults
}

var initOpts InitOptions

// initCmd creates a new .sgdeploy.yaml configuration
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create " + config.ConfigFileName + " configuration",
	Long: `Write a config file for the current project.

Starts from the built-in production defaults. On a terminal each value is
prompted for, with host aliases from ~/.ssh/config offered as suggestions.
Without a terminal, or with --non-interactive, flags and defaults are used.

Examples:
  sgdeploy init
  sgdeploy init --non-interactive --host prod --key-file ~/.ssh/prod.pem
  sgdeploy init --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Init(initOpts, cmd.OutOrStdout())
	},
}

func init() {
	initCmd.Flags().StringVar(&initOpts.Host, "host", "", "remote host or SSH config alias")
	initCmd.Flags().StringVar(&initOpts.User, "user", "", "remote user")
	initCmd.Flags().StringVar(&initOpts.KeyFile, "key-file", "", "private key file")
	initCmd.Flags().StringVar(&initOpts.RemoteDir, "remote-dir", "", "application directory on the host")
	initCmd.Flags().StringVar(&initOpts.Transport, "transport", "", "openssh or native")
	initCmd.Flags().BoolVarP(&initOpts.Overwrite, "force", "f", false, "overwrite existing config")
	initCmd.Flags().BoolVar(&initOpts.NonInteractive, "non-interactive", false, "never prompt")
	rootCmd.AddCommand(initCmd)
}

// stdinIsTerminal is swapped out in tests.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Init creates a new .sgdeploy.yaml configuration file.
func Init(opts InitOptions, out io.Writer) error {
	configPath := filepath.Join(opts.Dir, config.ConfigFileName)
	interactive := !opts.NonInteractive && stdinIsTerminal()

	if _, err := os.Stat(configPath); err == nil && !opts.Overwrite {
		if !interactive {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Config file already exists: %s", configPath),
				"Use --force to overwrite")
		}

		var overwrite bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Config file '%s' already exists. Overwrite?", config.ConfigFileName)).
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return formError(err)
		}
		if !overwrite {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	cfg := initialConfig(opts)

	if interactive {
		if err := promptConfig(cfg); err != nil {
			return err
		}
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := config.Write(configPath, cfg, true); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s Created %s\n\n", ui.SymbolSuccess, configPath)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  sgdeploy script     - Review the remote command chain")
	fmt.Fprintln(out, "  sgdeploy --dry-run  - See what the archive would ship")
	fmt.Fprintln(out, "  sgdeploy            - Deploy")

	return nil
}

// initialConfig is the defaults with any flag values applied.
func initialConfig(opts InitOptions) *config.Config {
	cfg := config.DefaultConfig()
	if opts.Host != "" {
		cfg.Host = opts.Host
	}
	if opts.User != "" {
		cfg.User = opts.User
	}
	if opts.KeyFile != "" {
		cfg.KeyFile = opts.KeyFile
	}
	if opts.RemoteDir != "" {
		cfg.Remote.Dir = opts.RemoteDir
	}
	if opts.Transport != "" {
		cfg.Transport = opts.Transport
	}
	return cfg
}

// promptConfig asks for the connection settings, prefilled from cfg.
func promptConfig(cfg *config.Config) error {
	entries, err := sshutil.ParseSSHConfig()
	if err != nil {
		logger.Default().Debug("no ssh config suggestions: %v", err)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Host").
				Description("Hostname, IP, or an alias from ~/.ssh/config").
				Suggestions(sshutil.Aliases(entries)).
				Value(&cfg.Host).
				Validate(required("host")),
			huh.NewInput().
				Title("User").
				Value(&cfg.User).
				Validate(required("user")),
			huh.NewInput().
				Title("Key file").
				Description("Private key used for the copy and the remote session").
				Value(&cfg.KeyFile).
				Validate(required("key file")),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Remote directory").
				Description("Where the app is extracted and built; keep ~ for the remote home").
				Value(&cfg.Remote.Dir).
				Validate(required("remote directory")),
			huh.NewInput().
				Title("pm2 process name").
				Value(&cfg.Remote.Process.Name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("process name is required")
					}
					if strings.ContainsAny(s, " \t\n'\"") {
						return fmt.Errorf("process name cannot contain whitespace or quotes")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Transport").
				Options(
					huh.NewOption("openssh (scp and ssh binaries)", config.TransportOpenSSH),
					huh.NewOption("native (built-in SSH client)", config.TransportNative),
				).
				Value(&cfg.Transport),
		),
	)

	if err := form.Run(); err != nil {
		return formError(err)
	}
	return nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func formError(err error) error {
	if stderrors.Is(err, huh.ErrUserAborted) {
		return errors.WrapWithCode(err, errors.ErrCancelled, "Cancelled.", "")
	}
	return errors.WrapWithCode(err, errors.ErrConfig,
		"Failed to get user input",
		"Check terminal compatibility or use --non-interactive flag")
}
