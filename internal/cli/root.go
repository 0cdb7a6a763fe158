package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sgflota/sgdeploy/internal/config"
	"github.com/sgflota/sgdeploy/internal/errors"
	"github.com/sgflota/sgdeploy/internal/logger"
	"github.com/sgflota/sgdeploy/internal/ui"
	"github.com/sgflota/sgdeploy/pkg/sshutil"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

// Global flags
var (
	cfgFile string
	verbose bool
	quiet   bool
	noColor bool

	rootDeployFlags DeployFlags
)

// rootCmd runs the full deployment when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "sgdeploy",
	Short: "Package, upload, and roll out the SGflota app",
	Long: `Package the current directory, copy it to the production host, and run
the remote build and restart chain.

The archive leaves out node_modules, .next, .git, editor folders, .env,
the key file, and uploaded user content under public/uploads. On the host
it is extracted into the app directory, dependencies are installed, the
Prisma client is generated, the app is built, and the pm2 process is
reloaded (or started the first time).

Examples:
  sgdeploy
  sgdeploy --dry-run
  sgdeploy --transport native --connect-timeout 15s
  sgdeploy init`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupOutput()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return deployCommand(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), rootDeployFlags)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./"+config.ConfigFileName+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logs")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "hide stage lines; remote output is still shown")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	AddDeployFlags(rootCmd, &rootDeployFlags)
}

// Config returns the --config flag value.
func Config() string {
	return cfgFile
}

// setupOutput applies --no-color and the log level before any command runs.
func setupOutput() {
	if noColor || os.Getenv("NO_COLOR") != "" {
		ui.DisableColors()
	}

	if verbose {
		logger.SetDefault(logger.NewZapLogger(os.Stderr, zapcore.DebugLevel, "sgdeploy"))
		return
	}
	logger.SetDefault(logger.NewEnvLogger("sgdeploy"))
}

// Execute runs the root command and exits with the mapped status:
// 0 on success, 130 when interrupted, 1 (or a carried code) otherwise.
// An interrupted run still removes its archive, but exits 130 rather than
// 0 so callers and CI can tell a cancelled deploy from a finished one.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	sshutil.CloseAgent()

	reportError(os.Stderr, err)
	os.Exit(errors.ExitCodeFor(err))
}

// reportError prints err unless it was already shown to the user.
func reportError(w io.Writer, err error) {
	if err == nil {
		return
	}
	if _, reported := errors.GetExitCode(err); reported {
		return
	}

	msg := err.Error()
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(w, msg)
}
