package cli

import (
	"fmt"
	"io"

	"github.com/sgflota/sgdeploy/internal/remote"
	"github.com/spf13/cobra"
)

var (
	scriptFlags DeployFlags
	scriptSteps bool
)

// scriptCmd prints the remote command chain without running anything.
var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Print the remote deployment command",
	Long: `Print the single command line that a deployment runs over SSH.

With --steps, each link of the chain is printed on its own line instead.

Examples:
  sgdeploy script
  sgdeploy script --steps`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return scriptCommand(cmd.OutOrStdout(), scriptFlags, scriptSteps)
	},
}

func init() {
	AddOverrideFlags(scriptCmd, &scriptFlags)
	scriptCmd.Flags().BoolVar(&scriptSteps, "steps", false, "print one command per line")
	rootCmd.AddCommand(scriptCmd)
}

func scriptCommand(w io.Writer, flags DeployFlags, steps bool) error {
	workDir, err := workingDir()
	if err != nil {
		return err
	}

	cfg, err := loadConfig(workDir, flags)
	if err != nil {
		return err
	}

	script := remote.NewScript(cfg)
	if !steps {
		fmt.Fprintln(w, script.String())
		return nil
	}
	for _, c := range script.Commands() {
		fmt.Fprintln(w, c)
	}
	return nil
}
