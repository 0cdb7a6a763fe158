package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/sgflota/sgdeploy/internal/config"
	"github.com/sgflota/sgdeploy/internal/deploy"
	"github.com/sgflota/sgdeploy/internal/doctor"
	"github.com/sgflota/sgdeploy/internal/errors"
	"github.com/sgflota/sgdeploy/internal/logger"
	"github.com/sgflota/sgdeploy/internal/transport"
	"github.com/sgflota/sgdeploy/internal/ui"
	"github.com/spf13/cobra"
)

var (
	doctorFlags   DeployFlags
	doctorOffline bool
	doctorFix     bool
)

// doctorCmd diagnoses everything a deployment depends on.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the config, key, tools and host before deploying",
	Long: `Run the checks a deployment depends on and report what is wrong.

Local checks cover the config file, the key file and the programs the
transport needs. Remote checks open a session on the host and look for tar,
the build tools, pm2 and the application directory.

Examples:
  sgdeploy doctor
  sgdeploy doctor --offline
  sgdeploy doctor --fix`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doctorCommand(cmd.OutOrStdout(), doctorFlags, doctorOffline, doctorFix)
	},
}

func init() {
	AddOverrideFlags(doctorCmd, &doctorFlags)
	doctorCmd.Flags().BoolVar(&doctorOffline, "offline", false, "skip the checks that contact the host")
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "attempt automatic fixes where possible")
	rootCmd.AddCommand(doctorCmd)
}

func doctorCommand(w io.Writer, flags DeployFlags, offline, fix bool) error {
	workDir, err := workingDir()
	if err != nil {
		return err
	}

	// Config errors are reported as a failed check rather than aborting.
	source, _ := config.Find(Config(), workDir)
	cfg, cfgErr := loadConfig(workDir, flags)

	opts := doctor.Options{
		Config:    cfg,
		Source:    source,
		ConfigErr: cfgErr,
		Offline:   offline,
	}

	if cfg != nil {
		opts.KeyPath = (&deploy.Pipeline{Config: cfg, WorkDir: workDir}).KeyPath()
		if cfg.ConnectTimeout > 0 {
			opts.Timeout = 2 * cfg.ConnectTimeout
		}
		if !offline {
			t, err := transport.New(cfg, logger.Default())
			if err != nil {
				return err
			}
			defer t.Close()
			opts.Runner = t
		}
	}

	checks := doctor.NewChecks(opts)
	results := doctor.RunAll(checks)

	if fix {
		fixed, err := doctor.FixAll(checks, results)
		for _, name := range fixed {
			logger.Default().Info("fixed %s", name)
		}
		// Re-run so the report shows the state after fixing.
		results = doctor.RunAll(checks)
		if err != nil {
			renderDoctor(w, checks, results)
			return errors.WrapWithCode(err, errors.ErrConfig, "Automatic fix failed", "Apply the suggested fix by hand")
		}
	}

	renderDoctor(w, checks, results)

	if doctor.HasFailures(results) {
		return errors.NewExitError(1)
	}
	return nil
}

// renderDoctor prints the results grouped by category, in check order.
func renderDoctor(w io.Writer, checks []doctor.Check, results []doctor.CheckResult) {
	headerStyle := lipgloss.NewStyle().Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(ui.ColorMuted)

	var order []string
	grouped := make(map[string][]int)
	for i, check := range checks {
		cat := check.Category()
		if _, ok := grouped[cat]; !ok {
			order = append(order, cat)
		}
		grouped[cat] = append(grouped[cat], i)
	}

	fmt.Fprintln(w)
	for _, cat := range order {
		fmt.Fprintln(w, headerStyle.Render(cat))
		for _, idx := range grouped[cat] {
			r := results[idx]
			fmt.Fprintf(w, "  %s %s\n", statusSymbol(r.Status), r.Message)
			if r.Suggestion != "" && r.Status != doctor.StatusPass {
				fmt.Fprintf(w, "    %s\n", mutedStyle.Render(r.Suggestion))
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, ui.FormatDivider(64))
	summary := doctor.Summary(results)
	if fixable := countFixable(results); fixable > 0 {
		summary += fmt.Sprintf(" (%d fixable with --fix)", fixable)
	}
	fmt.Fprintln(w, summary)
}

func statusSymbol(s doctor.CheckStatus) string {
	switch s {
	case doctor.StatusPass:
		return lipgloss.NewStyle().Foreground(ui.ColorSuccess).Render(ui.SymbolSuccess)
	case doctor.StatusWarn:
		return lipgloss.NewStyle().Foreground(ui.ColorWarning).Render("!")
	default:
		return lipgloss.NewStyle().Foreground(ui.ColorError).Render(ui.SymbolFail)
	}
}

func countFixable(results []doctor.CheckResult) int {
	n := 0
	for _, r := range results {
		if r.Fixable && r.Status != doctor.StatusPass {
			n++
		}
	}
	return n
}
