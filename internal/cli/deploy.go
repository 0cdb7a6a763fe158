package cli

import (
	"context"
	"io"
	"os"

	"github.com/sgflota/sgdeploy/internal/config"
	"github.com/sgflota/sgdeploy/internal/deploy"
	"github.com/sgflota/sgdeploy/internal/errors"
	"github.com/sgflota/sgdeploy/internal/logger"
	"github.com/sgflota/sgdeploy/internal/transport"
	"github.com/sgflota/sgdeploy/internal/ui"
)

// loadConfig finds and validates the config for workDir, with flag overrides applied.
func loadConfig(workDir string, flags DeployFlags) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(Config(), workDir)
	if err != nil {
		return nil, err
	}
	if err := flags.Apply(cfg); err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func workingDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get working directory",
			"Check directory permissions")
	}
	return dir, nil
}

// newPipeline wires a pipeline for the current directory.
func newPipeline(workDir string, cfg *config.Config, t transport.Transport, stdout, stderr io.Writer, flags DeployFlags) *deploy.Pipeline {
	display := ui.NewPhaseDisplay(stdout)
	if quiet {
		display = ui.NewPhaseDisplay(nil)
	}

	return &deploy.Pipeline{
		Config:   cfg,
		WorkDir:  workDir,
		Uploader: t,
		Runner:   t,
		Display:  display,
		Log:      logger.Default(),
		Out:      stdout,
		Err:      stderr,
		DryRun:   flags.DryRun,
		Quiet:    quiet,
	}
}

// deployCommand is the implementation called by the root command.
func deployCommand(ctx context.Context, stdout, stderr io.Writer, flags DeployFlags) error {
	workDir, err := workingDir()
	if err != nil {
		return err
	}

	cfg, err := loadConfig(workDir, flags)
	if err != nil {
		return err
	}

	t, err := transport.New(cfg, logger.Default())
	if err != nil {
		return err
	}
	defer t.Close()

	return newPipeline(workDir, cfg, t, stdout, stderr, flags).Run(ctx)
}
