// Package deploy sequences a deployment: key check, archive, upload, and
// the remote command chain. The local archive never outlives a run.
package deploy

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sgflota/sgdeploy/internal/archive"
	"github.com/sgflota/sgdeploy/internal/config"
	"github.com/sgflota/sgdeploy/internal/errors"
	"github.com/sgflota/sgdeploy/internal/logger"
	"github.com/sgflota/sgdeploy/internal/remote"
	"github.com/sgflota/sgdeploy/internal/transport"
	"github.com/sgflota/sgdeploy/internal/ui"
	"github.com/sgflota/sgdeploy/internal/util"
)

// SuccessMessage is the closing banner of a successful deployment.
const SuccessMessage = "Deployment successful!"

// Pipeline holds everything one deployment needs.
type Pipeline struct {
	Config  *config.Config
	WorkDir string

	Uploader transport.Uploader
	Runner   transport.Runner

	Display *ui.PhaseDisplay
	Log     logger.Logger

	// Out and Err receive the remote session's output.
	Out io.Writer
	Err io.Writer

	// DryRun builds and lists the archive and prints the remote script,
	// without touching the network.
	DryRun bool

	// Quiet means the display is silenced, so a remote failure is returned
	// for the caller to print instead of being marked as already reported.
	Quiet bool
}

func (p *Pipeline) defaults() {
	if p.Display == nil {
		p.Display = ui.NewPhaseDisplay(nil)
	}
	if p.Log == nil {
		p.Log = logger.Noop()
	}
	if p.Out == nil {
		p.Out = io.Discard
	}
	if p.Err == nil {
		p.Err = io.Discard
	}
}

// ArchivePath is where the archive is written: the working directory.
func (p *Pipeline) ArchivePath() string {
	return filepath.Join(p.WorkDir, p.Config.ArchiveName)
}

// KeyPath resolves the key file against the working directory.
func (p *Pipeline) KeyPath() string {
	if filepath.IsAbs(p.Config.KeyFile) {
		return p.Config.KeyFile
	}
	return filepath.Join(p.WorkDir, p.Config.KeyFile)
}

// Run executes the deployment. The archive file is removed on every path
// out of Run once it may exist. Steps that already ran on the host are
// never rolled back.
func (p *Pipeline) Run(ctx context.Context) error {
	p.defaults()

	if err := p.checkKey(); err != nil {
		return err
	}

	if checker, ok := p.Uploader.(transport.Checker); ok && !p.DryRun {
		if err := checker.Check(); err != nil {
			return err
		}
	}

	if err := checkCancelled(ctx); err != nil {
		return err
	}

	dest := p.ArchivePath()
	defer p.cleanup(dest)

	res, err := p.buildArchive(ctx, dest)
	if err != nil {
		return err
	}

	if p.DryRun {
		return p.preview(res)
	}

	if err := checkCancelled(ctx); err != nil {
		return err
	}
	if err := p.upload(ctx, dest); err != nil {
		return err
	}

	if err := checkCancelled(ctx); err != nil {
		return err
	}
	return p.execute(ctx)
}

func (p *Pipeline) checkKey() error {
	path := p.KeyPath()
	p.Log.Debug("checking key file %s", path)

	info, err := os.Stat(path)
	if err == nil && !info.IsDir() {
		return nil
	}
	return errors.New(errors.ErrConfig,
		fmt.Sprintf("Key file '%s' not found.", p.Config.KeyFile),
		"Put the key next to the project or set key_file in "+config.ConfigFileName+".")
}

func (p *Pipeline) buildArchive(ctx context.Context, dest string) (*archive.Result, error) {
	start := time.Now()
	p.Display.RenderProgress("Creating archive: " + p.Config.ArchiveName)

	res, err := archive.Create(ctx, archive.Options{
		Root: p.WorkDir,
		Dest: dest,
		Exclusions: archive.ExclusionSet{
			Names:  p.Config.ExclusionNames(),
			Marker: p.Config.UploadsMarker,
		},
		Logger: p.Log,
	})
	if err != nil {
		p.Display.RenderFailed("Archive failed", time.Since(start))
		return nil, p.fail(err)
	}

	p.Display.RenderSuccess(fmt.Sprintf("Archive created: %d %s, %s",
		res.Files, util.Pluralize(res.Files, "file", "files"), util.Bytes(res.Bytes)), time.Since(start))
	return res, nil
}

func (p *Pipeline) upload(ctx context.Context, local string) error {
	start := time.Now()
	p.Display.RenderProgress(fmt.Sprintf("Uploading %s to %s", p.Config.ArchiveName, p.Config.Host))

	if err := p.Uploader.Upload(ctx, local); err != nil {
		p.Display.RenderFailed("Upload failed", time.Since(start))
		if ctx.Err() != nil && !errors.IsCode(err, errors.ErrCancelled) {
			return cancelledErr(ctx.Err())
		}
		return p.fail(err)
	}

	p.Display.RenderSuccess("Uploaded to "+transport.RemotePath(local), time.Since(start))
	return nil
}

func (p *Pipeline) execute(ctx context.Context) error {
	start := time.Now()
	script := remote.NewScript(p.Config)
	p.Log.Debug("remote script: %s", script.String())

	p.Display.RenderStart("Executing remote deployment commands")
	p.Display.Divider()
	err := remote.Execute(ctx, p.Runner, script, p.Out, p.Err)
	p.Display.Divider()

	if err == nil {
		p.Display.RenderSuccess("Remote deployment finished", time.Since(start))
		p.Display.Banner(true, SuccessMessage)
		return nil
	}

	p.Display.RenderFailed("Remote deployment stopped", time.Since(start))
	return p.fail(err)
}

// fail prints the failure banner for a stage error and marks it as
// reported. Cancellations and quiet runs return err unchanged so the
// caller prints it once.
func (p *Pipeline) fail(err error) error {
	if errors.IsCode(err, errors.ErrCancelled) || p.Quiet {
		return err
	}

	message, cause, suggestion := "Deployment failed.", err, ""
	var sgErr *errors.Error
	if stderrors.As(err, &sgErr) {
		message, cause, suggestion = sgErr.Message, sgErr.Cause, sgErr.Suggestion
	}

	p.Display.Banner(false, message)
	if cause != nil {
		p.Display.RenderSubStatus(ui.SymbolFail, firstLine(cause.Error()), "")
	}
	if suggestion != "" {
		p.Display.RenderSubStatus(ui.SymbolPending, suggestion, "")
	}
	return errors.Reported(err, 1)
}

// firstLine returns the first non-empty line of an error message without
// the leading failure symbol of a nested structured error.
func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimPrefix(strings.TrimSpace(line), ui.SymbolFail+" ")
}

// preview prints what a real run would ship and execute.
func (p *Pipeline) preview(res *archive.Result) error {
	entries, err := archive.List(res.Path)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		p.Display.RenderSubStatus(ui.SymbolEntry, entry, "")
	}

	p.Display.RenderSkipped(fmt.Sprintf("Upload to %s", p.Config.Destination()), "dry run")
	p.Display.RenderSkipped("Remote deployment commands", "dry run")
	for _, cmd := range remote.NewScript(p.Config).Commands() {
		p.Display.CommandPrompt(cmd)
	}
	return nil
}

func (p *Pipeline) cleanup(path string) {
	err := os.Remove(path)
	switch {
	case err == nil:
		p.Log.Debug("removed %s", path)
	case os.IsNotExist(err):
	default:
		p.Log.Warn("couldn't remove %s: %v", path, err)
	}
}

func checkCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return cancelledErr(err)
	}
	return nil
}

func cancelledErr(cause error) error {
	return errors.WrapWithCode(cause, errors.ErrCancelled, "Deployment cancelled.", "")
}
