// Package ui renders sgdeploy's terminal output.
//
// PhaseDisplay prints one line per deployment stage, using the Lip Gloss
// library for colors:
//
//	pd := ui.NewPhaseDisplay(os.Stdout)
//	pd.RenderProgress("Creating archive: deploy_package.tar.gz")
//	pd.RenderSuccess("Archive created", 300*time.Millisecond)
//	pd.Divider()
//	pd.Banner(true, "Deployment successful!")
//
// Colors are ANSI codes so the output follows the terminal theme.
// DisableColors switches to plain text for --no-color.
package ui
