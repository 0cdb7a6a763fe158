package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// DividerWidth is the default width for divider lines.
const DividerWidth = 64

// PhaseDisplay renders deployment stage status to an output writer.
type PhaseDisplay struct {
	w io.Writer

	// pending is set while a progress line is waiting to be overwritten.
	pending bool
}

// NewPhaseDisplay creates a new phase display writing to w.
// A nil writer discards everything, which is how --quiet is implemented.
func NewPhaseDisplay(w io.Writer) *PhaseDisplay {
	if w == nil {
		w = io.Discard
	}
	return &PhaseDisplay{w: w}
}

// RenderProgress renders a stage in progress without a trailing newline.
// Shows: ◐ Creating archive: deploy_package.tar.gz...
func (pd *PhaseDisplay) RenderProgress(name string) {
	style := lipgloss.NewStyle().Foreground(ColorSecondary)
	fmt.Fprintf(pd.w, "\r%s %s...", style.Render(SymbolProgress), name)
	pd.pending = true
}

// RenderStart renders a stage header on its own line, for stages whose
// output streams below it.
// Shows: ◐ Executing remote deployment commands...
func (pd *PhaseDisplay) RenderStart(name string) {
	pd.clearLine()
	style := lipgloss.NewStyle().Foreground(ColorSecondary)
	fmt.Fprintf(pd.w, "%s %s...\n", style.Render(SymbolProgress), name)
}

// RenderSuccess renders a completed stage.
// Shows: ● Archive created (0.3s)
func (pd *PhaseDisplay) RenderSuccess(name string, duration time.Duration) {
	pd.clearLine()
	fmt.Fprintln(pd.w, FormatPhase(SymbolComplete, ColorSuccess, name, formatDuration(duration)))
}

// RenderFailed renders a failed stage. The error itself is printed by the
// caller, once, at the top level.
// Shows: ✗ Upload failed (2.3s)
func (pd *PhaseDisplay) RenderFailed(name string, duration time.Duration) {
	pd.clearLine()
	fmt.Fprintln(pd.w, FormatPhase(SymbolFail, ColorError, name, formatDuration(duration)))
}

// RenderSkipped renders a skipped stage.
// Shows: ⊘ Upload (dry run)
func (pd *PhaseDisplay) RenderSkipped(name string, reason string) {
	pd.clearLine()

	symbolStyle := lipgloss.NewStyle().Foreground(ColorWarning)
	reasonStyle := lipgloss.NewStyle().Foreground(ColorMuted)

	if reason != "" {
		fmt.Fprintf(pd.w, "%s %s %s\n", symbolStyle.Render(SymbolSkipped), name, reasonStyle.Render("("+reason+")"))
		return
	}
	fmt.Fprintf(pd.w, "%s %s\n", symbolStyle.Render(SymbolSkipped), name)
}

// RenderSubStatus renders an indented detail line, such as an archive entry.
func (pd *PhaseDisplay) RenderSubStatus(symbol string, name string, status string) {
	style := lipgloss.NewStyle().Foreground(ColorMuted)
	if status == "" {
		fmt.Fprintf(pd.w, "  %s %s\n", style.Render(symbol), name)
		return
	}
	fmt.Fprintf(pd.w, "  %s %s %s\n", style.Render(symbol), name, style.Render(status))
}

// Banner renders the closing line of a deployment.
// Shows: ✅ Deployment successful! or ❌ Deployment failed during remote execution.
func (pd *PhaseDisplay) Banner(success bool, message string) {
	pd.clearLine()
	if success {
		style := lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
		fmt.Fprintf(pd.w, "\n%s\n", style.Render("✅ "+message))
		return
	}
	style := lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	fmt.Fprintf(pd.w, "\n%s\n", style.Render("❌ "+message))
}

// Divider renders a horizontal line to separate stages from remote output.
// Uses thick box-drawing characters: ━━━━━━━━━━━━━━━━━
func (pd *PhaseDisplay) Divider() {
	pd.clearLine()
	fmt.Fprintf(pd.w, "%s\n", FormatDivider(DividerWidth))
}

// CommandPrompt renders a command line.
// Shows: $ mkdir -p ~/SGflota
func (pd *PhaseDisplay) CommandPrompt(cmd string) {
	style := lipgloss.NewStyle().Foreground(ColorMuted)
	fmt.Fprintf(pd.w, "%s %s\n", style.Render("$"), cmd)
}

// clearLine wipes a pending progress line so the next render replaces it.
func (pd *PhaseDisplay) clearLine() {
	if !pd.pending {
		return
	}
	fmt.Fprint(pd.w, "\r"+strings.Repeat(" ", 80)+"\r")
	pd.pending = false
}

// FormatPhase returns a formatted phase line as a string.
func FormatPhase(symbol string, symbolColor lipgloss.Color, name string, timing string) string {
	symbolStyle := lipgloss.NewStyle().Foreground(symbolColor)
	timingStyle := lipgloss.NewStyle().Foreground(ColorMuted)

	if timing == "" {
		return fmt.Sprintf("%s %s", symbolStyle.Render(symbol), name)
	}
	return fmt.Sprintf("%s %s %s", symbolStyle.Render(symbol), name, timingStyle.Render(timing))
}

// FormatDivider returns a divider line as a string.
func FormatDivider(width int) string {
	style := lipgloss.NewStyle().Foreground(ColorMuted)
	return style.Render(strings.Repeat("━", width))
}

// formatDuration formats a duration for display (e.g., "0.3s", "1.2s").
func formatDuration(d time.Duration) string {
	secs := d.Seconds()
	if secs < 0.1 {
		return fmt.Sprintf("%.2fs", secs)
	}
	return fmt.Sprintf("%.1fs", secs)
}
