// Package humanout renders the bridge's `status`/`live`/`run` output:
// colorized via lipgloss when stdout is a TTY, plain text otherwise.
// Generalizes the teacher's cmd/dev-console/cli_output.go human/json
// dual-format split the same way, replacing ANSI-free "[OK]"/"[Error]"
// prefixes with lipgloss styles keyed off the bridge's own state colours
// (internal/registry.ControlColor) when a terminal is attached.
package humanout

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/brennhill/oi-web-bridge/internal/registry"
	"github.com/brennhill/oi-web-bridge/internal/report"
	"github.com/brennhill/oi-web-bridge/internal/state"
)

var (
	styleRed    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleOrange = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	styleBlue   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	styleGreen  = lipgloss.NewStyle().Foreground(lipgloss.Color("35")).Bold(true)
	styleGray   = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	styleBold   = lipgloss.NewStyle().Bold(true)
)

// IsTTY reports whether w is an attached terminal, the same predicate
// the teacher's CLI uses to pick between human and machine-readable
// output.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}

func colorStyle(c registry.ControlColor) lipgloss.Style {
	switch c {
	case registry.ColorRed:
		return styleRed
	case registry.ColorOrange:
		return styleOrange
	case registry.ColorBlue:
		return styleBlue
	case registry.ColorGreen:
		return styleGreen
	default:
		return styleGray
	}
}

// WriteControlState renders a session's derived control state as a
// single colour-coded line, or a plain "[color] label" line when w is
// not a TTY.
func WriteControlState(w io.Writer, cs registry.ControlState) {
	if IsTTY(w) {
		fmt.Fprintln(w, colorStyle(cs.Color).Render(string(cs.Color))+" "+cs.Label)
		return
	}
	fmt.Fprintf(w, "[%s] %s\n", cs.Color, cs.Label)
}

// WriteStatusTable renders the global run status index as a table when w
// is a TTY, or tab-separated plain text otherwise.
func WriteStatusTable(w io.Writer, idx state.StatusIndex) {
	tty := IsTTY(w)
	for _, r := range idx.Runs {
		label := fmt.Sprintf("%s\t%s\t%s\t%s", r.RunID, r.Mode, r.Phase, r.Result)
		if !tty {
			fmt.Fprintln(w, label)
			continue
		}
		style := styleGray
		switch r.Phase {
		case state.PhaseRunning:
			style = styleBlue
		case state.PhaseCompleted:
			style = styleGreen
		case state.PhaseFailed:
			style = styleRed
		}
		fmt.Fprintln(w, style.Render(label))
	}
}

// WriteReportSummary renders a finished run's report.json as a short
// human summary line plus finding counts.
func WriteReportSummary(w io.Writer, r report.OIReport) {
	resultStyle := styleGreen
	switch r.Result {
	case report.ResultPartial:
		resultStyle = styleOrange
	case report.ResultFailed:
		resultStyle = styleRed
	}
	if IsTTY(w) {
		fmt.Fprintf(w, "%s %s — %d action(s), %d finding(s)\n",
			styleBold.Render(r.TaskID), resultStyle.Render(string(r.Result)),
			len(r.Actions), len(r.UIFindings))
		return
	}
	fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", r.TaskID, r.Result, len(r.Actions), len(r.UIFindings))
}
