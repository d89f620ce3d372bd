package webengine

import (
	"fmt"
	"strings"

	"github.com/brennhill/oi-web-bridge/internal/state"
)

// WriteWindowEvidence writes the step_<N>_window.txt side-file GUI window
// steps emit alongside their screenshot, per spec §4.4 leaf 5.
func WriteWindowEvidence(layout *state.RunLayout, stepIndex int, titles []string) (string, error) {
	path := layout.EvidencePath(stepIndex, "window", "txt")
	content := strings.Join(titles, "\n")
	return path, state.AtomicWrite(path, []byte(content))
}

// baselineEvidencePath is the bootstrap-time step_0_context screenshot
// spec §4.4's "Bootstrap" paragraph requires.
func baselineEvidencePath(layout *state.RunLayout) string {
	return layout.EvidencePath(0, "context", "png")
}

func formatConsoleError(level, text string) string {
	return fmt.Sprintf("[%s] %s", level, text)
}

func formatNetworkFinding(method string, status int, url string) string {
	return fmt.Sprintf("%s %d %s", method, status, url)
}
