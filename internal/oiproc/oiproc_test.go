package oiproc

import (
	"testing"

	"github.com/brennhill/oi-web-bridge/internal/state"
	"github.com/stretchr/testify/require"
)

func TestClassifyLine_ObservationAndFinding(t *testing.T) {
	var result Result
	classifyLine("OBSERVATION: page title is Dashboard", state.ModeShell, state.Flags{}, &result)
	classifyLine("FINDING: button missing aria-label", state.ModeShell, state.Flags{}, &result)

	require.Equal(t, []string{"page title is Dashboard"}, result.Observations)
	require.Equal(t, []string{"button missing aria-label"}, result.UIFindings)
}

func TestClassifyLine_AcceptsAllowlistedShellAction(t *testing.T) {
	var result Result
	classifyLine("cmd: ls -la", state.ModeShell, state.Flags{}, &result)

	require.Equal(t, []string{"cmd: ls -la"}, result.Actions)
	require.Empty(t, result.UIFindings)
}

func TestClassifyLine_RejectsDestructiveAction(t *testing.T) {
	var result Result
	classifyLine("cmd: rm -rf /", state.ModeShell, state.Flags{}, &result)

	require.Empty(t, result.Actions)
	require.Len(t, result.UIFindings, 1)
	require.Contains(t, result.UIFindings[0], "rejected:")
}

func TestClassifyLine_IgnoresUnrecognizedLine(t *testing.T) {
	var result Result
	classifyLine("just some narration text", state.ModeShell, state.Flags{}, &result)

	require.Empty(t, result.Actions)
	require.Empty(t, result.Observations)
	require.Empty(t, result.UIFindings)
}
