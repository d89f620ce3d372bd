package guardrail

import (
	"testing"

	"github.com/brennhill/oi-web-bridge/internal/state"
	"github.com/stretchr/testify/require"
)

func TestCheck_DestructiveCommandRejected(t *testing.T) {
	v := Check(`cmd: rm -rf /`, state.ModeShell, state.Flags{})
	require.NotNil(t, v)
	require.Equal(t, "destructive-command", v.Rule)
}

func TestCheck_ShellAllowlistPermitsObservation(t *testing.T) {
	v := Check(`cmd: ls -la /tmp`, state.ModeShell, state.Flags{})
	require.Nil(t, v)
}

func TestCheck_ShellAllowlistRejectsUnlisted(t *testing.T) {
	v := Check(`cmd: curl http://evil.example`, state.ModeShell, state.Flags{})
	require.NotNil(t, v)
	require.Equal(t, "mode-allowlist", v.Rule)
}

func TestCheck_WebModeOnlyPermitsPlaywright(t *testing.T) {
	require.Nil(t, Check(`cmd: playwright click --selector "#x"`, state.ModeWeb, state.Flags{}))
	v := Check(`cmd: ls`, state.ModeWeb, state.Flags{})
	require.NotNil(t, v)
	require.Equal(t, "mode-allowlist", v.Rule)
}

func TestCheck_GUICoordinateClickRejected(t *testing.T) {
	v := Check(`cmd: xdotool mousemove 100 200 click 1`, state.ModeGUI, state.Flags{})
	require.NotNil(t, v)
	require.Equal(t, "gui-coordinate-click", v.Rule)
}

func TestCheck_GUIClickRequiresWindowTarget(t *testing.T) {
	v := Check(`cmd: xdotool click 1`, state.ModeGUI, state.Flags{})
	require.NotNil(t, v)
	require.Equal(t, "gui-coordinate-click", v.Rule)

	ok := Check(`cmd: xdotool windowactivate 12345`, state.ModeGUI, state.Flags{})
	require.Nil(t, ok)
}

func TestCheck_GUISensitiveRequiresConfirmFlag(t *testing.T) {
	v := Check(`cmd: xdotool windowactivate 1 type password`, state.ModeGUI, state.Flags{})
	require.NotNil(t, v)
	require.Equal(t, "gui-confirm-sensitive", v.Rule)

	ok := Check(`cmd: xdotool windowactivate 1 type password`, state.ModeGUI, state.Flags{ConfirmSensitve: true})
	require.Nil(t, ok)
}

func TestCheck_ActionShapeRequired(t *testing.T) {
	v := Check(`ls -la`, state.ModeShell, state.Flags{})
	require.NotNil(t, v)
	require.Equal(t, "action-shape", v.Rule, "action without the cmd: prefix must be rejected regardless of mode")
}

func TestCheck_CodeEditIntentRejected(t *testing.T) {
	v := Check(`cmd: vim internal/state/paths.go`, state.ModeShell, state.Flags{})
	require.NotNil(t, v)
	require.Equal(t, "code-edit-intent", v.Rule)
}

func TestCheckEvidencePath_RejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	_, v := CheckEvidencePath(dir, "../../etc/passwd")
	require.NotNil(t, v)
	require.Equal(t, "evidence-path", v.Rule)
}
