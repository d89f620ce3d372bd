package guardrail

import (
	"regexp"
	"strings"

	"github.com/brennhill/oi-web-bridge/internal/state"
)

// actionCommand extracts the string after "cmd: " per invariant I2; an
// action that doesn't match that shape at all is left to checkActionShape
// to reject, so the other rules can assume a best-effort extraction.
func actionCommand(action string) string {
	const prefix = "cmd: "
	if strings.HasPrefix(action, prefix) {
		return strings.TrimSpace(action[len(prefix):])
	}
	return strings.TrimSpace(action)
}

var editorInvocation = regexp.MustCompile(`(?i)\b(vim?|nano|emacs|code|subl|pico)\b.*\.(go|py|js|ts|rs|c|cpp|java|rb|sh)\b`)
var writeToSourcePath = regexp.MustCompile(`(?i)>\s*\S+\.(go|py|js|ts|rs|c|cpp|java|rb)\b`)

func checkCodeEditIntent(action string, mode state.Mode, flags state.Flags) *Violation {
	cmd := actionCommand(action)
	if editorInvocation.MatchString(cmd) || writeToSourcePath.MatchString(cmd) {
		return &Violation{Rule: "code-edit-intent", Message: "action invokes an editor or writes to a source file"}
	}
	return nil
}

// destructiveVerbs matches classic irreversible shell operations. Kept as
// a slice of compiled patterns rather than one giant alternation so new
// entries read as a list, not a regex puzzle.
var destructiveVerbs = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\brm\s+-[a-z]*r[a-z]*f\b`),
	regexp.MustCompile(`(?i)\brm\s+-[a-z]*f[a-z]*r\b`),
	regexp.MustCompile(`(?i)\bmkfs(\.\w+)?\b`),
	regexp.MustCompile(`(?i)\bdd\s+if=`),
	regexp.MustCompile(`(?i)\bshutdown\b`),
	regexp.MustCompile(`(?i)\breboot\b`),
	regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`), // fork bomb
	regexp.MustCompile(`(?i)\b(drop|truncate)\s+table\b`),
	regexp.MustCompile(`(?i)>\s*/dev/sd[a-z]\b`),
}

func checkDestructive(action string, mode state.Mode, flags state.Flags) *Violation {
	cmd := actionCommand(action)
	for _, re := range destructiveVerbs {
		if re.MatchString(cmd) {
			return &Violation{Rule: "destructive-command", Message: "action matches a denylisted destructive pattern"}
		}
	}
	return nil
}

// shellAllowlist names observation-only binaries shell mode may invoke.
var shellAllowlist = regexp.MustCompile(`(?i)^(cat|ls|grep|head|tail|find|ps|df|du|echo|pwd|whoami|uname|wc|diff|stat|file)\b`)

// guiExtraAllowlist names the additional binaries GUI mode may invoke,
// on top of the shell allowlist.
var guiExtraAllowlist = regexp.MustCompile(`(?i)^(xdotool|wmctrl|xwininfo|import|scrot)\b`)

// webAllowlist permits only the engine's own playwright driver calls.
var webAllowlist = regexp.MustCompile(`(?i)^playwright\b`)

func checkModeAllowlist(action string, mode state.Mode, flags state.Flags) *Violation {
	cmd := actionCommand(action)
	switch mode {
	case state.ModeShell:
		if !shellAllowlist.MatchString(cmd) {
			return &Violation{Rule: "mode-allowlist", Message: "command not in shell observation-only allowlist"}
		}
	case state.ModeGUI:
		if !shellAllowlist.MatchString(cmd) && !guiExtraAllowlist.MatchString(cmd) {
			return &Violation{Rule: "mode-allowlist", Message: "command not in GUI allowlist"}
		}
	case state.ModeWeb:
		if !webAllowlist.MatchString(cmd) {
			return &Violation{Rule: "mode-allowlist", Message: "web mode permits only engine-internal playwright commands"}
		}
	}
	return nil
}

var coordinateClickPattern = regexp.MustCompile(`(?i)\bmousemove\b.*\bclick\b`)
var windowTargetPattern = regexp.MustCompile(`(?i)--window(?:=|\s+)\S+|\bwindowactivate\s+\S+`)

func checkGUICoordinateClick(action string, mode state.Mode, flags state.Flags) *Violation {
	if mode != state.ModeGUI {
		return nil
	}
	cmd := actionCommand(action)
	if coordinateClickPattern.MatchString(cmd) {
		return &Violation{Rule: "gui-coordinate-click", Message: "coordinate-based click is not permitted"}
	}
	if strings.Contains(strings.ToLower(cmd), "click") && !windowTargetPattern.MatchString(cmd) {
		return &Violation{Rule: "gui-coordinate-click", Message: "click requires an explicit target window"}
	}
	return nil
}

var sensitiveActionPattern = regexp.MustCompile(`(?i)\b(password|delete|purge|confirm|pay|submit-order)\b`)

func checkGUIConfirmSensitive(action string, mode state.Mode, flags state.Flags) *Violation {
	if mode != state.ModeGUI {
		return nil
	}
	cmd := actionCommand(action)
	if sensitiveActionPattern.MatchString(cmd) && !flags.ConfirmSensitve {
		return &Violation{Rule: "gui-confirm-sensitive", Message: "sensitive action requires --confirm-sensitive"}
	}
	return nil
}

var cmdShapePattern = regexp.MustCompile(`^cmd: .+`)

func checkActionShape(action string, mode state.Mode, flags state.Flags) *Violation {
	if !cmdShapePattern.MatchString(action) {
		return &Violation{Rule: "action-shape", Message: `action must serialise as "cmd: <string>"`}
	}
	return nil
}
