// Package guardrail implements the bridge's static security policy: a
// pure-function pipeline over candidate action strings and evidence
// paths. Grounded on the teacher's internal/security/security.go
// dispatch-table idiom (runSecurityChecks), retargeted from scanning
// captured traffic to vetting actions before execution.
package guardrail

import (
	"fmt"

	"github.com/brennhill/oi-web-bridge/internal/state"
)

// Violation names the rule that rejected a candidate action.
type Violation struct {
	Rule    string
	Message string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Rule, v.Message)
}

// rule is a single policy check, mirroring the teacher's checkEntry
// {name, fn} dispatch-table shape.
type rule struct {
	name string
	fn   func(action string, mode state.Mode, flags state.Flags) *Violation
}

// rules is evaluated in order; the first violation found is returned.
// Order matters only for which rule name is reported on multi-violation
// input — all rules are otherwise independent pure predicates.
var rules = []rule{
	{"code-edit-intent", checkCodeEditIntent},
	{"destructive-command", checkDestructive},
	{"mode-allowlist", checkModeAllowlist},
	{"gui-coordinate-click", checkGUICoordinateClick},
	{"gui-confirm-sensitive", checkGUIConfirmSensitive},
	{"action-shape", checkActionShape},
}

// Check runs every rule against action in order and returns the first
// Violation found, or nil if action passes every rule. Per spec §4.2,
// a Violation is fatal to the step, never to the run.
func Check(action string, mode state.Mode, flags state.Flags) *Violation {
	for _, r := range rules {
		if v := r.fn(action, mode, flags); v != nil {
			return v
		}
	}
	return nil
}

// CheckEvidencePath verifies a reported evidence path resolves inside
// runDir, per invariant I1. Delegates to state.EnsureContained so the
// containment logic lives in exactly one place.
func CheckEvidencePath(runDir, candidate string) (string, *Violation) {
	resolved, err := state.EnsureContained(runDir, candidate)
	if err != nil {
		return "", &Violation{Rule: "evidence-path", Message: err.Error()}
	}
	return resolved, nil
}
