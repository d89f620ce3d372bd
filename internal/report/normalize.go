package report

import (
	"fmt"
	"regexp"

	"github.com/brennhill/oi-web-bridge/internal/state"
)

// RawReport is the loosely-typed shape a backend (engine state or the
// narrative executor) may hand the normaliser. Any field may be absent,
// malformed, or carry attacker-controlled content; Normalize is the only
// place that decides what survives into the canonical OIReport.
type RawReport struct {
	TaskID          string
	Goal            string
	Actions         []string
	Observations    []string
	ConsoleErrors   []string
	NetworkFindings []string
	UIFindings      []string
	Result          string
	EvidencePaths   []string
}

var actionShape = regexp.MustCompile(`^cmd: .+`)

// Normalize projects a RawReport onto the canonical schema: it coerces
// the result enum, deduplicates every array while preserving first-seen
// order, drops evidence paths outside runDir (I1) and actions not
// matching "cmd: <string>" (I2), and appends a ui_findings entry naming
// each rejection so the drop is itself auditable.
func Normalize(raw RawReport, runDir string) OIReport {
	out := OIReport{
		TaskID:          raw.TaskID,
		Goal:            raw.Goal,
		Observations:    dedupe(raw.Observations),
		ConsoleErrors:   dedupe(raw.ConsoleErrors),
		NetworkFindings: dedupe(raw.NetworkFindings),
	}

	findings := dedupe(raw.UIFindings)

	var actions []string
	for _, a := range raw.Actions {
		if actionShape.MatchString(a) {
			actions = append(actions, a)
		} else {
			findings = append(findings, fmt.Sprintf("guardrail: rejected malformed action %q", a))
		}
	}
	out.Actions = dedupe(actions)

	var evidence []string
	for _, p := range raw.EvidencePaths {
		resolved, err := state.EnsureContained(runDir, p)
		if err != nil {
			findings = append(findings, fmt.Sprintf("guardrail: rejected evidence path %q: %v", p, err))
			continue
		}
		evidence = append(evidence, resolved)
	}
	out.EvidencePaths = dedupe(evidence)
	out.UIFindings = findings

	out.Result = coerceResult(raw.Result)
	return out
}

func coerceResult(r string) Result {
	switch Result(r) {
	case ResultSuccess, ResultPartial, ResultFailed:
		return Result(r)
	default:
		return ResultFailed
	}
}

// dedupe preserves first-seen order, matching the ordering guarantees in
// spec §5 (actions/evidence/findings preserve plan order).
func dedupe(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
