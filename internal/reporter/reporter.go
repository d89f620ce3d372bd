// Package reporter implements the run finaliser (spec §4.7): it
// assembles the accumulated run state into a canonical report.json,
// enforces the verified-mode invariants, and updates the global status
// index last, so a crash mid-finalisation never leaves status.json
// ahead of report.json. Grounded on internal/state's already-atomic
// AtomicWriteJSON/UpsertStatus helpers, generalizing the teacher's
// export package's "build the whole struct, marshal once" discipline
// from HAR/SARIF export to the bridge's own report shape.
package reporter

import (
	"fmt"
	"time"

	"github.com/brennhill/oi-web-bridge/internal/bridgeerr"
	"github.com/brennhill/oi-web-bridge/internal/report"
	"github.com/brennhill/oi-web-bridge/internal/state"
)

// RunOutcome is everything the engine accumulated over a run, handed to
// Finalize to turn into a persisted report.json + status.json update.
type RunOutcome struct {
	TaskID          string
	Goal            string
	Actions         []string
	Observations    []string
	ConsoleErrors   []string
	NetworkFindings []string
	UIFindings      []string
	EvidencePaths   []string
	Result          report.Result
	BootstrapFailed bool

	// VerifyPerformedCount counts interactive steps that had a following
	// verify step evaluated, required to be >0 under --verified.
	InteractiveStepCount int
	VerifyPerformedCount int
}

// Finalize validates RunOutcome against the invariants spec §4.7 and §8
// require, writes report.json atomically, and upserts the global status
// index last. The finaliser always runs to completion: any late failure
// becomes a fatal finding rather than a crash, per spec §7's propagation
// policy.
func Finalize(layout *state.RunLayout, mode state.Mode, verified bool, startedAt time.Time, outcome RunOutcome) error {
	raw := report.RawReport{
		TaskID:          outcome.TaskID,
		Goal:            outcome.Goal,
		Actions:         outcome.Actions,
		Observations:    outcome.Observations,
		ConsoleErrors:   outcome.ConsoleErrors,
		NetworkFindings: outcome.NetworkFindings,
		UIFindings:      outcome.UIFindings,
		EvidencePaths:   outcome.EvidencePaths,
		Result:          string(outcome.Result),
	}

	normalized := report.Normalize(raw, layout.RunDir)

	if verified {
		if v := verifyInvariants(layout.RunDir, normalized, outcome); v != "" {
			normalized.UIFindings = append(normalized.UIFindings, v)
			normalized.Result = report.ResultFailed
		}
	}

	phase := state.PhaseCompleted
	if normalized.Result == report.ResultFailed && outcome.BootstrapFailed {
		phase = state.PhaseFailed
	}

	if err := state.AtomicWriteJSON(layout.ReportFile, normalized); err != nil {
		return bridgeerr.Wrap(bridgeerr.KindEvidence, "write report.json", err)
	}

	entry := state.StatusEntry{
		RunID:     layout.RunID,
		Mode:      string(mode),
		Phase:     phase,
		Result:    string(normalized.Result),
		StartedAt: startedAt,
		EndedAt:   time.Now(),
		RunDir:    layout.RunDir,
	}
	if err := state.UpsertStatus(entry); err != nil {
		return bridgeerr.Wrap(bridgeerr.KindEvidence, "update status.json", err)
	}
	return nil
}

// verifyInvariants checks invariant I1 (every evidence path already
// resolved, via Normalize) and the --verified-mode requirement that at
// least one verify finding exists per interactive step. Returns a
// human-readable finding string describing the violation, or "" if none.
func verifyInvariants(runDir string, r report.OIReport, outcome RunOutcome) string {
	if outcome.InteractiveStepCount > 0 && outcome.VerifyPerformedCount == 0 {
		return fmt.Sprintf("verified mode: %d interactive step(s) with no post-step verify finding", outcome.InteractiveStepCount)
	}
	for _, p := range r.EvidencePaths {
		if _, err := state.EnsureContained(runDir, p); err != nil {
			return "verified mode: evidence path failed containment check: " + p
		}
	}
	return ""
}

// FinalizeFatal is the last-resort path spec §7 describes: "any late
// failure becomes a ui_findings entry of severity fatal plus
// result=failed". Called when the engine itself panics or returns an
// error the normal Finalize flow never saw.
func FinalizeFatal(layout *state.RunLayout, mode state.Mode, startedAt time.Time, cause error) error {
	normalized := report.Normalize(report.RawReport{
		TaskID:     layout.RunID,
		UIFindings: []string{"fatal: " + cause.Error()},
		Result:     string(report.ResultFailed),
	}, layout.RunDir)

	if err := state.AtomicWriteJSON(layout.ReportFile, normalized); err != nil {
		return err
	}
	return state.UpsertStatus(state.StatusEntry{
		RunID:     layout.RunID,
		Mode:      string(mode),
		Phase:     state.PhaseFailed,
		Result:    string(report.ResultFailed),
		StartedAt: startedAt,
		EndedAt:   time.Now(),
		RunDir:    layout.RunDir,
	})
}
