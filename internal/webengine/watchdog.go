package webengine

import (
	"time"

	"github.com/brennhill/oi-web-bridge/internal/state"
)

// StuckReason names which predicate in spec §4.5 tripped the watchdog.
type StuckReason string

const (
	StuckNone               StuckReason = ""
	StuckInteractiveTimeout StuckReason = "interactive_timeout"
	StuckTargetNotFound     StuckReason = "target_not_found"
	StuckIframeFocus        StuckReason = "stuck_iframe_focus"
	StuckNoUsefulProgress   StuckReason = "no_useful_progress"
	StuckRunTimeout         StuckReason = "run_timeout"
)

// Watchdog tracks useful-progress ticks and evaluates the stuck
// predicates from spec §4.5. Single-threaded, matching the engine's
// cooperative event loop (spec §5) — no internal locking, unlike the
// teacher's CircuitBreaker which guards concurrent HTTP ingest. The
// trip-on-sustained-bad-streak shape is the part carried over from
// CircuitBreaker.evaluateCircuit.
type Watchdog struct {
	lastUsefulProgressAt time.Time
	stepWindow           time.Duration
	noiseMode            state.NoiseMode
}

// NewWatchdog starts a watchdog with no progress recorded yet. stepWindow
// is the sliding window spec §4.5 sizes equal to the step deadline.
func NewWatchdog(noiseMode state.NoiseMode, stepWindow time.Duration) *Watchdog {
	return &Watchdog{lastUsefulProgressAt: time.Now(), stepWindow: stepWindow, noiseMode: noiseMode}
}

// StartStep resets the no-useful-progress window for a new step.
func (w *Watchdog) StartStep(stepWindow time.Duration) {
	w.lastUsefulProgressAt = time.Now()
	w.stepWindow = stepWindow
}

// Tick records a useful-progress event, resetting the stall clock.
func (w *Watchdog) Tick() {
	w.lastUsefulProgressAt = time.Now()
}

// IsUsefulProgress is the pure classification function spec §4.4 leaf 7
// describes: an action appended, a non-trivial finding, or DOM mutation
// past the noise filter. In minimal noise mode, manual mousemove/scroll/
// trivial clicks performed while the session is under user control never
// count, regardless of what else is true — SPEC_FULL.md's Open Question
// (b) decision makes debug mode a strict superset of this predicate.
func IsUsefulProgress(actionAppended, nonTrivialFinding, domMutationPassedFilter, manualTrivialWhileUserControl bool, noiseMode state.NoiseMode) bool {
	if noiseMode == state.NoiseMinimal && manualTrivialWhileUserControl {
		return false
	}
	return actionAppended || nonTrivialFinding || domMutationPassedFilter
}

// Stuck evaluates the stuck predicates against the current deadlines and
// step-local signals the loop has already computed (iframe focus state,
// retries exhausted).
func (w *Watchdog) Stuck(deadlines state.Deadlines, iframeFocusStuck, targetNotFoundAfterRetries bool) StuckReason {
	if deadlines.Run.Expired() {
		return StuckRunTimeout
	}
	if iframeFocusStuck {
		return StuckIframeFocus
	}
	if targetNotFoundAfterRetries {
		return StuckTargetNotFound
	}
	if deadlines.Step.Expired() {
		return StuckInteractiveTimeout
	}
	if w.stepWindow > 0 && time.Since(w.lastUsefulProgressAt) >= w.stepWindow {
		return StuckNoUsefulProgress
	}
	return StuckNone
}
