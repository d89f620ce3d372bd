package webengine

import (
	"fmt"
	"time"

	"github.com/brennhill/oi-web-bridge/internal/guardrail"
	"github.com/brennhill/oi-web-bridge/internal/learning"
	"github.com/brennhill/oi-web-bridge/internal/report"
	"github.com/brennhill/oi-web-bridge/internal/state"
	"github.com/brennhill/oi-web-bridge/internal/step"
)

// maxRetries is the teaching-mode retry budget spec §4.4 leaf 4 grants a
// step stuck on target_not_found or timeout.
const maxRetries = 2

// Loop drives one Plan to completion, racebound against the supplied
// deadlines, accumulating a RunResult. Grounded on the teacher's
// internal/recording/playback_engine.go ExecutePlayback: a non-blocking,
// continue-on-error loop over an ordered action list, with
// executeClickWithHealing's selector-fallback chain generalized here to a
// learning-store selector lookup; learned scroll hints are not replayed.
type Loop struct {
	page      Page
	mode      state.Mode
	flags     state.Flags
	layout    *state.RunLayout
	learned   *learning.Store
	watchdog  *Watchdog
	onHandoff func(stepIndex int, reason StuckReason) (HandoffResult, error)
}

// NewLoop builds a Loop ready to Run a plan.
func NewLoop(page Page, mode state.Mode, flags state.Flags, layout *state.RunLayout, learned *learning.Store, watchdog *Watchdog, onHandoff func(int, StuckReason) (HandoffResult, error)) *Loop {
	return &Loop{page: page, mode: mode, flags: flags, layout: layout, learned: learned, watchdog: watchdog, onHandoff: onHandoff}
}

// Run executes every step of plan in order, honoring the termination
// conditions spec §4.4 lists: plan exhausted, hard step/run timeout,
// handoff decision, or unrecoverable bootstrap failure (checked by the
// caller before Run is ever invoked).
func (l *Loop) Run(plan step.Plan, deadlines state.Deadlines, interactiveTimeout, stepHard time.Duration) RunResult {
	result := RunResult{}

	for _, s := range plan.Steps {
		if deadlines.Run.Expired() {
			result.RunTimedOut = true
			break
		}

		stepDeadline := state.NewDeadline(stepHard)
		stepDeadlines := state.Deadlines{Step: stepDeadline, Run: deadlines.Run}
		l.watchdog.StartStep(stepDeadline.Remaining())

		outcome := l.runStep(s, stepDeadlines, interactiveTimeout)
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Action != "" {
			result.Actions = append(result.Actions, outcome.Action)
		}

		consoleErrors, networkFindings, nonTrivial := drainObserverEvents(l.page, s.Index)
		result.ConsoleErrors = append(result.ConsoleErrors, consoleErrors...)
		result.NetworkFindings = append(result.NetworkFindings, networkFindings...)
		if nonTrivial {
			l.watchdog.Tick()
		}

		if outcome.EvidenceBefore != "" {
			result.EvidencePaths = append(result.EvidencePaths, outcome.EvidenceBefore)
		}
		if outcome.EvidenceAfter != "" {
			result.EvidencePaths = append(result.EvidencePaths, outcome.EvidenceAfter)
		}
		for _, f := range outcome.FindingsDelta {
			result.UIFindings = append(result.UIFindings, f.WhatFailed)
			if f.Severity == "fatal" || f.NextBestAction == "human_assist" {
				result.IncidentOpen = true
			}
		}

		if outcome.StuckReason != StuckNone {
			break
		}
	}

	return result
}

// runStep executes the frame guard, applicability precheck, interaction,
// retries, evidence capture, and watchdog tick for a single step (spec
// §4.4 leaves 1-7). Verification (leaf 6) is handled by the caller
// passing a KindVerifyVisible step through the same path, since
// VerifyVisible is itself just another Page primitive.
func (l *Loop) runStep(s step.Step, deadlines state.Deadlines, interactiveTimeout time.Duration) StepOutcome {
	outcome := StepOutcome{StepIndex: s.Index}

	if !l.frameGuard(s, deadlines) {
		outcome.Status = report.StatusStuckIframe
		outcome.StuckReason = StuckIframeFocus
		outcome.FindingsDelta = append(outcome.FindingsDelta, Finding{
			Kind: "ui", Where: s.Index, WhatFailed: string(StuckIframeFocus),
			NextBestAction: "human_assist", Severity: "high",
		})
		return outcome
	}

	target := stepHasTarget(s)
	if v := guardrail.Check("cmd: playwright "+string(s.Kind)+" "+target, l.mode, l.flags); v != nil {
		outcome.Status = report.StatusBlockedGuardrail
		outcome.FindingsDelta = append(outcome.FindingsDelta, Finding{
			Kind: "ui", Where: s.Index, WhatFailed: v.Message, NextBestAction: "skip", Severity: "low",
		})
		return outcome
	}

	if before, err := l.capture(s.Index, "before"); err == nil {
		outcome.EvidenceBefore = before
	}

	action, err := l.interact(s, state.NewDeadline(interactiveTimeout).Min(deadlines.Step).At)
	retries := 0
	for l.flags.Teaching && err != nil && retries < maxRetries && !deadlines.Step.Expired() {
		retries++
		s = l.applyRetryFallback(s, retries)
		l.capture(s.Index, fmt.Sprintf("retry_%d", retries)) // best effort, evidence-only
		action, err = l.interact(s, state.NewDeadline(interactiveTimeout).Min(deadlines.Step).At)
	}
	outcome.Retries = retries
	outcome.SelectorUsed = s.Selector

	if err != nil {
		outcome.Status = classifyErr(err)
		targetNotFoundAfterRetries := outcome.Status == report.StatusTargetNotFound && retries >= maxRetries
		reason := l.watchdog.Stuck(deadlines, false, targetNotFoundAfterRetries)
		if reason == StuckNone {
			// Neither the run/step deadline nor the no-useful-progress window
			// has formally elapsed yet, but retries are exhausted and the step
			// never recovered: treat it as the matching stuck predicate so the
			// loop still hands off instead of silently moving on.
			if outcome.Status == report.StatusTargetNotFound {
				reason = StuckTargetNotFound
			} else {
				reason = StuckInteractiveTimeout
			}
		}
		outcome.StuckReason = reason
		outcome.FindingsDelta = append(outcome.FindingsDelta, Finding{
			Kind: "ui", Where: s.Index, WhatFailed: string(reason),
			NextBestAction: "human_assist", Severity: "high",
		})
		l.watchdog.Tick() // the attempt itself is useful progress, even on failure
		return outcome
	}

	after, capErr := l.capture(s.Index, "after")
	if capErr != nil {
		// Spec §4.4 leaf 5: on timeout without a successful after-shot, do
		// not append to actions[]. A screenshot failure here behaves the
		// same way even though the interaction itself succeeded.
		outcome.Status = report.StatusTimeout
		l.watchdog.Tick()
		return outcome
	}
	outcome.EvidenceAfter = after
	outcome.Action = action
	outcome.Status = report.StatusOK
	l.watchdog.Tick()
	return outcome
}

// frameGuard implements leaf 1: force focus out of iframes before any
// interaction, retrying once in the main frame before declaring the step
// stuck.
func (l *Loop) frameGuard(s step.Step, deadlines state.Deadlines) bool {
	if l.page.FrameFocusInMainDocument() {
		return true
	}
	if err := l.page.ForceMainFrameFocus(); err != nil {
		return false
	}
	return l.page.FrameFocusInMainDocument()
}

// applyRetryFallback applies the teaching-mode retry chain (spec §4.4
// leaf 4): on the first retry it swaps in the best learned selector for
// the current page, if the learning store has one. Scroll hints stored
// with learned selectors are not replayed.
func (l *Loop) applyRetryFallback(s step.Step, attempt int) step.Step {
	if attempt != 1 || l.learned == nil {
		return s
	}
	key := learning.ContextKey(l.page.CurrentURL(), l.page.CurrentTitle())
	if best, ok := l.learned.Best(key); ok && best.Selector != "" {
		s.Selector = best.Selector
		s.Origin = step.OriginLearning
	}
	return s
}

// interact dispatches a Step to the matching Page primitive, matching
// invariant I2's "cmd: <string>" action shape.
func (l *Loop) interact(s step.Step, deadline time.Time) (string, error) {
	switch s.Kind {
	case step.KindOpenURL:
		return l.page.Navigate(s.Target, deadline)
	case step.KindClickText:
		return l.page.ClickText(s.Target, deadline)
	case step.KindClickSelector:
		return l.page.ClickSelector(s.Selector, deadline)
	case step.KindFill:
		return l.page.Fill(s.Selector, s.Value, deadline)
	case step.KindSelect:
		return l.page.Select(s.Selector, s.Value, deadline)
	case step.KindWaitSelector:
		return l.page.WaitSelector(s.Selector, deadline)
	case step.KindWaitText:
		return l.page.WaitText(s.Target, deadline)
	case step.KindVerifyVisible:
		ok, err := l.page.VerifyVisible(stepHasTarget(s), deadline)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", &ErrTargetNotFound{Target: stepHasTarget(s)}
		}
		return "cmd: verify " + stepHasTarget(s), nil
	default:
		return "", nil // window steps have no web primitive: no action is recorded
	}
}

func (l *Loop) capture(stepIndex int, phase string) (string, error) {
	if l.layout == nil {
		return "", nil
	}
	path := l.layout.EvidencePath(stepIndex, phase, "png")
	if err := l.page.Screenshot(path); err != nil {
		return "", err
	}
	return path, nil
}

func classifyErr(err error) report.StepStatus {
	switch err.(type) {
	case *ErrTargetNotFound:
		return report.StatusTargetNotFound
	case *ErrTimeout:
		return report.StatusTimeout
	default:
		return report.StatusTimeout
	}
}
