// Package webengine's engine.go is the bootstrap/orchestration entry
// point: it runs against the WebSession its caller created or attached,
// wires the Loop, and on a
// stuck step runs the teaching-mode Handoff before deciding whether the
// run can resume or must finalise. Grounded on the teacher's
// internal/recording/playback_engine.go ExecutePlayback top-level
// function, which plays the same role for a captured action sequence.
package webengine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/brennhill/oi-web-bridge/internal/bridgeerr"
	"github.com/brennhill/oi-web-bridge/internal/learning"
	"github.com/brennhill/oi-web-bridge/internal/registry"
	"github.com/brennhill/oi-web-bridge/internal/state"
	"github.com/brennhill/oi-web-bridge/internal/step"
)

// Engine bootstraps a run against a browser session and drives its plan
// to completion, including any teaching-mode handoffs.
type Engine struct {
	Page       Page
	Layout     *state.RunLayout
	Session    registry.WebSession
	PutSession func(registry.WebSession) error
	Learned    *learning.Store
	Config     EngineConfig
}

// EngineConfig carries the resolved timeouts and mode flags a run needs;
// callers build this from internal/config.Config plus CLI flags.
type EngineConfig struct {
	Mode               state.Mode
	Flags              state.Flags
	NoiseMode          state.NoiseMode
	InteractiveTimeout time.Duration
	StepHardTimeout    time.Duration
	RunHardTimeout     time.Duration
	LearningWindow     time.Duration
}

// Bootstrap captures the step_0_context baseline screenshot, matching
// spec §4.4's Bootstrap paragraph. Listener installation is implicit:
// any Page also implementing EventSource is drained every step by the
// Loop, so there is nothing further to wire up here.
func (e *Engine) Bootstrap() error {
	path := baselineEvidencePath(e.Layout)
	if err := e.Page.Screenshot(path); err != nil {
		return bridgeerr.Wrap(bridgeerr.KindBootstrap, "baseline screenshot failed", err)
	}
	return nil
}

// Run executes plan end to end, handling stuck steps via teaching-mode
// handoff when the run's flags allow it, and returns the accumulated
// RunResult for the reporter to finalise.
func (e *Engine) Run(ctx context.Context, plan step.Plan) RunResult {
	deadlines := state.Deadlines{
		Step: state.NewDeadline(e.Config.StepHardTimeout),
		Run:  state.NewDeadline(e.Config.RunHardTimeout),
	}

	watchdog := NewWatchdog(e.Config.NoiseMode, e.Config.StepHardTimeout)
	result := RunResult{}
	remaining := plan.Steps

	for {
		loop := NewLoop(e.Page, e.Config.Mode, e.Config.Flags, e.Layout, e.Learned, watchdog, nil)
		partial := loop.Run(step.Plan{Steps: remaining}, deadlines, e.Config.InteractiveTimeout, e.Config.StepHardTimeout)
		result = mergeRunResult(result, partial)

		if partial.RunTimedOut || len(partial.Outcomes) == len(remaining) {
			break
		}

		stuckAt := partial.Outcomes[len(partial.Outcomes)-1]
		if !e.Config.Flags.Teaching {
			break
		}

		stuckIdx := len(partial.Outcomes) - 1
		resumed, resumeSelector := e.handoffAndResume(stuckAt.StepIndex, remaining, stuckIdx, stuckAt.StuckReason)
		if !resumed {
			break
		}
		remaining = applyResumeSelector(remaining[stuckIdx:], stuckAt.StepIndex, resumeSelector)
	}

	return result
}

func (e *Engine) handoffAndResume(stepIndex int, plan []step.Step, stuckIdx int, reason StuckReason) (resumed bool, selector string) {
	stuckSelector, stuckText := "", ""
	if stuckIdx >= 0 && stuckIdx < len(plan) {
		stuckSelector = plan[stuckIdx].Selector
		stuckText = plan[stuckIdx].Target
	}

	waitForCapture := e.pollManualClickCapture(stuckSelector, stuckText)

	res, err := Handoff(e.Session, e.PutSession, stepIndex, reason, e.Config.LearningWindow, waitForCapture)
	if err != nil || !res.Learned {
		return false, ""
	}
	if e.Learned != nil {
		e.Learned.RecordSuccess(res.Capture.ContextKey, learning.LearnedSelector{
			Selector:     res.Capture.Selector,
			FallbackText: res.Capture.Text,
			ScrollHints:  res.Capture.ScrollHints,
			LastUsedAt:   res.Capture.Timestamp,
		})
	}
	return true, res.ResumeWithSelector
}

// pollManualClickCapture builds the waitForCapture closure Handoff blocks
// on: the control agent runs as a detached subprocess (spec §4.3), so the
// only channel back to it is its loopback /events endpoint. Polls until a
// useful manual click (spec §4.5) appears or the learning window expires.
func (e *Engine) pollManualClickCapture(stuckSelector, stuckText string) func(time.Duration) (ManualClick, bool) {
	start := time.Now()
	url := fmt.Sprintf("http://127.0.0.1:%d/events", e.Session.AgentPort)
	client := &http.Client{Timeout: 500 * time.Millisecond}

	return func(window time.Duration) (ManualClick, bool) {
		deadline := time.Now().Add(window)
		for {
			if click, ok := fetchUsefulManualClick(client, url, start, stuckSelector, stuckText); ok {
				return click, true
			}
			if !time.Now().Before(deadline) {
				return ManualClick{}, false
			}
			time.Sleep(250 * time.Millisecond)
		}
	}
}

// fetchUsefulManualClick fetches the control agent's event snapshot and
// returns the first manual_click event after since that clears
// IsUsefulManualClick against the stuck step's objective.
func fetchUsefulManualClick(client *http.Client, url string, since time.Time, stuckSelector, stuckText string) (ManualClick, bool) {
	resp, err := client.Get(url) // #nosec G704 -- localhost-only control agent
	if err != nil {
		return ManualClick{}, false
	}
	defer func() { _ = resp.Body.Close() }()

	var events []registry.Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return ManualClick{}, false
	}

	for _, ev := range events {
		if ev.Kind != "manual_click" || !ev.Timestamp.After(since) {
			continue
		}
		var d registry.ManualClickDetail
		if err := json.Unmarshal([]byte(ev.Detail), &d); err != nil {
			continue
		}
		click := ManualClick{
			Selector:        d.Selector,
			Text:            d.Text,
			URL:             d.URL,
			InMainDocument:  d.InMainDocument,
			OnOverlayChrome: d.OnOverlayChrome,
			ScrollHints:     d.ScrollHints,
			Timestamp:       ev.Timestamp,
		}
		if IsUsefulManualClick(click, stuckSelector, stuckText) {
			return click, true
		}
	}
	return ManualClick{}, false
}

func applyResumeSelector(plan []step.Step, stepIndex int, selector string) []step.Step {
	if selector == "" {
		return plan
	}
	for i := range plan {
		if plan[i].Index == stepIndex {
			plan[i].Selector = selector
			plan[i].Origin = step.OriginLearning
		}
	}
	return plan
}

func mergeRunResult(a, b RunResult) RunResult {
	a.Actions = append(a.Actions, b.Actions...)
	a.Observations = append(a.Observations, b.Observations...)
	a.ConsoleErrors = append(a.ConsoleErrors, b.ConsoleErrors...)
	a.NetworkFindings = append(a.NetworkFindings, b.NetworkFindings...)
	a.UIFindings = append(a.UIFindings, b.UIFindings...)
	a.EvidencePaths = append(a.EvidencePaths, b.EvidencePaths...)
	a.Outcomes = append(a.Outcomes, b.Outcomes...)
	a.BootstrapFailed = a.BootstrapFailed || b.BootstrapFailed
	a.RunTimedOut = a.RunTimedOut || b.RunTimedOut
	a.IncidentOpen = a.IncidentOpen || b.IncidentOpen
	return a
}
