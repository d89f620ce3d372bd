package webengine

import (
	"fmt"
	"time"

	"github.com/brennhill/oi-web-bridge/internal/learning"
	"github.com/brennhill/oi-web-bridge/internal/registry"
)

// ManualClick is a candidate observed during a learning window (spec
// §4.5 leaf 5).
type ManualClick struct {
	Selector        string
	Text            string
	URL             string
	InMainDocument  bool
	OnOverlayChrome bool
	ScrollHints     []string
	Timestamp       time.Time
}

// IsUsefulManualClick implements spec §4.5's three-part definition: the
// target is inside the main document, not on overlay/top-bar chrome, and
// semantically consistent with the stuck objective (selector or text
// containment against what the stuck step was looking for).
func IsUsefulManualClick(c ManualClick, stuckSelector, stuckText string) bool {
	if !c.InMainDocument || c.OnOverlayChrome {
		return false
	}
	if stuckSelector != "" && c.Selector == stuckSelector {
		return true
	}
	if stuckText != "" && c.Text != "" && contains(c.Text, stuckText) {
		return true
	}
	// No stuck-objective text/selector to compare against: any in-document,
	// non-chrome click is considered consistent enough to learn from.
	return stuckSelector == "" && stuckText == ""
}

func contains(haystack, needle string) bool {
	return len(needle) > 0 && (haystack == needle || indexOf(haystack, needle) >= 0)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

// HandoffResult is the outcome of running the teaching-mode procedure
// for one stuck step.
type HandoffResult struct {
	Finding            Finding
	Learned            bool
	Capture            learning.TeachingCapture
	ResumeWithSelector string
}

// Handoff runs the teaching handoff for one stuck step: it marks the
// session learning-active and uncontrolled through put, waits for a useful
// manual click, and returns it as a TeachingCapture for the caller to
// merge into the learning store. It writes no teaching_<N>.json file and
// shows no overlay message. waitForCapture blocks (up to learningWindow) for a useful manual click, returning
// ok=false on expiry; it is injected so the loop's control flow is
// testable without a real browser/control-agent round trip.
func Handoff(
	ws registry.WebSession,
	put func(registry.WebSession) error,
	stepIndex int,
	reason StuckReason,
	learningWindow time.Duration,
	waitForCapture func(time.Duration) (ManualClick, bool),
) (HandoffResult, error) {
	finding := Finding{
		Kind:           "ui",
		Where:          stepIndex,
		WhatFailed:     string(reason),
		Attempted:      fmt.Sprintf("step %d", stepIndex),
		NextBestAction: "human_assist",
		Severity:       "high",
	}

	ws.LearningActive = true
	ws.Controlled = false
	if err := put(ws); err != nil {
		return HandoffResult{Finding: finding}, err
	}

	click, ok := waitForCapture(learningWindow)
	if !ok {
		return HandoffResult{Finding: finding}, nil
	}

	capture := learning.TeachingCapture{
		StepIndex:   stepIndex,
		Selector:    click.Selector,
		Text:        click.Text,
		URL:         click.URL,
		ContextKey:  learning.ContextKey(click.URL, click.Text),
		ScrollHints: click.ScrollHints,
		Timestamp:   click.Timestamp,
	}

	return HandoffResult{
		Finding:            finding,
		Learned:            true,
		Capture:            capture,
		ResumeWithSelector: click.Selector,
	}, nil
}
