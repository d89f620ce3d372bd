package webengine

import "time"

// ObserverEventKind distinguishes the three listener types spec §4.4's
// Bootstrap paragraph installs.
type ObserverEventKind string

const (
	ObserverConsole   ObserverEventKind = "console"
	ObserverNetwork   ObserverEventKind = "network"
	ObserverPageError ObserverEventKind = "page_error"
)

// ObserverEvent is a single console/network/page-error occurrence.
// StepIndex is not filled in by the narrative executor, and the findings
// drainObserverEvents builds from events carry no step index.
type ObserverEvent struct {
	Kind      ObserverEventKind
	StepIndex int
	Level     string // console level, or method for network
	Status    int    // network responses only
	Text      string
	Timestamp time.Time
}

// EventSource is an optional capability a Page implementation may
// satisfy to report observer events (console errors, network responses
// ≥400 and failed requests, page errors) asynchronously. Implemented as
// a capability interface, checked with a type assertion, so the minimal
// Page contract stays small and fakes in tests need not provide it.
type EventSource interface {
	Events() <-chan ObserverEvent
}

// drainObserverEvents is a non-blocking best-effort drain, called once
// per step so observer findings never block the step loop (spec §7:
// "observer ... failures degrade gracefully"). nonTrivial reports whether
// any console error, failed network response or page error was drained.
func drainObserverEvents(page Page, currentStep int) (consoleErrors, networkFindings []string, nonTrivial bool) {
	src, ok := page.(EventSource)
	if !ok {
		return nil, nil, false
	}
	ch := src.Events()
	for {
		select {
		case ev, open := <-ch:
			if !open {
				return consoleErrors, networkFindings, nonTrivial
			}
			switch ev.Kind {
			case ObserverConsole:
				if ev.Level == "error" {
					consoleErrors = append(consoleErrors, formatConsoleError(ev.Level, ev.Text))
					nonTrivial = true
				}
			case ObserverNetwork:
				if ev.Status >= 400 || ev.Status == 0 {
					networkFindings = append(networkFindings, formatNetworkFinding(ev.Level, ev.Status, ev.Text))
					nonTrivial = true
				}
			case ObserverPageError:
				consoleErrors = append(consoleErrors, formatConsoleError("page_error", ev.Text))
				nonTrivial = true
			}
		default:
			return consoleErrors, networkFindings, nonTrivial
		}
	}
}
