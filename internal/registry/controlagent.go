package registry

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/brennhill/oi-web-bridge/internal/util"
)

// ControlAgent is the per-session loopback HTTP server spec §4.3
// describes: co-owned with the browser session, independent of any
// single run's lifecycle. Grounded on the teacher's cmd/dev-console main
// HTTP server (http.HandleFunc on a dedicated mux, loopback-bound
// listener) rather than the framework-based mcpsurface server, since this
// agent must keep running after the run process that started it exits.
type ControlAgent struct {
	mu      sync.Mutex
	session WebSession
	events  []Event

	srv *http.Server
	ln  net.Listener
}

// Event is a single observer-channel report (spec §4.3 POST /event).
type Event struct {
	Kind      string    `json:"kind"` // click|console_error|page_error|network_error|manual_click|scroll
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}

// ManualClickDetail is the JSON payload carried in Event.Detail for
// kind="manual_click" events, produced by the page-injected overlay
// script during a learning window and consumed by the handoff procedure.
type ManualClickDetail struct {
	Selector        string   `json:"selector"`
	Text            string   `json:"text"`
	URL             string   `json:"url"`
	InMainDocument  bool     `json:"in_main_document"`
	OnOverlayChrome bool     `json:"on_overlay_chrome"`
	ScrollHints     []string `json:"scroll_hints,omitempty"`
}

// NewControlAgent binds a loopback listener on an ephemeral port and
// returns an agent not yet serving (call Serve to start accepting
// requests). The caller records the allocated port onto the WebSession.
func NewControlAgent(session WebSession) (*ControlAgent, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("bind control agent: %w", err)
	}
	a := &ControlAgent{session: session, ln: ln}
	mux := http.NewServeMux()
	mux.HandleFunc("/", a.handleIndex)
	mux.HandleFunc("/state", a.handleState)
	mux.HandleFunc("/event", a.handleEvent)
	mux.HandleFunc("/events", a.handleEvents)
	mux.HandleFunc("/action", a.handleAction)
	a.srv = &http.Server{Handler: mux}
	return a, nil
}

// Port returns the ephemeral port the agent bound to.
func (a *ControlAgent) Port() int {
	return a.ln.Addr().(*net.TCPAddr).Port
}

// Serve blocks, accepting requests until Shutdown is called.
func (a *ControlAgent) Serve() error {
	err := a.srv.Serve(a.ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the agent.
func (a *ControlAgent) Shutdown() error {
	return a.srv.Close()
}

func (a *ControlAgent) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<!doctype html><html><body><div id="oi-bridge-topbar"></div></body></html>`)
}

// stateResponse is the GET /state body: the session's control fields plus
// the derived control colour and label.
type stateResponse struct {
	SessionID      string       `json:"session_id"`
	URL            string       `json:"url"`
	Title          string       `json:"title"`
	Controlled     bool         `json:"controlled"`
	LearningActive bool         `json:"learning_active"`
	IncidentOpen   bool         `json:"incident_open"`
	AckCount       int          `json:"ack_count"`
	LastAckAt      time.Time    `json:"last_ack_at"`
	AgentOnline    bool         `json:"agent_online"`
	Color          ControlColor `json:"color"`
	Label          string       `json:"label"`
}

func (a *ControlAgent) handleState(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	s := a.session
	a.mu.Unlock()

	cs := DeriveControlState(s.Controlled, s.LearningActive, s.IncidentOpen, true)
	resp := stateResponse{
		SessionID:      s.SessionID,
		URL:            s.URL,
		Title:          s.Title,
		Controlled:     s.Controlled,
		LearningActive: s.LearningActive,
		IncidentOpen:   s.IncidentOpen,
		AckCount:       s.AckCount,
		LastAckAt:      s.LastSeenAt,
		AgentOnline:    true,
		Color:          cs.Color,
		Label:          cs.Label,
	}
	util.JSONResponse(w, http.StatusOK, resp)
}

func (a *ControlAgent) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var e Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		http.Error(w, "invalid event body", http.StatusBadRequest)
		return
	}
	a.mu.Lock()
	a.events = append(a.events, e)
	switch e.Kind {
	case "network_error":
		a.session.IncidentOpen = true
	}
	a.mu.Unlock()
	w.WriteHeader(http.StatusAccepted)
}

// Events returns a snapshot of observer events captured so far.
func (a *ControlAgent) Events() []Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Event, len(a.events))
	copy(out, a.events)
	return out
}

// handleEvents serves the same snapshot Events() returns, for the bridge
// run process to poll over loopback when the control agent runs as a
// detached subprocess (spec §4.3).
func (a *ControlAgent) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	util.JSONResponse(w, http.StatusOK, a.Events())
}

func (a *ControlAgent) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Action string `json:"action"` // refresh|release|close|ack
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid action body", http.StatusBadRequest)
		return
	}

	a.mu.Lock()
	switch body.Action {
	case "release":
		a.session.Controlled = false
	case "ack":
		a.session.AckCount++
		a.session.LastSeenAt = timeNow()
		// ack is the overlay's clear-incident action; release leaves an open
		// incident in place (Open Question c).
		a.session.IncidentOpen = false
	case "refresh":
		// handled by the caller owning the browser process; the agent only
		// records intent here.
	}
	s := a.session
	a.mu.Unlock()

	util.JSONResponse(w, http.StatusOK, map[string]any{"ok": true, "session": s})

	if body.Action == "close" {
		// Shut down after the response is flushed rather than from inside
		// the handler goroutine, so the caller sees its ack.
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		go a.Shutdown()
	}
}

// Session returns a snapshot of the agent's current session state.
func (a *ControlAgent) Session() WebSession {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// UpdateSession replaces the agent's in-memory session snapshot, called
// by the owning process whenever the registry's on-disk copy changes.
func (a *ControlAgent) UpdateSession(ws WebSession) {
	a.mu.Lock()
	a.session = ws
	a.mu.Unlock()
}

// timeNow returns time.Now(); handleAction stamps ack times through it.
func timeNow() time.Time {
	return time.Now()
}
