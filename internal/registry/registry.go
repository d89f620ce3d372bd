// Package registry implements the on-disk session registry (spec §4.3):
// a keyed, insertion-ordered store of WebSessions (no capacity limit and
// no eviction), liveness probing, and whole-file atomic rewrites under a per-session lock.
// Grounded on the teacher's internal/session.SessionManager (mutex-guarded
// map + order slice, evict-oldest-at-capacity) generalized from "named DOM
// snapshots" to "named browser sessions", plus cmd/dev-console's liveness
// probe pattern and internal/bridge/conn.go's connection-health helpers.
package registry

import (
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/brennhill/oi-web-bridge/internal/bridge"
	"github.com/brennhill/oi-web-bridge/internal/state"
)

// WebSession is a persistent browser session (spec §3).
type WebSession struct {
	SessionID      string    `json:"session_id"`
	PID            int       `json:"pid"`
	CDPEndpoint    string    `json:"cdp_endpoint"`
	URL            string    `json:"url"`
	Title          string    `json:"title"`
	Controlled     bool      `json:"controlled"`
	LearningActive bool      `json:"learning_active"`
	IncidentOpen   bool      `json:"incident_open"`
	AckCount       int       `json:"ack_count"`
	LastSeenAt     time.Time `json:"last_seen_at"`
	AgentPort      int       `json:"agent_port"`

	// CurrentRunID breaks the WebSession<->RunContext cycle with an index
	// instead of a pointer (spec §9 "break with indices" design note).
	CurrentRunID string `json:"current_run_id,omitempty"`
}

// Registry is the in-memory view of the on-disk session store, mirroring
// SessionManager's map+order shape.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*WebSession
	order    []string
	dir      string // runs/web_sessions/
}

// New returns a registry backed by dir (runs/web_sessions/), loading any
// existing *.json session files already on disk.
func New(dir string) (*Registry, error) {
	r := &Registry{sessions: make(map[string]*WebSession), dir: dir}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		var ws WebSession
		if err := state.ReadJSON(filepath.Join(dir, e.Name()), &ws); err != nil {
			continue // corrupt/partial file; skip rather than fail the whole load
		}
		r.sessions[ws.SessionID] = &ws
		r.order = append(r.order, ws.SessionID)
	}
	return r, nil
}

func (r *Registry) sessionPath(id string) string {
	return filepath.Join(r.dir, id+".json")
}

// Put registers or overwrites a session, atomically rewriting its file
// under a per-session lock (spec §5's "whole-file atomic rewrites under
// a file lock per session_id").
func (r *Registry) Put(ws WebSession) error {
	path := r.sessionPath(ws.SessionID)
	err := state.WithLock(path, 5*time.Second, func() error {
		return state.AtomicWriteJSON(path, ws)
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[ws.SessionID]; !exists {
		r.order = append(r.order, ws.SessionID)
	}
	cp := ws
	r.sessions[ws.SessionID] = &cp
	return nil
}

// Reload re-reads a session's file from disk and refreshes the in-memory
// cache, picking up writes made by another process (notably a detached
// control-agent subprocess recording the port it bound after the parent
// bridge run already returned).
func (r *Registry) Reload(id string) (WebSession, bool) {
	var ws WebSession
	if err := state.ReadJSON(r.sessionPath(id), &ws); err != nil {
		return WebSession{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[id]; !exists {
		r.order = append(r.order, id)
	}
	cp := ws
	r.sessions[id] = &cp
	return ws, true
}

// Get returns a copy of the in-memory session state, or false if unknown.
func (r *Registry) Get(id string) (WebSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ws, ok := r.sessions[id]
	if !ok {
		return WebSession{}, false
	}
	return *ws, true
}

// List returns every known session in insertion order.
func (r *Registry) List() []WebSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]WebSession, 0, len(r.order))
	for _, id := range r.order {
		if ws, ok := r.sessions[id]; ok {
			out = append(out, *ws)
		}
	}
	return out
}

// Remove deletes a session's file and in-memory entry (web-close, or a
// liveness probe that found the session dead).
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	delete(r.sessions, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	err := os.Remove(r.sessionPath(id))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ProcessAlive reports whether pid still exists (POSIX: signal 0 probe).
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// CDPReachable probes the browser's remote-debugging endpoint
// (http://host:port/json/version), reusing the teacher's short-timeout
// loopback-probe style from bridge.IsServerRunning.
func CDPReachable(cdpEndpoint string) bool {
	if cdpEndpoint == "" {
		return false
	}
	client := &http.Client{Timeout: 500 * time.Millisecond}
	resp, err := client.Get(cdpEndpoint + "/json/version") // #nosec G704 -- localhost-only CDP probe
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// AgentReachable probes the session's control agent loopback port.
func AgentReachable(agentPort int) bool {
	return bridge.IsServerRunning(agentPort)
}

// Liveness is the three-part probe spec §4.3 requires before any
// --attach: process alive, CDP reachable, agent responds.
type Liveness struct {
	ProcessAlive bool
	CDPReachable bool
	AgentOnline  bool
}

func (l Liveness) OK() bool {
	return l.ProcessAlive && l.CDPReachable && l.AgentOnline
}

// Probe computes Liveness for a session and, on failure, removes it from
// the registry and marks it closed (refusing any subsequent attach).
func (r *Registry) Probe(ws WebSession) Liveness {
	l := Liveness{
		ProcessAlive: ProcessAlive(ws.PID),
		CDPReachable: CDPReachable(ws.CDPEndpoint),
		AgentOnline:  AgentReachable(ws.AgentPort),
	}
	if !l.OK() {
		_ = r.Remove(ws.SessionID)
	}
	return l
}
