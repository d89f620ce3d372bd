package bridgeops

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/brennhill/oi-web-bridge/internal/registry"
	"github.com/brennhill/oi-web-bridge/internal/util"
)

// ensureControlAgent makes sure session has a live control agent (spec
// §4.3/§9: the agent must outlive the run that started it, so buttons in
// the overlay keep working after `bridge run` exits). If the recorded
// port already answers, it's reused as-is. Otherwise a detached
// "__serve-control-agent" subprocess is spawned, the same way the
// teacher's daemon_lifecycle.go detaches its dev-console daemon, and
// ensureControlAgent polls the registry until the subprocess has
// recorded its bound port.
//
// Failure to start an agent is non-fatal: the run proceeds without a
// live overlay rather than failing the whole task over it.
func (o *Ops) ensureControlAgent(session registry.WebSession) (registry.WebSession, error) {
	if registry.AgentReachable(session.AgentPort) {
		return session, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return session, fmt.Errorf("resolve own executable: %w", err)
	}

	cmd := exec.Command(exe, "__serve-control-agent", "--session", session.SessionID)
	util.SetDetachedProcess(cmd)
	if err := cmd.Start(); err != nil {
		return session, fmt.Errorf("spawn control agent: %w", err)
	}
	_ = cmd.Process.Release()

	for i := 0; i < 40; i++ {
		time.Sleep(50 * time.Millisecond)
		reloaded, ok := o.Sessions.Reload(session.SessionID)
		if ok && reloaded.AgentPort != 0 && registry.AgentReachable(reloaded.AgentPort) {
			return reloaded, nil
		}
	}
	return session, fmt.Errorf("control agent did not come up in time")
}

// requestControlAgentShutdown asks a session's detached control agent to
// stop serving. Best-effort: if the agent is already gone there's nothing
// to clean up.
func requestControlAgentShutdown(agentPort int) {
	if agentPort == 0 {
		return
	}
	url := fmt.Sprintf("http://127.0.0.1:%d/action", agentPort)
	client := &http.Client{Timeout: 500 * time.Millisecond}
	_, _ = client.Post(url, "application/json", bytes.NewBufferString(`{"action":"close"}`))
}
