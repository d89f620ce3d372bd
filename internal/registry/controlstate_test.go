package registry

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveControlState_FirstMatchWins(t *testing.T) {
	require.Equal(t, ColorRed, DeriveControlState(true, true, true, true).Color, "incident_open beats everything else")
	require.Equal(t, ColorOrange, DeriveControlState(true, true, false, true).Color, "learning_active beats controlled")
	require.Equal(t, ColorBlue, DeriveControlState(true, false, false, true).Color)
	require.Equal(t, ColorGreen, DeriveControlState(false, false, false, true).Color)
	require.Equal(t, ColorGray, DeriveControlState(false, false, false, false).Color)
}

func TestInstallOverlay(t *testing.T) {
	require.True(t, InstallOverlay(true, false, false))
	require.True(t, InstallOverlay(false, true, false))
	require.True(t, InstallOverlay(false, false, true))
	require.False(t, InstallOverlay(false, false, false))
}

func TestRegistry_PutGetListRemove(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir)
	require.NoError(t, err)

	ws := WebSession{SessionID: "s1", PID: 1234}
	require.NoError(t, r.Put(ws))

	got, ok := r.Get("s1")
	require.True(t, ok)
	require.Equal(t, 1234, got.PID)

	require.Len(t, r.List(), 1)
	require.NoError(t, r.Remove("s1"))
	_, ok = r.Get("s1")
	require.False(t, ok)
}

func TestRegistry_ReloadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, r.Put(WebSession{SessionID: "s2"}))

	reloaded, err := New(dir)
	require.NoError(t, err)
	_, ok := reloaded.Get("s2")
	require.True(t, ok)
}

func TestRegistry_PutWritesWellFormedJSON(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, r.Put(WebSession{SessionID: "s3"}))

	data, err := os.ReadFile(filepath.Join(dir, "s3.json"))
	require.NoError(t, err)
	var ws WebSession
	require.NoError(t, json.Unmarshal(data, &ws))
	require.Equal(t, "s3", ws.SessionID)
}

func TestControlAgent_StateAndAction(t *testing.T) {
	agent, err := NewControlAgent(WebSession{SessionID: "s4", Controlled: true})
	require.NoError(t, err)
	go agent.Serve()
	defer agent.Shutdown()

	base := "http://127.0.0.1:" + strconv.Itoa(agent.Port())

	resp, err := http.Get(base + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	var st stateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	require.Equal(t, ColorBlue, st.Color)

	payload, _ := json.Marshal(map[string]string{"action": "release"})
	actionResp, err := http.Post(base+"/action", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer actionResp.Body.Close()
	require.Equal(t, http.StatusOK, actionResp.StatusCode)

	require.False(t, agent.Session().Controlled)
}

func TestControlAgent_EventThenEvents(t *testing.T) {
	agent, err := NewControlAgent(WebSession{SessionID: "s5"})
	require.NoError(t, err)
	go agent.Serve()
	defer agent.Shutdown()

	base := "http://127.0.0.1:" + strconv.Itoa(agent.Port())

	detail, _ := json.Marshal(ManualClickDetail{Selector: "#entrar", InMainDocument: true})
	body, _ := json.Marshal(Event{Kind: "manual_click", Detail: string(detail)})
	postResp, err := http.Post(base+"/event", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, postResp.StatusCode)
	postResp.Body.Close()

	getResp, err := http.Get(base + "/events")
	require.NoError(t, err)
	defer getResp.Body.Close()
	var events []Event
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&events))
	require.Len(t, events, 1)
	require.Equal(t, "manual_click", events[0].Kind)

	var d ManualClickDetail
	require.NoError(t, json.Unmarshal([]byte(events[0].Detail), &d))
	require.Equal(t, "#entrar", d.Selector)
	require.True(t, d.InMainDocument)
}
