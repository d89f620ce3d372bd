package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/brennhill/oi-web-bridge/internal/bridgeops"
	"github.com/brennhill/oi-web-bridge/internal/humanout"
	"github.com/brennhill/oi-web-bridge/internal/registry"
)

const livePollInterval = 2 * time.Second

// liveState mirrors the public fields of registry's GET /state wire
// response; the server-side struct is unexported, so live re-declares
// only the fields it renders.
type liveState struct {
	Color registry.ControlColor `json:"color"`
	Label string                `json:"label"`
}

func newLiveCmd() *cobra.Command {
	var attach string
	cmd := &cobra.Command{
		Use:   "live",
		Short: "poll a web session's control-agent state until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := newOps()
			if err != nil {
				return err
			}
			id, err := resolveSessionID(ops, attach)
			if err != nil {
				return err
			}

			ticker := time.NewTicker(livePollInterval)
			defer ticker.Stop()

			ctx := cmd.Context()

			for {
				ws, ok := ops.Sessions.Get(id)
				if !ok {
					return fmt.Errorf("no such session: %s", id)
				}
				st, err := fetchLiveState(ws.AgentPort)
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "[gray] agent unreachable: %v\n", err)
				} else {
					humanout.WriteControlState(cmd.OutOrStdout(), registry.ControlState{Color: st.Color, Label: st.Label})
				}

				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}
	cmd.Flags().StringVar(&attach, "attach", "last", `session id, or "last"`)
	return cmd
}

func fetchLiveState(port int) (liveState, error) {
	var st liveState
	if port == 0 {
		return st, fmt.Errorf("no control agent port recorded for this session")
	}
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/state", port))
	if err != nil {
		return st, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, err
	}
	return st, nil
}

func resolveSessionID(ops *bridgeops.Ops, id string) (string, error) {
	if id != "" && id != "last" {
		return id, nil
	}
	sessions := ops.Sessions.List()
	if len(sessions) == 0 {
		return "", fmt.Errorf("no web sessions recorded yet")
	}
	latest := sessions[0]
	for _, s := range sessions[1:] {
		if s.LastSeenAt.After(latest.LastSeenAt) {
			latest = s
		}
	}
	return latest.SessionID, nil
}
