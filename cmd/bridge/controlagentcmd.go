package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/brennhill/oi-web-bridge/internal/registry"
	"github.com/brennhill/oi-web-bridge/internal/util"
)

// newControlAgentCmd is the detached subprocess bridgeops.ensureControlAgent
// spawns so a session's control agent survives past the `bridge run` that
// started it. Hidden since operators never invoke it by hand.
func newControlAgentCmd() *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:    "__serve-control-agent",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := newOps()
			if err != nil {
				return err
			}
			session, ok := ops.Sessions.Get(sessionID)
			if !ok {
				return fmt.Errorf("no such session: %s", sessionID)
			}

			agent, err := registry.NewControlAgent(session)
			if err != nil {
				return err
			}
			session.AgentPort = agent.Port()
			if err := ops.Sessions.Put(session); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			util.SafeGo(func() {
				<-ctx.Done()
				_ = agent.Shutdown()
			})

			return agent.Serve()
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to serve a control agent for")
	return cmd
}
