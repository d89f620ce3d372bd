package main

import (
	"github.com/spf13/cobra"

	"github.com/brennhill/oi-web-bridge/internal/mcpsurface"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "serve the bridge's operations as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := newOps()
			if err != nil {
				return err
			}
			return mcpsurface.Serve(cmd.Context(), ops)
		},
	}
}
