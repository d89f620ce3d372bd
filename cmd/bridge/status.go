package main

import (
	"github.com/spf13/cobra"

	"github.com/brennhill/oi-web-bridge/internal/humanout"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "list recent run status entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := newOps()
			if err != nil {
				return err
			}
			idx, err := ops.Status()
			if err != nil {
				return err
			}
			humanout.WriteStatusTable(cmd.OutOrStdout(), idx)
			return nil
		},
	}
}
