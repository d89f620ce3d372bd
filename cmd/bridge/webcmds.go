package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWebOpenCmd() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "web-open",
		Short: "open a new controlled web session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := newOps()
			if err != nil {
				return err
			}
			ws, err := ops.WebOpen(url)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %s opened\n", ws.SessionID)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "initial URL to navigate to")
	return cmd
}

func newWebReleaseCmd() *cobra.Command {
	var attach string
	cmd := &cobra.Command{
		Use:   "web-release",
		Short: "release assistant control of a web session without closing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if attach == "" {
				return fmt.Errorf("--attach is required")
			}
			ops, err := newOps()
			if err != nil {
				return err
			}
			if err := ops.WebRelease(attach); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "released %s\n", attach)
			return nil
		},
	}
	cmd.Flags().StringVar(&attach, "attach", "", "session id to release")
	return cmd
}

func newWebCloseCmd() *cobra.Command {
	var attach string
	cmd := &cobra.Command{
		Use:   "web-close",
		Short: "close and forget a web session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if attach == "" {
				return fmt.Errorf("--attach is required")
			}
			ops, err := newOps()
			if err != nil {
				return err
			}
			if err := ops.WebClose(attach); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "closed %s\n", attach)
			return nil
		},
	}
	cmd.Flags().StringVar(&attach, "attach", "", "session id to close")
	return cmd
}
