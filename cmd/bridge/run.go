package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brennhill/oi-web-bridge/internal/bridgeops"
	"github.com/brennhill/oi-web-bridge/internal/humanout"
	"github.com/brennhill/oi-web-bridge/internal/state"
)

// newRunCmd builds `run`, plus its `gui-run`/`web-run` aliases. The
// alias name picks the default mode when --mode wasn't given explicitly,
// grounded on ppiankov-chainwatch's nullbot CLI pattern of cobra.Command
// with Flags().Changed checks driving alias-sensitive defaults.
func newRunCmd() *cobra.Command {
	var (
		mode             string
		verified         bool
		visual           bool
		humanMouse       bool
		teaching         bool
		confirmSensitive bool
		keepOpen         bool
		attach           string
	)

	cmd := &cobra.Command{
		Use:     "run <task>",
		Aliases: []string{"gui-run", "web-run"},
		Short:   "run a free-text task through the guardrail and reporting layer",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := newOps()
			if err != nil {
				return err
			}

			m := state.Mode(mode)
			if !cmd.Flags().Changed("mode") {
				switch cmd.CalledAs() {
				case "gui-run":
					m = state.ModeGUI
				case "web-run":
					m = state.ModeWeb
				}
			}

			rep, err := ops.Run(context.Background(), bridgeops.RunParams{
				Task:            args[0],
				Mode:            m,
				Verified:        verified,
				Visual:          visual,
				HumanMouse:      humanMouse,
				Teaching:        teaching,
				ConfirmSensitve: confirmSensitive,
				KeepOpen:        keepOpen,
				AttachSessionID: attach,
			})
			if err != nil {
				return err
			}

			humanout.WriteReportSummary(cmd.OutOrStdout(), rep)
			if rep.Result == "failed" {
				return fmt.Errorf("run %s failed", rep.TaskID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "web", "shell|gui|web")
	cmd.Flags().BoolVar(&verified, "verified", false, "enforce verify-finding invariants")
	cmd.Flags().BoolVar(&visual, "visual", false, "capture visual evidence more aggressively")
	cmd.Flags().BoolVar(&humanMouse, "human-mouse", false, "use human-like pointer motion for interactions")
	cmd.Flags().BoolVar(&teaching, "teaching", false, "enable teaching-mode handoff when a step gets stuck")
	cmd.Flags().BoolVar(&confirmSensitive, "confirm-sensitive", false, "require confirmation before sensitive GUI actions")
	cmd.Flags().BoolVar(&keepOpen, "keep-open", false, "keep the web session controlled after the run ends")
	cmd.Flags().StringVar(&attach, "attach", "", "attach to an existing web session id")

	return cmd
}
