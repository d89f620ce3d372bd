package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/brennhill/oi-web-bridge/internal/state"
	"github.com/brennhill/oi-web-bridge/internal/watch"
)

func newWatchCmd() *cobra.Command {
	var (
		attach    string
		only      string
		sinceLast bool
		notify    bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "live-tail a run's bridge.log as new lines are appended",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveRunID(attach)
			if err != nil {
				return err
			}
			layout, err := state.NewRunLayout(id)
			if err != nil {
				return err
			}

			level := watch.LevelAll
			switch only {
			case "warn":
				level = watch.LevelWarn
			case "error":
				level = watch.LevelError
			}

			w := watch.New(layout.BridgeLog, level, sinceLast, func(line string) {
				if notify {
					fmt.Fprint(cmd.OutOrStdout(), "\a")
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			})

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return w.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&attach, "attach", "last", `run id, or "last"`)
	cmd.Flags().StringVar(&only, "only", "", "warn|error")
	cmd.Flags().BoolVar(&sinceLast, "since-last", false, "start tailing from the file's current end, not its history")
	cmd.Flags().BoolVar(&notify, "notify", false, "ring the terminal bell on each matching line")
	return cmd
}
