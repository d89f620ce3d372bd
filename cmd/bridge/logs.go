package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/brennhill/oi-web-bridge/internal/state"
)

// resolveRunID turns "" or "last" into the most recently started run id
// recorded in the global status index.
func resolveRunID(runID string) (string, error) {
	if runID != "" && runID != "last" {
		return runID, nil
	}
	idx, err := state.LoadStatus()
	if err != nil {
		return "", err
	}
	if len(idx.Runs) == 0 {
		return "", fmt.Errorf("no runs recorded yet")
	}
	sort.Slice(idx.Runs, func(i, j int) bool { return idx.Runs[i].StartedAt.Before(idx.Runs[j].StartedAt) })
	return idx.Runs[len(idx.Runs)-1].RunID, nil
}

func newLogsCmd() *cobra.Command {
	var (
		attach string
		tail   int
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "print the tail of a run's bridge.log",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveRunID(attach)
			if err != nil {
				return err
			}
			layout, err := state.NewRunLayout(id)
			if err != nil {
				return err
			}
			lines, err := tailLines(layout.BridgeLog, tail)
			if err != nil {
				return err
			}
			for _, l := range lines {
				fmt.Fprintln(cmd.OutOrStdout(), l)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&attach, "attach", "last", `run id, or "last"`)
	cmd.Flags().IntVar(&tail, "tail", 50, "number of trailing lines to print")
	return cmd
}

func tailLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var all []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		all = append(all, scanner.Text())
	}
	if len(all) <= n {
		return all, nil
	}
	return all[len(all)-n:], nil
}
