package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/brennhill/oi-web-bridge/internal/bridgeerr"
	"github.com/brennhill/oi-web-bridge/internal/bridgeops"
)

// configPath is bound once on the root command, grounded on the
// teacher's cmd/dev-console/cli.go resolveCLIConfig "flag beats env
// beats default" precedence — here the config file sits beneath env,
// per internal/config's Load.
var configPath string

var rootCmd = &cobra.Command{
	Use:   "bridge",
	Short: "supervisory bridge between a strategy controller and browser/GUI/shell execution",
	Long: `bridge runs free-text tasks through a guardrail-checked execution engine
(web, gui, or shell mode), always leaving a well-formed report.json and
updated status.json behind, whether the task succeeded or not.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to an optional YAML config overlay")

	rootCmd.AddCommand(
		newRunCmd(),
		newWebOpenCmd(),
		newWebReleaseCmd(),
		newWebCloseCmd(),
		newStatusCmd(),
		newLogsCmd(),
		newDoctorCmd(),
		newLiveCmd(),
		newWatchCmd(),
		newExportEvidenceCmd(),
		newMCPCmd(),
		newControlAgentCmd(),
	)
}

func newOps() (*bridgeops.Ops, error) {
	return bridgeops.New(configPath)
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "bridge:", err)
		os.Exit(bridgeerr.ExitCode(err))
	}
}
