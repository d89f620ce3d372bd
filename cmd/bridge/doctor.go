package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/brennhill/oi-web-bridge/internal/mcpsurface"
	"github.com/brennhill/oi-web-bridge/internal/state"
)

func newDoctorCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "check that the configured backends and state directory are reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := newOps()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			m := state.Mode(mode)
			ok := true

			report := func(healthy bool, format string, a ...any) {
				prefix := "[OK]"
				if !healthy {
					prefix = "[FAIL]"
					ok = false
				}
				fmt.Fprintf(out, "%s %s\n", prefix, fmt.Sprintf(format, a...))
			}

			if _, lookErr := exec.LookPath(ops.Config.OIBridgeCmd); lookErr != nil {
				report(false, "OI bridge command %q not found on PATH", ops.Config.OIBridgeCmd)
			} else {
				report(true, "OI bridge command %q resolves", ops.Config.OIBridgeCmd)
			}

			if m == state.ModeGUI {
				if ops.Config.Display == "" {
					report(false, "DISPLAY is not set; GUI mode requires an X11 display")
				} else {
					report(true, "DISPLAY=%s", ops.Config.Display)
				}
			}

			if m == state.ModeWeb {
				// Constructing the MCP server is cheap and exercises the
				// same tool-registration path `mcp` would use to serve
				// over stdio, without actually binding stdio here.
				if srv := mcpsurface.New(ops); srv != nil {
					report(true, "MCP stdio surface constructs cleanly")
				} else {
					report(false, "MCP stdio surface failed to construct")
				}
			}

			if writable, dir := checkStateDirWritable(); writable {
				report(true, "run state directory %s is writable", dir)
			} else {
				report(false, "run state directory %s is not writable", dir)
			}

			if !ok {
				return fmt.Errorf("doctor: one or more checks failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "web", "shell|gui|web")
	return cmd
}

func checkStateDirWritable() (bool, string) {
	dir, err := state.RunsDir()
	if err != nil {
		return false, "(unresolvable)"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, dir
	}
	probe, err := os.CreateTemp(dir, ".doctor-probe-*")
	if err != nil {
		return false, dir
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return true, dir
}
