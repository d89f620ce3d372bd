// Package oiproc runs the external operator-agent subprocess ("OI") that
// performs shell/gui-mode work, and normalises its output per spec's
// "Narrative-executor output normalisation" note: the subprocess's
// stdout is a lossy narration channel, mined by line heuristics for
// observations/findings (stderr is only copied to its log file), never trusted for actions[]/evidence_paths[]
// — every candidate "cmd: ..." line is independently guardrail-checked
// before it is allowed into the report. OI's own internal orchestration
// is out of scope; this package only supervises and normalises it.
//
// Grounded on the teacher's internal/bridge/stdio.go line-reading loop,
// simplified from MCP Content-Length framing to plain line scanning
// since OI's output is prose, not a wire protocol.
package oiproc

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/brennhill/oi-web-bridge/internal/guardrail"
	"github.com/brennhill/oi-web-bridge/internal/state"
)

// Result is what supervising an OI run yields: the engine-trusted
// actions that passed guardrail review, plus heuristically mined
// observations/findings, plus every rejected action as a separate
// finding so rejections are visible in the final report.
type Result struct {
	Actions      []string
	Observations []string
	UIFindings   []string
	ExitErr      error
}

// Run spawns cmdName with args plus task appended, streaming stdout to
// oiStdoutPath and stderr to oiStderrPath (spec §6's per-run layout),
// racebound against deadline.
func Run(ctx context.Context, cmdName string, args []string, task string, mode state.Mode, flags state.Flags, homeDir, oiStdoutPath, oiStderrPath string, deadline time.Time) (Result, error) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	cmd := exec.CommandContext(ctx, cmdName, append(args, task)...)
	if homeDir != "" {
		cmd.Env = append(os.Environ(), "HOME="+homeDir)
	}

	stdoutFile, err := os.Create(oiStdoutPath)
	if err != nil {
		return Result{}, err
	}
	defer stdoutFile.Close()
	stderrFile, err := os.Create(oiStderrPath)
	if err != nil {
		return Result{}, err
	}
	defer stderrFile.Close()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, err
	}
	cmd.Stderr = stderrFile

	if err := cmd.Start(); err != nil {
		return Result{}, err
	}

	result := Result{}
	scanLines(stdout, stdoutFile, func(line string) {
		classifyLine(line, mode, flags, &result)
	})

	result.ExitErr = cmd.Wait()
	return result, nil
}

// scanLines reads lines from r, tee-ing every raw line to logSink before
// handing the trimmed line to handle, so the full transcript survives
// even when a line fails normalisation.
func scanLines(r io.Reader, logSink io.Writer, handle func(line string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		io.WriteString(logSink, line+"\n")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		handle(trimmed)
	}
}

// classifyLine applies the line-oriented heuristics spec's normalisation
// note describes: an "OBSERVATION:"-prefixed line becomes an observation,
// a "FINDING:"-prefixed line becomes a ui_finding, and anything matching
// the action shape is independently guardrail-checked before it is
// trusted as an action.
func classifyLine(line string, mode state.Mode, flags state.Flags, result *Result) {
	switch {
	case strings.HasPrefix(line, "OBSERVATION:"):
		result.Observations = append(result.Observations, strings.TrimSpace(strings.TrimPrefix(line, "OBSERVATION:")))
	case strings.HasPrefix(line, "FINDING:"):
		result.UIFindings = append(result.UIFindings, strings.TrimSpace(strings.TrimPrefix(line, "FINDING:")))
	case strings.HasPrefix(line, "cmd:"):
		if v := guardrail.Check(line, mode, flags); v != nil {
			result.UIFindings = append(result.UIFindings, "rejected: "+v.Error())
			return
		}
		result.Actions = append(result.Actions, line)
	}
}
