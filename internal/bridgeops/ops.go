// Package bridgeops is the single engine both the CLI tree (cmd/bridge)
// and the MCP tool surface (internal/mcpsurface) call into, so neither
// front can drift from the other — grounded on the teacher's
// cmd/dev-console/main.go *Server, which the HTTP routes and the MCP
// stdio handler both drive directly rather than each re-implementing
// request handling.
package bridgeops

import (
	"context"
	"fmt"
	"time"

	"github.com/brennhill/oi-web-bridge/internal/bridgeerr"
	"github.com/brennhill/oi-web-bridge/internal/config"
	"github.com/brennhill/oi-web-bridge/internal/guardrail"
	"github.com/brennhill/oi-web-bridge/internal/idgen"
	"github.com/brennhill/oi-web-bridge/internal/learning"
	"github.com/brennhill/oi-web-bridge/internal/logging"
	"github.com/brennhill/oi-web-bridge/internal/oiproc"
	"github.com/brennhill/oi-web-bridge/internal/registry"
	"github.com/brennhill/oi-web-bridge/internal/report"
	"github.com/brennhill/oi-web-bridge/internal/reporter"
	"github.com/brennhill/oi-web-bridge/internal/state"
	"github.com/brennhill/oi-web-bridge/internal/step"
	"github.com/brennhill/oi-web-bridge/internal/webengine"
)

// Ops holds the resolved config and shared registries every operation
// needs. One Ops instance is constructed at process start and handed to
// both the CLI command tree and the MCP server.
type Ops struct {
	Config   config.Config
	Sessions *registry.Registry
	Learned  *learning.Store
}

// New resolves config and opens the session registry and global learning
// store, creating their backing directories if needed.
func New(configPath string) (*Ops, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	sessionsDir, err := state.WebSessionsDir()
	if err != nil {
		return nil, err
	}
	sessions, err := registry.New(sessionsDir)
	if err != nil {
		return nil, err
	}
	learningFile, err := state.GlobalLearningFile()
	if err != nil {
		return nil, err
	}
	learned, err := learning.Load(learningFile)
	if err != nil {
		return nil, err
	}
	return &Ops{Config: cfg, Sessions: sessions, Learned: learned}, nil
}

// RunParams mirrors the `run` command's flags (spec §6).
type RunParams struct {
	Task            string
	Mode            state.Mode
	Verified        bool
	Visual          bool
	HumanMouse      bool
	Teaching        bool
	ConfirmSensitve bool
	KeepOpen        bool
	AttachSessionID string
	NoiseMode       state.NoiseMode
}

// Run executes one task end to end: allocates a run workspace, dispatches
// to the web engine or the OI subprocess supervisor depending on mode,
// and always finalises a report, even on failure (spec §7's "the
// finaliser always runs").
func (o *Ops) Run(ctx context.Context, p RunParams) (report.OIReport, error) {
	startedAt := time.Now()
	runID := idgen.Unique(idgen.New, func(id string) bool {
		layout, err := state.NewRunLayout(id)
		return err == nil && idgen.DirExists(layout.RunDir)
	})

	layout, err := state.NewRunLayout(runID)
	if err != nil {
		return report.OIReport{}, err
	}
	if err := layout.Create(); err != nil {
		return report.OIReport{}, err
	}

	flags := state.Flags{
		Verified:        p.Verified,
		Visual:          p.Visual,
		HumanMouse:      p.HumanMouse,
		Teaching:        p.Teaching,
		ConfirmSensitve: p.ConfirmSensitve,
		KeepOpen:        p.KeepOpen,
		AttachSessionID: p.AttachSessionID,
	}
	noiseMode := p.NoiseMode
	if noiseMode == "" {
		noiseMode = state.NoiseMode(o.Config.NoiseMode)
	}

	if err := state.AtomicWriteJSON(layout.PromptFile, state.Prompt{
		RunID: runID, Task: p.Task, Mode: p.Mode, Flags: flags, NoiseMode: noiseMode, CreatedAt: startedAt,
	}); err != nil {
		return report.OIReport{}, err
	}
	if err := state.UpsertStatus(state.StatusEntry{
		RunID: runID, Mode: string(p.Mode), Phase: state.PhaseRunning, StartedAt: startedAt, RunDir: layout.RunDir,
	}); err != nil {
		return report.OIReport{}, err
	}

	runLog, closeLog, logErr := logging.NewRunLogger(layout.BridgeLog)
	if logErr == nil {
		defer closeLog.Close()
	}
	logLine := func(format string, args ...any) {
		if runLog != nil {
			runLog.Infof(format, args...)
		}
	}

	logLine("run %s starting (mode=%s)", runID, p.Mode)

	var outcome reporter.RunOutcome
	var runErr error
	if p.Mode == state.ModeWeb {
		outcome, runErr = o.runWeb(ctx, layout, p, flags, noiseMode)
	} else {
		outcome, runErr = o.runOI(ctx, layout, p, flags)
	}
	outcome.TaskID = runID
	outcome.Goal = p.Task

	if runErr != nil {
		logLine("run %s failed: %v", runID, runErr)
	} else {
		logLine("run %s finished: %d action(s), %d finding(s)", runID, len(outcome.Actions), len(outcome.UIFindings))
	}

	if runErr != nil {
		outcome.BootstrapFailed = true
		outcome.Result = report.ResultFailed
		outcome.UIFindings = append(outcome.UIFindings, runErr.Error())
	}

	if err := reporter.Finalize(layout, p.Mode, p.Verified, startedAt, outcome); err != nil {
		_ = reporter.FinalizeFatal(layout, p.Mode, startedAt, err)
		return report.OIReport{}, err
	}

	var final report.OIReport
	if err := state.ReadJSON(layout.ReportFile, &final); err != nil {
		return report.OIReport{}, err
	}
	return final, nil
}

func (o *Ops) runWeb(ctx context.Context, layout *state.RunLayout, p RunParams, flags state.Flags, noiseMode state.NoiseMode) (reporter.RunOutcome, error) {
	plan, err := step.ParseTask(p.Task, state.ModeWeb, flags)
	if err != nil {
		return reporter.RunOutcome{}, bridgeerr.Wrap(bridgeerr.KindParse, "plan could not be built", err)
	}

	session := registry.WebSession{SessionID: idgen.New(), CurrentRunID: layout.RunID, Controlled: true}
	if p.AttachSessionID != "" {
		if existing, ok := o.Sessions.Get(p.AttachSessionID); ok {
			session = existing
			session.CurrentRunID = layout.RunID
			session.Controlled = true
		}
	}
	_ = o.Sessions.Put(session)
	if updated, err := o.ensureControlAgent(session); err == nil {
		session = updated
	}

	page, err := webengine.NewNarrativePage(ctx, o.Config.OIBridgeCmd, []string{"--playwright-driver"}, layout.OIHomeDir)
	if err != nil {
		return reporter.RunOutcome{}, bridgeerr.Wrap(bridgeerr.KindBootstrap, "failed to start narrative executor", err)
	}
	defer page.Close()

	engine := &webengine.Engine{
		Page:       page,
		Layout:     layout,
		Session:    session,
		PutSession: o.Sessions.Put,
		Learned:    o.Learned,
		Config: webengine.EngineConfig{
			Mode:               state.ModeWeb,
			Flags:              flags,
			NoiseMode:          noiseMode,
			InteractiveTimeout: o.Config.Timeouts.WebInteractive,
			StepHardTimeout:    o.Config.Timeouts.WebStepHard,
			RunHardTimeout:     o.Config.Timeouts.WebRunHard,
			LearningWindow:     o.Config.Timeouts.LearningWindow,
		},
	}

	if err := engine.Bootstrap(); err != nil {
		return reporter.RunOutcome{}, err
	}
	result := engine.Run(ctx, plan)

	interactive, verified := 0, 0
	for i, oc := range result.Outcomes {
		if oc.Status != report.StatusOK || i >= len(plan.Steps) || plan.Steps[i].Kind == step.KindVerifyVisible {
			continue
		}
		interactive++
		if next := i + 1; next < len(result.Outcomes) && next < len(plan.Steps) &&
			plan.Steps[next].Kind == step.KindVerifyVisible && result.Outcomes[next].Status == report.StatusOK {
			verified++
		}
	}

	if !flags.KeepOpen && !session.LearningActive {
		session.Controlled = false
		_ = o.Sessions.Put(session)
	}
	if learningFile, err := state.GlobalLearningFile(); err == nil {
		_ = o.Learned.Save(learningFile)
	}

	return reporter.RunOutcome{
		Actions:              result.Actions,
		Observations:         result.Observations,
		ConsoleErrors:        result.ConsoleErrors,
		NetworkFindings:      result.NetworkFindings,
		UIFindings:           result.UIFindings,
		EvidencePaths:        result.EvidencePaths,
		Result:               classifyWebResult(result),
		BootstrapFailed:      result.BootstrapFailed,
		InteractiveStepCount: interactive,
		VerifyPerformedCount: verified,
	}, nil
}

func classifyWebResult(r webengine.RunResult) report.Result {
	summaries := make([]report.StepSummary, 0, len(r.Outcomes))
	for _, oc := range r.Outcomes {
		summaries = append(summaries, report.StepSummary{
			Status:      oc.Status,
			Interactive: true,
		})
	}
	return report.Classify(summaries, r.RunTimedOut, r.BootstrapFailed)
}

func (o *Ops) runOI(ctx context.Context, layout *state.RunLayout, p RunParams, flags state.Flags) (reporter.RunOutcome, error) {
	if v := guardrail.Check("cmd: "+p.Task, p.Mode, flags); v != nil {
		return reporter.RunOutcome{}, bridgeerr.Wrap(bridgeerr.KindGuardrail, v.Error(), v)
	}

	deadline := time.Now().Add(o.Config.Timeouts.OIBridge)
	result, err := oiproc.Run(ctx, o.Config.OIBridgeCmd, o.Config.OIBridgeArgs, p.Task, p.Mode, flags, layout.OIHomeDir, layout.OIStdout, layout.OIStderr, deadline)
	if err != nil {
		return reporter.RunOutcome{}, bridgeerr.Wrap(bridgeerr.KindBootstrap, "OI subprocess failed to start", err)
	}

	outcome := reporter.RunOutcome{
		Actions:      result.Actions,
		Observations: result.Observations,
		UIFindings:   result.UIFindings,
	}
	switch {
	case result.ExitErr != nil && len(result.Actions) == 0:
		outcome.Result = report.ResultFailed
	case len(result.Actions) > 0:
		outcome.Result = report.ResultSuccess
	default:
		outcome.Result = report.ResultPartial
	}
	return outcome, nil
}

// Status returns the global run status index.
func (o *Ops) Status() (state.StatusIndex, error) {
	return state.LoadStatus()
}

// WebOpen creates a fresh WebSession without running a task against it.
func (o *Ops) WebOpen(url string) (registry.WebSession, error) {
	ws := registry.WebSession{SessionID: idgen.New(), URL: url, Controlled: true, LastSeenAt: time.Now()}
	if err := o.Sessions.Put(ws); err != nil {
		return registry.WebSession{}, err
	}
	if updated, err := o.ensureControlAgent(ws); err == nil {
		ws = updated
	}
	return ws, nil
}

// WebRelease clears control of a session without closing the browser.
func (o *Ops) WebRelease(sessionID string) error {
	ws, ok := o.Sessions.Get(sessionID)
	if !ok {
		return fmt.Errorf("no such session: %s", sessionID)
	}
	ws.Controlled = false
	return o.Sessions.Put(ws)
}

// WebClose removes a session from the registry (spec §5: "release is
// required before another run may attach"), asking any live control
// agent to shut down first so it doesn't linger as an orphaned process.
func (o *Ops) WebClose(sessionID string) error {
	if ws, ok := o.Sessions.Get(sessionID); ok {
		requestControlAgentShutdown(ws.AgentPort)
	}
	return o.Sessions.Remove(sessionID)
}
