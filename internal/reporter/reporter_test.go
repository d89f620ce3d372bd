package reporter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brennhill/oi-web-bridge/internal/report"
	"github.com/brennhill/oi-web-bridge/internal/state"
	"github.com/stretchr/testify/require"
)

func testLayout(t *testing.T) *state.RunLayout {
	t.Helper()
	dir := t.TempDir()
	runDir := filepath.Join(dir, "run1")
	require.NoError(t, os.MkdirAll(filepath.Join(runDir, "evidence"), 0o755))
	t.Setenv(state.RootDirEnv, dir)
	return &state.RunLayout{
		RunID:      "run1",
		RunDir:     runDir,
		ReportFile: filepath.Join(runDir, "report.json"),
	}
}

func TestFinalize_WritesWellFormedReportAndStatus(t *testing.T) {
	layout := testLayout(t)

	outcome := RunOutcome{
		TaskID:  "run1",
		Goal:    "open example.com",
		Actions: []string{"cmd: playwright navigate https://example.com"},
		Result:  report.ResultSuccess,
	}

	require.NoError(t, Finalize(layout, state.ModeWeb, false, time.Now(), outcome))

	data, err := os.ReadFile(layout.ReportFile)
	require.NoError(t, err)
	var out report.OIReport
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, report.ResultSuccess, out.Result)

	idx, err := state.LoadStatus()
	require.NoError(t, err)
	require.Len(t, idx.Runs, 1)
	require.Equal(t, state.PhaseCompleted, idx.Runs[0].Phase)
}

func TestFinalize_VerifiedModeFailsWithoutVerifyFinding(t *testing.T) {
	layout := testLayout(t)

	outcome := RunOutcome{
		TaskID:               "run1",
		Actions:              []string{"cmd: playwright click #submit"},
		Result:               report.ResultSuccess,
		InteractiveStepCount: 1,
		VerifyPerformedCount: 0,
	}

	require.NoError(t, Finalize(layout, state.ModeWeb, true, time.Now(), outcome))

	data, err := os.ReadFile(layout.ReportFile)
	require.NoError(t, err)
	var out report.OIReport
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, report.ResultFailed, out.Result)
	require.NotEmpty(t, out.UIFindings)
}

func TestFinalizeFatal_WritesFailedReport(t *testing.T) {
	layout := testLayout(t)

	require.NoError(t, FinalizeFatal(layout, state.ModeWeb, time.Now(), assertErr{}))

	data, err := os.ReadFile(layout.ReportFile)
	require.NoError(t, err)
	var out report.OIReport
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, report.ResultFailed, out.Result)
	require.Contains(t, out.UIFindings[0], "fatal:")
}

type assertErr struct{}

func (assertErr) Error() string { return "engine panicked" }
