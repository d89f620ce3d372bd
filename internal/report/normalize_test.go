package report

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize_DropsTraversalEvidencePath(t *testing.T) {
	runDir := t.TempDir()
	raw := RawReport{
		TaskID:        "t1",
		Goal:          "demo",
		EvidencePaths: []string{"../../etc/passwd", filepath.Join(runDir, "evidence", "step_0_before.png")},
		Result:        "success",
	}

	out := Normalize(raw, runDir)
	require.Len(t, out.EvidencePaths, 1)
	require.NotContains(t, out.EvidencePaths[0], "passwd")
	require.Len(t, out.UIFindings, 1)
	require.Contains(t, out.UIFindings[0], "guardrail")
}

func TestNormalize_DropsMalformedActions(t *testing.T) {
	runDir := t.TempDir()
	raw := RawReport{
		Actions: []string{"cmd: playwright click selector:#x", "rm -rf /"},
		Result:  "partial",
	}

	out := Normalize(raw, runDir)
	require.Equal(t, []string{"cmd: playwright click selector:#x"}, out.Actions)
	require.Len(t, out.UIFindings, 1)
	require.Contains(t, out.UIFindings[0], "malformed action")
}

func TestNormalize_DedupesPreservingOrder(t *testing.T) {
	runDir := t.TempDir()
	raw := RawReport{
		Observations: []string{"a", "b", "a", "c"},
		Result:       "success",
	}
	out := Normalize(raw, runDir)
	require.Equal(t, []string{"a", "b", "c"}, out.Observations)
}

func TestNormalize_CoercesUnknownResultToFailed(t *testing.T) {
	runDir := t.TempDir()
	out := Normalize(RawReport{Result: "nonsense"}, runDir)
	require.Equal(t, ResultFailed, out.Result)
}

func TestClassify_AllOKAndVerifiedIsSuccess(t *testing.T) {
	steps := []StepSummary{
		{Status: StatusOK, Interactive: true},
		{Status: StatusOK, Interactive: true, IsVerify: true, VerifyOK: true},
	}
	require.Equal(t, ResultSuccess, Classify(steps, false, false))
}

func TestClassify_MixedOKAndFailureIsPartial(t *testing.T) {
	steps := []StepSummary{
		{Status: StatusOK, Interactive: true},
		{Status: StatusTimeout, Interactive: true},
	}
	require.Equal(t, ResultPartial, Classify(steps, false, false))
}

func TestClassify_ZeroOKIsFailed(t *testing.T) {
	steps := []StepSummary{
		{Status: StatusTimeout, Interactive: true},
	}
	require.Equal(t, ResultFailed, Classify(steps, false, false))
}

func TestClassify_BootstrapFailureIsFailed(t *testing.T) {
	require.Equal(t, ResultFailed, Classify(nil, false, true))
}

func TestClassify_RunTimeoutWithOKIsPartial(t *testing.T) {
	steps := []StepSummary{{Status: StatusOK, Interactive: true}}
	require.Equal(t, ResultPartial, Classify(steps, true, false))
}

func TestClassify_RunTimeoutWithNoOKIsFailed(t *testing.T) {
	require.Equal(t, ResultFailed, Classify(nil, true, false))
}
