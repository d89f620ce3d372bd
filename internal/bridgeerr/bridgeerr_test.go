package bridgeerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExitCode_MapsKnownKinds(t *testing.T) {
	require.Equal(t, 0, ExitCode(nil))
	require.Equal(t, 2, ExitCode(New(KindGuardrail, "rejected")))
	require.Equal(t, 3, ExitCode(New(KindTimeout, "deadline")))
	require.Equal(t, 4, ExitCode(New(KindBootstrap, "no browser")))
	require.Equal(t, 5, ExitCode(New(KindInvalidArgs, "bad flag")))
	require.Equal(t, 1, ExitCode(New(KindTarget, "not found")))
	require.Equal(t, 1, ExitCode(errors.New("plain error")))
}

func TestWrap_Unwraps(t *testing.T) {
	inner := errors.New("boom")
	wrapped := Wrap(KindEvidence, "write failed", inner)
	require.ErrorIs(t, wrapped, inner)
}
