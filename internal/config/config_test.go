package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8*time.Second, cfg.Timeouts.WebInteractive)
	require.Equal(t, "minimal", cfg.NoiseMode)
}

func TestLoad_EnvOverridesAndClamps(t *testing.T) {
	t.Setenv("BRIDGE_WEB_INTERACTIVE_TIMEOUT_SECONDS", "120")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 60*time.Second, cfg.Timeouts.WebInteractive, "clamp must cap at 60s")
}

func TestLoad_EnvWinsOverFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/bridge.yaml"
	require.NoError(t, os.WriteFile(path, []byte("noise_mode: debug\n"), 0o644))

	t.Setenv("BRIDGE_OBSERVER_NOISE_MODE", "minimal")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "minimal", cfg.NoiseMode)
}
