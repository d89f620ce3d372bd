package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureContained_RejectsTraversal(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "evidence"), 0o755))

	_, err := EnsureContained(root, "../../etc/passwd")
	require.ErrorIs(t, err, ErrOutsideRunDir)
}

func TestEnsureContained_AllowsNestedPath(t *testing.T) {
	root := t.TempDir()
	evidenceDir := filepath.Join(root, "evidence")
	require.NoError(t, os.MkdirAll(evidenceDir, 0o755))

	resolved, err := EnsureContained(root, filepath.Join("evidence", "step_0_before.png"))
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(resolved))
}

func TestEnsureContained_RejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(root, "escape")
	require.NoError(t, os.Symlink(outside, link))

	_, err := EnsureContained(root, filepath.Join("escape", "file.txt"))
	require.ErrorIs(t, err, ErrOutsideRunDir)
}

func TestRunLayout_EvidencePathNaming(t *testing.T) {
	t.Setenv(RootDirEnv, t.TempDir())
	layout, err := NewRunLayout("run-1")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(layout.EvidenceDir, "step_3_before.png"), layout.EvidencePath(3, "before", "png"))
}
