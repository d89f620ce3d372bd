package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcher_EmitsNewLinesOnWrite(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "bridge.log")
	require.NoError(t, os.WriteFile(logPath, []byte("INFO start\n"), 0o644))

	var seen []string
	w := New(logPath, LevelAll, false, func(line string) { seen = append(seen, line) })

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	go func() {
		time.Sleep(50 * time.Millisecond)
		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
		require.NoError(t, err)
		_, _ = f.WriteString("ERROR boom\n")
		f.Close()
	}()

	require.NoError(t, w.Run(ctx))
	require.Contains(t, seen, "ERROR boom")
}

func TestWatcher_LevelFilterDropsInfo(t *testing.T) {
	w := &Watcher{level: LevelError}
	require.False(t, w.matchesLevel("INFO something happened"))
	require.True(t, w.matchesLevel("ERROR something broke"))
	require.False(t, w.matchesLevel("WARN borderline"))
}
