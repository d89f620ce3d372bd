// Package watch implements the `watch` command's live-tail behaviour
// (spec §6): push matching lines from a run's bridge.log as they're
// written, instead of polling; report.json is not watched. Grounded
// directly on ppiankov-chainwatch's internal/daemon.InboxWatcher — a
// single-timer debounced fsnotify watcher with zero per-event goroutines —
// retargeted from "new .json file arrived in an inbox directory" to "a
// run's log file changed".
package watch

import (
	"bufio"
	"context"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceInterval coalesces bursts of writes (e.g. several bridge.log
// appends in the same scheduler tick) into a single read.
const debounceInterval = 150 * time.Millisecond

// Level filters which bridge.log lines Watch forwards.
type Level string

const (
	LevelAll   Level = ""
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Watcher tails a run's bridge.log, emitting new lines to onLine as they
// are appended, filtered by level.
type Watcher struct {
	logPath  string
	level    Level
	sinceEnd bool
	onLine   func(line string)
}

// New builds a Watcher over logPath. sinceLast, when true, starts
// tailing from the file's current end rather than replaying history
// (`--since-last`).
func New(logPath string, level Level, sinceLast bool, onLine func(string)) *Watcher {
	return &Watcher{logPath: logPath, level: level, sinceEnd: sinceLast, onLine: onLine}
}

// Run blocks, tailing logPath until ctx is cancelled. Grounded on
// InboxWatcher.Run's shape: one fsnotify.Watcher, a single debounce
// timer reset per event, no per-event goroutines.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := dirOf(w.logPath)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	offset, err := w.initialOffset()
	if err != nil {
		return err
	}

	debounceTimer := time.NewTimer(debounceInterval)
	debounceTimer.Stop()

	flush := func() {
		offset = w.emitNewLines(offset)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-debounceTimer.C:
			flush()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != w.logPath || !event.Has(fsnotify.Write) {
				continue
			}
			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(debounceInterval)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			_ = err
		}
	}
}

func (w *Watcher) initialOffset() (int64, error) {
	if !w.sinceEnd {
		return 0, nil
	}
	info, err := os.Stat(w.logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return info.Size(), nil
}

// emitNewLines reads every complete line appended since offset, calling
// onLine for lines that pass the level filter, and returns the new
// offset.
func (w *Watcher) emitNewLines(offset int64) int64 {
	f, err := os.Open(w.logPath)
	if err != nil {
		return offset
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.Size() < offset {
		return 0 // file truncated or rotated; restart from the top
	}
	if _, err := f.Seek(offset, 0); err != nil {
		return offset
	}

	reader := bufio.NewReader(f)
	var lastOffset = offset
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			break // EOF: a trailing partial line waits for the next flush
		}
		lastOffset += int64(len(line))
		line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
		if w.matchesLevel(line) {
			w.onLine(line)
		}
	}
	return lastOffset
}

func (w *Watcher) matchesLevel(line string) bool {
	switch w.level {
	case LevelWarn:
		return strings.Contains(line, "WARN") || strings.Contains(line, "ERROR")
	case LevelError:
		return strings.Contains(line, "ERROR")
	default:
		return true
	}
}

func dirOf(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return "."
	}
	return path[:idx]
}
