package state

import (
	"os"
	"time"
)

// RunPhase is the lifecycle phase of a run in the global status index,
// backing invariant P1: every run transitions running -> {completed,
// failed} exactly once and never ends in "running".
type RunPhase string

const (
	PhaseRunning   RunPhase = "running"
	PhaseCompleted RunPhase = "completed"
	PhaseFailed    RunPhase = "failed"
)

// StatusEntry is one run's row in the global runs/status.json index.
type StatusEntry struct {
	RunID     string    `json:"run_id"`
	Mode      string    `json:"mode"`
	Phase     RunPhase  `json:"phase"`
	Result    string    `json:"result,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	RunDir    string    `json:"run_dir"`
}

// StatusIndex is the whole-file contents of runs/status.json.
type StatusIndex struct {
	Runs []StatusEntry `json:"runs"`
}

const statusLockTimeout = 5 * time.Second

// UpsertStatus atomically reads, updates (by run_id), and rewrites the
// global status index under a file lock, per spec §5's "single source of
// truth, whole-file atomic rewrite" rule for shared resources.
func UpsertStatus(entry StatusEntry) error {
	path, err := StatusFile()
	if err != nil {
		return err
	}
	return WithLock(path, statusLockTimeout, func() error {
		var idx StatusIndex
		if err := ReadJSON(path, &idx); err != nil && !isNotExist(err) {
			return err
		}
		replaced := false
		for i, r := range idx.Runs {
			if r.RunID == entry.RunID {
				idx.Runs[i] = entry
				replaced = true
				break
			}
		}
		if !replaced {
			idx.Runs = append(idx.Runs, entry)
		}
		return AtomicWriteJSON(path, idx)
	})
}

// LoadStatus reads the global status index. A missing file is treated as
// an empty index, not an error.
func LoadStatus() (StatusIndex, error) {
	path, err := StatusFile()
	if err != nil {
		return StatusIndex{}, err
	}
	var idx StatusIndex
	if err := ReadJSON(path, &idx); err != nil && !isNotExist(err) {
		return StatusIndex{}, err
	}
	return idx, nil
}

func isNotExist(err error) bool {
	return err != nil && os.IsNotExist(err)
}
