// Package idgen generates collision-suffixed, sortable identifiers for
// runs and web sessions (spec §3's RunContext.run_id and WebSession.session_id).
package idgen

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// New returns a fresh "<unix-ts>-<uuid-short>" identifier. The short
// uuid suffix avoids collisions between runs started in the same second
// without relying on process id, which is reused quickly on short-lived
// CLI invocations.
func New() string {
	return fmt.Sprintf("%d-%s", time.Now().Unix(), shortUUID())
}

func shortUUID() string {
	id := uuid.New().String()
	return id[:8]
}

// Unique calls candidate() to generate ids and exists() to check them,
// appending a monotonic "-2", "-3", ... suffix on collision so the
// resulting id stays sortable and debuggable rather than retrying with a
// fresh random value (per SPEC_FULL.md §3 field notes).
func Unique(candidate func() string, exists func(id string) bool) string {
	id := candidate()
	if !exists(id) {
		return id
	}
	for n := 2; ; n++ {
		attempt := fmt.Sprintf("%s-%d", id, n)
		if !exists(attempt) {
			return attempt
		}
	}
}

// DirExists is the canonical exists() predicate for run ids: a run id is
// taken if its run directory already exists.
func DirExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
