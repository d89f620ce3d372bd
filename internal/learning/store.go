// Package learning implements the per-run learning artifacts and the
// global keyed selector store described in spec §4.6. Grounded directly
// on the teacher's internal/annotation/store.go: a mutex-guarded,
// TTL/eviction-aware in-memory store, generalized from "named DOM
// annotation sessions" to "learned selectors keyed by context", with the
// append-merge and insertion-order tie-break rules spelled out in
// SPEC_FULL.md's Open Question (a) decision layered on top.
package learning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/brennhill/oi-web-bridge/internal/state"
)

// LearnedSelector is a single learned fallback for a context (spec §3).
type LearnedSelector struct {
	ContextKey   string    `json:"context_key"`
	Selector     string    `json:"selector"`
	FallbackText string    `json:"fallback_text"`
	ScrollHints  []string  `json:"scroll_hints"`
	SuccessCount int       `json:"success_count"`
	FailureCount int       `json:"failure_count"`
	LastUsedAt   time.Time `json:"last_used_at"`
}

// ContextKey derives the store's lookup key from the origin host and a
// stable signature of the page's heading/landmark text (spec §4.6).
func ContextKey(originHost, screenSignature string) string {
	sum := sha256.Sum256([]byte(originHost + "|" + screenSignature))
	return hex.EncodeToString(sum[:])[:16]
}

// Store holds learned selectors grouped by context key. Entries within a
// group are kept in insertion order so that equal-success-count ties
// resolve to whichever selector was learned first (Open Question a).
type Store struct {
	mu      sync.RWMutex
	entries map[string][]*LearnedSelector
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string][]*LearnedSelector)}
}

// Load reads a global store file, tolerating a missing file (fresh
// install has none yet).
func Load(path string) (*Store, error) {
	s := NewStore()
	var raw map[string][]*LearnedSelector
	if err := state.ReadJSON(path, &raw); err != nil {
		if isMissing(err) {
			return s, nil
		}
		return nil, err
	}
	if raw != nil {
		s.entries = raw
	}
	return s, nil
}

// Save atomically rewrites the global store file (spec §5: "whole-file
// atomic rewrites under a file lock").
func (s *Store) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return state.WithLock(path, 5*time.Second, func() error {
		return state.AtomicWriteJSON(path, s.entries)
	})
}

// Best returns the highest-success selector for a context, or false if
// none is known. Ties break on insertion order; demoted (failure-heavy)
// selectors are skipped unless they are the only candidate.
func (s *Store) Best(contextKey string) (LearnedSelector, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	group := s.entries[contextKey]
	if len(group) == 0 {
		return LearnedSelector{}, false
	}

	var best *LearnedSelector
	for _, e := range group {
		if isDemoted(e) {
			continue
		}
		if best == nil || e.SuccessCount > best.SuccessCount {
			best = e
		}
	}
	if best == nil {
		best = group[0] // every candidate demoted; fall back to the first learned
	}
	return *best, true
}

// isDemoted flags a selector that has failed more often than it has
// succeeded, per spec §4.6's implicit "no longer resolves" replacement
// trigger — surfaced here as a read-time skip rather than a delete so the
// history (and a path back to it, if it starts resolving again) survives.
func isDemoted(e *LearnedSelector) bool {
	return e.FailureCount > e.SuccessCount && e.FailureCount >= 2
}

// RecordSuccess appends a freshly learned selector or increments an
// existing one's success_count (append-merge per spec §4.6). The new
// selector only replaces the stored one in Best()'s ranking if it ends
// up with strictly greater successes — ranking is recomputed from counts
// on every Best() call, so no separate "replace" step is needed here.
func (s *Store) RecordSuccess(contextKey string, sel LearnedSelector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	group := s.entries[contextKey]
	for _, e := range group {
		if e.Selector == sel.Selector {
			e.SuccessCount++
			e.LastUsedAt = sel.LastUsedAt
			if sel.FallbackText != "" {
				e.FallbackText = sel.FallbackText
			}
			if len(sel.ScrollHints) > 0 {
				e.ScrollHints = sel.ScrollHints
			}
			return
		}
	}
	sel.ContextKey = contextKey
	sel.SuccessCount = 1
	s.entries[contextKey] = append(group, &sel)
}

// RecordFailure increments a selector's failure_count, letting isDemoted
// eventually exclude it from Best() without discarding its history.
func (s *Store) RecordFailure(contextKey, selector string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries[contextKey] {
		if e.Selector == selector {
			e.FailureCount++
			return
		}
	}
}

// Merge folds another store's entries into this one using the same
// append-merge rule as RecordSuccess, for combining a run's local
// learning artifact into the global store at finalisation.
func (s *Store) Merge(other *Store) {
	other.mu.RLock()
	defer other.mu.RUnlock()
	for ctxKey, group := range other.entries {
		for _, e := range group {
			for i := 0; i < e.SuccessCount; i++ {
				s.RecordSuccess(ctxKey, LearnedSelector{
					Selector:     e.Selector,
					FallbackText: e.FallbackText,
					ScrollHints:  e.ScrollHints,
					LastUsedAt:   e.LastUsedAt,
				})
			}
			for i := 0; i < e.FailureCount; i++ {
				s.RecordFailure(ctxKey, e.Selector)
			}
		}
	}
}

func isMissing(err error) bool {
	return os.IsNotExist(err)
}

// TeachingCapture is the shape written to runs/<id>/learning/teaching_<N>.json
// when a handoff learning window captures a useful manual click (spec §4.5).
type TeachingCapture struct {
	StepIndex   int       `json:"step_index"`
	Selector    string    `json:"selector"`
	Text        string    `json:"text"`
	URL         string    `json:"url"`
	ContextKey  string    `json:"context_key"`
	ScrollHints []string  `json:"scroll_hints"`
	Timestamp   time.Time `json:"timestamp"`
}

// WriteCapture persists a single teaching capture under runDir/learning.
func WriteCapture(runDir string, stepIndex int, c TeachingCapture) (string, error) {
	path := fmt.Sprintf("%s/learning/teaching_%d.json", runDir, stepIndex)
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", err
	}
	return path, state.AtomicWrite(path, data)
}
