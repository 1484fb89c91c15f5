// Package barrier implements the shared "agency finished sending" gate
// (spec.md §4.D) that WINNERS_REQUEST handling consults before releasing
// winner documents.
package barrier

import "sync"

// State is a monotonically-growing set of agency IDs that have declared
// FINISHED_SENDING, guarded by a single mutex (spec.md §4.G barrier_lock).
// It is in-memory only: it never persists across a restart (spec.md §1
// Non-goals).
type State struct {
	mu       sync.Mutex
	finished map[string]struct{}
	expected int
}

// New builds a barrier that becomes ready once expectedAgencies distinct
// agency IDs have called MarkFinished.
func New(expectedAgencies int) *State {
	return &State{
		finished: make(map[string]struct{}),
		expected: expectedAgencies,
	}
}

// MarkFinished records agencyID as finished. Idempotent: marking the same
// agency twice leaves Size() unchanged.
func (s *State) MarkFinished(agencyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished[agencyID] = struct{}{}
}

// Size returns the number of distinct agencies marked finished so far.
func (s *State) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.finished)
}

// IsReady reports whether every expected agency has been marked finished.
func (s *State) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.finished) >= s.expected
}
