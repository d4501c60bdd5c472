package window

import (
	"sync"
	"time"
)

// Store is the single owner of a Window. Every read and mutation goes
// through it and runs under one lock, so concurrent message handlers
// cannot interleave an eviction with an append. No lock is held while the
// caller talks to the network.
type Store struct {
	mu     sync.Mutex
	w      *Window
	budget Budget
	now    func() time.Time
}

// NewStore wraps w. now defaults to time.Now.
func NewStore(w *Window, b Budget, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{w: w, budget: b, now: now}
}

// Budget returns the configured limits.
func (s *Store) Budget() Budget { return s.budget }

// Now returns the store's current time in UTC.
func (s *Store) Now() time.Time { return s.now().UTC() }

// EvictAndSnapshot trims the window to its budget and returns a copy of the
// surviving turns together with the number of turns removed.
func (s *Store) EvictAndSnapshot() ([]Turn, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.w.Evict(s.now().UTC(), s.budget)
	return s.w.Turns(), removed
}

// Snapshot returns a copy of the current turns without evicting.
func (s *Store) Snapshot() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Turns()
}

// Commit runs fn with exclusive access to the window. fn must not block on
// I/O.
func (s *Store) Commit(fn func(w *Window, now time.Time)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.w, s.now().UTC())
}
