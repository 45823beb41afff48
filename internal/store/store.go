// Package store holds the mutable state of one session view: the cached
// session summary, the question cache, and the sequence counters that order
// concurrent fetches and mutations. A Store is constructed per session view
// and passed by reference; it is never shared across sessions.
package store

import (
	"sync"

	"github.com/stemsi/exstem-player/internal/model"
)

// entry is one cached question keyed by index. navSeq records the navigation
// fetch that wrote it (0 when written by prefetch), so a late prefetch result
// can never clobber navigation-fetched data.
type entry struct {
	snap   model.QuestionSnapshot
	navSeq uint64
}

// Mutation is one in-flight optimistic answer change. Rollback is a pure
// function of the recorded previous value; no closure capture is involved.
type Mutation struct {
	Index    int
	Previous model.AnswerState
	Proposed model.AnswerState
	Seq      uint64
}

// Store is the per-view state container. All methods are safe for concurrent
// use; mutations are atomic with respect to each other.
type Store struct {
	mu sync.Mutex

	session   *model.SessionState
	questions map[int]*entry
	displayed *model.QuestionSnapshot
	fetching  bool
	navSeq    uint64
	mutSeq    map[int]uint64
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		questions: make(map[int]*entry),
		mutSeq:    make(map[int]uint64),
	}
}

// ─── Session state cache ────────────────────────────────────────────────────

// SetSession replaces the cached session state.
func (s *Store) SetSession(state model.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = &state
}

// MergeSession replaces the cached session state with a server-fetched value
// while keeping the local navigation cursor, which is a pure client-side
// value until submission.
func (s *Store) MergeSession(state model.SessionState) model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		state.CurrentIndex = s.session.CurrentIndex
	}
	s.session = &state
	return state
}

// Session returns a copy of the cached session state.
func (s *Store) Session() (model.SessionState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return model.SessionState{}, false
	}
	return *s.session, true
}

// Patch merges a partial update into the cached session state and returns the
// result. No-op if no state is loaded yet.
func (s *Store) Patch(p model.StatePatch) (model.SessionState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return model.SessionState{}, false
	}
	s.session.Apply(p)
	return *s.session, true
}

// IncrementAnswered bumps the answered count by one. Used when a question
// transitions from unanswered to answered for the first time; the count never
// decreases while the session is active.
func (s *Store) IncrementAnswered() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		s.session.AnsweredCount++
	}
}

// ─── Question cache ─────────────────────────────────────────────────────────

// BeginNavigation records a navigation to index and returns the sequence
// number identifying the fetch that should win the display. If the index is
// already cached, the cached snapshot becomes the displayed value immediately
// and no fetch is needed. Otherwise the previously displayed snapshot stays
// visible until the fetch completes.
func (s *Store) BeginNavigation(index int) (seq uint64, cached bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navSeq++
	if e, ok := s.questions[index]; ok {
		snap := e.snap
		s.displayed = &snap
		s.fetching = false
		return s.navSeq, true
	}
	s.fetching = true
	return s.navSeq, false
}

// CompleteNavigation stores the result of a navigation fetch. The snapshot is
// always cached (tagged with its sequence so prefetch can't overwrite it),
// but it only becomes the displayed value if no later navigation happened.
func (s *Store) CompleteNavigation(seq uint64, snap model.QuestionSnapshot) (displayed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[snap.Index] = &entry{snap: snap, navSeq: seq}
	if seq != s.navSeq {
		return false
	}
	cp := snap
	s.displayed = &cp
	s.fetching = false
	return true
}

// FailNavigation clears the loading flag for a failed navigation fetch,
// leaving the previously displayed snapshot in place.
func (s *Store) FailNavigation(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq == s.navSeq {
		s.fetching = false
	}
}

// PutPrefetched caches a speculatively fetched snapshot. It never touches the
// displayed value and never overwrites an entry written by a navigation fetch.
func (s *Store) PutPrefetched(snap model.QuestionSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.questions[snap.Index]; ok && e.navSeq > 0 {
		return
	}
	s.questions[snap.Index] = &entry{snap: snap}
}

// Displayed returns a copy of the snapshot currently presented to the user.
func (s *Store) Displayed() (model.QuestionSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.displayed == nil {
		return model.QuestionSnapshot{}, false
	}
	return *s.displayed, true
}

// Fetching reports whether a navigation fetch is still in flight.
func (s *Store) Fetching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetching
}

// Snapshot returns a copy of the cached snapshot at index.
func (s *Store) Snapshot(index int) (model.QuestionSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.questions[index]
	if !ok {
		return model.QuestionSnapshot{}, false
	}
	return e.snap, true
}

// ─── Mutation sequencing ────────────────────────────────────────────────────

// BeginMutation applies an optimistic answer state to the cached snapshot at
// index and returns the pending mutation value to thread through the round
// trip. Returns false if no snapshot is cached for the index.
func (s *Store) BeginMutation(index int, proposed model.AnswerState) (Mutation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.questions[index]
	if !ok {
		return Mutation{}, false
	}
	s.mutSeq[index]++
	m := Mutation{
		Index:    index,
		Previous: e.snap.AnswerState,
		Proposed: proposed,
		Seq:      s.mutSeq[index],
	}
	s.setAnswerStateLocked(index, proposed)
	return m, true
}

// ResolveMutation applies the server-confirmed answer state for a mutation.
// Responses for superseded mutations are discarded so the answer state never
// regresses below the latest local intent.
func (s *Store) ResolveMutation(m Mutation, confirmed model.AnswerState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mutSeq[m.Index] != m.Seq {
		return false
	}
	s.setAnswerStateLocked(m.Index, confirmed)
	return true
}

// RevertMutation restores the recorded previous answer state after a failed
// round trip. Stale mutations are discarded the same way as in ResolveMutation.
func (s *Store) RevertMutation(m Mutation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mutSeq[m.Index] != m.Seq {
		return false
	}
	s.setAnswerStateLocked(m.Index, m.Previous)
	return true
}

func (s *Store) setAnswerStateLocked(index int, as model.AnswerState) {
	if e, ok := s.questions[index]; ok {
		e.snap.AnswerState = as
	}
	if s.displayed != nil && s.displayed.Index == index {
		s.displayed.AnswerState = as
	}
}
