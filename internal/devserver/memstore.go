package devserver

import (
	"context"
	"sync"

	"github.com/stemsi/exstem-player/internal/model"
)

// memSession is one in-memory dev session.
type memSession struct {
	state     model.SessionState
	questions []model.QuestionSnapshot
	answers   map[int]model.AnswerState
	events    map[string]struct{}
}

// MemStore is the default, dependency-free SessionStore.
type MemStore struct {
	mu       sync.Mutex
	sessions map[string]*memSession
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{sessions: make(map[string]*memSession)}
}

func (s *MemStore) CreateSession(_ context.Context, req model.CreateSessionRequest) (*model.SessionState, error) {
	state := newSessionState(req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[state.SessionID] = &memSession{
		state:     state,
		questions: seedQuestions(req.QuestionCount),
		answers:   make(map[int]model.AnswerState),
		events:    make(map[string]struct{}),
	}
	return &state, nil
}

func (s *MemStore) SessionState(_ context.Context, sessionID string) (*model.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	expire(&sess.state)
	state := sess.state
	return &state, nil
}

func (s *MemStore) Question(_ context.Context, sessionID string, index int) (*model.QuestionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if index < 1 || index > len(sess.questions) {
		return nil, ErrQuestionNotFound
	}
	snap := sess.questions[index-1]
	snap.AnswerState = sess.answers[index]
	return &snap, nil
}

func (s *MemStore) Questions(_ context.Context, sessionID string, from, count int) ([]model.QuestionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if from < 1 {
		from = 1
	}
	snaps := make([]model.QuestionSnapshot, 0, count)
	for i := from; i < from+count && i <= len(sess.questions); i++ {
		snap := sess.questions[i-1]
		snap.AnswerState = sess.answers[i]
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func (s *MemStore) SaveAnswer(_ context.Context, sessionID string, sub model.AnswerSubmission) (*model.AnswerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	expire(&sess.state)
	if sess.state.Status.Terminal() {
		return nil, ErrSessionNotActive
	}
	if sub.Index < 1 || sub.Index > len(sess.questions) {
		return nil, ErrQuestionNotFound
	}

	current := sess.answers[sub.Index]

	// Idempotency: a retried submission returns the stored state unchanged.
	if _, seen := sess.events[sub.ClientEventID]; seen {
		return &current, nil
	}
	sess.events[sub.ClientEventID] = struct{}{}

	if sub.SelectedIndex != nil {
		if !current.Answered() {
			sess.state.AnsweredCount++
		}
		current.SelectedIndex = sub.SelectedIndex
	}
	if sub.MarkedForReview != nil {
		current.MarkedForReview = *sub.MarkedForReview
	}
	sess.answers[sub.Index] = current
	return &current, nil
}

func (s *MemStore) Submit(_ context.Context, sessionID string, status model.SessionStatus) (*model.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	expire(&sess.state)
	if !sess.state.Status.Terminal() {
		sess.state.Status = status
	}
	state := sess.state
	return &state, nil
}
