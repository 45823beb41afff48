// Package devserver is a self-contained stub of the production session API,
// used for local development of the player and for end-to-end tests. It
// speaks the same thin endpoints and response envelope as the real backend
// but seeds its own sessions with generated questions.
package devserver

import (
	"context"
	"errors"

	"github.com/stemsi/exstem-player/internal/model"
)

// Store errors, mapped to API error codes by the handlers.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrSessionNotActive = errors.New("session is not active")
)

// SessionStore persists dev sessions. Implementations must enforce expiry on
// read: an ACTIVE exam session past its deadline reports EXPIRED.
type SessionStore interface {
	// CreateSession seeds a new session with generated questions.
	CreateSession(ctx context.Context, req model.CreateSessionRequest) (*model.SessionState, error)
	// SessionState returns the thin state of a session.
	SessionState(ctx context.Context, sessionID string) (*model.SessionState, error)
	// Question returns the snapshot at a 1-based index.
	Question(ctx context.Context, sessionID string, index int) (*model.QuestionSnapshot, error)
	// Questions returns up to count snapshots starting at from, clamped to
	// the session's range.
	Questions(ctx context.Context, sessionID string, from, count int) ([]model.QuestionSnapshot, error)
	// SaveAnswer applies one answer mutation and returns the confirmed
	// answer state. Submissions with an already-seen client event ID are
	// deduplicated: the current state is returned unchanged.
	SaveAnswer(ctx context.Context, sessionID string, sub model.AnswerSubmission) (*model.AnswerState, error)
	// Submit moves the session to the given terminal status. Submitting an
	// already-terminal session returns its state unchanged.
	Submit(ctx context.Context, sessionID string, status model.SessionStatus) (*model.SessionState, error)
}
