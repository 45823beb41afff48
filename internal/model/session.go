package model

import (
	"time"
)

// SessionMode distinguishes timed exams from self-paced practice.
type SessionMode string

const (
	ModeExam  SessionMode = "EXAM"
	ModeTutor SessionMode = "TUTOR"
)

// SessionStatus enumerates session states as observed by the player.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "ACTIVE"
	SessionStatusSubmitted SessionStatus = "SUBMITTED"
	SessionStatusExpired   SessionStatus = "EXPIRED"
	SessionStatusAbandoned SessionStatus = "ABANDONED"
)

// Terminal reports whether the status is final. A session never leaves a
// terminal status.
func (s SessionStatus) Terminal() bool {
	return s != SessionStatusActive
}

// SessionState is the thin summary of one exam/practice attempt.
// CurrentIndex is 1-based and always within [1, TotalQuestions].
type SessionState struct {
	SessionID        string        `json:"session_id"`
	Mode             SessionMode   `json:"mode"`
	Status           SessionStatus `json:"status"`
	CurrentIndex     int           `json:"current_index"`
	TotalQuestions   int           `json:"total_questions"`
	AnsweredCount    int           `json:"answered_count"`
	TimeLimitSeconds *int          `json:"time_limit_seconds,omitempty"`
	StartedAt        time.Time     `json:"started_at"`
}

// Deadline returns the wall-clock moment the session expires. The second
// return value is false for untimed sessions.
func (s *SessionState) Deadline() (time.Time, bool) {
	if s.Mode != ModeExam || s.TimeLimitSeconds == nil {
		return time.Time{}, false
	}
	return s.StartedAt.Add(time.Duration(*s.TimeLimitSeconds) * time.Second), true
}

// RefreshEligible reports whether background state revalidation should run.
// Only timed exams that are still active are polled.
func (s *SessionState) RefreshEligible() bool {
	return s.Mode == ModeExam && s.Status == SessionStatusActive
}

// StatePatch is a partial update merged into a cached SessionState without a
// network round trip. Nil fields are left untouched.
type StatePatch struct {
	CurrentIndex  *int
	AnsweredCount *int
	Status        *SessionStatus
}

// Apply merges the patch into the state.
func (s *SessionState) Apply(p StatePatch) {
	if p.CurrentIndex != nil {
		s.CurrentIndex = *p.CurrentIndex
	}
	if p.AnsweredCount != nil {
		s.AnsweredCount = *p.AnsweredCount
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
}

// SubmitResult is the response of a final session submission.
type SubmitResult struct {
	Status    SessionStatus `json:"status"`
	ReviewURL string        `json:"review_url"`
}
