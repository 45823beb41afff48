package model

// OptionCount is the fixed number of choices per question.
const OptionCount = 5

// AnswerState is the current user's answer for one question.
// SelectedIndex is nil while the question is unanswered.
type AnswerState struct {
	SelectedIndex   *int `json:"selected_index"`
	MarkedForReview bool `json:"marked_for_review"`
}

// Answered reports whether an option has been selected.
func (a AnswerState) Answered() bool {
	return a.SelectedIndex != nil
}

// QuestionSnapshot is a single question plus the user's answer state for it,
// positioned at Index within the session.
type QuestionSnapshot struct {
	Index       int         `json:"index"`
	QuestionID  string      `json:"question_id"`
	Text        string      `json:"question_text"`
	Options     []string    `json:"options"`
	AnswerState AnswerState `json:"answer_state"`
}

// AnswerSubmission is the payload of a single answer mutation. Exactly one of
// SelectedIndex / MarkedForReview is set per call. ClientEventID is a fresh
// UUID per call so the backend can deduplicate retried submissions.
type AnswerSubmission struct {
	Index           int    `json:"index" binding:"required,min=1"`
	QuestionID      string `json:"question_id" binding:"required,uuid"`
	SelectedIndex   *int   `json:"selected_index,omitempty" binding:"omitempty,min=0,max=4"`
	MarkedForReview *bool  `json:"marked_for_review,omitempty"`
	ClientEventID   string `json:"client_event_id" binding:"required,uuid"`
}

// CreateSessionRequest is the dev-server payload for seeding a session.
type CreateSessionRequest struct {
	Mode             SessionMode `json:"mode" binding:"required,oneof=EXAM TUTOR"`
	QuestionCount    int         `json:"question_count" binding:"required,min=1,max=200"`
	TimeLimitSeconds *int        `json:"time_limit_seconds" binding:"omitempty,min=1"`
}
