package telemetry

import "time"

// EventType enumerates player-side telemetry events.
type EventType string

const (
	EventNavigated   EventType = "navigated"
	EventAnswerSaved EventType = "answer_saved"
	EventMarkToggled EventType = "mark_toggled"
	EventExpired     EventType = "expired"
)

// Event is one fire-and-forget telemetry record sent over the stream.
type Event struct {
	Type          EventType `json:"type"`
	SessionID     string    `json:"session_id"`
	Index         int       `json:"index,omitempty"`
	ClientEventID string    `json:"client_event_id,omitempty"`
	At            time.Time `json:"at"`
}

// Ack is the server's reply to a received event.
type Ack struct {
	Event  string `json:"event"`
	Status string `json:"status"`
}
