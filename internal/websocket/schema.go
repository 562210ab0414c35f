package websocket

import "github.com/stemsi/exstem-quiz/internal/session"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSelect  Action = "select"
	ActionAdvance Action = "advance"
	ActionRetreat Action = "retreat"
	ActionPing    Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// SelectRequest marks a zero-based choice on the current question.
type SelectRequest struct {
	Action Action `json:"action"`
	Choice *int   `json:"choice"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState     Event = "state"
	EventTick      Event = "tick"
	EventCompleted Event = "completed"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// SessionResponse carries the session state after a change.
type SessionResponse struct {
	Event   Event            `json:"event"`
	Session session.Snapshot `json:"session"`
}

// TickResponse is the lightweight countdown update.
type TickResponse struct {
	Event     Event `json:"event"`
	Remaining int   `json:"remaining_seconds"`
	Warning   bool  `json:"time_warning"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

// FromSessionEvent converts a session event to its wire form.
func FromSessionEvent(e session.Event) interface{} {
	switch e.Kind {
	case session.EventTick:
		return TickResponse{
			Event:     EventTick,
			Remaining: e.Snapshot.Remaining,
			Warning:   e.Snapshot.Warning,
		}
	case session.EventCompleted:
		return SessionResponse{Event: EventCompleted, Session: e.Snapshot}
	default:
		return SessionResponse{Event: EventState, Session: e.Snapshot}
	}
}
