package ws

import "encoding/json"

// Envelope wraps every WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "join_room"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

// ──────────────────────────── Request / Response DTOs ─────────────────────────

// IdentifyRequest is the body for "identify".
type IdentifyRequest struct {
	Username string `json:"username"`
}

// JoinRoomRequest is the body for "join_room". The sender's username comes
// from the connection binding, never from the client.
type JoinRoomRequest struct {
	Room string `json:"room"`
}

// LeaveRoomRequest is the body for "leave_room".
type LeaveRoomRequest struct {
	Room string `json:"room"`
}

// SendMessageRequest is the body for "message".
type SendMessageRequest struct {
	Room    string `json:"room"`
	Message string `json:"message"`
}

// Empty ACK body (useful for many handlers).
type AckBody struct{}

// JoinAck reports whether the join was a fresh membership.
type JoinAck struct {
	AlreadyMember bool `json:"already_member"`
}

// ErrorBody is returned for failures.
type ErrorBody struct {
	Error string `json:"error"`
}
