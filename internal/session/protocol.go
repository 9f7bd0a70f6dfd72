package session

import (
	"encoding/json"
	"time"

	"lanes/internal/game"
)

// MessageType tags an outbound envelope.
type MessageType string

const (
	MsgView     MessageType = "view"
	MsgEvent    MessageType = "event"
	MsgResult   MessageType = "result"
	MsgPresence MessageType = "presence"
	MsgError    MessageType = "error"
)

// Envelope is the JSON frame every outbound message travels in.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Presence reports a slot changing state.
type Presence struct {
	Seat     game.Seat `json:"seat"`
	PlayerID string    `json:"playerId"`
	State    SlotState `json:"state"`
	Since    time.Time `json:"since"`
}

// ErrorPayload carries a human readable failure.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Encode builds an envelope. Payloads are plain data and always marshal.
func Encode(t MessageType, payload any) []byte {
	p, _ := json.Marshal(payload)
	msg, _ := json.Marshal(Envelope{Type: t, Payload: p})
	return msg
}

// EncodeError builds an error envelope.
func EncodeError(message string) []byte {
	return Encode(MsgError, ErrorPayload{Message: message})
}
