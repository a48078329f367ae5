package ws

import "time"

// MessageType represents the type of WebSocket message
type MessageType string

// Client → Server message types
const (
	MsgChat MessageType = "chat"
	MsgVote MessageType = "vote"
	MsgPing MessageType = "ping"
)

// Server → Client message types
const (
	MsgState        MessageType = "state"
	MsgAnnouncement MessageType = "announcement"
	MsgVoteAccepted MessageType = "vote_accepted"
	MsgError        MessageType = "error"
	MsgPong         MessageType = "pong"
)

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// ServerMessage represents a message from server to client
type ServerMessage struct {
	Type      MessageType `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// NewServerMessage creates a new server message with current timestamp
func NewServerMessage(msgType MessageType, payload interface{}) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ChatPayload is the payload for chat messages
type ChatPayload struct {
	Text string `json:"text"`
}

// VotePayload is the payload for vote messages
type VotePayload struct {
	Slot int `json:"slot"`
}

// AnnouncementPayload is the payload for announcement messages
type AnnouncementPayload struct {
	Text string `json:"text"`
}

// ErrorPayload is the payload for error messages
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeInvalidMessage = "INVALID_MESSAGE"
	ErrCodeNoRoundOpen    = "NO_ROUND_OPEN"
	ErrCodeInvalidSlot    = "INVALID_SLOT"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)
