// Package realtime owns live connections: room membership, per-connection
// pumps, and post-commit fan-out of state changes.
package realtime

import (
	"encoding/json"
	"strconv"
)

// Client frames.
const (
	FrameJoinConversation  = "join_conversation"
	FrameLeaveConversation = "leave_conversation"
	FrameTypingStart       = "typing_start"
	FrameTypingStop        = "typing_stop"
	FramePing              = "ping"
)

// Server frames.
const (
	EventConnected           = "connected"
	EventJoined              = "joined"
	EventLeft                = "left"
	EventNewMessage          = "new_message"
	EventMessageEdited       = "message_edited"
	EventMessageDeleted      = "message_deleted"
	EventConversationDeleted = "conversation_deleted"
	EventConversationRead    = "conversation_read"
	EventUserStatus          = "user_status"
	EventTyping              = "typing"
	EventPong                = "pong"
	EventError               = "error"
)

// Envelope is the wire format in both directions.
type Envelope struct {
	Type           string          `json:"type"`
	ConversationID uint            `json:"conversation_id,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data into an envelope. A nil data leaves Data empty.
func NewEnvelope(typ string, conversationID uint, data any) (Envelope, error) {
	env := Envelope{Type: typ, ConversationID: conversationID}
	if data == nil {
		return env, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return env, err
	}
	env.Data = raw
	return env, nil
}

func UserRoom(userID uint) string {
	return "user:" + strconv.FormatUint(uint64(userID), 10)
}

func ConversationRoom(conversationID uint) string {
	return "conversation:" + strconv.FormatUint(uint64(conversationID), 10)
}

// UserStatus is the payload of user_status events.
type UserStatus struct {
	UserID   uint `json:"user_id"`
	IsOnline bool `json:"is_online"`
}

// Typing is the payload of typing events.
type Typing struct {
	UserID   uint `json:"user_id"`
	IsTyping bool `json:"is_typing"`
}

type errorPayload struct {
	Message string `json:"message"`
}
