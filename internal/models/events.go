package models

import "encoding/json"

// Realtime event names, shared by the hub and the client controller.
const (
	EventAuth          = "auth"
	EventThreadJoin    = "thread:join"
	EventTyping        = "thread:typing"
	EventPresence      = "presence:update"
	EventMessage       = "chat:message"
	EventMessageAck    = "chat:message:ack"
	EventMessageUpdate = "chat:message:update"
	EventError         = "error"
)

// WSEnvelope frames every websocket message in both directions.
type WSEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// AuthRequest authenticates a connection on the realtime channel.
type AuthRequest struct {
	Token string `json:"token"`
}

// JoinRequest asks to join a thread's broadcast room.
type JoinRequest struct {
	ThreadID int `json:"threadId"`
}

// TypingSignal is transient: receivers expire it locally after a quiet
// window; it is never persisted.
type TypingSignal struct {
	ThreadID int `json:"threadId"`
	From     int `json:"from"`
}

// PresenceUpdate announces an online/offline edge for a user.
type PresenceUpdate struct {
	UserID int  `json:"userId"`
	Online bool `json:"online"`
}

// MessageUpdate carries an edited or soft-deleted message.
type MessageUpdate struct {
	ThreadID int     `json:"thread_id"`
	Item     Message `json:"item"`
}

// ErrorEvent is sent to a connection when a client request is refused.
type ErrorEvent struct {
	Message string `json:"message"`
}
