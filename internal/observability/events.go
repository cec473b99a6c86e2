package observability

// Routing keys on the marketplace topic exchange.
const (
	RoutingKeyWSEvents       = "ws_events.chats"
	RoutingKeyPresenceEvents = "presence_events.users"
	RoutingKeyChatEvents     = "chat_events.messages"
	RoutingKeyAuditLogs      = "audit.logs"
)

// EventEnvelope wraps every event published to the bus.
type EventEnvelope struct {
	EventType string `json:"event_type"`
	EventName string `json:"event_name"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
	Payload   any    `json:"payload"`
}

// WSEventPayload describes a websocket lifecycle event.
type WSEventPayload struct {
	ThreadID   int    `json:"thread_id,omitempty"`
	Event      string `json:"event"`
	ConnID     string `json:"conn_id"`
	UserID     int    `json:"user_id,omitempty"`
	IP         string `json:"ip,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Reason     string `json:"reason,omitempty"`
}

// PresenceEventPayload describes an online/offline edge crossing.
type PresenceEventPayload struct {
	UserID int  `json:"user_id"`
	Online bool `json:"online"`
}

// MessageEventPayload describes a persisted-message lifecycle event.
type MessageEventPayload struct {
	ThreadID  int    `json:"thread_id"`
	MessageID int    `json:"message_id"`
	SenderID  int    `json:"sender_id"`
	Action    string `json:"action"`
}
