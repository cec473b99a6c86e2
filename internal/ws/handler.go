package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"marketplace-chat/internal/auth"
	"marketplace-chat/internal/models"
	"marketplace-chat/internal/observability"
	"marketplace-chat/internal/presence"
	"marketplace-chat/internal/repositories"
)

// Handler upgrades websocket connections and drives their event loop.
type Handler struct {
	hub        *Hub
	registry   *presence.Registry
	threadRepo repositories.ThreadRepository
	verifier   auth.Verifier
	upgrader   websocket.Upgrader
}

// NewHandler constructs a Handler. allowOrigin implements the
// CLIENT_ORIGIN cross-origin policy for the upgrade request.
func NewHandler(hub *Hub, registry *presence.Registry, threadRepo repositories.ThreadRepository, verifier auth.Verifier, allowOrigin func(origin string) bool) *Handler {
	return &Handler{
		hub:        hub,
		registry:   registry,
		threadRepo: threadRepo,
		verifier:   verifier,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return allowOrigin(r.Header.Get("Origin"))
			},
		},
	}
}

// Handle upgrades the connection and runs its read loop. A connection may
// authenticate during the handshake (token query param or Authorization
// header) or later via the auth event; until then it is never attached to
// presence and cannot join rooms.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)

	sock, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	conn := NewConn(newConnID(), sock)
	conn.IP = observability.IPFromRequest(c.Request)
	conn.RequestID = observability.RequestIDFromRequest(c.Request)
	conn.TraceID = span.SpanContext().TraceID().String()
	h.hub.Register(conn)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publishLifecycleEvent(ctx, conn, "ws_connect", "")

	if token != "" {
		h.authenticate(conn, token)
	}

	go h.readLoop(ctx, conn)
}

func (h *Handler) readLoop(ctx context.Context, conn *Conn) {
	var closeReason string
	defer func() {
		// Rooms first, then presence: the offline broadcast fired by the
		// registry must not reach the connection being torn down.
		h.hub.Unregister(conn.ID)
		h.registry.Detach(conn.UserID, conn.ID)
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		h.publishLifecycleEvent(ctx, conn, "ws_disconnect", closeReason)
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.sock.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				h.publishLifecycleEvent(ctx, conn, "ws_error", closeReason)
			}
			return
		}

		var envelope models.WSEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			continue
		}
		h.dispatch(ctx, conn, envelope)
	}
}

func (h *Handler) dispatch(ctx context.Context, conn *Conn, envelope models.WSEnvelope) {
	observability.IncWSEvent(envelope.Event)

	switch envelope.Event {
	case models.EventAuth:
		var req models.AuthRequest
		if err := json.Unmarshal(envelope.Data, &req); err != nil {
			return
		}
		if !h.authenticate(conn, req.Token) {
			h.refuse(conn, "authentication failed")
		}

	case models.EventThreadJoin:
		var req models.JoinRequest
		if err := json.Unmarshal(envelope.Data, &req); err != nil {
			return
		}
		h.joinThread(ctx, conn, req.ThreadID)

	case models.EventTyping:
		var sig models.TypingSignal
		if err := json.Unmarshal(envelope.Data, &sig); err != nil {
			return
		}
		h.typing(conn, sig)
	}
}

// authenticate validates the token and, on success, binds the connection
// to its user room and attaches presence. The first attach for a user
// fires the online broadcast through the registry's notifier. A
// re-authentication under a different identity releases everything the
// previous user held first; otherwise the old user's presence entry would
// keep this connection id and outlive the disconnect cleanup, which only
// detaches the latest identity.
func (h *Handler) authenticate(conn *Conn, token string) bool {
	userID, err := h.verifier.ValidateToken(token)
	if err != nil || userID <= 0 {
		return false
	}
	if prev := conn.UserID; prev > 0 && prev != userID {
		h.hub.UnbindUser(conn.ID)
		h.registry.Detach(prev, conn.ID)
	}
	h.hub.BindUser(conn.ID, userID)
	h.registry.Attach(userID, conn.ID)
	return true
}

// joinThread grants room membership only after re-validating that the
// connection's authenticated user is a participant of the thread. The
// REST layer checks this too, but the realtime layer does not trust it.
func (h *Handler) joinThread(ctx context.Context, conn *Conn, threadID int) {
	if conn.UserID <= 0 {
		h.refuse(conn, "join requires authentication")
		return
	}
	member, err := h.threadRepo.IsParticipant(ctx, threadID, conn.UserID)
	if err != nil || !member {
		h.refuse(conn, "not a thread participant")
		return
	}
	h.hub.JoinThread(conn.ID, threadID)
}

// typing relays a transient typing signal to the rest of the thread room,
// never echoing it back to the sender's own connection.
func (h *Handler) typing(conn *Conn, sig models.TypingSignal) {
	if conn.UserID <= 0 || !h.hub.InThread(conn.ID, sig.ThreadID) {
		return
	}
	h.hub.PublishToThread(sig.ThreadID, models.EventTyping, models.TypingSignal{
		ThreadID: sig.ThreadID,
		From:     conn.UserID,
	}, conn.ID)
}

func (h *Handler) refuse(conn *Conn, message string) {
	if err := conn.Send(models.EventError, models.ErrorEvent{Message: message}); err != nil {
		log.Printf("websocket refuse write error conn=%s: %v", conn.ID, err)
	}
}

func (h *Handler) publishLifecycleEvent(ctx context.Context, conn *Conn, event, reason string) {
	_ = observability.PublishEvent(ctx, observability.RoutingKeyWSEvents, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		RequestID: conn.RequestID,
		TraceID:   conn.TraceID,
		Payload: observability.WSEventPayload{
			Event:      event,
			ConnID:     conn.ID,
			UserID:     conn.UserID,
			IP:         conn.IP,
			DurationMS: time.Since(conn.ConnectedAt).Milliseconds(),
			Reason:     reason,
		},
	})
}

func bearerToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}
