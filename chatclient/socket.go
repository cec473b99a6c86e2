package chatclient

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"marketplace-chat/internal/models"
)

// PresenceFunc observes online/offline edges for other users.
type PresenceFunc func(update models.PresenceUpdate)

// Socket is the realtime side of an open thread: it authenticates, joins
// the thread room, and feeds push events into the controller.
type Socket struct {
	conn       *websocket.Conn
	controller *Controller
	onPresence PresenceFunc
	done       chan struct{}
}

// Dial connects to the chat service's websocket endpoint, authenticates
// with token, joins the controller's thread room, and starts the read
// pump. onPresence may be nil.
func Dial(wsURL, token string, controller *Controller, onPresence PresenceFunc) (*Socket, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.Dial(strings.TrimRight(wsURL, "/")+"/ws", header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial websocket: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial websocket: %w", err)
	}

	s := &Socket{
		conn:       conn,
		controller: controller,
		onPresence: onPresence,
		done:       make(chan struct{}),
	}

	if err := s.send(models.EventAuth, models.AuthRequest{Token: token}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if err := s.send(models.EventThreadJoin, models.JoinRequest{ThreadID: controller.threadID}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join thread: %w", err)
	}

	go s.readPump()
	return s, nil
}

// SendTyping signals that the viewer is typing in the open thread.
func (s *Socket) SendTyping() error {
	return s.send(models.EventTyping, models.TypingSignal{
		ThreadID: s.controller.threadID,
		From:     s.controller.viewerID,
	})
}

// Close tears the socket down; the read pump exits.
func (s *Socket) Close() error {
	return s.conn.Close()
}

// Done closes once the read pump has exited.
func (s *Socket) Done() <-chan struct{} {
	return s.done
}

func (s *Socket) readPump() {
	defer close(s.done)
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var envelope models.WSEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			continue
		}

		switch envelope.Event {
		case models.EventMessage, models.EventMessageAck:
			s.controller.HandleIncoming(envelope.Data)
		case models.EventMessageUpdate:
			var update models.MessageUpdate
			if err := json.Unmarshal(envelope.Data, &update); err == nil {
				s.controller.HandleUpdate(update)
			}
		case models.EventTyping:
			var sig models.TypingSignal
			if err := json.Unmarshal(envelope.Data, &sig); err == nil {
				s.controller.HandleTyping(sig)
			}
		case models.EventPresence:
			if s.onPresence != nil {
				var update models.PresenceUpdate
				if err := json.Unmarshal(envelope.Data, &update); err == nil {
					s.onPresence(update)
				}
			}
		case models.EventError:
			var evt models.ErrorEvent
			if err := json.Unmarshal(envelope.Data, &evt); err == nil {
				log.Printf("chat socket refused: %s", evt.Message)
			}
		}
	}
}

func (s *Socket) send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.conn.WriteJSON(models.WSEnvelope{Event: event, Data: data})
}
