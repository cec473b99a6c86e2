package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"marketplace-chat/internal/models"
)

// Socket is the subset of *websocket.Conn the hub needs; tests substitute
// fakes.
type Socket interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Conn is one live realtime session. UserID stays zero until the
// connection authenticates on the channel.
type Conn struct {
	ID          string
	UserID      int
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time

	sock    Socket
	writeMu sync.Mutex
}

// NewConn wraps a socket into a connection handle.
func NewConn(id string, sock Socket) *Conn {
	return &Conn{ID: id, sock: sock, ConnectedAt: time.Now()}
}

// Send writes one event envelope. Writes are serialized per connection, so
// concurrent fan-outs cannot interleave frames.
func (c *Conn) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(models.WSEnvelope{Event: event, Data: data})
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.sock.WriteMessage(websocket.TextMessage, frame)
}

// Close tears down the underlying socket.
func (c *Conn) Close() error {
	return c.sock.Close()
}
