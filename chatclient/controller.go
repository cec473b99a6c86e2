package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"marketplace-chat/internal/models"
)

// State is the lifecycle of an open thread.
type State int

const (
	StateLoading State = iota
	StateReady
	StateClosed
)

var (
	ErrThreadBlocked = errors.New("thread is blocked")
	ErrNotEditable   = errors.New("message cannot be edited")
	ErrClosed        = errors.New("controller is closed")
)

// DefaultTypingTTL is the quiet window after which a peer's typing
// indicator expires with no follow-up signal.
const DefaultTypingTTL = 1500 * time.Millisecond

// Controller presents one open thread as a live, ordered, deduplicated
// message list. History loads are authoritative and replace the list;
// realtime pushes append, deduplicated by message id. All snapshots are
// render-safe: soft-deleted messages never expose body or attachment.
type Controller struct {
	api       API
	threadID  int
	viewerID  int
	typingTTL time.Duration
	onChange  func()

	mu         sync.Mutex
	state      State
	thread     models.ThreadView
	messages   []models.Message
	seen       map[int]struct{}
	compose    string
	peerTyping bool
	typingGen  int
	typingTmr  *time.Timer
	lastErr    error
}

// Option tunes a Controller.
type Option func(*Controller)

// WithTypingTTL overrides the typing-indicator quiet window.
func WithTypingTTL(ttl time.Duration) Option {
	return func(c *Controller) { c.typingTTL = ttl }
}

// WithOnChange registers a callback invoked after every state change, so a
// UI can re-render.
func WithOnChange(fn func()) Option {
	return func(c *Controller) { c.onChange = fn }
}

// NewController opens a controller for one thread as seen by viewerID.
func NewController(api API, threadID, viewerID int, opts ...Option) *Controller {
	c := &Controller{
		api:       api,
		threadID:  threadID,
		viewerID:  viewerID,
		typingTTL: DefaultTypingTTL,
		state:     StateLoading,
		seen:      make(map[int]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoadHistory fetches the persisted message list and the viewer's flags,
// replacing the local list wholesale. It is retryable: a failure leaves
// the controller ready with LastError set, never in a dead state. On
// success the thread is marked read fire-and-forget.
func (c *Controller) LoadHistory(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()

	history, err := c.api.FetchHistory(ctx, c.threadID)

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.state = StateReady
	if err != nil {
		c.lastErr = err
		c.mu.Unlock()
		c.notify()
		return err
	}

	c.lastErr = nil
	c.thread = history.Thread
	c.messages = models.RedactAll(history.Items)
	c.seen = make(map[int]struct{}, len(c.messages))
	for _, m := range c.messages {
		c.seen[m.ID] = struct{}{}
	}
	c.mu.Unlock()
	c.notify()

	go func() {
		// Failure to mark read never blocks rendering.
		_ = c.api.MarkRead(context.Background(), c.threadID)
	}()
	return nil
}

// HandleIncoming merges a realtime message payload of any supported shape.
// Messages for other threads are silently dropped. If at least one newly
// merged message was authored by someone else, a read receipt goes out:
// arrival while the thread is open implies an implicit read.
func (c *Controller) HandleIncoming(raw json.RawMessage) {
	msgs := NormalizeIncoming(raw)

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	merged := false
	foreign := false
	for _, msg := range msgs {
		if msg.ThreadID != c.threadID {
			continue
		}
		if _, dup := c.seen[msg.ID]; dup {
			continue
		}
		c.seen[msg.ID] = struct{}{}
		c.messages = append(c.messages, msg.Redacted())
		merged = true
		if msg.SenderID != c.viewerID {
			foreign = true
		}
	}
	c.mu.Unlock()

	if merged {
		c.notify()
	}
	if foreign {
		go func() {
			_ = c.api.MarkRead(context.Background(), c.threadID)
		}()
	}
}

// HandleTyping flips the peer-typing flag and schedules its expiry. A
// fresh signal restarts the quiet window; timers never stack.
func (c *Controller) HandleTyping(sig models.TypingSignal) {
	if sig.ThreadID != c.threadID || sig.From == c.viewerID {
		return
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.peerTyping = true
	c.typingGen++
	gen := c.typingGen
	if c.typingTmr != nil {
		c.typingTmr.Stop()
	}
	c.typingTmr = time.AfterFunc(c.typingTTL, func() {
		c.expireTyping(gen)
	})
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) expireTyping(gen int) {
	c.mu.Lock()
	// A stale timer that lost the race to a newer signal must not clear
	// the flag the newer signal owns.
	if gen != c.typingGen || !c.peerTyping {
		c.mu.Unlock()
		return
	}
	c.peerTyping = false
	c.mu.Unlock()
	c.notify()
}

// HandleUpdate replaces a message in place by id, preserving order.
// Updates for other threads or unknown ids are dropped.
func (c *Controller) HandleUpdate(update models.MessageUpdate) {
	if update.ThreadID != c.threadID {
		return
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	replaced := false
	for i := range c.messages {
		if c.messages[i].ID == update.Item.ID {
			c.messages[i] = update.Item.Redacted()
			replaced = true
			break
		}
	}
	c.mu.Unlock()

	if replaced {
		c.notify()
	}
}

// SetCompose updates the draft text.
func (c *Controller) SetCompose(text string) {
	c.mu.Lock()
	c.compose = text
	c.mu.Unlock()
	c.notify()
}

// Compose returns the current draft.
func (c *Controller) Compose() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compose
}

// Send submits the current draft plus any files. It is a no-op when there
// is nothing to send, and refuses without issuing a request when the
// viewer has blocked the thread. The draft clears optimistically; on
// success the canonical list is re-derived from the server with a full
// history reload, and on failure the draft is restored for retry.
func (c *Controller) Send(ctx context.Context, files []Upload) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return ErrClosed
	}
	body := strings.TrimSpace(c.compose)
	if body == "" && len(files) == 0 {
		c.mu.Unlock()
		return nil
	}
	if c.thread.BlockedByMe {
		c.mu.Unlock()
		return ErrThreadBlocked
	}
	c.compose = ""
	c.mu.Unlock()
	c.notify()

	_, err := c.api.CreateMessage(ctx, c.threadID, body, files)
	if err != nil {
		c.mu.Lock()
		c.lastErr = err
		if c.compose == "" {
			c.compose = body
		}
		c.mu.Unlock()
		c.notify()
		return err
	}

	return c.LoadHistory(ctx)
}

// Edit rewrites one of the viewer's own messages. The local list is not
// mutated on success; the realtime update or the next reload reflects it.
func (c *Controller) Edit(ctx context.Context, messageID int, newBody string) error {
	if err := c.ensureEditable(messageID); err != nil {
		return err
	}
	if _, err := c.api.EditMessage(ctx, messageID, newBody); err != nil {
		c.recordErr(err)
		return err
	}
	return nil
}

// Delete soft-deletes one of the viewer's own messages.
func (c *Controller) Delete(ctx context.Context, messageID int) error {
	if err := c.ensureEditable(messageID); err != nil {
		return err
	}
	if err := c.api.DeleteMessage(ctx, messageID); err != nil {
		c.recordErr(err)
		return err
	}
	return nil
}

func (c *Controller) ensureEditable(messageID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return ErrClosed
	}
	for _, m := range c.messages {
		if m.ID != messageID {
			continue
		}
		if m.SenderID != c.viewerID || m.Deleted() {
			return ErrNotEditable
		}
		return nil
	}
	return ErrNotEditable
}

// SetMuted issues the idempotent mute toggle and adopts the stored value
// the server returns, not the locally requested one.
func (c *Controller) SetMuted(ctx context.Context, muted bool) error {
	stored, err := c.api.SetMuted(ctx, c.threadID, muted)
	if err != nil {
		c.recordErr(err)
		return err
	}
	c.mu.Lock()
	c.thread.MutedByMe = stored
	c.mu.Unlock()
	c.notify()
	return nil
}

// SetArchived issues the archive toggle, adopting the server's value.
func (c *Controller) SetArchived(ctx context.Context, archived bool) error {
	stored, err := c.api.SetArchived(ctx, c.threadID, archived)
	if err != nil {
		c.recordErr(err)
		return err
	}
	c.mu.Lock()
	c.thread.ArchivedByMe = stored
	c.mu.Unlock()
	c.notify()
	return nil
}

// SetBlocked issues the block toggle, adopting the server's value.
func (c *Controller) SetBlocked(ctx context.Context, blocked bool) error {
	stored, err := c.api.SetBlocked(ctx, c.threadID, blocked)
	if err != nil {
		c.recordErr(err)
		return err
	}
	c.mu.Lock()
	c.thread.BlockedByMe = stored
	c.mu.Unlock()
	c.notify()
	return nil
}

// Close ends the controller; subsequent events are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	c.state = StateClosed
	if c.typingTmr != nil {
		c.typingTmr.Stop()
		c.typingTmr = nil
	}
	c.mu.Unlock()
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Thread returns the viewer's current thread view.
func (c *Controller) Thread() models.ThreadView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.thread
}

// Messages returns a copy of the ordered message list.
func (c *Controller) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// PeerTyping reports whether the peer's typing indicator is live.
func (c *Controller) PeerTyping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerTyping
}

// LastError returns the most recent failure, for an error banner with a
// retry affordance.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) recordErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	if c.onChange != nil {
		c.onChange()
	}
}
