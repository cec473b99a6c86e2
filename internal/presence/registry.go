package presence

import "sync"

// Notifier receives edge-triggered online/offline transitions, once per
// 0→1 and once per 1→0 crossing. It is called outside the state lock but
// under a dispatch lock, so edges are always delivered in the order the
// state actually changed; an offline broadcast can never be overtaken by
// the online broadcast of the attach it raced.
type Notifier func(userID int, online bool)

// Registry tracks which users currently hold at least one live realtime
// connection. A user id key exists iff its connection set is non-empty, so
// IsOnline is a plain key-presence check. The registry is an injected,
// explicitly-owned object; callers construct one per process (or per test).
type Registry struct {
	// notifyMu is held across the state change and its notification, so
	// concurrent attach/detach never publish edges out of order. mu alone
	// guards the connection sets; reads never touch notifyMu.
	notifyMu sync.Mutex
	mu       sync.Mutex
	conns    map[int]map[string]struct{}
	notify   Notifier
}

// NewRegistry creates an empty registry. notify may be nil.
func NewRegistry(notify Notifier) *Registry {
	return &Registry{
		conns:  make(map[int]map[string]struct{}),
		notify: notify,
	}
}

// Attach registers a connection under a user. Idempotent per connection id.
// Unauthenticated connections (userID <= 0) are silently ignored. The first
// attach for an absent user fires exactly one online notification.
func (r *Registry) Attach(userID int, connID string) {
	if userID <= 0 || connID == "" {
		return
	}

	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	set, ok := r.conns[userID]
	if !ok {
		set = make(map[string]struct{})
		r.conns[userID] = set
	}
	wentOnline := len(set) == 0
	set[connID] = struct{}{}
	r.mu.Unlock()

	if wentOnline && r.notify != nil {
		r.notify(userID, true)
	}
}

// Detach removes a connection. Unknown connections are a no-op. Removing
// the last connection deletes the user's entry entirely and fires exactly
// one offline notification. The check-empty-then-remove step happens under
// the lock so concurrent attach/detach for the same user cannot produce
// duplicate edge notifications.
func (r *Registry) Detach(userID int, connID string) {
	if userID <= 0 || connID == "" {
		return
	}

	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	set, ok := r.conns[userID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, known := set[connID]; !known {
		r.mu.Unlock()
		return
	}
	delete(set, connID)
	wentOffline := len(set) == 0
	if wentOffline {
		delete(r.conns, userID)
	}
	r.mu.Unlock()

	if wentOffline && r.notify != nil {
		r.notify(userID, false)
	}
}

// IsOnline reports whether the user has a non-empty connection set.
func (r *Registry) IsOnline(userID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[userID]
	return ok
}

// OnlineCount returns the number of distinct users currently online.
func (r *Registry) OnlineCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
