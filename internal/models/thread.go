package models

import "time"

// Thread represents a conversation between exactly one buyer and one seller.
// A thread is created on first contact and never deleted; archival, muting
// and blocking are per-viewer flags, not thread state.
type Thread struct {
	ID        int       `db:"id" json:"id"`
	BuyerID   int       `db:"buyer_id" json:"buyer_id"`
	SellerID  int       `db:"seller_id" json:"seller_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Counterpart returns the other participant relative to userID.
func (t Thread) Counterpart(userID int) int {
	if t.BuyerID == userID {
		return t.SellerID
	}
	return t.BuyerID
}

// HasParticipant reports whether userID is a party to the thread.
func (t Thread) HasParticipant(userID int) bool {
	return t.BuyerID == userID || t.SellerID == userID
}

// ThreadFlags is one viewer's state for a thread.
type ThreadFlags struct {
	Muted      bool       `db:"muted" json:"muted"`
	Archived   bool       `db:"archived" json:"archived"`
	Blocked    bool       `db:"blocked" json:"blocked"`
	LastReadAt *time.Time `db:"last_read_at" json:"last_read_at,omitempty"`
}

// ThreadView is a thread as seen by one viewer, flags folded in.
type ThreadView struct {
	Thread
	MutedByMe    bool `json:"muted_by_me"`
	ArchivedByMe bool `json:"archived_by_me"`
	BlockedByMe  bool `json:"blocked_by_me"`
}

// NewThreadView merges a thread with the viewer's flags.
func NewThreadView(t Thread, f ThreadFlags) ThreadView {
	return ThreadView{
		Thread:       t,
		MutedByMe:    f.Muted,
		ArchivedByMe: f.Archived,
		BlockedByMe:  f.Blocked,
	}
}

// ThreadSummary is the list-view projection of a thread for a viewer.
type ThreadSummary struct {
	ThreadID     int       `json:"thread_id"`
	PartnerID    int       `json:"partner_id"`
	ArchivedByMe bool      `json:"archived_by_me"`
	MutedByMe    bool      `json:"muted_by_me"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserPublic is the public profile served to chat participants.
type UserPublic struct {
	ID           int    `db:"id" json:"id"`
	Username     string `db:"username" json:"username"`
	FirstName    string `db:"first_name" json:"firstName"`
	LastName     string `db:"last_name" json:"lastName"`
	AvatarURL    string `db:"avatar_url" json:"avatarUrl"`
	ContactEmail string `db:"contact_email" json:"contactEmail"`
	Online       bool   `db:"-" json:"online"`
}
