package models

import "time"

// Attachment describes a file carried by a message.
type Attachment struct {
	URL  string `json:"url"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// Message represents one unit of a thread. Deletion is soft: once
// DeletedAt is set the body and attachment must never be rendered.
type Message struct {
	ID       int    `db:"id" json:"id"`
	ThreadID int    `db:"thread_id" json:"thread_id"`
	SenderID int    `db:"sender_id" json:"sender_id"`
	Body     string `db:"body" json:"body,omitempty"`

	AttachmentURL  *string `db:"attachment_url" json:"-"`
	AttachmentType *string `db:"attachment_type" json:"-"`
	AttachmentName *string `db:"attachment_name" json:"-"`

	Attachment *Attachment `db:"-" json:"attachment,omitempty"`

	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	EditedAt  *time.Time `db:"edited_at" json:"edited_at,omitempty"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Deleted reports whether the message has been soft-deleted.
func (m Message) Deleted() bool {
	return m.DeletedAt != nil
}

// Hydrate folds the flat attachment columns into the Attachment struct.
func (m *Message) Hydrate() {
	if m.AttachmentURL != nil && *m.AttachmentURL != "" {
		att := Attachment{URL: *m.AttachmentURL}
		if m.AttachmentType != nil {
			att.Type = *m.AttachmentType
		}
		if m.AttachmentName != nil {
			att.Name = *m.AttachmentName
		}
		m.Attachment = &att
	}
}

// Redacted returns a render-safe copy: a soft-deleted message exposes
// neither body nor attachment, regardless of what the row still holds.
func (m Message) Redacted() Message {
	if !m.Deleted() {
		return m
	}
	m.Body = ""
	m.Attachment = nil
	m.AttachmentURL = nil
	m.AttachmentType = nil
	m.AttachmentName = nil
	return m
}

// RedactAll applies Redacted to every message in order.
func RedactAll(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Redacted())
	}
	return out
}
