package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"marketplace-chat/internal/models"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrMessageDeleted  = errors.New("message already deleted")
	ErrNotSender       = errors.New("only the sender may modify a message")
)

const messageColumns = `id, thread_id, sender_id, body, attachment_url, attachment_type, attachment_name, created_at, edited_at, deleted_at`

// MessageRepository defines interactions for thread messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, threadID int, senderID int, body string, attachment *models.Attachment) (models.Message, error)
	ListThreadMessages(ctx context.Context, threadID int) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	EditMessage(ctx context.Context, messageID int, senderID int, body string) (models.Message, error)
	SoftDeleteMessage(ctx context.Context, messageID int, senderID int) (models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message, with an optional attachment.
func (r *MessageRepo) CreateMessage(ctx context.Context, threadID int, senderID int, body string, attachment *models.Attachment) (models.Message, error) {
	var url, typ, name *string
	if attachment != nil {
		url, typ, name = &attachment.URL, &attachment.Type, &attachment.Name
	}

	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`INSERT INTO messages (thread_id, sender_id, body, attachment_url, attachment_type, attachment_name)
         VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+messageColumns,
		threadID, senderID, body, url, typ, name)
	if err != nil {
		return models.Message{}, err
	}
	msg.Hydrate()
	return msg, nil
}

// ListThreadMessages returns the thread's messages in creation order.
func (r *MessageRepo) ListThreadMessages(ctx context.Context, threadID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages WHERE thread_id=$1 ORDER BY created_at ASC, id ASC`, threadID)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		msgs[i].Hydrate()
	}
	return msgs, nil
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	msg.Hydrate()
	return msg, nil
}

// EditMessage replaces the body of a not-yet-deleted message owned by senderID.
func (r *MessageRepo) EditMessage(ctx context.Context, messageID int, senderID int, body string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`UPDATE messages SET body=$1, edited_at=NOW() WHERE id=$2 AND sender_id=$3 AND deleted_at IS NULL RETURNING `+messageColumns,
		body, messageID, senderID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, r.classifyMutationFailure(ctx, messageID, senderID)
	}
	if err != nil {
		return models.Message{}, err
	}
	msg.Hydrate()
	return msg, nil
}

// SoftDeleteMessage sets deleted_at; the row stays but content must no
// longer render.
func (r *MessageRepo) SoftDeleteMessage(ctx context.Context, messageID int, senderID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`UPDATE messages SET deleted_at=NOW() WHERE id=$1 AND sender_id=$2 AND deleted_at IS NULL RETURNING `+messageColumns,
		messageID, senderID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, r.classifyMutationFailure(ctx, messageID, senderID)
	}
	if err != nil {
		return models.Message{}, err
	}
	msg.Hydrate()
	return msg, nil
}

func (r *MessageRepo) classifyMutationFailure(ctx context.Context, messageID int, senderID int) error {
	existing, err := r.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if existing.SenderID != senderID {
		return ErrNotSender
	}
	if existing.Deleted() {
		return ErrMessageDeleted
	}
	return ErrMessageNotFound
}
