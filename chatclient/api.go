// Package chatclient is the headless controller for one open marketplace
// chat thread. It merges REST history with realtime push events, expires
// typing indicators, and keeps flag toggles consistent with the server.
// Front-ends and bots embed it and render its snapshots.
package chatclient

import (
	"context"

	"marketplace-chat/internal/models"
)

// Upload is an attachment queued for sending.
type Upload struct {
	Name        string
	ContentType string
	Content     []byte
}

// History is the response of the thread history endpoint.
type History struct {
	Thread models.ThreadView `json:"thread"`
	Items  []models.Message  `json:"items"`
}

// API is the REST surface the controller drives. The production
// implementation is HTTPAPI; tests substitute a mock.
type API interface {
	FetchHistory(ctx context.Context, threadID int) (History, error)
	MarkRead(ctx context.Context, threadID int) error
	CreateMessage(ctx context.Context, threadID int, body string, files []Upload) ([]models.Message, error)
	EditMessage(ctx context.Context, messageID int, body string) (models.Message, error)
	DeleteMessage(ctx context.Context, messageID int) error
	SetMuted(ctx context.Context, threadID int, muted bool) (bool, error)
	SetArchived(ctx context.Context, threadID int, archived bool) (bool, error)
	SetBlocked(ctx context.Context, threadID int, blocked bool) (bool, error)
	FetchPublicProfile(ctx context.Context, userID int) (models.UserPublic, error)
}
