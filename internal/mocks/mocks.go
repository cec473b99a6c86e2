package mocks

import (
	"context"
	"mime/multipart"

	"github.com/stretchr/testify/mock"

	"marketplace-chat/internal/models"
)

type ThreadRepositoryMock struct {
	mock.Mock
}

func (m *ThreadRepositoryMock) CreateOrGetThread(ctx context.Context, buyerID int, sellerID int) (models.Thread, error) {
	args := m.Called(ctx, buyerID, sellerID)
	var thread models.Thread
	if val := args.Get(0); val != nil {
		thread = val.(models.Thread)
	}
	return thread, args.Error(1)
}

func (m *ThreadRepositoryMock) GetThread(ctx context.Context, threadID int) (models.Thread, error) {
	args := m.Called(ctx, threadID)
	var thread models.Thread
	if val := args.Get(0); val != nil {
		thread = val.(models.Thread)
	}
	return thread, args.Error(1)
}

func (m *ThreadRepositoryMock) IsParticipant(ctx context.Context, threadID int, userID int) (bool, error) {
	args := m.Called(ctx, threadID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ThreadRepositoryMock) ListThreads(ctx context.Context, userID int, includeArchived bool) ([]models.ThreadSummary, error) {
	args := m.Called(ctx, userID, includeArchived)
	var list []models.ThreadSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ThreadSummary)
	}
	return list, args.Error(1)
}

func (m *ThreadRepositoryMock) GetFlags(ctx context.Context, threadID int, userID int) (models.ThreadFlags, error) {
	args := m.Called(ctx, threadID, userID)
	var flags models.ThreadFlags
	if val := args.Get(0); val != nil {
		flags = val.(models.ThreadFlags)
	}
	return flags, args.Error(1)
}

func (m *ThreadRepositoryMock) SetMuted(ctx context.Context, threadID int, userID int, muted bool) (bool, error) {
	args := m.Called(ctx, threadID, userID, muted)
	return args.Bool(0), args.Error(1)
}

func (m *ThreadRepositoryMock) SetArchived(ctx context.Context, threadID int, userID int, archived bool) (bool, error) {
	args := m.Called(ctx, threadID, userID, archived)
	return args.Bool(0), args.Error(1)
}

func (m *ThreadRepositoryMock) SetBlocked(ctx context.Context, threadID int, userID int, blocked bool) (bool, error) {
	args := m.Called(ctx, threadID, userID, blocked)
	return args.Bool(0), args.Error(1)
}

func (m *ThreadRepositoryMock) MarkRead(ctx context.Context, threadID int, userID int) error {
	args := m.Called(ctx, threadID, userID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, threadID int, senderID int, body string, attachment *models.Attachment) (models.Message, error) {
	args := m.Called(ctx, threadID, senderID, body, attachment)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListThreadMessages(ctx context.Context, threadID int) ([]models.Message, error) {
	args := m.Called(ctx, threadID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) EditMessage(ctx context.Context, messageID int, senderID int, body string) (models.Message, error) {
	args := m.Called(ctx, messageID, senderID, body)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) SoftDeleteMessage(ctx context.Context, messageID int, senderID int) (models.Message, error) {
	args := m.Called(ctx, messageID, senderID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetPublicProfile(ctx context.Context, userID int) (models.UserPublic, error) {
	args := m.Called(ctx, userID)
	var user models.UserPublic
	if val := args.Get(0); val != nil {
		user = val.(models.UserPublic)
	}
	return user, args.Error(1)
}

type VerifierMock struct {
	mock.Mock
}

func (m *VerifierMock) ValidateToken(token string) (int, error) {
	args := m.Called(token)
	return args.Int(0), args.Error(1)
}

// PublisherMock stands in for the AMQP event publisher in handler and
// telemetry tests.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	return m.Called().Error(0)
}

type UploadStoreMock struct {
	mock.Mock
}

func (m *UploadStoreMock) Save(file *multipart.FileHeader) (models.Attachment, error) {
	args := m.Called(file)
	var att models.Attachment
	if val := args.Get(0); val != nil {
		att = val.(models.Attachment)
	}
	return att, args.Error(1)
}
