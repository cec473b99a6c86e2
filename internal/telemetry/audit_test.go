package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"marketplace-chat/internal/mocks"
)

func TestEmitPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	var captured AuditEnvelope
	publisher.On("Publish", mock.Anything, "audit.logs", mock.AnythingOfType("telemetry.AuditEnvelope")).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).(AuditEnvelope)
		}).Return(nil).Once()

	emitter := NewAuditEmitter(publisher, "audit.logs", "marketplace-chat", "test")
	userID := 42
	emitter.Emit(context.Background(), "thread_blocked", 7, "detail", "req-1", &userID)

	publisher.AssertExpectations(t)
	assert.Equal(t, 1, captured.SchemaVersion)
	assert.Equal(t, "audit_log", captured.EventType)
	assert.Equal(t, "marketplace-chat", captured.Service)
	assert.Equal(t, "req-1", captured.RequestID)
	require.NotNil(t, captured.UserID)
	assert.Equal(t, 42, *captured.UserID)
	assert.Equal(t, "thread_blocked", captured.Payload.Action)
	assert.Equal(t, 7, captured.Payload.ThreadID)
}

func TestEmitNilSafe(t *testing.T) {
	var emitter *AuditEmitter
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), "noop", 0, "", "", nil)
	})

	withoutPublisher := NewAuditEmitter(nil, "audit.logs", "svc", "test")
	assert.NotPanics(t, func() {
		withoutPublisher.Emit(context.Background(), "noop", 0, "", "", nil)
	})
}

func TestEmitSwallowsPublishFailure(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	publisher.On("Publish", mock.Anything, "audit.logs", mock.Anything).Return(assert.AnError).Once()

	emitter := NewAuditEmitter(publisher, "audit.logs", "svc", "test")
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), "thread_blocked", 7, "", "", nil)
	})
	publisher.AssertExpectations(t)
}
