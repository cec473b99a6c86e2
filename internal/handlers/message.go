package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"marketplace-chat/internal/models"
	"marketplace-chat/internal/observability"
	"marketplace-chat/internal/repositories"
)

// PostMessage stores the text body and each uploaded file as messages and
// fans them out. The REST response is advisory: clients re-derive the
// canonical list with a follow-up history load.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	thread, userID, ok := h.loadThreadForParticipant(c)
	if !ok {
		return
	}

	viewerFlags, err := h.threadRepo.GetFlags(c.Request.Context(), thread.ID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load thread flags"})
		return
	}
	if viewerFlags.Blocked {
		c.JSON(http.StatusForbidden, gin.H{"error": "thread is blocked"})
		return
	}
	partnerID := thread.Counterpart(userID)
	partnerFlags, err := h.threadRepo.GetFlags(c.Request.Context(), thread.ID, partnerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load thread flags"})
		return
	}
	if partnerFlags.Blocked {
		c.JSON(http.StatusForbidden, gin.H{"error": "recipient has blocked this thread"})
		return
	}

	body := strings.TrimSpace(c.PostForm("body"))
	form, err := c.MultipartForm()
	if err != nil && body == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty message"})
		return
	}
	var files []*multipart.FileHeader
	if form != nil {
		files = form.File["files[]"]
		// Some clients post the field without the bracket suffix.
		if len(files) == 0 {
			files = form.File["files"]
		}
	}
	if body == "" && len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty message"})
		return
	}

	var created []models.Message
	if body != "" {
		msg, err := h.messageRepo.CreateMessage(c.Request.Context(), thread.ID, userID, body, nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
			return
		}
		created = append(created, msg)
	}
	for _, file := range files {
		att, err := h.uploadStore.Save(file)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store attachment"})
			return
		}
		msg, err := h.messageRepo.CreateMessage(c.Request.Context(), thread.ID, userID, "", &att)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
			return
		}
		created = append(created, msg)
	}

	// Sending revives an archived thread for both sides.
	if _, err := h.threadRepo.SetArchived(c.Request.Context(), thread.ID, userID, false); err == nil {
		_, _ = h.threadRepo.SetArchived(c.Request.Context(), thread.ID, partnerID, false)
	}

	for _, msg := range created {
		h.fanOutNewMessage(c, thread, userID, msg)
	}

	c.JSON(http.StatusCreated, gin.H{"items": models.RedactAll(created)})
}

// fanOutNewMessage pushes a stored message to the thread room, to the
// counterpart's delivery room when they are online, and acks the sender.
func (h *ChatHandler) fanOutNewMessage(c *gin.Context, thread models.Thread, senderID int, msg models.Message) {
	safe := msg.Redacted()
	h.hub.PublishToThread(thread.ID, models.EventMessage, safe, "")

	partnerID := thread.Counterpart(senderID)
	if h.registry.IsOnline(partnerID) {
		h.hub.PublishToUser(partnerID, models.EventMessage, safe)
	}
	h.hub.PublishToUser(senderID, models.EventMessageAck, safe)

	_ = observability.PublishEvent(c.Request.Context(), observability.RoutingKeyChatEvents, observability.EventEnvelope{
		EventType: "chat_events",
		EventName: "message_created",
		RequestID: requestIDFromContext(c),
		Payload: observability.MessageEventPayload{
			ThreadID:  thread.ID,
			MessageID: msg.ID,
			SenderID:  senderID,
			Action:    "created",
		},
	})
}

// EditMessage replaces the body of the caller's own, not-deleted message.
func (h *ChatHandler) EditMessage(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	msg, err := h.messageRepo.EditMessage(c.Request.Context(), messageID, userID, strings.TrimSpace(req.Body))
	if err != nil {
		h.mutationError(c, err)
		return
	}

	h.fanOutUpdate(c, msg, userID, "message_edited")
	c.JSON(http.StatusOK, msg.Redacted())
}

// DeleteMessage soft-deletes the caller's own message. The row stays; its
// content stops rendering everywhere.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	userID := c.GetInt("userID")
	msg, err := h.messageRepo.SoftDeleteMessage(c.Request.Context(), messageID, userID)
	if err != nil {
		h.mutationError(c, err)
		return
	}

	h.fanOutUpdate(c, msg, userID, "message_deleted")
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *ChatHandler) fanOutUpdate(c *gin.Context, msg models.Message, userID int, action string) {
	update := models.MessageUpdate{ThreadID: msg.ThreadID, Item: msg.Redacted()}
	h.hub.PublishToThread(msg.ThreadID, models.EventMessageUpdate, update, "")

	thread, err := h.threadRepo.GetThread(c.Request.Context(), msg.ThreadID)
	if err == nil {
		partnerID := thread.Counterpart(userID)
		if h.registry.IsOnline(partnerID) {
			h.hub.PublishToUser(partnerID, models.EventMessageUpdate, update)
		}
	}

	h.audit.Emit(c.Request.Context(), action, msg.ThreadID, "message "+strconv.Itoa(msg.ID), requestIDFromContext(c), &userID)
}

func (h *ChatHandler) mutationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repositories.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
	case errors.Is(err, repositories.ErrNotSender):
		c.JSON(http.StatusForbidden, gin.H{"error": "only the sender can modify a message"})
	case errors.Is(err, repositories.ErrMessageDeleted):
		c.JSON(http.StatusConflict, gin.H{"error": "message already deleted"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update message"})
	}
}
