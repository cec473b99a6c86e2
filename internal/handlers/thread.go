package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"marketplace-chat/internal/models"
	"marketplace-chat/internal/presence"
	"marketplace-chat/internal/repositories"
	"marketplace-chat/internal/telemetry"
	"marketplace-chat/internal/uploads"
	"marketplace-chat/internal/ws"
)

// ChatHandler manages the thread and message endpoints.
type ChatHandler struct {
	threadRepo  repositories.ThreadRepository
	messageRepo repositories.MessageRepository
	userRepo    repositories.UserRepository
	uploadStore uploads.Store
	hub         *ws.Hub
	registry    *presence.Registry
	audit       *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(
	threadRepo repositories.ThreadRepository,
	messageRepo repositories.MessageRepository,
	userRepo repositories.UserRepository,
	uploadStore uploads.Store,
	hub *ws.Hub,
	registry *presence.Registry,
	audit *telemetry.AuditEmitter,
) *ChatHandler {
	return &ChatHandler{
		threadRepo:  threadRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		uploadStore: uploadStore,
		hub:         hub,
		registry:    registry,
		audit:       audit,
	}
}

// ListThreads returns the threads visible to the authenticated user.
// Archived threads are included only with ?archived=true.
func (h *ChatHandler) ListThreads(c *gin.Context) {
	userID := c.GetInt("userID")
	includeArchived := c.Query("archived") == "true"

	threads, err := h.threadRepo.ListThreads(c.Request.Context(), userID, includeArchived)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load threads"})
		return
	}
	if threads == nil {
		threads = []models.ThreadSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads})
}

// StartThread creates or returns the thread between the caller (buyer) and
// a seller — the first-contact action.
func (h *ChatHandler) StartThread(c *gin.Context) {
	var req struct {
		SellerID int `json:"seller_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	if userID == req.SellerID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot chat with yourself"})
		return
	}

	thread, err := h.threadRepo.CreateOrGetThread(c.Request.Context(), userID, req.SellerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create thread"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"thread_id": thread.ID})
}

// GetThreadMessages returns the thread view for the caller plus the full
// ordered message list. Soft-deleted messages are redacted, never omitted.
func (h *ChatHandler) GetThreadMessages(c *gin.Context) {
	thread, userID, ok := h.loadThreadForParticipant(c)
	if !ok {
		return
	}

	flags, err := h.threadRepo.GetFlags(c.Request.Context(), thread.ID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load thread flags"})
		return
	}

	msgs, err := h.messageRepo.ListThreadMessages(c.Request.Context(), thread.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"thread": models.NewThreadView(thread, flags),
		"items":  models.RedactAll(msgs),
	})
}

// MarkRead records the caller's read position on the thread.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	thread, userID, ok := h.loadThreadForParticipant(c)
	if !ok {
		return
	}

	if err := h.threadRepo.MarkRead(c.Request.Context(), thread.ID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SetMuted toggles the caller's mute flag. The response carries the stored
// value, which callers adopt as truth.
func (h *ChatHandler) SetMuted(c *gin.Context) {
	thread, userID, ok := h.loadThreadForParticipant(c)
	if !ok {
		return
	}

	var req struct {
		Mute *bool `json:"mute" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stored, err := h.threadRepo.SetMuted(c.Request.Context(), thread.ID, userID, *req.Mute)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update mute flag"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"muted": stored})
}

// SetArchived toggles the caller's archive flag.
func (h *ChatHandler) SetArchived(c *gin.Context) {
	thread, userID, ok := h.loadThreadForParticipant(c)
	if !ok {
		return
	}

	var req struct {
		Archive *bool `json:"archive" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stored, err := h.threadRepo.SetArchived(c.Request.Context(), thread.ID, userID, *req.Archive)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update archive flag"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": stored})
}

// SetBlocked toggles the caller's block flag and audits the change.
func (h *ChatHandler) SetBlocked(c *gin.Context) {
	thread, userID, ok := h.loadThreadForParticipant(c)
	if !ok {
		return
	}

	var req struct {
		Block *bool `json:"block" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stored, err := h.threadRepo.SetBlocked(c.Request.Context(), thread.ID, userID, *req.Block)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update block flag"})
		return
	}

	action := "thread_unblocked"
	if stored {
		action = "thread_blocked"
	}
	h.audit.Emit(c.Request.Context(), action, thread.ID, "", requestIDFromContext(c), &userID)

	c.JSON(http.StatusOK, gin.H{"blocked": stored})
}

// loadThreadForParticipant resolves :chat_id and enforces membership.
func (h *ChatHandler) loadThreadForParticipant(c *gin.Context) (models.Thread, int, bool) {
	threadID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return models.Thread{}, 0, false
	}

	userID := c.GetInt("userID")
	thread, err := h.threadRepo.GetThread(c.Request.Context(), threadID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrThreadNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "thread not found"})
		return models.Thread{}, 0, false
	}
	if !thread.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a thread participant"})
		return models.Thread{}, 0, false
	}
	return thread, userID, true
}
