package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"marketplace-chat/internal/mocks"
	"marketplace-chat/internal/models"
	"marketplace-chat/internal/presence"
	"marketplace-chat/internal/repositories"
	"marketplace-chat/internal/ws"
)

func multipartBody(t *testing.T, body string, fileNames ...string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	if body != "" {
		require.NoError(t, writer.WriteField("body", body))
	}
	for _, name := range fileNames {
		part, err := writer.CreateFormFile("files[]", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("file-content"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buf, writer.FormDataContentType()
}

func TestPostMessageBodyOnly(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newHandler(threadRepo, messageRepo, nil, nil)
	router := setupRouter(handler)

	thread := models.Thread{ID: 7, BuyerID: 1, SellerID: 2}
	threadRepo.On("GetThread", mock.Anything, 7).Return(thread, nil).Once()
	threadRepo.On("GetFlags", mock.Anything, 7, 1).Return(models.ThreadFlags{}, nil).Once()
	threadRepo.On("GetFlags", mock.Anything, 7, 2).Return(models.ThreadFlags{}, nil).Once()
	messageRepo.On("CreateMessage", mock.Anything, 7, 1, "hello there", (*models.Attachment)(nil)).
		Return(models.Message{ID: 5, ThreadID: 7, SenderID: 1, Body: "hello there"}, nil).Once()
	// A new message revives the thread on both sides.
	threadRepo.On("SetArchived", mock.Anything, 7, 1, false).Return(false, nil).Once()
	threadRepo.On("SetArchived", mock.Anything, 7, 2, false).Return(false, nil).Once()

	buf, contentType := multipartBody(t, "  hello there  ")
	req := httptest.NewRequest(http.MethodPost, "/api/chats/7/messages", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Items []models.Message `json:"items"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "hello there", resp.Items[0].Body)
	threadRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestPostMessageOneMessagePerFile(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	uploadStore := new(mocks.UploadStoreMock)
	handler := NewChatHandler(threadRepo, messageRepo, nil, uploadStore, ws.NewHub(), presence.NewRegistry(nil), nil)
	router := setupRouter(handler)

	thread := models.Thread{ID: 7, BuyerID: 1, SellerID: 2}
	threadRepo.On("GetThread", mock.Anything, 7).Return(thread, nil).Once()
	threadRepo.On("GetFlags", mock.Anything, 7, 1).Return(models.ThreadFlags{}, nil).Once()
	threadRepo.On("GetFlags", mock.Anything, 7, 2).Return(models.ThreadFlags{}, nil).Once()
	uploadStore.On("Save", mock.Anything).Return(models.Attachment{URL: "/uploads/a.png", Name: "a.png"}, nil).Twice()
	messageRepo.On("CreateMessage", mock.Anything, 7, 1, "caption", (*models.Attachment)(nil)).
		Return(models.Message{ID: 5, ThreadID: 7, SenderID: 1, Body: "caption"}, nil).Once()
	messageRepo.On("CreateMessage", mock.Anything, 7, 1, "", mock.AnythingOfType("*models.Attachment")).
		Return(models.Message{ID: 6, ThreadID: 7, SenderID: 1}, nil).Twice()
	threadRepo.On("SetArchived", mock.Anything, 7, 1, false).Return(false, nil).Once()
	threadRepo.On("SetArchived", mock.Anything, 7, 2, false).Return(false, nil).Once()

	buf, contentType := multipartBody(t, "caption", "a.png", "b.png")
	req := httptest.NewRequest(http.MethodPost, "/api/chats/7/messages", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Items []models.Message `json:"items"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Items, 3, "one message for the body plus one per file")
	uploadStore.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestPostMessageEmpty(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newHandler(threadRepo, messageRepo, nil, nil)
	router := setupRouter(handler)

	threadRepo.On("GetThread", mock.Anything, 7).Return(models.Thread{ID: 7, BuyerID: 1, SellerID: 2}, nil).Once()
	threadRepo.On("GetFlags", mock.Anything, 7, mock.Anything).Return(models.ThreadFlags{}, nil).Twice()

	buf, contentType := multipartBody(t, "")
	req := httptest.NewRequest(http.MethodPost, "/api/chats/7/messages", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	messageRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPostMessageBlockedByViewer(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newHandler(threadRepo, messageRepo, nil, nil)
	router := setupRouter(handler)

	threadRepo.On("GetThread", mock.Anything, 7).Return(models.Thread{ID: 7, BuyerID: 1, SellerID: 2}, nil).Once()
	threadRepo.On("GetFlags", mock.Anything, 7, 1).Return(models.ThreadFlags{Blocked: true}, nil).Once()

	buf, contentType := multipartBody(t, "hi")
	req := httptest.NewRequest(http.MethodPost, "/api/chats/7/messages", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPostMessageBlockedByPartner(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newHandler(threadRepo, messageRepo, nil, nil)
	router := setupRouter(handler)

	threadRepo.On("GetThread", mock.Anything, 7).Return(models.Thread{ID: 7, BuyerID: 1, SellerID: 2}, nil).Once()
	threadRepo.On("GetFlags", mock.Anything, 7, 1).Return(models.ThreadFlags{}, nil).Once()
	threadRepo.On("GetFlags", mock.Anything, 7, 2).Return(models.ThreadFlags{Blocked: true}, nil).Once()

	buf, contentType := multipartBody(t, "hi")
	req := httptest.NewRequest(http.MethodPost, "/api/chats/7/messages", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEditMessageSuccess(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newHandler(threadRepo, messageRepo, nil, nil)
	router := setupRouter(handler)

	edited := models.Message{ID: 9, ThreadID: 7, SenderID: 1, Body: "fixed", EditedAt: timeRef()}
	messageRepo.On("EditMessage", mock.Anything, 9, 1, "fixed").Return(edited, nil).Once()
	threadRepo.On("GetThread", mock.Anything, 7).Return(models.Thread{ID: 7, BuyerID: 1, SellerID: 2}, nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/api/messages/9", bytes.NewBufferString(`{"body":"fixed"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "fixed", resp.Body)
	assert.NotNil(t, resp.EditedAt)
	messageRepo.AssertExpectations(t)
}

func TestEditMessageNotSender(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newHandler(new(mocks.ThreadRepositoryMock), messageRepo, nil, nil)
	router := setupRouter(handler)

	messageRepo.On("EditMessage", mock.Anything, 9, 1, "fixed").
		Return(models.Message{}, repositories.ErrNotSender).Once()

	req := httptest.NewRequest(http.MethodPatch, "/api/messages/9", bytes.NewBufferString(`{"body":"fixed"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteMessageSuccess(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newHandler(threadRepo, messageRepo, nil, nil)
	router := setupRouter(handler)

	deleted := models.Message{ID: 9, ThreadID: 7, SenderID: 1, Body: "gone", DeletedAt: timeRef()}
	messageRepo.On("SoftDeleteMessage", mock.Anything, 9, 1).Return(deleted, nil).Once()
	threadRepo.On("GetThread", mock.Anything, 7).Return(models.Thread{ID: 7, BuyerID: 1, SellerID: 2}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/api/messages/9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestDeleteMessageAlreadyDeleted(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newHandler(new(mocks.ThreadRepositoryMock), messageRepo, nil, nil)
	router := setupRouter(handler)

	messageRepo.On("SoftDeleteMessage", mock.Anything, 9, 1).
		Return(models.Message{}, repositories.ErrMessageDeleted).Once()

	req := httptest.NewRequest(http.MethodDelete, "/api/messages/9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteMessageNotFound(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newHandler(new(mocks.ThreadRepositoryMock), messageRepo, nil, nil)
	router := setupRouter(handler)

	messageRepo.On("SoftDeleteMessage", mock.Anything, 9, 1).
		Return(models.Message{}, repositories.ErrMessageNotFound).Once()

	req := httptest.NewRequest(http.MethodDelete, "/api/messages/9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
