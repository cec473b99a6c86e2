package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"marketplace-chat/internal/models"
)

// HTTPAPI drives the chat REST surface over HTTP with bearer auth.
type HTTPAPI struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPAPI constructs an HTTPAPI against baseURL (no trailing slash
// needed) authenticating with token.
func NewHTTPAPI(baseURL, token string) *HTTPAPI {
	return &HTTPAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *HTTPAPI) FetchHistory(ctx context.Context, threadID int) (History, error) {
	var history History
	err := a.do(ctx, http.MethodGet, fmt.Sprintf("/api/chats/%d/messages", threadID), nil, "", &history)
	return history, err
}

func (a *HTTPAPI) MarkRead(ctx context.Context, threadID int) error {
	return a.do(ctx, http.MethodPost, fmt.Sprintf("/api/chats/%d/read", threadID), nil, "", nil)
}

func (a *HTTPAPI) CreateMessage(ctx context.Context, threadID int, body string, files []Upload) ([]models.Message, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if body != "" {
		if err := writer.WriteField("body", body); err != nil {
			return nil, err
		}
	}
	for _, file := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files[]"; filename=%q`, file.Name))
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(file.Content); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	var resp struct {
		Items []models.Message `json:"items"`
	}
	err := a.do(ctx, http.MethodPost, fmt.Sprintf("/api/chats/%d/messages", threadID), &buf, writer.FormDataContentType(), &resp)
	return resp.Items, err
}

func (a *HTTPAPI) EditMessage(ctx context.Context, messageID int, body string) (models.Message, error) {
	payload, err := json.Marshal(map[string]string{"body": body})
	if err != nil {
		return models.Message{}, err
	}
	var msg models.Message
	err = a.do(ctx, http.MethodPatch, fmt.Sprintf("/api/messages/%d", messageID), bytes.NewReader(payload), "application/json", &msg)
	return msg, err
}

func (a *HTTPAPI) DeleteMessage(ctx context.Context, messageID int) error {
	return a.do(ctx, http.MethodDelete, fmt.Sprintf("/api/messages/%d", messageID), nil, "", nil)
}

func (a *HTTPAPI) SetMuted(ctx context.Context, threadID int, muted bool) (bool, error) {
	return a.toggle(ctx, threadID, "mute", muted, "muted")
}

func (a *HTTPAPI) SetArchived(ctx context.Context, threadID int, archived bool) (bool, error) {
	return a.toggle(ctx, threadID, "archive", archived, "archived")
}

func (a *HTTPAPI) SetBlocked(ctx context.Context, threadID int, blocked bool) (bool, error) {
	return a.toggle(ctx, threadID, "block", blocked, "blocked")
}

func (a *HTTPAPI) toggle(ctx context.Context, threadID int, action string, value bool, responseKey string) (bool, error) {
	payload, err := json.Marshal(map[string]bool{action: value})
	if err != nil {
		return false, err
	}
	var resp map[string]bool
	err = a.do(ctx, http.MethodPost, fmt.Sprintf("/api/chats/%d/%s", threadID, action), bytes.NewReader(payload), "application/json", &resp)
	if err != nil {
		return false, err
	}
	return resp[responseKey], nil
}

func (a *HTTPAPI) FetchPublicProfile(ctx context.Context, userID int) (models.UserPublic, error) {
	var profile models.UserPublic
	err := a.do(ctx, http.MethodGet, "/api/users/"+strconv.Itoa(userID)+"/public", nil, "", &profile)
	return profile, err
}

func (a *HTTPAPI) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
