package chatclient

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeIncomingShapes(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantIDs []int
	}{
		{"bare message", `{"id":1,"thread_id":7,"sender_id":2,"body":"hi"}`, []int{1}},
		{"array", `[{"id":1,"thread_id":7},{"id":2,"thread_id":7}]`, []int{1, 2}},
		{"item envelope", `{"item":{"id":3,"thread_id":7}}`, []int{3}},
		{"items envelope", `{"items":[{"id":4,"thread_id":7},{"id":5,"thread_id":7}]}`, []int{4, 5}},
		{"empty object", `{}`, nil},
		{"empty array", `[]`, nil},
		{"null", `null`, nil},
		{"scalar junk", `42`, nil},
		{"missing id", `{"thread_id":7,"body":"no id"}`, nil},
		{"nested item in array", `[{"item":{"id":6,"thread_id":7}},{"id":8,"thread_id":7}]`, []int{6, 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeIncoming(json.RawMessage(tt.raw))
			require.NotNil(t, got, "normalization must never return nil")
			ids := make([]int, 0, len(got))
			for _, m := range got {
				ids = append(ids, m.ID)
			}
			if tt.wantIDs == nil {
				assert.Empty(t, ids)
			} else {
				assert.Equal(t, tt.wantIDs, ids)
			}
		})
	}
}

func TestNormalizeIncomingPreservesFields(t *testing.T) {
	raw := json.RawMessage(`{"item":{"id":9,"thread_id":7,"sender_id":2,"body":"hello","attachment":{"url":"/uploads/a.png","type":"image/png","name":"a.png"}}}`)
	got := NormalizeIncoming(raw)
	require.Len(t, got, 1)
	assert.Equal(t, 9, got[0].ID)
	assert.Equal(t, 7, got[0].ThreadID)
	assert.Equal(t, "hello", got[0].Body)
	require.NotNil(t, got[0].Attachment)
	assert.Equal(t, "/uploads/a.png", got[0].Attachment.URL)
}
