package chatclient

import (
	"encoding/json"

	"marketplace-chat/internal/models"
)

// NormalizeIncoming flattens the payload shapes the realtime channel may
// carry — a single message, an array, or an envelope wrapping either
// ({item: M} / {items: [...]}) — into an ordered message slice. An
// unrecognized shape degrades to an empty slice, never an error.
func NormalizeIncoming(raw json.RawMessage) []models.Message {
	if len(raw) == 0 {
		return []models.Message{}
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]models.Message, 0, len(list))
		for _, item := range list {
			out = append(out, NormalizeIncoming(item)...)
		}
		return out
	}

	var envelope struct {
		Item  json.RawMessage `json:"item"`
		Items json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return []models.Message{}
	}
	if envelope.Item != nil {
		return NormalizeIncoming(envelope.Item)
	}
	if envelope.Items != nil {
		return NormalizeIncoming(envelope.Items)
	}

	var msg models.Message
	if err := json.Unmarshal(raw, &msg); err != nil || msg.ID == 0 {
		return []models.Message{}
	}
	return []models.Message{msg}
}
