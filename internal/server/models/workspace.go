package models

import "time"

// MemoryItem is a key fact pinned to a conversation. Keys are unique per
// conversation; saving an existing key replaces its value.
type MemoryItem struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Key            string    `json:"key"`
	Value          string    `json:"value"`
	CreatedAt      time.Time `json:"created_at"`
}

// Resource is a paper, snippet or link saved to a conversation.
type Resource struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Type           string         `json:"type"`
	Title          string         `json:"title"`
	Content        string         `json:"content"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
