package models

import "time"

// Conversation is a user's workspace thread with the research tools.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single turn inside a conversation. Tool records which research
// tool the dispatcher routed the turn to, if any.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Tool           string    `json:"tool,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Transcript is the exported form of a conversation.
type Transcript struct {
	Conversation *Conversation `json:"conversation"`
	Messages     []*Message    `json:"messages"`
	ExportedAt   time.Time     `json:"exported_at"`
}
