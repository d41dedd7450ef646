package memory

import (
	"context"

	"github.com/paperclip/paperclip/internal/server/models"
)

type Repository interface {
	Upsert(ctx context.Context, item *models.MemoryItem) (*models.MemoryItem, error)
	ListByConversation(ctx context.Context, conversationID string) ([]*models.MemoryItem, error)
	Delete(ctx context.Context, conversationID, key string) error
}
