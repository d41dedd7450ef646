package messages

import (
	"context"

	"github.com/paperclip/paperclip/internal/server/models"
)

type Repository interface {
	Append(ctx context.Context, m *models.Message) (*models.Message, error)
	ListByConversation(ctx context.Context, conversationID string) ([]*models.Message, error)
	ListRecent(ctx context.Context, conversationID string, limit int) ([]*models.Message, error)
}
