package conversations

import (
	"context"

	"github.com/paperclip/paperclip/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, c *models.Conversation) (*models.Conversation, error)
	Get(ctx context.Context, id, userID string) (*models.Conversation, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Conversation, error)
	Delete(ctx context.Context, id, userID string) error
	Touch(ctx context.Context, id string) error
}
