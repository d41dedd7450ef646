package resources

import (
	"context"

	"github.com/paperclip/paperclip/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, res *models.Resource) (*models.Resource, error)
	ListByConversation(ctx context.Context, conversationID string) ([]*models.Resource, error)
}
