package services

import (
	"context"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/paperclip/paperclip/internal/common"
	"github.com/paperclip/paperclip/internal/server/models"
)

const maxKeyLength = 200

// Memory lists the key facts pinned to a conversation, newest first.
func (s *ConversationService) Memory(ctx context.Context, userID, id string) ([]*models.MemoryItem, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.repomanager.Memory(s.db).ListByConversation(ctx, id)
}

// Remember pins key=value to a conversation. An existing key is overwritten.
func (s *ConversationService) Remember(ctx context.Context, userID, id, key, value string) (*models.MemoryItem, error) {
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if err := validation.Validate(key, validation.Required, validation.RuneLength(1, maxKeyLength)); err != nil {
		return nil, fmt.Errorf("%w: key %v", common.ErrorValidation, err)
	}
	if err := validation.Validate(value, validation.Required, validation.RuneLength(1, maxContentLength)); err != nil {
		return nil, fmt.Errorf("%w: value %v", common.ErrorValidation, err)
	}

	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}

	item, err := s.repomanager.Memory(s.db).Upsert(ctx, &models.MemoryItem{ConversationID: id, Key: key, Value: value})
	if err != nil {
		return nil, fmt.Errorf("error saving memory item: %w", err)
	}
	return item, nil
}

// Forget removes one key. A key that was never saved is common.ErrorNotFound.
func (s *ConversationService) Forget(ctx context.Context, userID, id, key string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.repomanager.Memory(s.db).Delete(ctx, id, strings.TrimSpace(key))
}

// Resources lists the resources saved to a conversation, newest first.
func (s *ConversationService) Resources(ctx context.Context, userID, id string) ([]*models.Resource, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.repomanager.Resources(s.db).ListByConversation(ctx, id)
}

// AddResource saves a resource to a conversation. The type is stored
// lower-cased.
func (s *ConversationService) AddResource(ctx context.Context, userID, id string, r *models.Resource) (*models.Resource, error) {
	res := &models.Resource{
		ConversationID: id,
		Type:           strings.ToLower(strings.TrimSpace(r.Type)),
		Title:          strings.TrimSpace(r.Title),
		Content:        strings.TrimSpace(r.Content),
		Metadata:       r.Metadata,
	}
	err := validation.ValidateStruct(res,
		validation.Field(&res.Type, validation.Required, validation.RuneLength(1, 50)),
		validation.Field(&res.Title, validation.Required, validation.RuneLength(1, maxTitleLength)),
		validation.Field(&res.Content, validation.Required, validation.RuneLength(1, maxContentLength)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}

	created, err := s.repomanager.Resources(s.db).Create(ctx, res)
	if err != nil {
		return nil, fmt.Errorf("error saving resource: %w", err)
	}
	return created, nil
}
