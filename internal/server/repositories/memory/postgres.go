// Package memory stores the key facts pinned to a conversation.
package memory

import (
	"context"
	"fmt"

	"github.com/paperclip/paperclip/internal/common"
	"github.com/paperclip/paperclip/internal/dbx"
	"github.com/paperclip/paperclip/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert saves item, replacing the value of an existing key.
func (r *PostgresRepository) Upsert(ctx context.Context, item *models.MemoryItem) (*models.MemoryItem, error) {
	query := `
		INSERT INTO memory_items (conversation_id, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (conversation_id, key) DO UPDATE SET value = EXCLUDED.value
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, item.ConversationID, item.Key, item.Value).
		Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return item, nil
}

// ListByConversation returns the newest items first.
func (r *PostgresRepository) ListByConversation(ctx context.Context, conversationID string) ([]*models.MemoryItem, error) {
	query := `
		SELECT id, conversation_id, key, value, created_at FROM memory_items
		WHERE conversation_id = $1
		ORDER BY created_at DESC, key
	`
	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to select memory items: %w", err)
	}
	defer rows.Close()

	result := []*models.MemoryItem{}
	for rows.Next() {
		var item models.MemoryItem
		if err := rows.Scan(&item.ID, &item.ConversationID, &item.Key, &item.Value, &item.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes one key; a missing key is common.ErrorNotFound.
func (r *PostgresRepository) Delete(ctx context.Context, conversationID, key string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM memory_items WHERE conversation_id = $1 AND key = $2`, conversationID, key)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
