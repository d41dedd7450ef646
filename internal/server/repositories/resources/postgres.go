// Package resources stores papers, snippets and links saved to a
// conversation. Metadata is kept as jsonb.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/paperclip/paperclip/internal/dbx"
	"github.com/paperclip/paperclip/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, res *models.Resource) (*models.Resource, error) {
	var metadata any
	if len(res.Metadata) > 0 {
		raw, err := json.Marshal(res.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		metadata = string(raw)
	}

	query := `
		INSERT INTO resources (conversation_id, type, title, content, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, res.ConversationID, res.Type, res.Title, res.Content, metadata).
		Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return res, nil
}

// ListByConversation returns the newest resources first. Metadata that no
// longer decodes is dropped rather than failing the listing.
func (r *PostgresRepository) ListByConversation(ctx context.Context, conversationID string) ([]*models.Resource, error) {
	query := `
		SELECT id, conversation_id, type, title, content, metadata, created_at FROM resources
		WHERE conversation_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to select resources: %w", err)
	}
	defer rows.Close()

	result := []*models.Resource{}
	for rows.Next() {
		var (
			item     models.Resource
			metadata []byte
		)
		if err := rows.Scan(&item.ID, &item.ConversationID, &item.Type, &item.Title, &item.Content, &metadata, &item.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			var m map[string]any
			if json.Unmarshal(metadata, &m) == nil {
				item.Metadata = m
			}
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
