// Package messages provides PostgreSQL-backed storage for conversation turns.
package messages

import (
	"context"
	"database/sql"
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

func (r *PostgresRepository) Append(ctx context.Context, m *models.Message) (*models.Message, error) {
	query := `
		INSERT INTO messages (conversation_id, role, content, tool)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, m.ConversationID, m.Role, m.Content, m.Tool).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

// ListByConversation returns every message in chronological order.
func (r *PostgresRepository) ListByConversation(ctx context.Context, conversationID string) ([]*models.Message, error) {
	query := `
		SELECT id, conversation_id, role, content, tool, created_at FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to select messages: %w", err)
	}
	return scanMessages(rows)
}

// ListRecent returns at most limit of the newest messages, oldest first.
func (r *PostgresRepository) ListRecent(ctx context.Context, conversationID string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		return []*models.Message{}, nil
	}
	query := `
		SELECT id, conversation_id, role, content, tool, created_at FROM (
			SELECT id, conversation_id, role, content, tool, created_at FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select messages: %w", err)
	}
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]*models.Message, error) {
	defer rows.Close()

	result := []*models.Message{}
	for rows.Next() {
		var item models.Message
		if err := rows.Scan(&item.ID, &item.ConversationID, &item.Role, &item.Content, &item.Tool, &item.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
