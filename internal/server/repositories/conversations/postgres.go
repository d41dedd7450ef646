// Package conversations provides PostgreSQL-backed storage for conversation
// headers. Every read and delete is scoped to the owning user.
package conversations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/paperclip/paperclip/internal/common"
	"github.com/paperclip/paperclip/internal/dbx"
	"github.com/paperclip/paperclip/internal/server/models"
)

// PostgresRepository implements conversation storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts c and fills in ID and timestamps.
func (r *PostgresRepository) Create(ctx context.Context, c *models.Conversation) (*models.Conversation, error) {
	query := `
		INSERT INTO conversations (user_id, title)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, c.UserID, c.Title).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

// Get returns the conversation only when it belongs to userID; otherwise
// common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id, userID string) (*models.Conversation, error) {
	query := `
		SELECT id, user_id, title, created_at, updated_at FROM conversations
		WHERE id = $1 AND user_id = $2
	`
	c := &models.Conversation{}
	err := r.db.QueryRowContext(ctx, query, id, userID).
		Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

// ListByUser returns the user's conversations, most recently updated first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	query := `
		SELECT id, user_id, title, created_at, updated_at FROM conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select conversations: %w", err)
	}
	defer rows.Close()

	result := []*models.Conversation{}
	for rows.Next() {
		var item models.Conversation
		if err := rows.Scan(&item.ID, &item.UserID, &item.Title, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the conversation and, by cascade, its messages.
func (r *PostgresRepository) Delete(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res)
}

// Touch bumps updated_at to now.
func (r *PostgresRepository) Touch(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE conversations SET updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
