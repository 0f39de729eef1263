package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"content-safety/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ContentRepository stores posts and replies
type ContentRepository interface {
	Create(ctx context.Context, contentType models.ContentType, item *models.ContentItem) error
	FindByID(ctx context.Context, contentType models.ContentType, id string) (*models.ContentItem, error)
	SoftDelete(ctx context.Context, contentType models.ContentType, id string) error
	Restore(ctx context.Context, contentType models.ContentType, id string) error
	RecentBodiesByAuthor(ctx context.Context, contentType models.ContentType, authorID string, limit int) ([]string, error)
}

type contentRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewContentRepository creates a new content repository
func NewContentRepository(db *sqlx.DB, logger *zap.Logger) ContentRepository {
	return &contentRepository{
		db:     db,
		logger: logger,
	}
}

func table(contentType models.ContentType) (string, error) {
	switch contentType {
	case models.ContentPost:
		return "posts", nil
	case models.ContentReply:
		return "replies", nil
	default:
		return "", fmt.Errorf("%w: content type %q", models.ErrInvalidInput, contentType)
	}
}

func (r *contentRepository) Create(ctx context.Context, contentType models.ContentType, item *models.ContentItem) error {
	tbl, err := table(contentType)
	if err != nil {
		return err
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	query := r.db.Rebind(`INSERT INTO ` + tbl + ` (id, author_id, body, created_at) VALUES (?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, item.ID, item.AuthorID, item.Body, item.CreatedAt); err != nil {
		r.logger.Error("Failed to create content", zap.String("type", string(contentType)), zap.Error(err))
		return fmt.Errorf("failed to create %s: %w", contentType, err)
	}
	return nil
}

// FindByID returns nil when the item does not exist or was soft-deleted
func (r *contentRepository) FindByID(ctx context.Context, contentType models.ContentType, id string) (*models.ContentItem, error) {
	tbl, err := table(contentType)
	if err != nil {
		return nil, err
	}

	var item models.ContentItem
	query := r.db.Rebind(`
		SELECT id, author_id, body, created_at, deleted_at
		FROM ` + tbl + `
		WHERE id = ? AND deleted_at IS NULL
	`)

	err = r.db.GetContext(ctx, &item, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get content by ID", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return &item, nil
}

func (r *contentRepository) SoftDelete(ctx context.Context, contentType models.ContentType, id string) error {
	return r.setDeleted(ctx, contentType, id, time.Now().UTC())
}

func (r *contentRepository) Restore(ctx context.Context, contentType models.ContentType, id string) error {
	return r.setDeleted(ctx, contentType, id, nil)
}

func (r *contentRepository) setDeleted(ctx context.Context, contentType models.ContentType, id string, deletedAt interface{}) error {
	tbl, err := table(contentType)
	if err != nil {
		return err
	}

	query := r.db.Rebind(`UPDATE ` + tbl + ` SET deleted_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, deletedAt, id)
	if err != nil {
		r.logger.Error("Failed to update content deletion", zap.String("id", id), zap.Error(err))
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *contentRepository) RecentBodiesByAuthor(ctx context.Context, contentType models.ContentType, authorID string, limit int) ([]string, error) {
	tbl, err := table(contentType)
	if err != nil {
		return nil, err
	}

	var bodies []string
	query := r.db.Rebind(`
		SELECT body
		FROM ` + tbl + `
		WHERE author_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT ?
	`)

	if err := r.db.SelectContext(ctx, &bodies, query, authorID, limit); err != nil {
		r.logger.Error("Failed to get recent content", zap.String("author_id", authorID), zap.Error(err))
		return nil, err
	}
	return bodies, nil
}
