package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"content-safety/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ModerationRepository stores moderation decisions and their appeals
type ModerationRepository interface {
	Save(ctx context.Context, rec *models.ModerationRecord) error
	GetByID(ctx context.Context, id string) (*models.ModerationRecord, error)
	UpdateAppeal(ctx context.Context, rec *models.ModerationRecord) error
	List(ctx context.Context, filter models.ModerationFilter) ([]*models.ModerationRecord, int, error)
	CountByReasonCode(ctx context.Context, authorID string) (map[models.ReasonCode]int, error)
}

type moderationRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewModerationRepository creates a new moderation repository
func NewModerationRepository(db *sqlx.DB, logger *zap.Logger) ModerationRepository {
	return &moderationRepository{
		db:     db,
		logger: logger,
	}
}

const moderationColumns = `
	id, target_type, target_id, author_id, reason_code, reason_text, confidence,
	content_snapshot, source, appeal_status, appeal_text, appealed_at,
	appeal_resolution, appeal_resolved_at, created_at`

func (r *moderationRepository) Save(ctx context.Context, rec *models.ModerationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.AppealStatus == "" {
		rec.AppealStatus = models.AppealNone
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO moderation_records (` + moderationColumns + `) VALUES (
		:id, :target_type, :target_id, :author_id, :reason_code, :reason_text, :confidence,
		:content_snapshot, :source, :appeal_status, :appeal_text, :appealed_at,
		:appeal_resolution, :appeal_resolved_at, :created_at)`

	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		r.logger.Error("Failed to save moderation record", zap.Error(err))
		return fmt.Errorf("failed to save moderation record: %w", err)
	}
	return nil
}

// GetByID returns nil when the record does not exist
func (r *moderationRepository) GetByID(ctx context.Context, id string) (*models.ModerationRecord, error) {
	var rec models.ModerationRecord
	query := r.db.Rebind(`SELECT ` + moderationColumns + ` FROM moderation_records WHERE id = ?`)

	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get moderation record", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return &rec, nil
}

func (r *moderationRepository) UpdateAppeal(ctx context.Context, rec *models.ModerationRecord) error {
	query := `
		UPDATE moderation_records
		SET appeal_status = :appeal_status,
		    appeal_text = :appeal_text,
		    appealed_at = :appealed_at,
		    appeal_resolution = :appeal_resolution,
		    appeal_resolved_at = :appeal_resolved_at
		WHERE id = :id`

	res, err := r.db.NamedExecContext(ctx, query, rec)
	if err != nil {
		r.logger.Error("Failed to update appeal", zap.String("id", rec.ID), zap.Error(err))
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

// List returns one page of records, newest first, and the total match count
func (r *moderationRepository) List(ctx context.Context, filter models.ModerationFilter) ([]*models.ModerationRecord, int, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.AuthorID != "" {
		conds = append(conds, "author_id = ?")
		args = append(args, filter.AuthorID)
	}
	if filter.ReasonCode != "" {
		conds = append(conds, "reason_code = ?")
		args = append(args, filter.ReasonCode)
	}
	if filter.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, filter.Source)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM moderation_records`+where), args...); err != nil {
		r.logger.Error("Failed to count moderation records", zap.Error(err))
		return nil, 0, err
	}

	records := []*models.ModerationRecord{}
	query := r.db.Rebind(`SELECT ` + moderationColumns + ` FROM moderation_records` + where +
		` ORDER BY created_at DESC LIMIT ? OFFSET ?`)
	if err := r.db.SelectContext(ctx, &records, query, append(args, filter.Limit, filter.Offset)...); err != nil {
		r.logger.Error("Failed to list moderation records", zap.Error(err))
		return nil, 0, err
	}

	return records, total, nil
}

func (r *moderationRepository) CountByReasonCode(ctx context.Context, authorID string) (map[models.ReasonCode]int, error) {
	var rows []struct {
		ReasonCode models.ReasonCode `db:"reason_code"`
		Count      int               `db:"cnt"`
	}
	query := r.db.Rebind(`
		SELECT reason_code, COUNT(*) AS cnt
		FROM moderation_records
		WHERE author_id = ?
		GROUP BY reason_code
	`)

	if err := r.db.SelectContext(ctx, &rows, query, authorID); err != nil {
		r.logger.Error("Failed to count moderation records", zap.String("author_id", authorID), zap.Error(err))
		return nil, err
	}

	out := make(map[models.ReasonCode]int, len(rows))
	for _, row := range rows {
		out[row.ReasonCode] = row.Count
	}
	return out, nil
}
