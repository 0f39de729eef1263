package repository

import (
	"context"
	"fmt"
	"time"

	"content-safety/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ReportRepository stores community reports
type ReportRepository interface {
	Save(ctx context.Context, report *models.Report) error
	CountOpen(ctx context.Context, targetID string, targetType models.TargetType) (int, error)
}

type reportRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *sqlx.DB, logger *zap.Logger) ReportRepository {
	return &reportRepository{
		db:     db,
		logger: logger,
	}
}

func (r *reportRepository) Save(ctx context.Context, report *models.Report) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.Status == "" {
		report.Status = models.ReportOpen
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	query := r.db.Rebind(`
		INSERT INTO reports (id, reporter_id, target_id, target_type, reason, comment, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		report.ID,
		report.ReporterID,
		report.TargetID,
		report.TargetType,
		report.Reason,
		report.Comment,
		report.Status,
		report.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to save report", zap.Error(err))
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// CountOpen counts OPEN reports against one target
func (r *reportRepository) CountOpen(ctx context.Context, targetID string, targetType models.TargetType) (int, error) {
	var count int
	query := r.db.Rebind(`
		SELECT COUNT(*)
		FROM reports
		WHERE target_id = ? AND target_type = ? AND status = ?
	`)

	if err := r.db.GetContext(ctx, &count, query, targetID, targetType, models.ReportOpen); err != nil {
		r.logger.Error("Failed to count reports", zap.String("target_id", targetID), zap.Error(err))
		return 0, err
	}
	return count, nil
}
