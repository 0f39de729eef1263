package service

import (
	"context"
	"fmt"
	"strings"

	"content-safety/internal/metrics"
	"content-safety/internal/models"

	"go.uber.org/zap"
)

const (
	DefaultRecheckThreshold    = 3
	DefaultAutoDeleteThreshold = 10
)

// EscalationConfig sets the report counts that trigger re-review and removal
type EscalationConfig struct {
	RecheckThreshold    int `yaml:"recheck_threshold"`
	AutoDeleteThreshold int `yaml:"auto_delete_threshold"`
}

func (c *EscalationConfig) setDefaults() {
	if c.RecheckThreshold <= 0 {
		c.RecheckThreshold = DefaultRecheckThreshold
	}
	if c.AutoDeleteThreshold <= 0 {
		c.AutoDeleteThreshold = DefaultAutoDeleteThreshold
	}
}

// Report records a community report and applies the escalation policy.
// Escalation failures are logged; the saved report is still returned.
func (s *SafetyService) Report(
	ctx context.Context,
	reporterID, targetID string,
	targetType models.TargetType,
	reason string,
	comment *string,
) (*models.Report, error) {
	if strings.TrimSpace(reporterID) == "" || strings.TrimSpace(targetID) == "" || strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: reporter, target and reason are required", models.ErrInvalidInput)
	}
	targetType, err := models.ParseTargetType(string(targetType))
	if err != nil {
		return nil, err
	}

	report := &models.Report{
		ReporterID: reporterID,
		TargetID:   targetID,
		TargetType: targetType,
		Reason:     reason,
		Comment:    comment,
		Status:     models.ReportOpen,
	}
	if err := s.reports.Save(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}

	if err := s.escalate(ctx, report.TargetID, report.TargetType); err != nil {
		s.logger.Error("Report escalation failed",
			zap.String("target_id", report.TargetID),
			zap.String("target_type", string(report.TargetType)),
			zap.Error(err))
	}

	return report, nil
}

// escalate re-reviews content from RecheckThreshold reports on and removes
// it outright from AutoDeleteThreshold on. Missing content is a no-op.
func (s *SafetyService) escalate(ctx context.Context, targetID string, targetType models.TargetType) error {
	if !targetType.Moderatable() {
		return nil
	}

	count, err := s.reports.CountOpen(ctx, targetID, targetType)
	if err != nil {
		return fmt.Errorf("failed to count reports: %w", err)
	}
	if count < s.cfg.RecheckThreshold {
		return nil
	}

	autoDelete := count >= s.cfg.AutoDeleteThreshold
	if !autoDelete && s.checker == nil {
		return nil
	}

	contentType := targetType.ContentType()
	item, err := s.content.FindByID(ctx, contentType, targetID)
	if err != nil {
		return fmt.Errorf("failed to load reported content: %w", err)
	}
	if item == nil || strings.TrimSpace(item.Body) == "" {
		return nil
	}

	if autoDelete {
		if err := s.content.SoftDelete(ctx, contentType, targetID); err != nil {
			return fmt.Errorf("failed to remove reported content: %w", err)
		}
		metrics.EscalationTotal.WithLabelValues("auto_delete").Inc()
		s.logger.Info("Content removed by report threshold",
			zap.String("target_id", targetID),
			zap.Int("reports", count))

		s.recordQuietly(ctx, ModerationInput{
			TargetType: targetType,
			TargetID:   targetID,
			AuthorID:   item.AuthorID,
			ReasonCode: models.ReasonOther,
			ReasonText: fmt.Sprintf("Report threshold exceeded (%d reports)", count),
			Confidence: 1,
			Snapshot:   item.Body,
			Source:     models.SourceReportThreshold,
		})
		return nil
	}

	metrics.EscalationTotal.WithLabelValues("recheck").Inc()
	v := s.checker.CheckContent(ctx, item.Body, item.AuthorID, contentType, models.CheckOptions{})
	if v.Safe {
		return nil
	}

	if err := s.content.SoftDelete(ctx, contentType, targetID); err != nil {
		return fmt.Errorf("failed to remove reported content: %w", err)
	}
	metrics.EscalationTotal.WithLabelValues("recheck_delete").Inc()
	s.logger.Info("Reported content removed after re-check",
		zap.String("target_id", targetID),
		zap.Int("reports", count),
		zap.String("reason_code", string(v.ReasonCode)))

	s.recordQuietly(ctx, ModerationInput{
		TargetType: targetType,
		TargetID:   targetID,
		AuthorID:   item.AuthorID,
		ReasonCode: v.ReasonCode,
		ReasonText: v.Reason,
		Confidence: v.Confidence,
		Snapshot:   item.Body,
		Source:     models.SourceReportThreshold,
	})
	return nil
}

func (s *SafetyService) recordQuietly(ctx context.Context, in ModerationInput) {
	if _, err := s.RecordModeration(ctx, in); err != nil {
		s.logger.Warn("Failed to record moderation", zap.String("target_id", in.TargetID), zap.Error(err))
	}
}
