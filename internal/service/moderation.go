package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"content-safety/internal/models"

	"go.uber.org/zap"
)

const (
	maxSnapshotRunes   = 10000
	maxAppealTextRunes = 5000

	AppealWindow = 30 * 24 * time.Hour

	defaultPageSize   = 20
	maxHistoryLimit   = 50
	maxListLimit      = 100
	permanentBanAfter = 5
)

// ModerationInput describes one moderation decision to record
type ModerationInput struct {
	TargetType models.TargetType
	TargetID   string
	AuthorID   string
	ReasonCode models.ReasonCode
	ReasonText string
	Confidence float64
	Snapshot   string
	Source     models.ModerationSource
}

// RecordModeration persists a moderation decision with a capped content snapshot
func (s *SafetyService) RecordModeration(ctx context.Context, in ModerationInput) (*models.ModerationRecord, error) {
	if in.TargetID == "" || in.AuthorID == "" {
		return nil, fmt.Errorf("%w: target and author are required", models.ErrInvalidInput)
	}
	if in.ReasonCode == "" {
		in.ReasonCode = models.ReasonOther
	}
	if in.Source == "" {
		in.Source = models.SourceAutomated
	}

	rec := &models.ModerationRecord{
		TargetType:      in.TargetType,
		TargetID:        in.TargetID,
		AuthorID:        in.AuthorID,
		ReasonCode:      in.ReasonCode,
		ReasonText:      in.ReasonText,
		Confidence:      in.Confidence,
		ContentSnapshot: truncateRunes(in.Snapshot, maxSnapshotRunes),
		Source:          in.Source,
		AppealStatus:    models.AppealNone,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.moderation.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ModerationHistory returns an author's records, newest first
func (s *SafetyService) ModerationHistory(ctx context.Context, authorID string, limit, offset int) (*models.ModerationPage, error) {
	if authorID == "" {
		return nil, fmt.Errorf("%w: author is required", models.ErrInvalidInput)
	}
	return s.list(ctx, models.ModerationFilter{AuthorID: authorID, Limit: limit, Offset: offset}, maxHistoryLimit)
}

// ListModerationRecords is the admin listing
func (s *SafetyService) ListModerationRecords(ctx context.Context, filter models.ModerationFilter) (*models.ModerationPage, error) {
	return s.list(ctx, filter, maxListLimit)
}

func (s *SafetyService) list(ctx context.Context, filter models.ModerationFilter, maxLimit int) (*models.ModerationPage, error) {
	filter.Limit = clampLimit(filter.Limit, maxLimit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	items, total, err := s.moderation.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list moderation records: %w", err)
	}
	return &models.ModerationPage{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// ModerationStats counts an author's records by reason code
func (s *SafetyService) ModerationStats(ctx context.Context, authorID string) (*models.ModerationStats, error) {
	if authorID == "" {
		return nil, fmt.Errorf("%w: author is required", models.ErrInvalidInput)
	}

	counts, err := s.moderation.CountByReasonCode(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get moderation stats: %w", err)
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	return &models.ModerationStats{
		Total:               total,
		ByReasonCode:        counts,
		SuggestPermanentBan: total >= permanentBanAfter,
	}, nil
}

// SubmitAppeal lets the author contest a decision once, within AppealWindow
func (s *SafetyService) SubmitAppeal(ctx context.Context, userID, recordID, text string) (*models.ModerationRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: appeal text is required", models.ErrInvalidInput)
	}

	rec, err := s.moderation.GetByID(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to get moderation record: %w", err)
	}
	// someone else's record looks the same as a missing one
	if rec == nil || rec.AuthorID != userID {
		return nil, models.ErrNotFound
	}
	if rec.AppealStatus != models.AppealNone {
		return nil, models.ErrAppealExists
	}

	now := s.now().UTC()
	if now.Sub(rec.CreatedAt) > AppealWindow {
		return nil, models.ErrAppealWindowExpired
	}

	text = truncateRunes(text, maxAppealTextRunes)
	rec.AppealStatus = models.AppealPending
	rec.AppealText = &text
	rec.AppealedAt = &now

	if err := s.moderation.UpdateAppeal(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to submit appeal: %w", err)
	}

	s.logger.Info("Appeal submitted", zap.String("record_id", rec.ID), zap.String("user_id", userID))
	return rec, nil
}

// ResolveAppeal closes a pending appeal. An upheld appeal restores the content.
func (s *SafetyService) ResolveAppeal(ctx context.Context, recordID string, upheld bool, resolution string) (*models.ModerationRecord, error) {
	rec, err := s.moderation.GetByID(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to get moderation record: %w", err)
	}
	if rec == nil {
		return nil, models.ErrNotFound
	}
	if rec.AppealStatus != models.AppealPending {
		return nil, models.ErrNoPendingAppeal
	}

	now := s.now().UTC()
	resolution = strings.TrimSpace(resolution)
	rec.AppealStatus = models.AppealRejected
	if upheld {
		rec.AppealStatus = models.AppealUpheld
	}
	rec.AppealResolution = &resolution
	rec.AppealResolvedAt = &now

	if err := s.moderation.UpdateAppeal(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to resolve appeal: %w", err)
	}

	if upheld && rec.TargetType.Moderatable() {
		if err := s.content.Restore(ctx, rec.TargetType.ContentType(), rec.TargetID); err != nil {
			s.logger.Warn("Failed to restore content after upheld appeal",
				zap.String("record_id", rec.ID),
				zap.String("target_id", rec.TargetID),
				zap.Error(err))
		}
	}

	s.logger.Info("Appeal resolved",
		zap.String("record_id", rec.ID),
		zap.String("status", string(rec.AppealStatus)))
	return rec, nil
}

func clampLimit(limit, maxLimit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
