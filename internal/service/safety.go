package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"content-safety/internal/fallback"
	"content-safety/internal/models"

	"go.uber.org/zap"
)

// Checker is the content safety orchestrator
type Checker interface {
	CheckContent(ctx context.Context, text, userID string, contentType models.ContentType, opts models.CheckOptions) models.Verdict
	CheckImage(ctx context.Context, buf []byte) models.Verdict
}

// ContentStore holds posts and replies
type ContentStore interface {
	Create(ctx context.Context, contentType models.ContentType, item *models.ContentItem) error
	FindByID(ctx context.Context, contentType models.ContentType, id string) (*models.ContentItem, error)
	SoftDelete(ctx context.Context, contentType models.ContentType, id string) error
	Restore(ctx context.Context, contentType models.ContentType, id string) error
}

// ReportStore holds community reports
type ReportStore interface {
	Save(ctx context.Context, report *models.Report) error
	CountOpen(ctx context.Context, targetID string, targetType models.TargetType) (int, error)
}

// ModerationStore holds moderation records
type ModerationStore interface {
	Save(ctx context.Context, rec *models.ModerationRecord) error
	GetByID(ctx context.Context, id string) (*models.ModerationRecord, error)
	UpdateAppeal(ctx context.Context, rec *models.ModerationRecord) error
	List(ctx context.Context, filter models.ModerationFilter) ([]*models.ModerationRecord, int, error)
	CountByReasonCode(ctx context.Context, authorID string) (map[models.ReasonCode]int, error)
}

// ErrRejected is matched by every RejectedError
var ErrRejected = errors.New("content rejected")

// RejectedError carries the verdict that blocked a publish. RecordID names
// the moderation record to appeal against; it is empty when recording failed.
type RejectedError struct {
	Verdict  models.Verdict
	RecordID string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("content rejected: %s", e.Verdict.Reason)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// SafetyService is the entry point for publish and report paths. It works
// without a checker, falling back to a fixed keyword check.
type SafetyService struct {
	checker    Checker
	content    ContentStore
	reports    ReportStore
	moderation ModerationStore
	heuristics *fallback.Heuristics
	cfg        EscalationConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewSafetyService creates the safety facade. checker may be nil.
func NewSafetyService(
	checker Checker,
	content ContentStore,
	reports ReportStore,
	moderation ModerationStore,
	heuristics *fallback.Heuristics,
	cfg EscalationConfig,
	logger *zap.Logger,
) *SafetyService {
	cfg.setDefaults()
	return &SafetyService{
		checker:    checker,
		content:    content,
		reports:    reports,
		moderation: moderation,
		heuristics: heuristics,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// HasChecker reports whether the full classifier pipeline is wired in
func (s *SafetyService) HasChecker() bool {
	return s.checker != nil
}

// CheckContent classifies text before it is published
func (s *SafetyService) CheckContent(ctx context.Context, text, userID string, contentType models.ContentType, opts models.CheckOptions) models.Verdict {
	if s.checker == nil {
		return s.heuristics.Basic(text)
	}
	return s.checker.CheckContent(ctx, text, userID, contentType, opts)
}

// CheckImage classifies an uploaded image
func (s *SafetyService) CheckImage(ctx context.Context, buf []byte) models.Verdict {
	if s.checker == nil {
		return fallback.Image(buf)
	}
	return s.checker.CheckImage(ctx, buf)
}

// Publish checks a body and stores it, or returns a *RejectedError
func (s *SafetyService) Publish(ctx context.Context, contentType models.ContentType, authorID, body string) (*models.ContentItem, error) {
	if strings.TrimSpace(authorID) == "" || strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: author and body are required", models.ErrInvalidInput)
	}

	v := s.CheckContent(ctx, body, authorID, contentType, models.CheckOptions{})
	if !v.Safe {
		return nil, s.reject(ctx, contentType, authorID, body, v)
	}

	item := &models.ContentItem{AuthorID: authorID, Body: body}
	if err := s.content.Create(ctx, contentType, item); err != nil {
		return nil, fmt.Errorf("failed to publish %s: %w", contentType, err)
	}

	s.logger.Info("Content published",
		zap.String("id", item.ID),
		zap.String("type", string(contentType)),
		zap.String("author_id", authorID))

	return item, nil
}

// reject keeps a soft-deleted copy of blocked content and records the
// decision, so an upheld appeal can restore it
func (s *SafetyService) reject(ctx context.Context, contentType models.ContentType, authorID, body string, v models.Verdict) error {
	rejected := &RejectedError{Verdict: v}

	s.logger.Info("Content rejected",
		zap.String("type", string(contentType)),
		zap.String("author_id", authorID),
		zap.String("reason_code", string(v.ReasonCode)),
		zap.String("stage", v.Stage))

	item := &models.ContentItem{AuthorID: authorID, Body: body}
	if err := s.content.Create(ctx, contentType, item); err != nil {
		s.logger.Error("Failed to store rejected content", zap.Error(err))
		return rejected
	}
	if err := s.content.SoftDelete(ctx, contentType, item.ID); err != nil {
		s.logger.Error("Failed to hide rejected content", zap.String("id", item.ID), zap.Error(err))
		return rejected
	}

	rec, err := s.RecordModeration(ctx, ModerationInput{
		TargetType: contentType.TargetType(),
		TargetID:   item.ID,
		AuthorID:   authorID,
		ReasonCode: v.ReasonCode,
		ReasonText: v.Reason,
		Confidence: v.Confidence,
		Snapshot:   body,
		Source:     models.SourceAutomated,
	})
	if err != nil {
		s.logger.Warn("Failed to record moderation", zap.String("target_id", item.ID), zap.Error(err))
		return rejected
	}
	rejected.RecordID = rec.ID
	return rejected
}

// GetContent returns a live post or reply
func (s *SafetyService) GetContent(ctx context.Context, contentType models.ContentType, id string) (*models.ContentItem, error) {
	item, err := s.content.FindByID(ctx, contentType, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", contentType, err)
	}
	if item == nil {
		return nil, models.ErrNotFound
	}
	return item, nil
}
