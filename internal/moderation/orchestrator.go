package moderation

import (
	"context"

	"content-safety/internal/fallback"
	"content-safety/internal/metrics"
	"content-safety/internal/models"

	"go.uber.org/zap"
)

const corruptImageReason = "Image file corrupted or invalid."

// RemoteAnalyzer is Stage 2. It always answers, falling back internally.
type RemoteAnalyzer interface {
	Available() bool
	AnalyzeText(ctx context.Context, text string) models.Verdict
	AnalyzeImage(ctx context.Context, buf []byte) models.Verdict
}

// Orchestrator composes the local classifier and the remote analyzer
type Orchestrator struct {
	detector   RepeatDetector
	classifier SpamClassifier
	remote     RemoteAnalyzer
	logger     *zap.Logger
}

// NewOrchestrator wires the stages. detector may be nil to skip repeat checks.
func NewOrchestrator(detector RepeatDetector, classifier SpamClassifier, remote RemoteAnalyzer, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		detector:   detector,
		classifier: classifier,
		remote:     remote,
		logger:     logger,
	}
}

// CheckContent classifies text before publication. Stage 2 is consulted
// only when Stage 1 is uncertain.
func (o *Orchestrator) CheckContent(ctx context.Context, text, userID string, contentType models.ContentType, opts models.CheckOptions) models.Verdict {
	done := metrics.Timer("stage1")
	s1 := o.stage1(ctx, text, userID)
	done()

	if !s1.NeedsStage2 {
		o.observe(s1.Verdict, userID, contentType)
		return s1.Verdict
	}

	if opts.OnlyFast {
		metrics.Inc("stage2_skipped")
		o.observe(s1.Verdict, userID, contentType)
		return s1.Verdict
	}

	done = metrics.Timer("stage2")
	s2 := o.remote.AnalyzeText(ctx, text)
	done()

	if !s2.Safe {
		o.observe(s2, userID, contentType)
		return s2
	}

	combined := models.Allow((s1.Confidence+s2.Confidence)/2, models.StageCombined)
	o.observe(combined, userID, contentType)
	return combined
}

// CheckImage rejects structurally broken buffers, then defers to Stage 2
// or the image heuristic
func (o *Orchestrator) CheckImage(ctx context.Context, buf []byte) models.Verdict {
	if len(buf) < fallback.MinImageBytes {
		v := models.Reject(corruptImageReason, models.ReasonOther, 1.0, models.StageStructural)
		metrics.Inc(outcome(v))
		return v
	}

	var v models.Verdict
	if o.remote.Available() {
		done := metrics.Timer("image")
		v = o.remote.AnalyzeImage(ctx, buf)
		done()
	} else {
		v = fallback.Image(buf)
	}

	metrics.Inc(outcome(v))
	if !v.Safe {
		o.logger.Info("Image rejected",
			zap.String("stage", v.Stage),
			zap.String("reason", v.Reason))
	}
	return v
}

func (o *Orchestrator) observe(v models.Verdict, userID string, contentType models.ContentType) {
	metrics.Inc(outcome(v))
	if v.Safe {
		return
	}
	o.logger.Info("Content rejected",
		zap.String("user_id", userID),
		zap.String("content_type", string(contentType)),
		zap.String("stage", v.Stage),
		zap.String("reason_code", string(v.ReasonCode)),
		zap.Float64("confidence", v.Confidence))
}

// outcome labels a verdict for the stage counter, e.g. "classifier_block"
func outcome(v models.Verdict) string {
	if v.Safe {
		return v.Stage + "_allow"
	}
	return v.Stage + "_block"
}
