package moderation

import (
	"context"
	"fmt"

	"content-safety/internal/classifier"
	"content-safety/internal/duplicate"
	"content-safety/internal/models"
)

const (
	// Above this spam confidence Stage 1 rejects on its own
	SpamThreshold = 0.9
	// Below this spam confidence Stage 1 accepts on its own
	HamThreshold = 0.1

	repeatedConfidence = 0.95
	abstainConfidence  = 0.5

	spamReason = "Content flagged as spam by automated filter."
)

// RepeatDetector finds near-duplicates in an author's history
type RepeatDetector interface {
	IsRepeated(ctx context.Context, text, authorID string) duplicate.Result
}

// SpamClassifier scores text as spam or non-spam
type SpamClassifier interface {
	Classify(text string) classifier.Classification
}

// Stage1Result is the local verdict plus whether the remote analyzer should weigh in
type Stage1Result struct {
	models.Verdict
	NeedsStage2 bool
}

// stage1 runs the repeat check, then the Bayesian filter
func (o *Orchestrator) stage1(ctx context.Context, text, userID string) Stage1Result {
	if o.detector != nil {
		if res := o.detector.IsRepeated(ctx, text, userID); res.IsRepeated {
			return Stage1Result{
				Verdict: models.Reject(
					fmt.Sprintf("Repeated content detected. This content has been posted %d times.", res.MatchCount),
					models.ReasonRepeated,
					repeatedConfidence,
					models.StageRepeated,
				),
			}
		}
	}

	class := o.classifier.Classify(text)
	if class.Abstained() {
		return Stage1Result{
			Verdict:     models.Allow(abstainConfidence, models.StageClassifier),
			NeedsStage2: true,
		}
	}

	spam := class.SpamConfidence()
	switch {
	case spam > SpamThreshold:
		return Stage1Result{
			Verdict: models.Reject(spamReason, models.ReasonSpam, spam, models.StageClassifier),
		}
	case spam < HamThreshold:
		return Stage1Result{Verdict: models.Allow(1-spam, models.StageClassifier)}
	default:
		return Stage1Result{
			Verdict:     models.Allow(1-spam, models.StageClassifier),
			NeedsStage2: true,
		}
	}
}
