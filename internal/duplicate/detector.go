package duplicate

import (
	"context"
	"fmt"
	"strings"

	"content-safety/internal/models"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWindow              = 50
	DefaultSimilarityThreshold = 0.90
	DefaultMinMatches          = 2
)

// History returns an author's most recent bodies of one content type, newest first
type History interface {
	RecentBodiesByAuthor(ctx context.Context, contentType models.ContentType, authorID string, limit int) ([]string, error)
}

// Config for the detector. Zero values fall back to the defaults.
type Config struct {
	Window              int     `yaml:"window"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MinMatches          int     `yaml:"min_matches"`
}

// Result of a repeat check
type Result struct {
	IsRepeated bool
	MatchCount int
}

// Detector flags text an author has already published at least MinMatches times
type Detector struct {
	history History
	cfg     Config
	logger  *zap.Logger
}

// NewDetector creates a detector over the given content history
func NewDetector(history History, cfg Config, logger *zap.Logger) *Detector {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.MinMatches <= 0 {
		cfg.MinMatches = DefaultMinMatches
	}
	return &Detector{history: history, cfg: cfg, logger: logger}
}

// IsRepeated compares text against the author's recent posts and replies.
// History lookup failures count as "no match": repetition is a spam
// signal, not a gate that may block publishing.
func (d *Detector) IsRepeated(ctx context.Context, text, authorID string) Result {
	if d.history == nil || authorID == "" {
		return Result{}
	}

	bodies, err := d.recentBodies(ctx, authorID)
	if err != nil {
		d.logger.Warn("Repeat check skipped, history unavailable",
			zap.String("author_id", authorID),
			zap.Error(err))
		return Result{}
	}

	candidate := Normalize(text)
	count := 0
	for _, body := range bodies {
		if Similarity(candidate, Normalize(body)) >= d.cfg.SimilarityThreshold {
			count++
		}
	}

	return Result{IsRepeated: count >= d.cfg.MinMatches, MatchCount: count}
}

func (d *Detector) recentBodies(ctx context.Context, authorID string) ([]string, error) {
	var posts, replies []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		posts, err = d.history.RecentBodiesByAuthor(gctx, models.ContentPost, authorID, d.cfg.Window)
		if err != nil {
			return fmt.Errorf("recent posts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		replies, err = d.history.RecentBodiesByAuthor(gctx, models.ContentReply, authorID, d.cfg.Window)
		if err != nil {
			return fmt.Errorf("recent replies: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return append(posts, replies...), nil
}

// Normalize lowercases, trims and collapses runs of whitespace
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Similarity is the Jaccard index of the whitespace token sets of a and b.
// Identical strings score 1.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}

	wordsA := lo.Uniq(strings.Fields(a))
	wordsB := lo.Uniq(strings.Fields(b))
	union := lo.Union(wordsA, wordsB)
	if len(union) == 0 {
		return 0
	}

	return float64(len(lo.Intersect(wordsA, wordsB))) / float64(len(union))
}
