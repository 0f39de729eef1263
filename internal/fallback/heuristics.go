package fallback

import (
	"fmt"
	"strings"

	"content-safety/internal/models"

	"github.com/gabriel-vasile/mimetype"
)

// MinImageBytes is the smallest buffer treated as a possibly valid image
const MinImageBytes = 100

var textCategories = []Category{
	{
		Name:     "violence",
		Label:    "violence",
		Code:     models.ReasonViolence,
		Keywords: []string{"kill", "murder", "violence", "attack", "harm", "hurt"},
	},
	{
		Name:     "harassment",
		Label:    "harassment",
		Code:     models.ReasonHarassment,
		Keywords: []string{"harass", "bully", "threaten", "intimidate"},
	},
	{
		Name:     "hate",
		Label:    "hate speech",
		Code:     models.ReasonHate,
		Keywords: []string{"hate", "racist", "discriminate", "slur"},
	},
}

var basicKeywords = []Category{
	{Name: "spam", Code: models.ReasonSpam, Keywords: []string{"spam"}},
	{Name: "violence", Code: models.ReasonViolence, Keywords: []string{"violence"}},
	{Name: "hate", Code: models.ReasonHate, Keywords: []string{"hate"}},
}

var imageTypes = []string{"image/jpeg", "image/png", "image/webp"}

// Heuristics are the deterministic, dependency-free checks used whenever a
// richer classifier is unavailable
type Heuristics struct {
	text  *Matcher
	basic *Matcher
}

// New builds the keyword automata
func New() (*Heuristics, error) {
	text, err := NewMatcher(textCategories)
	if err != nil {
		return nil, fmt.Errorf("text categories: %w", err)
	}
	basic, err := NewMatcher(basicKeywords)
	if err != nil {
		return nil, fmt.Errorf("basic keywords: %w", err)
	}
	return &Heuristics{text: text, basic: basic}, nil
}

// Text scans for violence, harassment and hate keywords
func (h *Heuristics) Text(text string) models.Verdict {
	matched := h.text.Match(text)
	if len(matched) == 0 {
		return models.Allow(0.6, models.StageFallback)
	}

	labels := make([]string, len(matched))
	for i, c := range matched {
		labels[i] = c.Label
	}

	return models.Reject(
		fmt.Sprintf("Content contains %s.", strings.Join(labels, ", ")),
		matched[0].Code,
		0.7,
		models.StageFallback,
	)
}

// Basic is the minimal check used when no classifier is wired at all
func (h *Heuristics) Basic(text string) models.Verdict {
	matched := h.basic.Match(text)
	if len(matched) == 0 {
		return models.Allow(0.5, models.StageKeyword)
	}
	return models.Reject("Content flagged by safety check.", matched[0].Code, 0.5, models.StageKeyword)
}

// Image validates size and signature. A structurally valid image is allowed
// with low confidence since its content was never inspected.
func Image(buf []byte) models.Verdict {
	if len(buf) < MinImageBytes {
		return models.Reject("Image file too small or corrupted.", models.ReasonOther, 1.0, models.StageStructural)
	}
	if !IsSupportedImage(buf) {
		return models.Reject("Invalid image format.", models.ReasonOther, 1.0, models.StageStructural)
	}
	return models.Allow(0.5, models.StageFallback)
}

// IsSupportedImage reports whether buf carries a JPEG, PNG or WEBP signature
func IsSupportedImage(buf []byte) bool {
	return ImageMIME(buf) != ""
}

// ImageMIME returns the detected image MIME type, or "" for unsupported data
func ImageMIME(buf []byte) string {
	detected := mimetype.Detect(buf)
	for _, t := range imageTypes {
		if detected.Is(t) {
			return t
		}
	}
	return ""
}
