package analyzer

import (
	"encoding/json"
	"strings"

	"content-safety/internal/fallback"
	"content-safety/internal/models"
)

// Kind of content a response was generated for
type Kind int

const (
	KindText Kind = iota
	KindImage
)

const (
	defaultConfidence  = 0.7
	defaultTextReason  = "Content flagged by AI safety analysis."
	defaultImageReason = "Image flagged by AI safety analysis."
)

var (
	textIndicators = mustMatcher([]fallback.Category{
		{Name: "violence", Code: models.ReasonViolence, Keywords: []string{"violence"}},
		{Name: "harassment", Code: models.ReasonHarassment, Keywords: []string{"harassment", "threat"}},
		{Name: "hate", Code: models.ReasonHate, Keywords: []string{"hate"}},
		{Name: "unsafe", Code: models.ReasonOther, Keywords: []string{"unsafe"}},
	})
	imageIndicators = mustMatcher([]fallback.Category{
		{Name: "violence", Code: models.ReasonViolence, Keywords: []string{"violence"}},
		{Name: "explicit", Code: models.ReasonOther, Keywords: []string{"unsafe", "inappropriate", "nudity", "explicit"}},
	})
)

func mustMatcher(categories []fallback.Category) *fallback.Matcher {
	m, err := fallback.NewMatcher(categories)
	if err != nil {
		panic(err)
	}
	return m
}

type rawVerdict struct {
	Safe       *bool    `json:"safe"`
	Reason     string   `json:"reason"`
	Confidence *float64 `json:"confidence"`
	ReasonCode string   `json:"reasonCode"`
}

// ParseResponse turns free-form model output into a verdict. It first
// looks for an embedded JSON object; if none decodes it scans the text
// for unsafe indicators. Model output is untrusted and never an error.
func ParseResponse(raw string, kind Kind) models.Verdict {
	if v, ok := parseJSON(raw, kind); ok {
		return v
	}
	return scanIndicators(raw, kind)
}

func parseJSON(raw string, kind Kind) (models.Verdict, bool) {
	// Strip markdown code blocks if present
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")

	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start < 0 || end <= start {
		return models.Verdict{}, false
	}

	var rv rawVerdict
	if err := json.Unmarshal([]byte(clean[start:end+1]), &rv); err != nil {
		return models.Verdict{}, false
	}

	confidence := defaultConfidence
	if rv.Confidence != nil && *rv.Confidence != 0 {
		confidence = *rv.Confidence
	}

	// only an explicit false rejects
	if rv.Safe == nil || *rv.Safe {
		return models.Allow(confidence, models.StageRemote), true
	}

	reason := strings.TrimSpace(rv.Reason)
	if reason == "" {
		reason = defaultReason(kind)
	}
	return models.Reject(reason, models.ParseReasonCode(rv.ReasonCode), confidence, models.StageRemote), true
}

func scanIndicators(raw string, kind Kind) models.Verdict {
	indicators := textIndicators
	if kind == KindImage {
		indicators = imageIndicators
	}

	matched := indicators.Match(raw)
	if len(matched) == 0 {
		return models.Allow(defaultConfidence, models.StageRemote)
	}
	return models.Reject(defaultReason(kind), matched[0].Code, defaultConfidence, models.StageRemote)
}

func defaultReason(kind Kind) string {
	if kind == KindImage {
		return defaultImageReason
	}
	return defaultTextReason
}
