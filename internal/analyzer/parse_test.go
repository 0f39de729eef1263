package analyzer

import (
	"testing"

	"content-safety/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		kind   Kind
		safe   bool
		reason string
		code   models.ReasonCode
		conf   float64
	}{
		{
			name: "plain json safe",
			raw:  `{"safe": true, "reason": "friendly", "confidence": 0.92}`,
			safe: true,
			conf: 0.92,
		},
		{
			name:   "json embedded in prose",
			raw:    "Sure! Here is my analysis:\n{\"safe\": false, \"reason\": \"Threatening language\", \"confidence\": 0.85, \"reasonCode\": \"harassment\"}\nHope this helps.",
			reason: "Threatening language",
			code:   models.ReasonHarassment,
			conf:   0.85,
		},
		{
			name:   "markdown fenced json",
			raw:    "```json\n{\"safe\": false, \"reason\": \"Spam link\", \"confidence\": 0.8, \"reasonCode\": \"SPAM\"}\n```",
			reason: "Spam link",
			code:   models.ReasonSpam,
			conf:   0.8,
		},
		{
			name: "missing safe counts as safe",
			raw:  `{"reason": "unclear"}`,
			safe: true,
			conf: 0.7,
		},
		{
			name:   "unsafe without reason or confidence",
			raw:    `{"safe": false}`,
			reason: "Content flagged by AI safety analysis.",
			code:   models.ReasonOther,
			conf:   0.7,
		},
		{
			name:   "image default reason",
			raw:    `{"safe": false, "confidence": 0}`,
			kind:   KindImage,
			reason: "Image flagged by AI safety analysis.",
			code:   models.ReasonOther,
			conf:   0.7,
		},
		{
			name:   "unknown reason code",
			raw:    `{"safe": false, "reason": "x", "confidence": 0.9, "reasonCode": "PHISHING"}`,
			reason: "x",
			code:   models.ReasonOther,
			conf:   0.9,
		},
		{
			name: "out of range confidence is clamped",
			raw:  `{"safe": true, "confidence": 7}`,
			safe: true,
			conf: 1,
		},
		{
			name:   "broken json falls back to keywords",
			raw:    `{"safe": false, "reason": "this contains a threat`,
			reason: "Content flagged by AI safety analysis.",
			code:   models.ReasonHarassment,
			conf:   0.7,
		},
		{
			name:   "keyword scan text",
			raw:    "This post is UNSAFE.",
			reason: "Content flagged by AI safety analysis.",
			code:   models.ReasonOther,
			conf:   0.7,
		},
		{
			name:   "keyword scan first category wins",
			raw:    "contains violence and hate",
			reason: "Content flagged by AI safety analysis.",
			code:   models.ReasonViolence,
			conf:   0.7,
		},
		{
			name: "keyword scan clean text",
			raw:  "Looks fine to me.",
			safe: true,
			conf: 0.7,
		},
		{
			name:   "image indicators",
			raw:    "The picture shows nudity",
			kind:   KindImage,
			reason: "Image flagged by AI safety analysis.",
			code:   models.ReasonOther,
			conf:   0.7,
		},
		{
			name: "text-only indicator ignored for images",
			raw:  "mild harassment in the caption",
			kind: KindImage,
			safe: true,
			conf: 0.7,
		},
		{
			name: "empty response",
			raw:  "",
			safe: true,
			conf: 0.7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseResponse(tt.raw, tt.kind)
			assert.Equal(t, tt.safe, got.Safe)
			assert.Equal(t, tt.reason, got.Reason)
			assert.Equal(t, tt.code, got.ReasonCode)
			assert.InDelta(t, tt.conf, got.Confidence, 1e-9)
			assert.Equal(t, models.StageRemote, got.Stage)
		})
	}
}

func TestTextPrompt_Truncates(t *testing.T) {
	long := make([]rune, 800)
	for i := range long {
		long[i] = 'é'
	}

	prompt := TextPrompt(string(long), 500)
	assert.Contains(t, prompt, "Respond with JSON")
	assert.Contains(t, prompt, string(long[:500]))
	assert.NotContains(t, prompt, string(long[:501]))
}
