package analyzer

import (
	"fmt"
	"strings"
)

const verdictSchema = `{"safe": true/false, "reason": "explanation", "confidence": 0.0-1.0, "reasonCode": "SPAM|ADVERTISING|HARASSMENT|VIOLENCE|HATE|OTHER"}`

// TextPrompt asks for a safety verdict on at most maxRunes of text
func TextPrompt(text string, maxRunes int) string {
	return fmt.Sprintf("Analyze this content for safety. Check for: violence, harassment, hate speech, threats, or harmful content. "+
		"Respond with JSON: %s\n\nContent: %q", verdictSchema, truncate(text, maxRunes))
}

// ImagePrompt asks for a safety verdict on an attached image
func ImagePrompt() string {
	return "Analyze this image for appropriateness. Check for: nudity, violence, explicit content, inappropriate material. " +
		"Respond with JSON only: " + verdictSchema
}

func truncate(text string, maxRunes int) string {
	text = strings.TrimSpace(text)
	if maxRunes <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes])
}
