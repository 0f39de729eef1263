package models

import (
	"fmt"
	"strings"
	"time"
)

// ContentType is a kind of publishable content
type ContentType string

const (
	ContentPost  ContentType = "post"
	ContentReply ContentType = "reply"
)

// ParseContentType accepts "post" or "reply" in any case
func ParseContentType(value string) (ContentType, error) {
	switch ContentType(strings.ToLower(strings.TrimSpace(value))) {
	case ContentPost:
		return ContentPost, nil
	case ContentReply:
		return ContentReply, nil
	default:
		return "", fmt.Errorf("%w: content type %q", ErrInvalidInput, value)
	}
}

// TargetType returns the report target type for this content type
func (c ContentType) TargetType() TargetType {
	if c == ContentReply {
		return TargetReply
	}
	return TargetPost
}

// ContentItem is a post or reply as seen by the safety pipeline
type ContentItem struct {
	ID        string     `json:"id" db:"id"`
	AuthorID  string     `json:"author_id" db:"author_id"`
	Body      string     `json:"body" db:"body"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// CheckOptions tunes a single content check
type CheckOptions struct {
	// OnlyFast skips the remote analyzer even when Stage 1 is uncertain.
	OnlyFast bool
}

// CheckContentRequest for text checks
type CheckContentRequest struct {
	Text        string `json:"text" binding:"required"`
	UserID      string `json:"user_id"`
	ContentType string `json:"content_type"`
	OnlyFast    bool   `json:"only_fast"`
}

// PublishRequest for the reference publish path
type PublishRequest struct {
	AuthorID string `json:"author_id" binding:"required"`
	Body     string `json:"body" binding:"required"`
}
