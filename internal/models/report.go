package models

import (
	"fmt"
	"strings"
	"time"
)

// TargetType is what a report points at
type TargetType string

const (
	TargetPost  TargetType = "POST"
	TargetReply TargetType = "REPLY"
	TargetUser  TargetType = "USER"
	TargetDM    TargetType = "DM"
)

// ParseTargetType accepts the four target types in any case
func ParseTargetType(value string) (TargetType, error) {
	t := TargetType(strings.ToUpper(strings.TrimSpace(value)))
	switch t {
	case TargetPost, TargetReply, TargetUser, TargetDM:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTargetType, value)
	}
}

// Moderatable reports whether reports against this target can trigger escalation
func (t TargetType) Moderatable() bool {
	return t == TargetPost || t == TargetReply
}

// ContentType maps a moderatable target to its content type
func (t TargetType) ContentType() ContentType {
	if t == TargetReply {
		return ContentReply
	}
	return ContentPost
}

// ReportStatus of a report
type ReportStatus string

const (
	ReportOpen      ReportStatus = "OPEN"
	ReportResolved  ReportStatus = "RESOLVED"
	ReportDismissed ReportStatus = "DISMISSED"
)

// Report is a community report against a piece of content or a user
type Report struct {
	ID         string       `json:"id" db:"id"`
	ReporterID string       `json:"reporter_id" db:"reporter_id"`
	TargetID   string       `json:"target_id" db:"target_id"`
	TargetType TargetType   `json:"target_type" db:"target_type"`
	Reason     string       `json:"reason" db:"reason"`
	Comment    *string      `json:"comment,omitempty" db:"comment"`
	Status     ReportStatus `json:"status" db:"status"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
}

// ReportRequest for the report endpoint
type ReportRequest struct {
	ReporterID string `json:"reporter_id" binding:"required"`
	TargetID   string `json:"target_id" binding:"required"`
	TargetType string `json:"target_type" binding:"required"`
	Reason     string `json:"reason" binding:"required"`
	Comment    string `json:"comment"`
}
