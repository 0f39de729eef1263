package models

import "time"

// ModerationSource tells which path removed content
type ModerationSource string

const (
	SourceAutomated       ModerationSource = "AUTOMATED"
	SourceReportThreshold ModerationSource = "REPORT_THRESHOLD"
	SourceManual          ModerationSource = "MANUAL"
)

// AppealStatus of a moderation decision
type AppealStatus string

const (
	AppealNone     AppealStatus = "NONE"
	AppealPending  AppealStatus = "PENDING"
	AppealUpheld   AppealStatus = "UPHELD"
	AppealRejected AppealStatus = "REJECTED"
)

// ModerationRecord is a persisted moderation decision kept for review and appeals
type ModerationRecord struct {
	ID               string           `json:"id" db:"id"`
	TargetType       TargetType       `json:"target_type" db:"target_type"`
	TargetID         string           `json:"target_id" db:"target_id"`
	AuthorID         string           `json:"author_id" db:"author_id"`
	ReasonCode       ReasonCode       `json:"reason_code" db:"reason_code"`
	ReasonText       string           `json:"reason_text" db:"reason_text"`
	Confidence       float64          `json:"confidence" db:"confidence"`
	ContentSnapshot  string           `json:"content_snapshot" db:"content_snapshot"`
	Source           ModerationSource `json:"source" db:"source"`
	AppealStatus     AppealStatus     `json:"appeal_status" db:"appeal_status"`
	AppealText       *string          `json:"appeal_text,omitempty" db:"appeal_text"`
	AppealedAt       *time.Time       `json:"appealed_at,omitempty" db:"appealed_at"`
	AppealResolution *string          `json:"appeal_resolution,omitempty" db:"appeal_resolution"`
	AppealResolvedAt *time.Time       `json:"appeal_resolved_at,omitempty" db:"appeal_resolved_at"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
}

// ModerationFilter narrows the admin listing
type ModerationFilter struct {
	AuthorID   string
	ReasonCode ReasonCode
	Source     ModerationSource
	Limit      int
	Offset     int
}

// ModerationPage is one page of records plus the total match count
type ModerationPage struct {
	Items  []*ModerationRecord `json:"items"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// ModerationStats summarises an author's moderation history
type ModerationStats struct {
	Total               int                `json:"total"`
	ByReasonCode        map[ReasonCode]int `json:"by_reason_code"`
	SuggestPermanentBan bool               `json:"suggest_permanent_ban"`
}

// AppealRequest for submitting an appeal
type AppealRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Text   string `json:"text" binding:"required"`
}

// ResolveAppealRequest for resolving an appeal
type ResolveAppealRequest struct {
	Upheld     bool   `json:"upheld"`
	Resolution string `json:"resolution" binding:"required"`
}
