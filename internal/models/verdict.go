package models

import "strings"

// ReasonCode classifies why content was rejected
type ReasonCode string

const (
	ReasonSpam        ReasonCode = "SPAM"
	ReasonAdvertising ReasonCode = "ADVERTISING"
	ReasonHarassment  ReasonCode = "HARASSMENT"
	ReasonRepeated    ReasonCode = "REPEATED"
	ReasonViolence    ReasonCode = "VIOLENCE"
	ReasonHate        ReasonCode = "HATE"
	ReasonOther       ReasonCode = "OTHER"
)

var reasonCodes = map[ReasonCode]struct{}{
	ReasonSpam:        {},
	ReasonAdvertising: {},
	ReasonHarassment:  {},
	ReasonRepeated:    {},
	ReasonViolence:    {},
	ReasonHate:        {},
	ReasonOther:       {},
}

// ParseReasonCode maps free-form model output to a known reason code.
// Unknown values become ReasonOther.
func ParseReasonCode(value string) ReasonCode {
	code := ReasonCode(strings.ToUpper(strings.TrimSpace(value)))
	if _, ok := reasonCodes[code]; ok {
		return code
	}
	return ReasonOther
}

// Stage names which component produced a verdict
const (
	StageRepeated   = "repeated"
	StageClassifier = "classifier"
	StageRemote     = "remote"
	StageFallback   = "fallback"
	StageCombined   = "combined"
	StageStructural = "structural"
	StageKeyword    = "keyword"
)

// Verdict is the result of any safety classification step
type Verdict struct {
	Safe       bool       `json:"safe"`
	Reason     string     `json:"reason,omitempty"`
	Confidence float64    `json:"confidence"`
	ReasonCode ReasonCode `json:"reason_code,omitempty"`
	Stage      string     `json:"stage,omitempty"`
}

// Allow builds a safe verdict
func Allow(confidence float64, stage string) Verdict {
	return Verdict{Safe: true, Confidence: clamp(confidence), Stage: stage}
}

// Reject builds an unsafe verdict. An empty reason is replaced so that
// rejected content always carries an explanation.
func Reject(reason string, code ReasonCode, confidence float64, stage string) Verdict {
	if reason == "" {
		reason = "Content flagged by safety check."
	}
	if code == "" {
		code = ReasonOther
	}
	return Verdict{
		Safe:       false,
		Reason:     reason,
		Confidence: clamp(confidence),
		ReasonCode: code,
		Stage:      stage,
	}
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
