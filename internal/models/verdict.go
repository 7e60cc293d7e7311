package models

import "time"

// Failure reasons reported when the classifier could not be consulted.
const (
	ReasonParseError  = "parse_error"
	ReasonMethodError = "method_error"
	ReasonAPIError    = "api_error"
)

// Verdict is the normalized classifier output for one piece of text.
// Confidence keeps the service's direction-dependent meaning: for a safe
// verdict it is the safety score, for an unsafe one the harm score.
type Verdict struct {
	Safe       bool      `json:"safe"`
	Reason     string    `json:"reason"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// ComplianceConfig is the operator-edited policy list passed to the classifier
type ComplianceConfig struct {
	Enabled bool     `json:"enabled"`
	Rules   []string `json:"rules"`
}

// ComplianceUpdate for PUT /moderation/compliance. RulesText accepts the
// newline-separated form produced by a textarea.
type ComplianceUpdate struct {
	Enabled   *bool    `json:"enabled"`
	Rules     []string `json:"rules"`
	RulesText *string  `json:"rules_text"`
}
