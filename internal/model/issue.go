package model

// NotFound is the MatchedSourceText value for claims with no source match
const NotFound = "NOT_FOUND"

// Severity indicates the importance of an issue
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Valid reports whether s is one of the known severities
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityWarning, SeverityInfo:
		return true
	}
	return false
}

// CheckKind names the verification rule that produced an issue
type CheckKind string

const (
	CheckNumeric     CheckKind = "numeric"
	CheckDate        CheckKind = "date"
	CheckEntity      CheckKind = "entity"
	CheckQuotation   CheckKind = "quotation"
	CheckAttribution CheckKind = "attribution"
	CheckFormat      CheckKind = "format"
	CheckReview      CheckKind = "review" // Reported by the generative review pass
)

// Issue is a single problem found by a verification pass
type Issue struct {
	ID                string    `json:"id"`
	Severity          Severity  `json:"severity"`
	ClaimText         string    `json:"claim_text"`
	MatchedSourceText string    `json:"matched_source_text"` // Source span, or NotFound
	Explanation       string    `json:"explanation"`
	SuggestedFix      string    `json:"suggested_fix,omitempty"`
	Check             CheckKind `json:"check"`
}

// VerificationResult is the outcome of one verification pass
type VerificationResult struct {
	Verified bool    `json:"verified"`
	Issues   []Issue `json:"issues"`
}

// NewVerificationResult derives Verified from the issue list
func NewVerificationResult(issues []Issue) VerificationResult {
	if issues == nil {
		issues = []Issue{}
	}
	return VerificationResult{
		Verified: CountSeverity(issues, SeverityCritical) == 0,
		Issues:   issues,
	}
}

// CountSeverity counts issues with the given severity
func CountSeverity(issues []Issue, severity Severity) int {
	count := 0
	for _, issue := range issues {
		if issue.Severity == severity {
			count++
		}
	}
	return count
}

// Count counts issues with the given severity
func (r VerificationResult) Count(severity Severity) int {
	return CountSeverity(r.Issues, severity)
}
