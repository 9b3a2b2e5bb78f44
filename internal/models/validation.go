// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package models

import "time"

// Severity classifies validation issues. The numeric order matters:
// scoring weights and summaries are keyed by severity.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns the canonical lowercase name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalJSON serializes the severity as its string name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Weight returns the scoring weight used in the quality score penalty.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityInfo:
		return 0.1
	case SeverityWarning:
		return 0.5
	case SeverityError:
		return 1.0
	case SeverityCritical:
		return 2.0
	default:
		return 1.0
	}
}

// ValidationIssue records one finding from a single validation rule.
// Produced fresh per validation run; never persisted.
type ValidationIssue struct {
	// RuleID identifies the rule that produced the issue.
	RuleID string `json:"rule_id"`

	// Severity is the configured severity of the rule.
	Severity Severity `json:"severity"`

	// Message describes the finding.
	Message string `json:"message"`

	// Column is the column the rule targets, if any.
	Column string `json:"column,omitempty"`

	// AffectedCount is the number of rows the finding covers.
	AffectedCount int `json:"affected_count"`

	// SuggestedFix is an optional remediation hint.
	SuggestedFix string `json:"suggested_fix,omitempty"`
}

// ValidationResult is the outcome of one validation run over a dataset.
//
// Invariant: OverallScore == 100 exactly when Issues is empty.
type ValidationResult struct {
	// RequestID correlates the run with the originating load request.
	RequestID string `json:"request_id"`

	// TotalRecords is the row count of the validated dataset.
	TotalRecords int `json:"total_records"`

	// ValidationTime is how long the run took.
	ValidationTime time.Duration `json:"validation_time"`

	// OverallScore is the weighted quality score in [0, 100].
	OverallScore float64 `json:"overall_score"`

	// Issues lists every finding from the run.
	Issues []ValidationIssue `json:"issues"`

	// Summary counts issues by severity name.
	Summary map[string]int `json:"summary"`

	// Recommendations are remediation hints derived from the issues.
	Recommendations []string `json:"recommendations"`
}

// CriticalIssues returns the number of critical-severity issues.
func (r *ValidationResult) CriticalIssues() int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == SeverityCritical {
			n++
		}
	}
	return n
}
