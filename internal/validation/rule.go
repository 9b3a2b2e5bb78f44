// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

// Package validation implements the rule-based data quality engine.
//
// Rules are configuration data dispatched to per-type validators:
// required-column, data-type, value-range, pattern-match, and named
// cross-row business rules. A failing validator never aborts a run;
// it is converted into an error-severity issue for that rule only.
package validation

import (
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tacsight/tacsight/internal/dataset"
	"github.com/tacsight/tacsight/internal/models"
)

// RuleType selects the validator a rule is dispatched to.
type RuleType string

const (
	RuleRequiredColumn RuleType = "required_column"
	RuleDataType       RuleType = "data_type"
	RuleValueRange     RuleType = "value_range"
	RulePatternMatch   RuleType = "pattern_match"
	RuleBusinessRule   RuleType = "business_rule"
)

// Errors returned by rule registry operations.
var (
	ErrRuleExists      = errors.New("validation rule already registered")
	ErrUnknownRuleType = errors.New("no validator registered for rule type")
)

// Rule is one configured validation check. Mutated only through the
// engine's Add/Remove/Enable/Disable operations.
type Rule struct {
	// RuleID uniquely identifies the rule.
	RuleID string `json:"rule_id" validate:"required"`

	// Type selects the validator implementation.
	Type RuleType `json:"rule_type" validate:"required,oneof=required_column data_type value_range pattern_match business_rule"`

	// Severity weights the rule's issues in the quality score.
	Severity models.Severity `json:"severity"`

	// Description documents the rule for operators.
	Description string `json:"description"`

	// Column is the target column for column-scoped rule types.
	Column string `json:"column,omitempty"`

	// Parameters configures the validator (columns, min/max, pattern,
	// business check name).
	Parameters map[string]any `json:"parameters"`

	// Enabled gates the rule without removing it.
	Enabled bool `json:"enabled"`

	// Domain restricts the rule to one analysis domain. Nil applies
	// to every domain.
	Domain *models.AnalysisDomain `json:"domain,omitempty"`
}

// RuleValidator executes one rule type against a dataset.
type RuleValidator interface {
	Validate(ds *dataset.Dataset, rule Rule) ([]models.ValidationIssue, error)
}

// singleton struct validator for rule configuration checks
var (
	structValidate     *validator.Validate
	structValidateOnce sync.Once
)

func structValidator() *validator.Validate {
	structValidateOnce.Do(func() {
		structValidate = validator.New(validator.WithRequiredStructEnabled())
	})
	return structValidate
}
