// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package validation

import (
	"fmt"
	"regexp"

	"github.com/spf13/cast"

	"github.com/tacsight/tacsight/internal/dataset"
	"github.com/tacsight/tacsight/internal/models"
)

// requiredColumnValidator flags one issue per missing required column.
type requiredColumnValidator struct{}

func (requiredColumnValidator) Validate(ds *dataset.Dataset, rule Rule) ([]models.ValidationIssue, error) {
	columns, err := cast.ToStringSliceE(rule.Parameters["columns"])
	if err != nil {
		return nil, fmt.Errorf("rule %s: columns parameter: %w", rule.RuleID, err)
	}

	var issues []models.ValidationIssue
	for _, col := range columns {
		if ds.HasColumn(col) {
			continue
		}
		issues = append(issues, models.ValidationIssue{
			RuleID:        rule.RuleID,
			Severity:      rule.Severity,
			Message:       fmt.Sprintf("Required column '%s' is missing", col),
			Column:        col,
			AffectedCount: ds.Len(),
			SuggestedFix:  fmt.Sprintf("Add column '%s' to data source", col),
		})
	}
	return issues, nil
}

// dataTypeValidator flags non-null cells that fail coercion to the
// declared type. All failing rows fold into a single issue.
type dataTypeValidator struct{}

func (dataTypeValidator) Validate(ds *dataset.Dataset, rule Rule) ([]models.ValidationIssue, error) {
	if !ds.HasColumn(rule.Column) {
		return nil, nil
	}
	expected := cast.ToString(rule.Parameters["type"])

	var invalid int
	switch expected {
	case "datetime":
		for i := 0; i < ds.Len(); i++ {
			if ds.Value(rule.Column, i) == nil {
				continue
			}
			if _, ok := ds.Time(rule.Column, i); !ok {
				invalid++
			}
		}
		if invalid > 0 {
			return []models.ValidationIssue{{
				RuleID:        rule.RuleID,
				Severity:      rule.Severity,
				Message:       fmt.Sprintf("Column '%s' contains invalid datetime values", rule.Column),
				Column:        rule.Column,
				AffectedCount: invalid,
				SuggestedFix:  fmt.Sprintf("Convert '%s' to valid datetime format", rule.Column),
			}}, nil
		}
	case "numeric", "int", "float":
		for i := 0; i < ds.Len(); i++ {
			if ds.Value(rule.Column, i) == nil {
				continue
			}
			if _, ok := ds.Float(rule.Column, i); !ok {
				invalid++
			}
		}
		if invalid > 0 {
			return []models.ValidationIssue{{
				RuleID:        rule.RuleID,
				Severity:      rule.Severity,
				Message:       fmt.Sprintf("Column '%s' contains non-numeric values", rule.Column),
				Column:        rule.Column,
				AffectedCount: invalid,
				SuggestedFix:  fmt.Sprintf("Convert '%s' to numeric format", rule.Column),
			}}, nil
		}
	default:
		return nil, fmt.Errorf("rule %s: unsupported type %q", rule.RuleID, expected)
	}
	return nil, nil
}

// valueRangeValidator flags numeric cells outside [min, max]. Either
// bound may be omitted. Non-numeric cells are left to the data-type
// validator.
type valueRangeValidator struct{}

func (valueRangeValidator) Validate(ds *dataset.Dataset, rule Rule) ([]models.ValidationIssue, error) {
	if !ds.HasColumn(rule.Column) {
		return nil, nil
	}

	minVal, hasMin, err := optionalFloat(rule.Parameters, "min")
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.RuleID, err)
	}
	maxVal, hasMax, err := optionalFloat(rule.Parameters, "max")
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.RuleID, err)
	}

	var outOfRange int
	for i := 0; i < ds.Len(); i++ {
		v, ok := ds.Float(rule.Column, i)
		if !ok {
			continue
		}
		if (hasMin && v < minVal) || (hasMax && v > maxVal) {
			outOfRange++
		}
	}
	if outOfRange == 0 {
		return nil, nil
	}

	var rangeDesc string
	switch {
	case hasMin && hasMax:
		rangeDesc = fmt.Sprintf("[%v, %v]", minVal, maxVal)
	case hasMin:
		rangeDesc = fmt.Sprintf(">= %v", minVal)
	default:
		rangeDesc = fmt.Sprintf("<= %v", maxVal)
	}

	return []models.ValidationIssue{{
		RuleID:        rule.RuleID,
		Severity:      rule.Severity,
		Message:       fmt.Sprintf("Column '%s' has %d values outside valid range %s", rule.Column, outOfRange, rangeDesc),
		Column:        rule.Column,
		AffectedCount: outOfRange,
		SuggestedFix:  fmt.Sprintf("Ensure '%s' values are within range %s", rule.Column, rangeDesc),
	}}, nil
}

func optionalFloat(params map[string]any, key string) (float64, bool, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s parameter: %w", key, err)
	}
	return v, true, nil
}

// patternMatchValidator flags non-null cells whose string form does
// not match the configured regular expression.
type patternMatchValidator struct{}

func (patternMatchValidator) Validate(ds *dataset.Dataset, rule Rule) ([]models.ValidationIssue, error) {
	pattern := cast.ToString(rule.Parameters["pattern"])
	if !ds.HasColumn(rule.Column) || pattern == "" {
		return nil, nil
	}

	regex, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("rule %s: invalid pattern: %w", rule.RuleID, err)
	}

	var invalid int
	for i := 0; i < ds.Len(); i++ {
		s, ok := ds.String(rule.Column, i)
		if !ok {
			continue
		}
		if !regex.MatchString(s) {
			invalid++
		}
	}
	if invalid == 0 {
		return nil, nil
	}

	return []models.ValidationIssue{{
		RuleID:        rule.RuleID,
		Severity:      rule.Severity,
		Message:       fmt.Sprintf("Column '%s' has %d values that don't match pattern %s", rule.Column, invalid, pattern),
		Column:        rule.Column,
		AffectedCount: invalid,
		SuggestedFix:  fmt.Sprintf("Ensure '%s' values match pattern: %s", rule.Column, pattern),
	}}, nil
}
