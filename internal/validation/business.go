// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/tacsight/tacsight/internal/dataset"
	"github.com/tacsight/tacsight/internal/models"
)

// Business check names accepted in a business rule's "rule" parameter.
const (
	CheckCasualtyTransitions = "casualty_state_transitions"
	CheckFallCorrelation     = "fall_casualty_correlation"
	CheckBatteryDepletion    = "battery_depletion_rate"
	CheckNetworkConsistency  = "network_connectivity_consistency"
)

// Telemetry column names the business checks operate on.
const (
	colCallsign      = "callsign"
	colCasualtyState = "casualtystate"
	colFallDetected  = "falldetected"
	colTimestamp     = "processedtimegmt"
	colBattery       = "battery"
	colRSSI          = "rssi"
	colMCS           = "mcs"
	colNextHop       = "nexthop"
)

// validCasualtyTransitions is the allowed casualty state machine.
var validCasualtyTransitions = map[string][]string{
	"GOOD":        {"KILLED", "FALL ALERT"},
	"KILLED":      {"RESURRECTED"},
	"FALL ALERT":  {"GOOD", "KILLED"},
	"RESURRECTED": {"GOOD", "KILLED"},
}

// businessRuleValidator dispatches named cross-row checks.
type businessRuleValidator struct{}

func (businessRuleValidator) Validate(ds *dataset.Dataset, rule Rule) ([]models.ValidationIssue, error) {
	check := cast.ToString(rule.Parameters["rule"])
	if check == "" {
		check = cast.ToString(rule.Parameters["check"])
	}

	switch check {
	case CheckCasualtyTransitions:
		return validateCasualtyTransitions(ds, rule), nil
	case CheckFallCorrelation:
		return validateFallCorrelation(ds, rule), nil
	case CheckBatteryDepletion:
		return validateBatteryDepletion(ds, rule), nil
	case CheckNetworkConsistency:
		return validateNetworkConsistency(ds, rule), nil
	default:
		return nil, fmt.Errorf("rule %s: unknown business check %q", rule.RuleID, check)
	}
}

// validateCasualtyTransitions flags state changes outside the allowed
// transition machine, evaluated per unit in timestamp order.
func validateCasualtyTransitions(ds *dataset.Dataset, rule Rule) []models.ValidationIssue {
	if !hasColumns(ds, colCallsign, colCasualtyState, colTimestamp) {
		return nil
	}

	invalid := 0
	for _, unit := range ds.GroupBy(colCallsign) {
		sorted := unit.SortByTime(colTimestamp)
		prev := ""
		for i := 0; i < sorted.Len(); i++ {
			state, ok := sorted.String(colCasualtyState, i)
			if !ok {
				continue
			}
			if prev != "" && state != prev && !transitionAllowed(prev, state) {
				invalid++
			}
			prev = state
		}
	}
	if invalid == 0 {
		return nil
	}

	return []models.ValidationIssue{{
		RuleID:        rule.RuleID,
		Severity:      rule.Severity,
		Message:       fmt.Sprintf("Found %d invalid casualty state transitions", invalid),
		Column:        colCasualtyState,
		AffectedCount: invalid,
		SuggestedFix:  "Review casualty state transition logic",
	}}
}

func transitionAllowed(from, to string) bool {
	for _, allowed := range validCasualtyTransitions[from] {
		if to == allowed {
			return true
		}
	}
	return false
}

// validateFallCorrelation flags units reporting many falls but no
// casualty-state changes, a probable sensor calibration issue.
func validateFallCorrelation(ds *dataset.Dataset, rule Rule) []models.ValidationIssue {
	if !hasColumns(ds, colCallsign, colFallDetected, colCasualtyState) {
		return nil
	}

	var suspicious []string
	for callsign, unit := range ds.GroupBy(colCallsign) {
		falls := 0
		casualties := 0
		for i := 0; i < unit.Len(); i++ {
			if v, _ := unit.String(colFallDetected, i); v == "Yes" {
				falls++
			}
			if v, _ := unit.String(colCasualtyState, i); v == "KILLED" || v == "FALL ALERT" {
				casualties++
			}
		}
		if falls > 20 && casualties == 0 {
			suspicious = append(suspicious, callsign)
		}
	}
	if len(suspicious) == 0 {
		return nil
	}
	sort.Strings(suspicious)

	return []models.ValidationIssue{{
		RuleID:        rule.RuleID,
		Severity:      rule.Severity,
		Message:       "Units with high falls but no casualties: " + strings.Join(suspicious, ", "),
		Column:        colFallDetected,
		AffectedCount: len(suspicious),
		SuggestedFix:  "Review fall detection calibration for these units",
	}}
}

// validateBatteryDepletion flags units whose battery level jumps more
// than 50 percentage points between consecutive readings.
func validateBatteryDepletion(ds *dataset.Dataset, rule Rule) []models.ValidationIssue {
	if !hasColumns(ds, colCallsign, colBattery, colTimestamp) {
		return nil
	}

	var abnormal []string
	for callsign, unit := range ds.GroupBy(colCallsign) {
		if unit.Len() < 2 {
			continue
		}
		sorted := unit.SortByTime(colTimestamp)

		hasPrev := false
		prev := 0.0
		jump := false
		for i := 0; i < sorted.Len(); i++ {
			v, ok := sorted.Float(colBattery, i)
			if !ok {
				continue
			}
			if hasPrev {
				diff := v - prev
				if diff > 50 || diff < -50 {
					jump = true
					break
				}
			}
			prev = v
			hasPrev = true
		}
		if jump {
			abnormal = append(abnormal, callsign)
		}
	}
	if len(abnormal) == 0 {
		return nil
	}
	sort.Strings(abnormal)

	return []models.ValidationIssue{{
		RuleID:        rule.RuleID,
		Severity:      rule.Severity,
		Message:       "Units with abnormal battery depletion: " + strings.Join(abnormal, ", "),
		Column:        colBattery,
		AffectedCount: len(abnormal),
		SuggestedFix:  "Review battery sensor calibration",
	}}
}

// validateNetworkConsistency flags rows whose link metrics contradict
// each other: strong MCS on a weak signal, or a healthy signal with
// no usable next hop.
func validateNetworkConsistency(ds *dataset.Dataset, rule Rule) []models.ValidationIssue {
	if !hasColumns(ds, colRSSI, colMCS, colNextHop) {
		return nil
	}

	inconsistent := 0
	for i := 0; i < ds.Len(); i++ {
		rssi, rssiOK := ds.Float(colRSSI, i)
		mcs, mcsOK := ds.Float(colMCS, i)
		nexthop, _ := ds.String(colNextHop, i)

		if rssiOK && mcsOK && rssi < 10 && mcs > 7 {
			inconsistent++
		}
		if rssiOK && rssi > 20 && nexthop == "Unavailable" {
			inconsistent++
		}
	}
	if inconsistent == 0 {
		return nil
	}

	return []models.ValidationIssue{{
		RuleID:        rule.RuleID,
		Severity:      rule.Severity,
		Message:       fmt.Sprintf("Found %d records with inconsistent network metrics", inconsistent),
		Column:        colRSSI,
		AffectedCount: inconsistent,
		SuggestedFix:  "Review network metric correlation",
	}}
}

func hasColumns(ds *dataset.Dataset, columns ...string) bool {
	for _, c := range columns {
		if !ds.HasColumn(c) {
			return false
		}
	}
	return true
}
