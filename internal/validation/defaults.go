// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package validation

import "github.com/tacsight/tacsight/internal/models"

func domainPtr(d models.AnalysisDomain) *models.AnalysisDomain {
	return &d
}

// defaultRules is the built-in rule set for exercise telemetry.
func defaultRules() []Rule {
	return []Rule{
		// Required columns
		{
			RuleID:      "REQ_COLS_SAFETY",
			Type:        RuleRequiredColumn,
			Severity:    models.SeverityError,
			Description: "Required columns for safety analysis",
			Parameters:  map[string]any{"columns": []string{"callsign", "falldetected", "casualtystate", "processedtimegmt"}},
			Enabled:     true,
			Domain:      domainPtr(models.DomainSoldierSafety),
		},
		{
			RuleID:      "REQ_COLS_NETWORK",
			Type:        RuleRequiredColumn,
			Severity:    models.SeverityError,
			Description: "Required columns for network analysis",
			Parameters:  map[string]any{"columns": []string{"callsign", "processedtimegmt"}},
			Enabled:     true,
			Domain:      domainPtr(models.DomainNetworkPerformance),
		},

		// Data types
		{
			RuleID:      "DT_TIMESTAMP",
			Type:        RuleDataType,
			Severity:    models.SeverityError,
			Description: "Timestamp must be valid datetime",
			Column:      "processedtimegmt",
			Parameters:  map[string]any{"type": "datetime"},
			Enabled:     true,
		},
		{
			RuleID:      "DT_NUMERIC_FIELDS",
			Type:        RuleDataType,
			Severity:    models.SeverityError,
			Description: "Numeric fields must be numeric",
			Column:      "temp",
			Parameters:  map[string]any{"type": "numeric"},
			Enabled:     true,
		},

		// Value ranges
		{
			RuleID:      "VR_LATITUDE",
			Type:        RuleValueRange,
			Severity:    models.SeverityError,
			Description: "Latitude must be between -90 and 90",
			Column:      "latitude",
			Parameters:  map[string]any{"min": -90, "max": 90},
			Enabled:     true,
		},
		{
			RuleID:      "VR_LONGITUDE",
			Type:        RuleValueRange,
			Severity:    models.SeverityError,
			Description: "Longitude must be between -180 and 180",
			Column:      "longitude",
			Parameters:  map[string]any{"min": -180, "max": 180},
			Enabled:     true,
		},
		{
			RuleID:      "VR_BATTERY",
			Type:        RuleValueRange,
			Severity:    models.SeverityWarning,
			Description: "Battery level should be between 0 and 101%",
			Column:      "battery",
			Parameters:  map[string]any{"min": 0, "max": 101},
			Enabled:     true,
		},
		{
			RuleID:      "VR_RSSI",
			Type:        RuleValueRange,
			Severity:    models.SeverityWarning,
			Description: "RSSI should be between -120 and 100 dBm",
			Column:      "rssi",
			Parameters:  map[string]any{"min": -120, "max": 100},
			Enabled:     true,
		},
		{
			RuleID:      "VR_MCS",
			Type:        RuleValueRange,
			Severity:    models.SeverityWarning,
			Description: "MCS should be between 0 and 11",
			Column:      "mcs",
			Parameters:  map[string]any{"min": 0, "max": 11},
			Enabled:     true,
		},
		{
			RuleID:      "VR_TEMPERATURE",
			Type:        RuleValueRange,
			Severity:    models.SeverityWarning,
			Description: "Temperature should be between -50 and 70 C",
			Column:      "temp",
			Parameters:  map[string]any{"min": -50, "max": 70},
			Enabled:     true,
		},

		// Patterns
		{
			RuleID:      "PM_CALLSIGN",
			Type:        RulePatternMatch,
			Severity:    models.SeverityWarning,
			Description: "Callsign should follow standard format",
			Column:      "callsign",
			Parameters:  map[string]any{"pattern": `^[A-Za-z0-9_-]+$`},
			Enabled:     true,
		},
		{
			RuleID:      "PM_CASUALTY_STATE",
			Type:        RulePatternMatch,
			Severity:    models.SeverityError,
			Description: "Casualty state must be valid value",
			Column:      "casualtystate",
			Parameters:  map[string]any{"pattern": `^(GOOD|KILLED|FALL ALERT|RESURRECTED)$`},
			Enabled:     true,
		},
		{
			RuleID:      "PM_FALL_DETECTED",
			Type:        RulePatternMatch,
			Severity:    models.SeverityError,
			Description: "Fall detected must be Yes or No",
			Column:      "falldetected",
			Parameters:  map[string]any{"pattern": `^(Yes|No)$`},
			Enabled:     true,
		},

		// Business rules
		{
			RuleID:      "BR_CASUALTY_TRANSITIONS",
			Type:        RuleBusinessRule,
			Severity:    models.SeverityWarning,
			Description: "Casualty state transitions must follow logical sequence",
			Parameters:  map[string]any{"rule": CheckCasualtyTransitions},
			Enabled:     true,
		},
		{
			RuleID:      "BR_FALL_CASUALTY_CORRELATION",
			Type:        RuleBusinessRule,
			Severity:    models.SeverityWarning,
			Description: "Fall events should correlate with casualty states",
			Parameters:  map[string]any{"rule": CheckFallCorrelation},
			Enabled:     true,
		},
		{
			RuleID:      "BR_BATTERY_DEPLETION",
			Type:        RuleBusinessRule,
			Severity:    models.SeverityWarning,
			Description: "Battery depletion rates should be realistic",
			Parameters:  map[string]any{"rule": CheckBatteryDepletion},
			Enabled:     true,
		},
		{
			RuleID:      "BR_NETWORK_CONSISTENCY",
			Type:        RuleBusinessRule,
			Severity:    models.SeverityWarning,
			Description: "Network metrics should be consistent",
			Parameters:  map[string]any{"rule": CheckNetworkConsistency},
			Enabled:     true,
		},
	}
}
