// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package validation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/tacsight/tacsight/internal/dataset"
	"github.com/tacsight/tacsight/internal/models"
)

func businessRule(check string) Rule {
	return Rule{
		RuleID:     "BR_TEST",
		Type:       RuleBusinessRule,
		Severity:   models.SeverityWarning,
		Parameters: map[string]any{"rule": check},
		Enabled:    true,
	}
}

func stateRow(callsign, state, ts string) map[string]any {
	return map[string]any{
		"callsign":         callsign,
		"casualtystate":    state,
		"processedtimegmt": ts,
	}
}

func TestCasualtyTransitionsValidSequence(t *testing.T) {
	ds := dataset.FromRecords([]map[string]any{
		stateRow("ALPHA_1", "GOOD", "2026-08-01T10:00:00Z"),
		stateRow("ALPHA_1", "KILLED", "2026-08-01T10:05:00Z"),
		stateRow("ALPHA_1", "RESURRECTED", "2026-08-01T10:10:00Z"),
		stateRow("ALPHA_1", "GOOD", "2026-08-01T10:15:00Z"),
	})

	issues, err := businessRuleValidator{}.Validate(ds, businessRule(CheckCasualtyTransitions))
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("Valid transition chain flagged: %+v", issues)
	}
}

func TestCasualtyTransitionsInvalidSequence(t *testing.T) {
	// KILLED -> GOOD skips RESURRECTED and is not allowed.
	ds := dataset.FromRecords([]map[string]any{
		stateRow("ALPHA_1", "GOOD", "2026-08-01T10:00:00Z"),
		stateRow("ALPHA_1", "KILLED", "2026-08-01T10:05:00Z"),
		stateRow("ALPHA_1", "GOOD", "2026-08-01T10:10:00Z"),
	})

	issues, err := businessRuleValidator{}.Validate(ds, businessRule(CheckCasualtyTransitions))
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("Expected 1 issue, got %d", len(issues))
	}
	if issues[0].AffectedCount != 1 {
		t.Errorf("AffectedCount = %d; want 1", issues[0].AffectedCount)
	}
}

func TestCasualtyTransitionsPerUnit(t *testing.T) {
	// Interleaved units: each unit's sequence is valid on its own even
	// though the row order mixes their states.
	ds := dataset.FromRecords([]map[string]any{
		stateRow("ALPHA_1", "GOOD", "2026-08-01T10:00:00Z"),
		stateRow("BRAVO_2", "KILLED", "2026-08-01T10:01:00Z"),
		stateRow("ALPHA_1", "FALL ALERT", "2026-08-01T10:02:00Z"),
		stateRow("BRAVO_2", "RESURRECTED", "2026-08-01T10:03:00Z"),
	})

	issues, err := businessRuleValidator{}.Validate(ds, businessRule(CheckCasualtyTransitions))
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("Interleaved valid sequences flagged: %+v", issues)
	}
}

func TestFallCorrelationFlagsSensorIssue(t *testing.T) {
	var records []map[string]any
	for i := 0; i < 25; i++ {
		records = append(records, map[string]any{
			"callsign":      "ALPHA_1",
			"falldetected":  "Yes",
			"casualtystate": "GOOD",
		})
	}
	// Healthy unit: many falls but matching casualty states.
	for i := 0; i < 25; i++ {
		records = append(records, map[string]any{
			"callsign":      "BRAVO_2",
			"falldetected":  "Yes",
			"casualtystate": "FALL ALERT",
		})
	}
	ds := dataset.FromRecords(records)

	issues, err := businessRuleValidator{}.Validate(ds, businessRule(CheckFallCorrelation))
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("Expected 1 issue, got %d", len(issues))
	}
	if !strings.Contains(issues[0].Message, "ALPHA_1") {
		t.Errorf("Message should name ALPHA_1: %s", issues[0].Message)
	}
	if strings.Contains(issues[0].Message, "BRAVO_2") {
		t.Errorf("Message should not name BRAVO_2: %s", issues[0].Message)
	}
}

func TestFallCorrelationThreshold(t *testing.T) {
	// 20 falls is at the threshold, not over it.
	var records []map[string]any
	for i := 0; i < 20; i++ {
		records = append(records, map[string]any{
			"callsign":      "ALPHA_1",
			"falldetected":  "Yes",
			"casualtystate": "GOOD",
		})
	}
	ds := dataset.FromRecords(records)

	issues, err := businessRuleValidator{}.Validate(ds, businessRule(CheckFallCorrelation))
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("20 falls should not be flagged: %+v", issues)
	}
}

func TestBatteryDepletionDetectsJump(t *testing.T) {
	batteryRow := func(callsign string, level int, minute int) map[string]any {
		return map[string]any{
			"callsign":         callsign,
			"battery":          level,
			"processedtimegmt": fmt.Sprintf("2026-08-01T10:%02d:00Z", minute),
		}
	}
	ds := dataset.FromRecords([]map[string]any{
		batteryRow("ALPHA_1", 95, 0),
		batteryRow("ALPHA_1", 30, 1), // drops 65 points in one step
		batteryRow("BRAVO_2", 95, 0),
		batteryRow("BRAVO_2", 90, 1),
	})

	issues, err := businessRuleValidator{}.Validate(ds, businessRule(CheckBatteryDepletion))
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("Expected 1 issue, got %d", len(issues))
	}
	if issues[0].AffectedCount != 1 {
		t.Errorf("AffectedCount = %d; want 1", issues[0].AffectedCount)
	}
	if !strings.Contains(issues[0].Message, "ALPHA_1") {
		t.Errorf("Message should name ALPHA_1: %s", issues[0].Message)
	}
}

func TestNetworkConsistencyDetectsContradictions(t *testing.T) {
	netRow := func(rssi, mcs int, nexthop string) map[string]any {
		return map[string]any{"rssi": rssi, "mcs": mcs, "nexthop": nexthop}
	}
	ds := dataset.FromRecords([]map[string]any{
		netRow(5, 9, "ALPHA_2"),        // weak signal, strong MCS
		netRow(25, 6, "Unavailable"),   // healthy signal, no next hop
		netRow(25, 6, "ALPHA_2"),       // consistent
		netRow(5, 2, "ALPHA_2"),        // weak but coherent
	})

	issues, err := businessRuleValidator{}.Validate(ds, businessRule(CheckNetworkConsistency))
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("Expected 1 issue, got %d", len(issues))
	}
	if issues[0].AffectedCount != 2 {
		t.Errorf("AffectedCount = %d; want 2", issues[0].AffectedCount)
	}
}

func TestBusinessChecksSkipWithoutColumns(t *testing.T) {
	ds := dataset.FromRecords([]map[string]any{{"other": 1}})

	for _, check := range []string{
		CheckCasualtyTransitions,
		CheckFallCorrelation,
		CheckBatteryDepletion,
		CheckNetworkConsistency,
	} {
		issues, err := businessRuleValidator{}.Validate(ds, businessRule(check))
		if err != nil {
			t.Errorf("%s: unexpected error: %v", check, err)
		}
		if len(issues) != 0 {
			t.Errorf("%s: expected no issues without input columns", check)
		}
	}
}

func TestUnknownBusinessCheck(t *testing.T) {
	ds := dataset.FromRecords([]map[string]any{{"other": 1}})
	if _, err := (businessRuleValidator{}).Validate(ds, businessRule("no_such_check")); err == nil {
		t.Error("Expected error for unknown check name")
	}
}
