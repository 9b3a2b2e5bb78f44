// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package engines

import (
	"context"
	"fmt"
	"testing"

	"github.com/tacsight/tacsight/internal/dataset"
	"github.com/tacsight/tacsight/internal/models"
)

func netRow(callsign string, rssi, mcs any, nexthop, ts string) map[string]any {
	return map[string]any{
		"callsign":         callsign,
		"rssi":             rssi,
		"mcs":              mcs,
		"nexthop":          nexthop,
		"processedtimegmt": ts,
	}
}

// netRows builds n healthy rows for one unit at a 30s cadence.
func netRows(callsign string, n int, rssi, mcs int) []map[string]any {
	rows := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		ts := fmt.Sprintf("2026-08-01T10:%02d:%02dZ", i/2, (i%2)*30)
		rows = append(rows, netRow(callsign, rssi, mcs, "NODE_1", ts))
	}
	return rows
}

func TestNetworkCriticalSignalQuality(t *testing.T) {
	engine := NewNetworkEngine(nil)

	// 3 of 20 measurements below the 5 dBm critical bar = 15% > 10%.
	rows := netRows("ALPHA_1", 20, 25, 6)
	for i := 0; i < 3; i++ {
		rows[i]["rssi"] = 2
	}
	ds := dataset.FromRecords(rows)

	result := engine.Analyze(context.Background(), ds)

	if result.Status != models.AnalysisCompleted {
		t.Fatalf("Status = %v; want completed", result.Status)
	}
	if !hasAlert(result.Alerts, "CRITICAL_SIGNAL_QUALITY") {
		t.Error("Expected CRITICAL_SIGNAL_QUALITY at 15% critical measurements")
	}
	if hasAlert(result.Alerts, "POOR_SIGNAL_QUALITY") {
		t.Error("POOR_SIGNAL_QUALITY must not fire alongside the critical tier")
	}
}

func TestNetworkPoorSignalQualityWarning(t *testing.T) {
	engine := NewNetworkEngine(nil)

	// 6 of 20 measurements in the poor band [10, 20) = 30% > 25%,
	// none critical.
	rows := netRows("ALPHA_1", 20, 25, 6)
	for i := 0; i < 6; i++ {
		rows[i]["rssi"] = 12
	}
	ds := dataset.FromRecords(rows)

	result := engine.Analyze(context.Background(), ds)

	if !hasAlert(result.Alerts, "POOR_SIGNAL_QUALITY") {
		t.Error("Expected POOR_SIGNAL_QUALITY at 30% poor measurements")
	}
	if hasAlert(result.Alerts, "CRITICAL_SIGNAL_QUALITY") {
		t.Error("CRITICAL_SIGNAL_QUALITY should not fire with no critical measurements")
	}

	// The warning carries the offending percentage, not the raw RSSI.
	for _, a := range result.Alerts {
		if a.Type == "POOR_SIGNAL_QUALITY" {
			if a.MetricValue == nil || *a.MetricValue != 30 {
				t.Errorf("MetricValue = %v; want 30", a.MetricValue)
			}
		}
	}
}

func TestNetworkMCSEfficiency(t *testing.T) {
	engine := NewNetworkEngine(nil)

	// All transmissions below the minimum MCS: 0% efficiency.
	ds := dataset.FromRecords(netRows("ALPHA_1", 10, 25, 1))
	result := engine.Analyze(context.Background(), ds)

	if !hasAlert(result.Alerts, "LOW_MCS_EFFICIENCY") {
		t.Error("Expected LOW_MCS_EFFICIENCY at 0% efficiency")
	}

	mcs, ok := result.Metrics["mcs_analysis"].(map[string]any)
	if !ok {
		t.Fatal("Missing mcs_analysis metrics")
	}
	if score, _ := nestedFloat(mcs, "efficiency_statistics", "efficiency_score"); score != 0 {
		t.Errorf("efficiency_score = %v; want 0", score)
	}
}

func TestNetworkMCSOptimalRange(t *testing.T) {
	engine := NewNetworkEngine(nil)

	ds := dataset.FromRecords(netRows("ALPHA_1", 10, 25, 6))
	result := engine.Analyze(context.Background(), ds)

	if hasAlert(result.Alerts, "LOW_MCS_EFFICIENCY") || hasAlert(result.Alerts, "SUBOPTIMAL_MCS_EFFICIENCY") {
		t.Error("No MCS alerts expected when every transmission is optimal")
	}
}

func TestNetworkBlackoutDetection(t *testing.T) {
	engine := NewNetworkEngine(nil)

	// Healthy at 10:00:00, blackout (no signal, no route, no MCS) from
	// 10:00:30 until recovery at 10:02:00: one 90s blackout.
	rows := []map[string]any{
		netRow("ALPHA_1", 25, 6, "NODE_1", "2026-08-01T10:00:00Z"),
		netRow("ALPHA_1", -1, -1, "Unavailable", "2026-08-01T10:00:30Z"),
		netRow("ALPHA_1", -1, -1, "Unavailable", "2026-08-01T10:01:00Z"),
		netRow("ALPHA_1", 25, 6, "NODE_1", "2026-08-01T10:02:00Z"),
	}
	ds := dataset.FromRecords(rows)

	result := engine.Analyze(context.Background(), ds)

	blackouts, ok := result.Metrics["blackout_analysis"].(map[string]any)
	if !ok {
		t.Fatal("Missing blackout_analysis metrics")
	}
	if n, _ := nestedInt(blackouts, "blackout_summary", "total_blackouts"); n != 1 {
		t.Errorf("total_blackouts = %d; want 1", n)
	}
	if avg, _ := nestedFloat(blackouts, "blackout_summary", "average_duration"); avg != 90 {
		t.Errorf("average_duration = %v; want 90", avg)
	}
	// 90s exceeds the 60s critical bar; only the critical tier fires.
	if !hasAlert(result.Alerts, "CRITICAL_BLACKOUT_DURATION") {
		t.Error("Expected CRITICAL_BLACKOUT_DURATION for 90s blackout")
	}
	if hasAlert(result.Alerts, "LONG_BLACKOUT_DURATION") {
		t.Error("LONG_BLACKOUT_DURATION must not fire alongside the critical tier")
	}
}

func TestNetworkOngoingBlackoutClosesAtLastSample(t *testing.T) {
	engine := NewNetworkEngine(nil)

	rows := []map[string]any{
		netRow("ALPHA_1", 25, 6, "NODE_1", "2026-08-01T10:00:00Z"),
		netRow("ALPHA_1", -1, -1, "Unavailable", "2026-08-01T10:00:30Z"),
		netRow("ALPHA_1", -1, -1, "Unavailable", "2026-08-01T10:01:10Z"),
	}
	ds := dataset.FromRecords(rows)

	result := engine.Analyze(context.Background(), ds)

	blackouts := result.Metrics["blackout_analysis"].(map[string]any)
	if avg, _ := nestedFloat(blackouts, "blackout_summary", "average_duration"); avg != 40 {
		t.Errorf("average_duration = %v; want 40 (10:00:30 to 10:01:10)", avg)
	}
}

func TestNetworkSingleIndicatorIsNotBlackout(t *testing.T) {
	engine := NewNetworkEngine(nil)

	// Only the next hop drops; RSSI and MCS stay healthy.
	rows := []map[string]any{
		netRow("ALPHA_1", 25, 6, "NODE_1", "2026-08-01T10:00:00Z"),
		netRow("ALPHA_1", 25, 6, "Unavailable", "2026-08-01T10:00:30Z"),
		netRow("ALPHA_1", 25, 6, "NODE_1", "2026-08-01T10:01:00Z"),
	}
	ds := dataset.FromRecords(rows)

	result := engine.Analyze(context.Background(), ds)

	blackouts := result.Metrics["blackout_analysis"].(map[string]any)
	if n, _ := nestedInt(blackouts, "blackout_summary", "total_blackouts"); n != 0 {
		t.Errorf("total_blackouts = %d; want 0", n)
	}
}

func TestNetworkLoadBalance(t *testing.T) {
	engine := NewNetworkEngine(nil)

	// 9 reports through NODE_1 and 1 through NODE_2: mean 5, population
	// std 4, balance score 20.
	var rows []map[string]any
	for i := 0; i < 9; i++ {
		rows = append(rows, netRow("ALPHA_1", 25, 6, "NODE_1", fmt.Sprintf("2026-08-01T10:00:%02dZ", i)))
	}
	rows = append(rows, netRow("BRAVO_2", 25, 6, "NODE_2", "2026-08-01T10:00:09Z"))
	ds := dataset.FromRecords(rows)

	result := engine.Analyze(context.Background(), ds)

	hops := result.Metrics["nexthop_analysis"].(map[string]any)
	if score, _ := nestedFloat(hops, "routing_efficiency", "load_balance_score"); score != 20 {
		t.Errorf("load_balance_score = %v; want 20", score)
	}
	if !hasAlert(result.Alerts, "POOR_LOAD_DISTRIBUTION") {
		t.Error("Expected POOR_LOAD_DISTRIBUTION below 60")
	}
	if !hasAlert(result.Alerts, "SINGLE_POINT_FAILURES") {
		t.Error("Expected SINGLE_POINT_FAILURES for single-nexthop units")
	}
}

func TestNetworkThresholdUpdate(t *testing.T) {
	engine := NewNetworkEngine(nil)
	engine.Thresholds().Apply(map[string]any{
		ThresholdBlackoutCritical: 200,
		ThresholdBlackoutWarning:  20,
	})

	rows := []map[string]any{
		netRow("ALPHA_1", 25, 6, "NODE_1", "2026-08-01T10:00:00Z"),
		netRow("ALPHA_1", -1, -1, "Unavailable", "2026-08-01T10:00:30Z"),
		netRow("ALPHA_1", 25, 6, "NODE_1", "2026-08-01T10:01:00Z"),
	}
	ds := dataset.FromRecords(rows)

	result := engine.Analyze(context.Background(), ds)

	// 30s blackout: above the lowered warning bar, below the raised
	// critical bar.
	if !hasAlert(result.Alerts, "LONG_BLACKOUT_DURATION") {
		t.Error("Expected LONG_BLACKOUT_DURATION with updated thresholds")
	}
	if hasAlert(result.Alerts, "CRITICAL_BLACKOUT_DURATION") {
		t.Error("CRITICAL_BLACKOUT_DURATION should not fire below 200s")
	}
}

func TestNetworkValidateDataWithoutMetrics(t *testing.T) {
	engine := NewNetworkEngine(nil)
	ds := dataset.FromRecords([]map[string]any{
		{"callsign": "ALPHA_1", "processedtimegmt": "2026-08-01T10:00:00Z"},
	})

	quality := engine.ValidateData(ds)
	if len(quality.ValidationErrors) == 0 {
		t.Error("Expected a validation error when no network columns exist")
	}
	if quality.Completeness != 0 {
		t.Errorf("Completeness = %v; want 0", quality.Completeness)
	}
}
