// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package engines

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tacsight/tacsight/internal/dataset"
	"github.com/tacsight/tacsight/internal/models"
)

const networkSource = "NetworkPerformanceEngine"

// Network threshold names.
const (
	ThresholdRSSIExcellent     = "rssi_excellent"
	ThresholdRSSIGood          = "rssi_good"
	ThresholdRSSIPoor          = "rssi_poor"
	ThresholdRSSICritical      = "rssi_critical"
	ThresholdMCSOptimalMin     = "mcs_optimal_min"
	ThresholdMCSOptimalMax     = "mcs_optimal_max"
	ThresholdMCSMinimum        = "mcs_minimum"
	ThresholdBlackoutWarning   = "blackout_duration_warning"
	ThresholdBlackoutCritical  = "blackout_duration_critical"
	ThresholdPacketLossWarning = "packet_loss_warning"
	ThresholdPacketLossCrit    = "packet_loss_critical"
)

// nexthopUnavailable is the sentinel the radios report when no route
// exists.
const nexthopUnavailable = "Unavailable"

// reportingInterval is the nominal telemetry reporting cadence used to
// estimate expected report counts.
const reportingInterval = 30 * time.Second

// NetworkEngine analyzes signal quality, modulation efficiency, routing
// load, and communication blackouts.
type NetworkEngine struct {
	publisher  EventPublisher
	thresholds *ThresholdStore
}

// NewNetworkEngine creates the network performance engine.
func NewNetworkEngine(publisher EventPublisher) *NetworkEngine {
	return &NetworkEngine{
		publisher:  publisher,
		thresholds: NewThresholdStore(defaultNetworkThresholds()),
	}
}

func defaultNetworkThresholds() map[string]float64 {
	return map[string]float64{
		ThresholdRSSIExcellent:     30,
		ThresholdRSSIGood:          20,
		ThresholdRSSIPoor:          10,
		ThresholdRSSICritical:      5,
		ThresholdMCSOptimalMin:     5,
		ThresholdMCSOptimalMax:     7,
		ThresholdMCSMinimum:        3,
		ThresholdBlackoutWarning:   30,
		ThresholdBlackoutCritical:  60,
		ThresholdPacketLossWarning: 0.05,
		ThresholdPacketLossCrit:    0.15,
	}
}

func (e *NetworkEngine) Domain() models.AnalysisDomain { return models.DomainNetworkPerformance }

func (e *NetworkEngine) RequiredColumns() []string {
	return []string{"callsign", "processedtimegmt"}
}

func (e *NetworkEngine) OptionalColumns() []string {
	return []string{"rssi", "mcs", "nexthop", "ip", "latitude", "longitude"}
}

func (e *NetworkEngine) Thresholds() *ThresholdStore { return e.thresholds }

// ValidateData scores completeness over the network metric columns.
// Having the required columns alone is not enough: without at least one
// of rssi, mcs, nexthop, or ip there is nothing to analyze.
func (e *NetworkEngine) ValidateData(ds *dataset.Dataset) QualityMetrics {
	quality := QualityMetrics{TotalRecords: ds.Len()}
	_, quality.MissingPercent = completeness(ds, append(e.RequiredColumns(), e.OptionalColumns()...))

	if ds.HasColumn("rssi") && ds.Len() > 0 {
		valid := 0
		for i := 0; i < ds.Len(); i++ {
			if v, ok := ds.Float("rssi", i); ok && v >= 0 {
				valid++
			}
		}
		if valid*2 < ds.Len() {
			quality.ValidationErrors = append(quality.ValidationErrors, "Less than 50% valid RSSI readings")
		}
	}

	networkColumns := []string{"rssi", "mcs", "nexthop", "ip"}
	sum, n := 0.0, 0
	for _, col := range networkColumns {
		if ds.HasColumn(col) {
			sum += 100 - quality.MissingPercent[col]
			n++
		}
	}
	if n == 0 {
		quality.ValidationErrors = append(quality.ValidationErrors, "No network performance data available")
	} else {
		quality.Completeness = sum / float64(n)
	}
	return quality
}

// Analyze runs the full network performance analysis.
func (e *NetworkEngine) Analyze(ctx context.Context, ds *dataset.Dataset) *models.AnalysisResult {
	return safeAnalyze(e.Domain(), e.publisher, networkSource, func() (map[string]any, []models.Alert, []string, float64) {
		t := e.thresholds.Snapshot()
		quality := e.ValidateData(ds)

		results := map[string]any{}
		var alerts []models.Alert

		if ds.HasColumn("rssi") {
			rssiMetrics, rssiAlerts := e.analyzeRSSI(ds, t)
			results["rssi_analysis"] = rssiMetrics
			alerts = append(alerts, rssiAlerts...)
		}
		if ds.HasColumn("mcs") {
			mcsMetrics, mcsAlerts := e.analyzeMCS(ds, t)
			results["mcs_analysis"] = mcsMetrics
			alerts = append(alerts, mcsAlerts...)
		}
		if ds.HasColumn("nexthop") {
			hopMetrics, hopAlerts := e.analyzeNextHops(ds)
			results["nexthop_analysis"] = hopMetrics
			alerts = append(alerts, hopAlerts...)
		}

		blackoutMetrics, blackoutAlerts := e.analyzeBlackouts(ds, t)
		results["blackout_analysis"] = blackoutMetrics
		alerts = append(alerts, blackoutAlerts...)

		if ds.HasColumn("rssi") || ds.HasColumn("mcs") {
			txMetrics, txAlerts := e.analyzeTransmissionQuality(ds, t)
			results["transmission_analysis"] = txMetrics
			alerts = append(alerts, txAlerts...)
		}

		recommendations := e.recommendations(results)
		e.addOverallMetrics(results, ds)

		return results, alerts, recommendations, quality.Completeness
	})
}

// validRSSI collects non-negative RSSI readings; negative values are the
// no-signal sentinel.
func validRSSI(ds *dataset.Dataset, from, to int) []float64 {
	var out []float64
	for i := from; i < to; i++ {
		if v, ok := ds.Float("rssi", i); ok && v >= 0 {
			out = append(out, v)
		}
	}
	return out
}

func (e *NetworkEngine) analyzeRSSI(ds *dataset.Dataset, t map[string]float64) (map[string]any, []models.Alert) {
	rssi := validRSSI(ds, 0, ds.Len())
	if len(rssi) == 0 {
		return map[string]any{}, nil
	}

	mean, min, max := summarize(rssi)
	metrics := map[string]any{
		"overall_statistics": map[string]any{
			"mean_rssi":          mean,
			"min_rssi":           min,
			"max_rssi":           max,
			"total_measurements": len(rssi),
		},
	}

	// Tier classification.
	var excellent, good, poor, critical int
	for _, v := range rssi {
		switch {
		case v >= t[ThresholdRSSIExcellent]:
			excellent++
		case v >= t[ThresholdRSSIGood]:
			good++
		case v >= t[ThresholdRSSIPoor]:
			poor++
		default:
			critical++
		}
	}
	total := float64(len(rssi))
	poorPct := float64(poor) / total * 100
	criticalPct := float64(critical) / total * 100
	metrics["signal_quality_distribution"] = map[string]any{
		"excellent":            excellent,
		"good":                 good,
		"poor":                 poor,
		"critical":             critical,
		"excellent_percentage": float64(excellent) / total * 100,
		"poor_percentage":      poorPct,
		"critical_percentage":  criticalPct,
	}

	// Per-unit performance.
	unitPerformance := map[string]any{}
	var poorSignalUnits []string
	for callsign, unit := range ds.GroupBy("callsign") {
		unitRSSI := validRSSI(unit, 0, unit.Len())
		if len(unitRSSI) == 0 {
			continue
		}
		unitMean, unitMin, unitMax := summarize(unitRSSI)
		unitPoor, unitCritical := 0, 0
		for _, v := range unitRSSI {
			if v < t[ThresholdRSSIPoor] {
				unitPoor++
			}
			if v < t[ThresholdRSSICritical] {
				unitCritical++
			}
		}
		criticalSignalPct := float64(unitCritical) / float64(len(unitRSSI)) * 100
		unitPerformance[callsign] = map[string]any{
			"mean_rssi":                  unitMean,
			"min_rssi":                   unitMin,
			"max_rssi":                   unitMax,
			"measurements":               len(unitRSSI),
			"poor_signal_percentage":     float64(unitPoor) / float64(len(unitRSSI)) * 100,
			"critical_signal_percentage": criticalSignalPct,
		}
		if criticalSignalPct > 20 {
			poorSignalUnits = append(poorSignalUnits, callsign)
		}
	}
	metrics["unit_performance"] = unitPerformance

	var alerts []models.Alert
	switch {
	case criticalPct > 10:
		alerts = append(alerts, models.Alert{
			Type:        "CRITICAL_SIGNAL_QUALITY",
			Level:       models.AlertCritical,
			Message:     fmt.Sprintf("Critical signal quality: %.1f%% of measurements below %.0f dBm", criticalPct, t[ThresholdRSSICritical]),
			MetricValue: models.Float(criticalPct),
			Threshold:   models.Float(10),
		})
	case poorPct > 25:
		alerts = append(alerts, models.Alert{
			Type:        "POOR_SIGNAL_QUALITY",
			Level:       models.AlertWarning,
			Message:     fmt.Sprintf("Poor signal quality: %.1f%% of measurements below %.0f dBm", poorPct, t[ThresholdRSSIPoor]),
			MetricValue: models.Float(poorPct),
			Threshold:   models.Float(25),
		})
	}
	if len(poorSignalUnits) > 0 {
		sort.Strings(poorSignalUnits)
		alerts = append(alerts, models.Alert{
			Type:          "UNITS_WITH_POOR_SIGNAL",
			Level:         models.AlertWarning,
			Message:       "Units with consistently poor signal: " + strings.Join(poorSignalUnits, ", "),
			AffectedUnits: poorSignalUnits,
		})
	}
	return metrics, alerts
}

func (e *NetworkEngine) analyzeMCS(ds *dataset.Dataset, t map[string]float64) (map[string]any, []models.Alert) {
	var mcs []float64
	for i := 0; i < ds.Len(); i++ {
		if v, ok := ds.Float("mcs", i); ok && v >= 0 {
			mcs = append(mcs, v)
		}
	}
	if len(mcs) == 0 {
		return map[string]any{}, nil
	}

	optimal, suboptimal := 0, 0
	distribution := map[string]int{}
	for _, v := range mcs {
		if v >= t[ThresholdMCSOptimalMin] && v <= t[ThresholdMCSOptimalMax] {
			optimal++
		}
		if v < t[ThresholdMCSMinimum] {
			suboptimal++
		}
		distribution[fmt.Sprintf("%.0f", v)]++
	}
	mean, _, _ := summarize(mcs)
	efficiency := float64(optimal) / float64(len(mcs)) * 100

	metrics := map[string]any{
		"efficiency_statistics": map[string]any{
			"mean_mcs":               mean,
			"efficiency_score":       efficiency,
			"suboptimal_percentage":  float64(suboptimal) / float64(len(mcs)) * 100,
			"total_measurements":     len(mcs),
			"optimal_range_low":      t[ThresholdMCSOptimalMin],
			"optimal_range_high":     t[ThresholdMCSOptimalMax],
		},
		"mcs_distribution": distribution,
	}

	// Per-unit efficiency.
	unitEfficiency := map[string]any{}
	var lowEfficiencyUnits []string
	for callsign, unit := range ds.GroupBy("callsign") {
		var unitMCS []float64
		for i := 0; i < unit.Len(); i++ {
			if v, ok := unit.Float("mcs", i); ok && v >= 0 {
				unitMCS = append(unitMCS, v)
			}
		}
		if len(unitMCS) == 0 {
			continue
		}
		unitOptimal := 0
		for _, v := range unitMCS {
			if v >= t[ThresholdMCSOptimalMin] && v <= t[ThresholdMCSOptimalMax] {
				unitOptimal++
			}
		}
		unitMean, _, _ := summarize(unitMCS)
		pct := float64(unitOptimal) / float64(len(unitMCS)) * 100
		unitEfficiency[callsign] = map[string]any{
			"mean_mcs":              unitMean,
			"efficiency_percentage": pct,
			"measurements":          len(unitMCS),
		}
		if pct < 40 {
			lowEfficiencyUnits = append(lowEfficiencyUnits, callsign)
		}
	}
	metrics["unit_efficiency"] = unitEfficiency

	var alerts []models.Alert
	switch {
	case efficiency < 50:
		alerts = append(alerts, models.Alert{
			Type:        "LOW_MCS_EFFICIENCY",
			Level:       models.AlertCritical,
			Message:     fmt.Sprintf("Low MCS efficiency: %.1f%% of transmissions in optimal range", efficiency),
			MetricValue: models.Float(efficiency),
			Threshold:   models.Float(50),
		})
	case efficiency < 70:
		alerts = append(alerts, models.Alert{
			Type:        "SUBOPTIMAL_MCS_EFFICIENCY",
			Level:       models.AlertWarning,
			Message:     fmt.Sprintf("Suboptimal MCS efficiency: %.1f%% of transmissions in optimal range", efficiency),
			MetricValue: models.Float(efficiency),
			Threshold:   models.Float(70),
		})
	}
	if len(lowEfficiencyUnits) > 0 {
		sort.Strings(lowEfficiencyUnits)
		alerts = append(alerts, models.Alert{
			Type:          "UNITS_LOW_MCS_EFFICIENCY",
			Level:         models.AlertWarning,
			Message:       "Units with low MCS efficiency: " + strings.Join(lowEfficiencyUnits, ", "),
			AffectedUnits: lowEfficiencyUnits,
		})
	}
	return metrics, alerts
}

func (e *NetworkEngine) analyzeNextHops(ds *dataset.Dataset) (map[string]any, []models.Alert) {
	hopCounts := map[string]int{}
	for i := 0; i < ds.Len(); i++ {
		if v, ok := ds.String("nexthop", i); ok && v != nexthopUnavailable {
			hopCounts[v]++
		}
	}
	if len(hopCounts) == 0 {
		return map[string]any{}, nil
	}

	metrics := map[string]any{"nexthop_usage": hopCounts}

	// Redundancy per unit: how many distinct next hops each unit used.
	redundancy := map[string]any{}
	singlePointFailures := 0
	for callsign, unit := range ds.GroupBy("callsign") {
		hops := map[string]struct{}{}
		for i := 0; i < unit.Len(); i++ {
			if v, ok := unit.String("nexthop", i); ok && v != nexthopUnavailable {
				hops[v] = struct{}{}
			}
		}
		if len(hops) == 0 {
			continue
		}
		level := "Low"
		switch {
		case len(hops) > 2:
			level = "High"
		case len(hops) == 2:
			level = "Medium"
		}
		if level == "Low" {
			singlePointFailures++
		}
		redundancy[callsign] = map[string]any{
			"nexthop_count":    len(hops),
			"redundancy_level": level,
		}
	}
	metrics["redundancy_assessment"] = redundancy

	// Load balance: coefficient of variation across next hops inverted
	// into a 0-100 score.
	counts := make([]float64, 0, len(hopCounts))
	for _, c := range hopCounts {
		counts = append(counts, float64(c))
	}
	mean, _, _ := summarize(counts)
	variance := 0.0
	for _, c := range counts {
		variance += (c - mean) * (c - mean)
	}
	std := math.Sqrt(variance / float64(len(counts)))
	loadBalance := 100.0
	if mean > 0 {
		loadBalance = 100 - std/mean*100
	}
	loadBalance = math.Max(0, math.Min(100, loadBalance))

	metrics["routing_efficiency"] = map[string]any{
		"total_nexthops":        len(hopCounts),
		"load_balance_score":    loadBalance,
		"single_point_failures": singlePointFailures,
	}

	var alerts []models.Alert
	if loadBalance < 60 {
		alerts = append(alerts, models.Alert{
			Type:        "POOR_LOAD_DISTRIBUTION",
			Level:       models.AlertWarning,
			Message:     fmt.Sprintf("Poor nexthop load distribution: %.1f%% balance score", loadBalance),
			MetricValue: models.Float(loadBalance),
			Threshold:   models.Float(60),
		})
	}
	if singlePointFailures > 0 {
		alerts = append(alerts, models.Alert{
			Type:        "SINGLE_POINT_FAILURES",
			Level:       models.AlertWarning,
			Message:     fmt.Sprintf("%d units have single nexthop dependency", singlePointFailures),
			MetricValue: models.Float(float64(singlePointFailures)),
		})
	}
	return metrics, alerts
}

// isBlackout reports whether a row represents a communication blackout:
// at least two of the three link indicators are missing or degraded.
func isBlackout(ds *dataset.Dataset, row int) bool {
	indicators := 0

	if ds.HasColumn("rssi") {
		if v, ok := ds.Float("rssi", row); !ok || v < 0 {
			indicators++
		}
	}
	if ds.HasColumn("nexthop") {
		if v, ok := ds.String("nexthop", row); !ok || v == nexthopUnavailable {
			indicators++
		}
	}
	if ds.HasColumn("mcs") {
		if v, ok := ds.Float("mcs", row); !ok || v < 0 {
			indicators++
		}
	}
	return indicators >= 2
}

func (e *NetworkEngine) analyzeBlackouts(ds *dataset.Dataset, t map[string]float64) (map[string]any, []models.Alert) {
	unitBlackouts := map[string]any{}
	var unitsAffected []string
	totalBlackouts := 0
	totalDuration := 0.0

	for callsign, unit := range ds.GroupBy("callsign") {
		sorted := unit.SortByTime("processedtimegmt")

		var durations []float64
		inBlackout := false
		var blackoutStart time.Time
		var lastTime time.Time
		haveLast := false

		for i := 0; i < sorted.Len(); i++ {
			ts, ok := sorted.Time("processedtimegmt", i)
			if !ok {
				continue
			}
			lastTime, haveLast = ts, true

			blackout := isBlackout(sorted, i)
			switch {
			case blackout && !inBlackout:
				blackoutStart = ts
				inBlackout = true
			case !blackout && inBlackout:
				durations = append(durations, ts.Sub(blackoutStart).Seconds())
				inBlackout = false
			}
		}
		// Ongoing blackout at the end of the data closes at the last
		// observed timestamp.
		if inBlackout && haveLast {
			durations = append(durations, lastTime.Sub(blackoutStart).Seconds())
		}

		if len(durations) == 0 {
			continue
		}
		unitsAffected = append(unitsAffected, callsign)
		totalBlackouts += len(durations)
		unitTotal := 0.0
		unitMax := 0.0
		for _, d := range durations {
			unitTotal += d
			if d > unitMax {
				unitMax = d
			}
		}
		totalDuration += unitTotal
		unitBlackouts[callsign] = map[string]any{
			"blackout_count":   len(durations),
			"total_duration":   unitTotal,
			"average_duration": unitTotal / float64(len(durations)),
			"max_duration":     unitMax,
		}
	}
	sort.Strings(unitsAffected)

	avgDuration := 0.0
	if totalBlackouts > 0 {
		avgDuration = totalDuration / float64(totalBlackouts)
	}
	totalUnits := countUnits(ds)
	impact := 0.0
	if totalUnits > 0 {
		impact = float64(len(unitsAffected)) / float64(totalUnits) * 100
	}

	metrics := map[string]any{
		"blackout_summary": map[string]any{
			"total_blackouts":     totalBlackouts,
			"units_affected":      len(unitsAffected),
			"total_duration":      totalDuration,
			"average_duration":    avgDuration,
			"units_affected_list": unitsAffected,
		},
		"unit_blackouts": unitBlackouts,
		"impact_assessment": map[string]any{
			"percentage_units_affected": impact,
			"network_availability":      100 - impact,
			"average_blackout_duration": avgDuration,
			"severity_classification":   classifyBlackoutSeverity(impact, avgDuration),
		},
	}

	var alerts []models.Alert
	switch {
	case avgDuration > t[ThresholdBlackoutCritical]:
		alerts = append(alerts, models.Alert{
			Type:        "CRITICAL_BLACKOUT_DURATION",
			Level:       models.AlertCritical,
			Message:     fmt.Sprintf("Critical blackout duration: %.1fs average", avgDuration),
			MetricValue: models.Float(avgDuration),
			Threshold:   models.Float(t[ThresholdBlackoutCritical]),
		})
	case avgDuration > t[ThresholdBlackoutWarning]:
		alerts = append(alerts, models.Alert{
			Type:        "LONG_BLACKOUT_DURATION",
			Level:       models.AlertWarning,
			Message:     fmt.Sprintf("Long blackout duration: %.1fs average", avgDuration),
			MetricValue: models.Float(avgDuration),
			Threshold:   models.Float(t[ThresholdBlackoutWarning]),
		})
	}
	if impact > 25 {
		alerts = append(alerts, models.Alert{
			Type:          "WIDESPREAD_BLACKOUTS",
			Level:         models.AlertCritical,
			Message:       fmt.Sprintf("Widespread communication blackouts: %.1f%% of units affected", impact),
			AffectedUnits: unitsAffected,
			MetricValue:   models.Float(impact),
			Threshold:     models.Float(25),
		})
	}
	return metrics, alerts
}

func classifyBlackoutSeverity(impactPct, avgDuration float64) string {
	switch {
	case impactPct > 50 || avgDuration > 120:
		return "CRITICAL"
	case impactPct > 25 || avgDuration > 60:
		return "HIGH"
	case impactPct > 10 || avgDuration > 30:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

func (e *NetworkEngine) analyzeTransmissionQuality(ds *dataset.Dataset, t map[string]float64) (map[string]any, []models.Alert) {
	// Packet loss estimated from the gap between expected and actual
	// report counts at the nominal reporting cadence.
	expected := e.estimateExpectedReports(ds)
	packetLoss := 0.0
	if expected > 0 && expected > ds.Len() {
		packetLoss = float64(expected-ds.Len()) / float64(expected)
	}

	// Per-row quality score from RSSI and MCS tiers.
	var scores []float64
	for i := 0; i < ds.Len(); i++ {
		score := 100.0
		if v, ok := ds.Float("rssi", i); ok && v >= 0 {
			switch {
			case v < t[ThresholdRSSIPoor]:
				score -= 40
			case v < t[ThresholdRSSIGood]:
				score -= 20
			}
		}
		if v, ok := ds.Float("mcs", i); ok && v >= 0 {
			switch {
			case v < t[ThresholdMCSMinimum]:
				score -= 30
			case v < t[ThresholdMCSOptimalMin]:
				score -= 15
			}
		}
		scores = append(scores, math.Max(0, score))
	}
	avgQuality := 0.0
	if len(scores) > 0 {
		avgQuality, _, _ = summarize(scores)
	}

	metrics := map[string]any{
		"quality_metrics": map[string]any{
			"average_quality_score":    avgQuality,
			"estimated_packet_loss":    packetLoss * 100,
			"transmission_reliability": 100 - packetLoss*100,
		},
	}

	var alerts []models.Alert
	switch {
	case packetLoss > t[ThresholdPacketLossCrit]:
		alerts = append(alerts, models.Alert{
			Type:        "CRITICAL_PACKET_LOSS",
			Level:       models.AlertCritical,
			Message:     fmt.Sprintf("Critical packet loss detected: %.1f%%", packetLoss*100),
			MetricValue: models.Float(packetLoss * 100),
			Threshold:   models.Float(t[ThresholdPacketLossCrit] * 100),
		})
	case packetLoss > t[ThresholdPacketLossWarning]:
		alerts = append(alerts, models.Alert{
			Type:        "HIGH_PACKET_LOSS",
			Level:       models.AlertWarning,
			Message:     fmt.Sprintf("High packet loss detected: %.1f%%", packetLoss*100),
			MetricValue: models.Float(packetLoss * 100),
			Threshold:   models.Float(t[ThresholdPacketLossWarning] * 100),
		})
	}
	if avgQuality < 60 {
		alerts = append(alerts, models.Alert{
			Type:        "POOR_TRANSMISSION_QUALITY",
			Level:       models.AlertWarning,
			Message:     fmt.Sprintf("Poor transmission quality: %.1f%% average score", avgQuality),
			MetricValue: models.Float(avgQuality),
			Threshold:   models.Float(60),
		})
	}
	return metrics, alerts
}

func (e *NetworkEngine) estimateExpectedReports(ds *dataset.Dataset) int {
	if !ds.HasColumn("processedtimegmt") {
		return ds.Len()
	}
	var first, last time.Time
	have := false
	for i := 0; i < ds.Len(); i++ {
		ts, ok := ds.Time("processedtimegmt", i)
		if !ok {
			continue
		}
		if !have {
			first, last, have = ts, ts, true
			continue
		}
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	if !have {
		return ds.Len()
	}
	span := last.Sub(first)
	return int(span.Seconds()/reportingInterval.Seconds()) * countUnits(ds)
}

func (e *NetworkEngine) recommendations(results map[string]any) []string {
	var recommendations []string

	if rssi, ok := results["rssi_analysis"].(map[string]any); ok {
		if pct, ok := nestedFloat(rssi, "signal_quality_distribution", "critical_percentage"); ok && pct > 10 {
			recommendations = append(recommendations,
				"CRITICAL: Investigate and resolve signal quality issues - over 10% of measurements are critical")
		}
	}
	if mcs, ok := results["mcs_analysis"].(map[string]any); ok {
		if score, ok := nestedFloat(mcs, "efficiency_statistics", "efficiency_score"); ok && score < 60 {
			recommendations = append(recommendations,
				"Optimize MCS settings and review adaptive modulation algorithms")
		}
	}
	if hops, ok := results["nexthop_analysis"].(map[string]any); ok {
		if score, ok := nestedFloat(hops, "routing_efficiency", "load_balance_score"); ok && score < 60 {
			recommendations = append(recommendations,
				"Rebalance nexthop load distribution to improve network efficiency")
		}
	}
	if blackouts, ok := results["blackout_analysis"].(map[string]any); ok {
		if n, ok := nestedInt(blackouts, "blackout_summary", "total_blackouts"); ok && n > 0 {
			recommendations = append(recommendations,
				"Implement redundant communication pathways to prevent blackouts")
		}
	}

	if len(recommendations) == 0 {
		recommendations = append(recommendations,
			"Network performance within acceptable parameters - continue monitoring")
	}
	return recommendations
}

func (e *NetworkEngine) addOverallMetrics(results map[string]any, ds *dataset.Dataset) {
	results["total_units"] = countUnits(ds)
	results["analysis_timestamp"] = time.Now().UTC().Format(time.RFC3339)

	var healthComponents []float64
	if rssi, ok := results["rssi_analysis"].(map[string]any); ok {
		if pct, ok := nestedFloat(rssi, "signal_quality_distribution", "critical_percentage"); ok {
			score := 100 - pct
			results["signal_quality_score"] = score
			healthComponents = append(healthComponents, score)
		}
		if mean, ok := nestedFloat(rssi, "overall_statistics", "mean_rssi"); ok {
			results["average_rssi"] = mean
		}
	}
	if mcs, ok := results["mcs_analysis"].(map[string]any); ok {
		if score, ok := nestedFloat(mcs, "efficiency_statistics", "efficiency_score"); ok {
			results["mcs_efficiency_score"] = score
			healthComponents = append(healthComponents, score)
		}
	}
	if blackouts, ok := results["blackout_analysis"].(map[string]any); ok {
		if availability, ok := nestedFloat(blackouts, "impact_assessment", "network_availability"); ok {
			results["network_availability"] = availability
			healthComponents = append(healthComponents, availability)
		}
	}

	health := 0.0
	if len(healthComponents) > 0 {
		health, _, _ = summarize(healthComponents)
	}
	results["overall_network_health"] = health
}
