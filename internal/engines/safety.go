// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package engines

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tacsight/tacsight/internal/dataset"
	"github.com/tacsight/tacsight/internal/models"
)

const safetySource = "SoldierSafetyEngine"

// Safety threshold names.
const (
	ThresholdHighFallRisk     = "high_fall_risk_threshold"
	ThresholdCriticalFallRisk = "critical_fall_risk_threshold"
	ThresholdHeatStress       = "heat_stress_threshold"
	ThresholdScoreCritical    = "safety_score_critical"
	ThresholdScoreWarning     = "safety_score_warning"
	ThresholdCasualtyWarning  = "casualty_rate_warning"
	ThresholdCasualtyCritical = "casualty_rate_critical"
	ThresholdSurvivalMinimum  = "survival_time_minimum"
)

// SafetyEngine analyzes fall events, casualty state transitions, and
// per-unit safety scores.
type SafetyEngine struct {
	publisher  EventPublisher
	thresholds *ThresholdStore
}

// NewSafetyEngine creates the soldier safety engine.
func NewSafetyEngine(publisher EventPublisher) *SafetyEngine {
	return &SafetyEngine{
		publisher:  publisher,
		thresholds: NewThresholdStore(defaultSafetyThresholds()),
	}
}

func defaultSafetyThresholds() map[string]float64 {
	return map[string]float64{
		ThresholdHighFallRisk:     5,
		ThresholdCriticalFallRisk: 10,
		ThresholdHeatStress:       35,
		ThresholdScoreCritical:    50,
		ThresholdScoreWarning:     70,
		ThresholdCasualtyWarning:  0.15,
		ThresholdCasualtyCritical: 0.25,
		ThresholdSurvivalMinimum:  60,
	}
}

func (e *SafetyEngine) Domain() models.AnalysisDomain { return models.DomainSoldierSafety }

func (e *SafetyEngine) RequiredColumns() []string {
	return []string{"callsign", "falldetected", "casualtystate", "processedtimegmt"}
}

func (e *SafetyEngine) OptionalColumns() []string {
	return []string{"temp", "latitude", "longitude", "posture", "battery", "squad"}
}

func (e *SafetyEngine) Thresholds() *ThresholdStore { return e.thresholds }

// ValidateData reports completeness over the required columns and flags
// out-of-vocabulary fall and casualty values.
func (e *SafetyEngine) ValidateData(ds *dataset.Dataset) QualityMetrics {
	quality := QualityMetrics{TotalRecords: ds.Len()}
	quality.Completeness, quality.MissingPercent = completeness(ds, e.RequiredColumns())

	for _, col := range e.RequiredColumns() {
		if !ds.HasColumn(col) {
			quality.ValidationErrors = append(quality.ValidationErrors,
				fmt.Sprintf("Required column '%s' is missing", col))
		}
	}

	if ds.HasColumn("falldetected") {
		for i := 0; i < ds.Len(); i++ {
			if v, ok := ds.String("falldetected", i); ok && v != "Yes" && v != "No" {
				quality.ValidationErrors = append(quality.ValidationErrors, "Invalid fall detection values found")
				break
			}
		}
	}
	if ds.HasColumn("casualtystate") {
		for i := 0; i < ds.Len(); i++ {
			if v, ok := ds.String("casualtystate", i); ok && !validCasualtyState(v) {
				quality.ValidationErrors = append(quality.ValidationErrors, "Invalid casualty states found")
				break
			}
		}
	}
	return quality
}

func validCasualtyState(s string) bool {
	switch s {
	case "GOOD", "KILLED", "FALL ALERT", "RESURRECTED":
		return true
	}
	return false
}

// Analyze runs the full safety analysis.
func (e *SafetyEngine) Analyze(ctx context.Context, ds *dataset.Dataset) *models.AnalysisResult {
	return safeAnalyze(e.Domain(), e.publisher, safetySource, func() (map[string]any, []models.Alert, []string, float64) {
		t := e.thresholds.Snapshot()
		quality := e.ValidateData(ds)

		var alerts []models.Alert

		fallMetrics, fallAlerts := e.analyzeFalls(ds, t)
		alerts = append(alerts, fallAlerts...)

		casualtyMetrics, casualtyRate, casualtyAlerts := e.analyzeCasualties(ds, t)
		alerts = append(alerts, casualtyAlerts...)

		scoreMetrics, unitScores, scoreAlerts := e.calculateSafetyScores(ds, t)
		alerts = append(alerts, scoreAlerts...)

		results := map[string]any{
			"fall_analysis":     fallMetrics,
			"casualty_analysis": casualtyMetrics,
			"safety_scores":     scoreMetrics,
		}
		if ds.HasColumn("temp") {
			envMetrics, envAlerts := e.analyzeEnvironmental(ds, t)
			results["environmental_analysis"] = envMetrics
			alerts = append(alerts, envAlerts...)
		}

		recommendations := e.recommendations(results)

		overallScore := 0.0
		if len(unitScores) > 0 {
			for _, s := range unitScores {
				overallScore += s
			}
			overallScore /= float64(len(unitScores))
		}
		highRisk := 0
		for _, s := range unitScores {
			if s < t[ThresholdScoreWarning] {
				highRisk++
			}
		}

		results["total_units"] = countUnits(ds)
		results["total_falls"] = fallMetrics["total_falls"]
		results["casualty_rate"] = casualtyRate
		results["overall_safety_score"] = overallScore
		results["high_risk_units"] = highRisk
		results["analysis_timestamp"] = time.Now().UTC().Format(time.RFC3339)

		return results, alerts, recommendations, quality.Completeness
	})
}

func (e *SafetyEngine) analyzeFalls(ds *dataset.Dataset, t map[string]float64) (map[string]any, []models.Alert) {
	fallsByUnit := map[string]int{}
	totalFalls := 0
	if ds.HasColumn("falldetected") && ds.HasColumn("callsign") {
		for i := 0; i < ds.Len(); i++ {
			if v, ok := ds.String("falldetected", i); ok && v == "Yes" {
				callsign, _ := ds.String("callsign", i)
				fallsByUnit[callsign]++
				totalFalls++
			}
		}
	}

	fallRate := 0.0
	if ds.Len() > 0 {
		fallRate = float64(totalFalls) / float64(ds.Len()) * 100
	}

	metrics := map[string]any{
		"total_falls":      totalFalls,
		"units_with_falls": len(fallsByUnit),
		"fall_rate":        fallRate,
		"falls_by_unit":    fallsByUnit,
	}

	// Fall to casualty correlation per unit with falls.
	correlation := map[string]any{}
	for callsign, unit := range ds.GroupBy("callsign") {
		falls := fallsByUnit[callsign]
		if falls == 0 {
			continue
		}
		casualties := 0
		for i := 0; i < unit.Len(); i++ {
			if v, ok := unit.String("casualtystate", i); ok && (v == "KILLED" || v == "FALL ALERT") {
				casualties++
			}
		}
		correlation[callsign] = map[string]any{
			"falls":             falls,
			"casualties":        casualties,
			"correlation_ratio": float64(casualties) / float64(falls),
		}
	}
	metrics["fall_casualty_correlation"] = correlation

	var alerts []models.Alert
	highRisk, highMax := unitsAtOrAbove(fallsByUnit, t[ThresholdHighFallRisk])
	criticalRisk, criticalMax := unitsAtOrAbove(fallsByUnit, t[ThresholdCriticalFallRisk])

	// Critical first; the tiers are mutually exclusive.
	switch {
	case len(criticalRisk) > 0:
		alerts = append(alerts, models.Alert{
			Type:          "CRITICAL_FALL_RISK",
			Level:         models.AlertCritical,
			Message:       "Critical fall risk detected for units: " + strings.Join(criticalRisk, ", "),
			AffectedUnits: criticalRisk,
			MetricValue:   models.Float(criticalMax),
			Threshold:     models.Float(t[ThresholdCriticalFallRisk]),
		})
	case len(highRisk) > 0:
		alerts = append(alerts, models.Alert{
			Type:          "HIGH_FALL_RISK",
			Level:         models.AlertWarning,
			Message:       "High fall risk detected for units: " + strings.Join(highRisk, ", "),
			AffectedUnits: highRisk,
			MetricValue:   models.Float(highMax),
			Threshold:     models.Float(t[ThresholdHighFallRisk]),
		})
	}
	return metrics, alerts
}

// unitsAtOrAbove returns the units whose count meets the threshold,
// sorted by callsign, plus the highest matching count.
func unitsAtOrAbove(counts map[string]int, threshold float64) ([]string, float64) {
	var units []string
	max := 0.0
	for unit, count := range counts {
		if float64(count) >= threshold {
			units = append(units, unit)
			if float64(count) > max {
				max = float64(count)
			}
		}
	}
	sort.Strings(units)
	return units, max
}

func (e *SafetyEngine) analyzeCasualties(ds *dataset.Dataset, t map[string]float64) (map[string]any, float64, []models.Alert) {
	metrics := map[string]any{
		"status_distribution": map[string]int{},
		"survival_times":      map[string]any{},
		"casualty_rate":       0.0,
		"resurrection_rate":   0.0,
	}
	if !ds.HasColumn("casualtystate") {
		return metrics, 0, nil
	}

	distribution := map[string]int{}
	for i := 0; i < ds.Len(); i++ {
		if v, ok := ds.String("casualtystate", i); ok {
			distribution[v]++
		}
	}
	metrics["status_distribution"] = distribution

	casualtyRate := 0.0
	if ds.Len() > 0 {
		casualtyRate = float64(distribution["KILLED"]) / float64(ds.Len())
	}
	killedFloor := distribution["KILLED"]
	if killedFloor < 1 {
		killedFloor = 1
	}
	metrics["casualty_rate"] = casualtyRate
	metrics["resurrection_rate"] = float64(distribution["RESURRECTED"]) / float64(killedFloor)

	// Survival time per unit: duration of each GOOD period that ends in
	// KILLED, evaluated in timestamp order.
	survivalTimes := map[string]any{}
	var unitMeans []float64
	for callsign, unit := range ds.GroupBy("callsign") {
		sorted := unit.SortByTime("processedtimegmt")
		var periods []float64

		prevState := ""
		var stateStart time.Time
		haveStart := false
		for i := 0; i < sorted.Len(); i++ {
			state, ok := sorted.String("casualtystate", i)
			if !ok {
				continue
			}
			ts, tsOK := sorted.Time("processedtimegmt", i)
			if state != prevState {
				if prevState == "GOOD" && state == "KILLED" && haveStart && tsOK {
					periods = append(periods, ts.Sub(stateStart).Seconds())
				}
				prevState = state
				if tsOK {
					stateStart = ts
					haveStart = true
				} else {
					haveStart = false
				}
			}
		}

		if len(periods) > 0 {
			mean, min, max := summarize(periods)
			survivalTimes[callsign] = map[string]any{
				"mean":  mean,
				"min":   min,
				"max":   max,
				"count": len(periods),
			}
			unitMeans = append(unitMeans, mean)
		}
	}
	metrics["survival_times"] = survivalTimes

	var alerts []models.Alert
	switch {
	case casualtyRate >= t[ThresholdCasualtyCritical]:
		alerts = append(alerts, models.Alert{
			Type:        "CRITICAL_CASUALTY_RATE",
			Level:       models.AlertCritical,
			Message:     fmt.Sprintf("Critical casualty rate: %.1f%%", casualtyRate*100),
			MetricValue: models.Float(casualtyRate),
			Threshold:   models.Float(t[ThresholdCasualtyCritical]),
		})
	case casualtyRate >= t[ThresholdCasualtyWarning]:
		alerts = append(alerts, models.Alert{
			Type:        "HIGH_CASUALTY_RATE",
			Level:       models.AlertWarning,
			Message:     fmt.Sprintf("High casualty rate: %.1f%%", casualtyRate*100),
			MetricValue: models.Float(casualtyRate),
			Threshold:   models.Float(t[ThresholdCasualtyWarning]),
		})
	}

	if len(unitMeans) > 0 {
		overall, _, _ := summarize(unitMeans)
		if overall < t[ThresholdSurvivalMinimum] {
			alerts = append(alerts, models.Alert{
				Type:        "LOW_SURVIVAL_TIME",
				Level:       models.AlertWarning,
				Message:     fmt.Sprintf("Low average survival time: %.1fs", overall),
				MetricValue: models.Float(overall),
				Threshold:   models.Float(t[ThresholdSurvivalMinimum]),
			})
		}
	}
	return metrics, casualtyRate, alerts
}

func summarize(vals []float64) (mean, min, max float64) {
	min, max = vals[0], vals[0]
	for _, v := range vals {
		mean += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean /= float64(len(vals))
	return mean, min, max
}

func (e *SafetyEngine) calculateSafetyScores(ds *dataset.Dataset, t map[string]float64) (map[string]any, map[string]float64, []models.Alert) {
	unitScores := map[string]float64{}

	for callsign, unit := range ds.GroupBy("callsign") {
		score := 100.0

		if unit.HasColumn("falldetected") {
			falls := 0.0
			for i := 0; i < unit.Len(); i++ {
				if v, ok := unit.String("falldetected", i); ok && v == "Yes" {
					falls++
				}
			}
			score -= minFloat(falls*5, 30)
		}

		if unit.HasColumn("casualtystate") {
			casualties := 0.0
			for i := 0; i < unit.Len(); i++ {
				if v, ok := unit.String("casualtystate", i); ok && (v == "KILLED" || v == "FALL ALERT") {
					casualties++
				}
			}
			score -= minFloat(casualties*10, 40)
		}

		// Sentinel readings (-1 temps, negative battery) mark missing sensors.
		if mean, ok := validMean(unit, "temp", func(v float64) bool { return v > -1 }); ok && mean > t[ThresholdHeatStress] {
			score -= 15
		}
		if mean, ok := validMean(unit, "battery", func(v float64) bool { return v >= 0 }); ok && mean < 20 {
			score -= 10
		}

		if score < 0 {
			score = 0
		}
		unitScores[callsign] = score
	}

	metrics := map[string]any{
		"unit_scores":   unitScores,
		"overall_score": 0.0,
	}
	var alerts []models.Alert
	if len(unitScores) == 0 {
		return metrics, unitScores, alerts
	}

	overall := 0.0
	distribution := map[string]int{
		"Excellent (90-100)": 0,
		"Good (70-89)":       0,
		"Fair (50-69)":       0,
		"Poor (0-49)":        0,
	}
	var criticalUnits, warningUnits []string
	for unit, score := range unitScores {
		overall += score
		switch {
		case score >= 90:
			distribution["Excellent (90-100)"]++
		case score >= 70:
			distribution["Good (70-89)"]++
		case score >= 50:
			distribution["Fair (50-69)"]++
		default:
			distribution["Poor (0-49)"]++
		}
		switch {
		case score <= t[ThresholdScoreCritical]:
			criticalUnits = append(criticalUnits, unit)
		case score <= t[ThresholdScoreWarning]:
			warningUnits = append(warningUnits, unit)
		}
	}
	overall /= float64(len(unitScores))
	metrics["overall_score"] = overall
	metrics["score_distribution"] = distribution

	sort.Strings(criticalUnits)
	sort.Strings(warningUnits)
	if len(criticalUnits) > 0 {
		alerts = append(alerts, models.Alert{
			Type:          "CRITICAL_SAFETY_SCORE",
			Level:         models.AlertCritical,
			Message:       "Critical safety scores for units: " + strings.Join(criticalUnits, ", "),
			AffectedUnits: criticalUnits,
			Threshold:     models.Float(t[ThresholdScoreCritical]),
		})
	}
	if len(warningUnits) > 0 {
		alerts = append(alerts, models.Alert{
			Type:          "LOW_SAFETY_SCORE",
			Level:         models.AlertWarning,
			Message:       "Low safety scores for units: " + strings.Join(warningUnits, ", "),
			AffectedUnits: warningUnits,
			Threshold:     models.Float(t[ThresholdScoreWarning]),
		})
	}
	return metrics, unitScores, alerts
}

// validMean computes the mean of a column's values passing the valid
// predicate.
func validMean(ds *dataset.Dataset, column string, valid func(float64) bool) (float64, bool) {
	if !ds.HasColumn(column) {
		return 0, false
	}
	sum, n := 0.0, 0
	for i := 0; i < ds.Len(); i++ {
		if v, ok := ds.Float(column, i); ok && valid(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func (e *SafetyEngine) analyzeEnvironmental(ds *dataset.Dataset, t map[string]float64) (map[string]any, []models.Alert) {
	var temps []float64
	heatStress := 0
	for i := 0; i < ds.Len(); i++ {
		v, ok := ds.Float("temp", i)
		if !ok || v <= -1 {
			continue
		}
		temps = append(temps, v)
		if v > t[ThresholdHeatStress] {
			heatStress++
		}
	}
	if len(temps) == 0 {
		return map[string]any{}, nil
	}

	mean, min, max := summarize(temps)
	metrics := map[string]any{
		"temperature_analysis": map[string]any{
			"mean_temp":           mean,
			"max_temp":            max,
			"min_temp":            min,
			"heat_stress_records": heatStress,
		},
	}

	var alerts []models.Alert
	if heatStress > 0 {
		alerts = append(alerts, models.Alert{
			Type:        "HEAT_STRESS_DETECTED",
			Level:       models.AlertWarning,
			Message:     fmt.Sprintf("Heat stress conditions detected: %d records above %.0fC", heatStress, t[ThresholdHeatStress]),
			MetricValue: models.Float(max),
			Threshold:   models.Float(t[ThresholdHeatStress]),
		})
	}
	return metrics, alerts
}

func (e *SafetyEngine) recommendations(results map[string]any) []string {
	var recommendations []string

	if falls, ok := nestedInt(results, "fall_analysis", "total_falls"); ok && falls > 10 {
		recommendations = append(recommendations,
			"PRIORITY: Implement enhanced fall prevention training and safety protocols")
	}
	if rate, ok := nestedFloat(results, "casualty_analysis", "casualty_rate"); ok && rate > 0.2 {
		recommendations = append(recommendations,
			"CRITICAL: Review tactical procedures to reduce casualty rates")
	}
	if env, ok := results["environmental_analysis"].(map[string]any); ok {
		if heat, ok := nestedInt(env, "temperature_analysis", "heat_stress_records"); ok && heat > 0 {
			recommendations = append(recommendations,
				"Implement heat stress mitigation protocols and hydration schedules")
		}
	}
	if score, ok := nestedFloat(results, "safety_scores", "overall_score"); ok && score < 70 {
		recommendations = append(recommendations,
			"Conduct comprehensive safety review and implement corrective measures")
	}

	if len(recommendations) == 0 {
		recommendations = append(recommendations,
			"Safety performance within acceptable parameters - continue current protocols")
	}
	return recommendations
}

func nestedFloat(m map[string]any, section, key string) (float64, bool) {
	sub, ok := m[section].(map[string]any)
	if !ok {
		return 0, false
	}
	switch v := sub[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func nestedInt(m map[string]any, section, key string) (int, bool) {
	v, ok := nestedFloat(m, section, key)
	return int(v), ok
}

func countUnits(ds *dataset.Dataset) int {
	if !ds.HasColumn("callsign") {
		return 0
	}
	seen := map[string]struct{}{}
	for i := 0; i < ds.Len(); i++ {
		if v, ok := ds.String("callsign", i); ok {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}
