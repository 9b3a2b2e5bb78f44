// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package models

import "time"

// AnalysisDomain identifies a domain analysis engine.
type AnalysisDomain string

const (
	DomainSoldierSafety      AnalysisDomain = "soldier_safety"
	DomainNetworkPerformance AnalysisDomain = "network_performance"
	DomainSoldierActivity    AnalysisDomain = "soldier_activity"
	DomainEquipment          AnalysisDomain = "equipment_management"
	DomainEnvironmental      AnalysisDomain = "environmental_monitoring"
	DomainCombatEffect       AnalysisDomain = "combat_effectiveness"
)

// Domains lists every known analysis domain.
func Domains() []AnalysisDomain {
	return []AnalysisDomain{
		DomainSoldierSafety,
		DomainNetworkPerformance,
		DomainSoldierActivity,
		DomainEquipment,
		DomainEnvironmental,
		DomainCombatEffect,
	}
}

// AnalysisStatus is the terminal status of one analysis run.
type AnalysisStatus string

const (
	AnalysisCompleted AnalysisStatus = "completed"
	AnalysisFailed    AnalysisStatus = "failed"
)

// AnalysisResult is the outcome of one engine Analyze call.
// One instance per call; never mutated after return.
type AnalysisResult struct {
	// Domain identifies the engine that produced the result.
	Domain AnalysisDomain `json:"domain"`

	// Status is completed on success, failed when the engine recovered
	// from an internal error.
	Status AnalysisStatus `json:"status"`

	// Metrics holds the engine's computed statistics.
	Metrics map[string]any `json:"metrics"`

	// Alerts lists threshold-triggered findings from this run.
	Alerts []Alert `json:"alerts"`

	// Recommendations are remediation hints derived from the alerts.
	Recommendations []string `json:"recommendations"`

	// ExecutionTime is how long the analysis took.
	ExecutionTime time.Duration `json:"execution_time"`

	// DataQualityScore is the validation score of the input dataset,
	// carried through for downstream reporting.
	DataQualityScore float64 `json:"data_quality_score"`
}
