// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package engines

import (
	"context"
	"time"

	"github.com/tacsight/tacsight/internal/dataset"
	"github.com/tacsight/tacsight/internal/models"
)

// StubEngine is a placeholder engine for domains whose full analysis is
// not implemented yet. It validates input and reports basic dataset
// statistics so the pipeline, registry, and reporting paths treat every
// domain uniformly.
type StubEngine struct {
	domain     models.AnalysisDomain
	source     string
	required   []string
	optional   []string
	thresholds *ThresholdStore
	publisher  EventPublisher
}

// NewActivityEngine creates the soldier activity placeholder engine.
func NewActivityEngine(publisher EventPublisher) *StubEngine {
	return newStubEngine(models.DomainSoldierActivity, "SoldierActivityEngine", publisher,
		[]string{"callsign", "processedtimegmt"},
		[]string{"posture", "latitude", "longitude"})
}

// NewEquipmentEngine creates the equipment management placeholder engine.
func NewEquipmentEngine(publisher EventPublisher) *StubEngine {
	return newStubEngine(models.DomainEquipment, "EquipmentManagementEngine", publisher,
		[]string{"callsign", "processedtimegmt"},
		[]string{"battery", "temp"})
}

// NewEnvironmentalEngine creates the environmental monitoring
// placeholder engine.
func NewEnvironmentalEngine(publisher EventPublisher) *StubEngine {
	return newStubEngine(models.DomainEnvironmental, "EnvironmentalMonitoringEngine", publisher,
		[]string{"callsign", "processedtimegmt"},
		[]string{"temp", "latitude", "longitude"})
}

func newStubEngine(domain models.AnalysisDomain, source string, publisher EventPublisher, required, optional []string) *StubEngine {
	return &StubEngine{
		domain:     domain,
		source:     source,
		required:   required,
		optional:   optional,
		thresholds: NewThresholdStore(nil),
		publisher:  publisher,
	}
}

func (e *StubEngine) Domain() models.AnalysisDomain { return e.domain }
func (e *StubEngine) RequiredColumns() []string     { return e.required }
func (e *StubEngine) OptionalColumns() []string     { return e.optional }
func (e *StubEngine) Thresholds() *ThresholdStore   { return e.thresholds }

func (e *StubEngine) ValidateData(ds *dataset.Dataset) QualityMetrics {
	quality := QualityMetrics{TotalRecords: ds.Len()}
	quality.Completeness, quality.MissingPercent = completeness(ds, e.required)
	return quality
}

func (e *StubEngine) Analyze(ctx context.Context, ds *dataset.Dataset) *models.AnalysisResult {
	return safeAnalyze(e.domain, e.publisher, e.source, func() (map[string]any, []models.Alert, []string, float64) {
		quality := e.ValidateData(ds)
		metrics := map[string]any{
			"total_records":      ds.Len(),
			"total_units":        countUnits(ds),
			"analysis_timestamp": time.Now().UTC().Format(time.RFC3339),
		}
		recommendations := []string{"Detailed analysis for this domain is not available yet"}
		return metrics, nil, recommendations, quality.Completeness
	})
}
