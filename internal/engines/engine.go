// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

// Package engines holds the per-domain analysis engines. Each engine
// consumes a telemetry dataset and produces an AnalysisResult with
// metrics, tiered alerts, and recommendations.
//
// Engines never panic out of Analyze: failures are captured and
// returned as a failed result, with an ERROR_OCCURRED event published
// so one broken domain cannot take down the pipeline.
package engines

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tacsight/tacsight/internal/dataset"
	"github.com/tacsight/tacsight/internal/logging"
	"github.com/tacsight/tacsight/internal/metrics"
	"github.com/tacsight/tacsight/internal/models"
)

// EventPublisher is the subset of the event bus engines publish to.
type EventPublisher interface {
	Publish(event any)
}

// QualityMetrics summarizes input data quality for one analysis run.
type QualityMetrics struct {
	TotalRecords     int                `json:"total_records"`
	Completeness     float64            `json:"data_completeness"`
	MissingPercent   map[string]float64 `json:"missing_data_percentage"`
	ValidationErrors []string           `json:"validation_errors"`
}

// Engine is a single-domain analysis engine.
type Engine interface {
	Domain() models.AnalysisDomain
	RequiredColumns() []string
	OptionalColumns() []string

	// Thresholds exposes the engine's mutable threshold store.
	Thresholds() *ThresholdStore

	// ValidateData reports input quality without failing the run.
	ValidateData(ds *dataset.Dataset) QualityMetrics

	// Analyze runs the domain analysis. It always returns a result;
	// internal failures yield a result with status failed.
	Analyze(ctx context.Context, ds *dataset.Dataset) *models.AnalysisResult
}

// Registry holds the registered engines keyed by domain.
type Registry struct {
	mu      sync.RWMutex
	engines map[models.AnalysisDomain]Engine
}

// NewRegistry creates an empty engine registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[models.AnalysisDomain]Engine)}
}

// Register adds an engine, replacing any previous engine for the domain.
func (r *Registry) Register(e Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[e.Domain()] = e
	logging.Info().
		Str("component", "engines").
		Str("domain", string(e.Domain())).
		Msg("analysis engine registered")
}

// Get returns the engine for a domain.
func (r *Registry) Get(domain models.AnalysisDomain) (Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[domain]
	return e, ok
}

// Domains returns the registered domains in stable order.
func (r *Registry) Domains() []models.AnalysisDomain {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.AnalysisDomain, 0, len(r.engines))
	for d := range r.engines {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// All returns every registered engine, ordered by domain.
func (r *Registry) All() []Engine {
	domains := r.Domains()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Engine, 0, len(domains))
	for _, d := range domains {
		out = append(out, r.engines[d])
	}
	return out
}

// safeAnalyze wraps an engine's analysis body with panic recovery and
// result bookkeeping. fn returns the domain metrics, alerts, and
// recommendations for a successful run.
func safeAnalyze(
	domain models.AnalysisDomain,
	publisher EventPublisher,
	source string,
	fn func() (map[string]any, []models.Alert, []string, float64),
) (result *models.AnalysisResult) {
	start := time.Now()

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err := fmt.Errorf("analysis panic: %v", r)
		logging.Err(err).
			Str("component", "engines").
			Str("domain", string(domain)).
			Msg("analysis failed")
		if publisher != nil {
			publisher.Publish(models.Event{
				Type:   models.EventErrorOccurred,
				Source: source,
				Data: map[string]any{
					"domain": string(domain),
					"error":  err.Error(),
				},
			})
		}
		result = &models.AnalysisResult{
			Domain:        domain,
			Status:        models.AnalysisFailed,
			Metrics:       map[string]any{},
			ExecutionTime: time.Since(start),
		}
		metrics.RecordAnalysis(string(domain), string(models.AnalysisFailed), time.Since(start))
	}()

	domainMetrics, alerts, recommendations, quality := fn()

	if publisher != nil {
		for _, alert := range alerts {
			publishAlert(publisher, domain, source, alert)
		}
	}

	elapsed := time.Since(start)
	metrics.RecordAnalysis(string(domain), string(models.AnalysisCompleted), elapsed)
	for _, alert := range alerts {
		metrics.RecordAlert(string(domain), alert.Level.String())
	}

	return &models.AnalysisResult{
		Domain:           domain,
		Status:           models.AnalysisCompleted,
		Metrics:          domainMetrics,
		Alerts:           alerts,
		Recommendations:  recommendations,
		ExecutionTime:    elapsed,
		DataQualityScore: quality,
	}
}

func publishAlert(publisher EventPublisher, domain models.AnalysisDomain, source string, alert models.Alert) {
	publisher.Publish(models.Event{
		Type:   models.EventAlertTriggered,
		Source: source,
		Data: map[string]any{
			"domain":         string(domain),
			"alert_type":     alert.Type,
			"level":          alert.Level.String(),
			"message":        alert.Message,
			"affected_units": alert.AffectedUnits,
			"metric_value":   alert.MetricValue,
			"threshold":      alert.Threshold,
		},
	})
}

// completeness computes the percentage of required cells present.
func completeness(ds *dataset.Dataset, columns []string) (float64, map[string]float64) {
	missing := make(map[string]float64, len(columns))
	if ds.Len() == 0 {
		for _, col := range columns {
			missing[col] = 100
		}
		return 0, missing
	}

	sum := 0.0
	for _, col := range columns {
		pct := 100.0
		if ds.HasColumn(col) {
			present := ds.CountNonNull(col)
			pct = float64(ds.Len()-present) / float64(ds.Len()) * 100
		}
		missing[col] = pct
		sum += pct
	}
	if len(columns) == 0 {
		return 100, missing
	}
	return 100 - sum/float64(len(columns)), missing
}
