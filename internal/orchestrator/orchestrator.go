// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

// Package orchestrator drives the analysis pipeline off the event bus.
//
// When a DATA_LOAD_COMPLETED event arrives the orchestrator validates
// the dataset, then runs every registered analysis engine behind a
// per-engine circuit breaker. A repeatedly failing engine trips its
// breaker and is skipped until the breaker's recovery timeout elapses,
// so one broken domain cannot consume the pipeline. Engine alerts pass
// through a rate-limited gate before reaching downstream subscribers.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/tacsight/tacsight/internal/config"
	"github.com/tacsight/tacsight/internal/dataset"
	"github.com/tacsight/tacsight/internal/engines"
	"github.com/tacsight/tacsight/internal/eventbus"
	"github.com/tacsight/tacsight/internal/logging"
	"github.com/tacsight/tacsight/internal/metrics"
	"github.com/tacsight/tacsight/internal/models"
	"github.com/tacsight/tacsight/internal/validation"
)

// errAnalysisFailed feeds engine-level failures into the circuit
// breaker's failure count.
var errAnalysisFailed = errors.New("analysis run failed")

// EventBus is the bus surface the orchestrator needs.
type EventBus interface {
	Subscribe(eventType string, cb eventbus.Callback, priority int) string
	Unsubscribe(handlerID string) bool
	Publish(event any)
}

type job struct {
	requestID string
	ds        *dataset.Dataset
}

// Orchestrator runs the validation-then-analysis pipeline.
type Orchestrator struct {
	bus       EventBus
	validator *validation.Engine
	registry  *engines.Registry
	cfg       config.AnalysisConfig
	breakers  map[models.AnalysisDomain]*gobreaker.CircuitBreaker[*models.AnalysisResult]
	jobs      chan job
}

// New creates an orchestrator over the given bus, validator, and engine
// registry. One circuit breaker is created per registered domain.
func New(bus EventBus, validator *validation.Engine, registry *engines.Registry, cfg config.AnalysisConfig) *Orchestrator {
	o := &Orchestrator{
		bus:       bus,
		validator: validator,
		registry:  registry,
		cfg:       cfg,
		breakers:  make(map[models.AnalysisDomain]*gobreaker.CircuitBreaker[*models.AnalysisResult]),
		jobs:      make(chan job, 8),
	}
	for _, domain := range registry.Domains() {
		o.breakers[domain] = o.newBreaker(domain)
	}
	return o
}

func (o *Orchestrator) newBreaker(domain models.AnalysisDomain) *gobreaker.CircuitBreaker[*models.AnalysisResult] {
	threshold := o.cfg.BreakerFailureThreshold
	if threshold == 0 {
		threshold = 3
	}
	return gobreaker.NewCircuitBreaker[*models.AnalysisResult](gobreaker.Settings{
		Name:        string(domain),
		MaxRequests: o.cfg.BreakerMaxRequests,
		Interval:    o.cfg.BreakerInterval,
		Timeout:     o.cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetBreakerOpen(name, to == gobreaker.StateOpen)
			logging.Warn().
				Str("component", "orchestrator").
				Str("domain", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("engine circuit breaker state changed")
		},
	})
}

// Serve implements suture.Service. It subscribes to DATA_LOAD_COMPLETED
// and processes pipeline runs until the context is canceled. The bus
// callback only enqueues; analysis runs on this goroutine so a slow
// engine never stalls the publisher.
func (o *Orchestrator) Serve(ctx context.Context) error {
	handlerID := o.bus.Subscribe(models.EventDataLoadCompleted, o.enqueue, 0)
	defer o.bus.Unsubscribe(handlerID)

	logging.Info().Str("component", "orchestrator").Msg("orchestrator started")
	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("component", "orchestrator").Msg("orchestrator stopped")
			return ctx.Err()
		case j := <-o.jobs:
			o.Run(ctx, j.requestID, j.ds)
		}
	}
}

// enqueue extracts the dataset from a DATA_LOAD_COMPLETED event and
// queues a pipeline run. A full queue drops the run rather than block
// the bus.
func (o *Orchestrator) enqueue(evt models.Event) {
	ds, ok := evt.Data["dataset"].(*dataset.Dataset)
	if !ok || ds == nil {
		logging.Warn().
			Str("component", "orchestrator").
			Str("event_id", evt.ID).
			Msg("data load event carried no dataset, skipping")
		return
	}
	requestID, _ := evt.Data["request_id"].(string)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	select {
	case o.jobs <- job{requestID: requestID, ds: ds}:
	default:
		logging.Warn().
			Str("component", "orchestrator").
			Str("request_id", requestID).
			Msg("pipeline queue full, dropping run")
	}
}

// Run executes one full pipeline pass: dataset validation followed by
// every registered engine. Exported so callers can trigger a run
// without going through the bus.
func (o *Orchestrator) Run(ctx context.Context, requestID string, ds *dataset.Dataset) {
	logging.Info().
		Str("component", "orchestrator").
		Str("request_id", requestID).
		Int("records", ds.Len()).
		Msg("pipeline run started")

	result := o.validator.ValidateData(ds, requestID, nil)

	for _, domain := range o.registry.Domains() {
		engine, ok := o.registry.Get(domain)
		if !ok {
			continue
		}
		o.runEngine(ctx, requestID, domain, engine, ds, result.OverallScore)
	}
}

func (o *Orchestrator) runEngine(ctx context.Context, requestID string, domain models.AnalysisDomain, engine engines.Engine, ds *dataset.Dataset, qualityScore float64) {
	o.bus.Publish(models.Event{
		Type:   models.EventAnalysisStarted,
		Source: "Orchestrator",
		Data: map[string]any{
			"request_id": requestID,
			"domain":     string(domain),
		},
	})

	breaker := o.breakers[domain]
	result, err := breaker.Execute(func() (*models.AnalysisResult, error) {
		runCtx := ctx
		if o.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
			defer cancel()
		}
		r := engine.Analyze(runCtx, ds)
		if r.Status == models.AnalysisFailed {
			return r, errAnalysisFailed
		}
		return r, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		logging.Warn().
			Str("component", "orchestrator").
			Str("domain", string(domain)).
			Msg("engine skipped, circuit breaker open")
		o.bus.Publish(models.Event{
			Type:   models.EventErrorOccurred,
			Source: "Orchestrator",
			Data: map[string]any{
				"request_id": requestID,
				"domain":     string(domain),
				"error":      fmt.Sprintf("analysis skipped: %v", err),
			},
		})
		return
	}

	if result == nil {
		result = &models.AnalysisResult{Domain: domain, Status: models.AnalysisFailed}
	}
	if result.DataQualityScore == 0 {
		result.DataQualityScore = qualityScore
	}

	if result.Status == models.AnalysisFailed {
		o.bus.Publish(models.Event{
			Type:   models.EventAnalysisFailed,
			Source: "Orchestrator",
			Data: map[string]any{
				"request_id": requestID,
				"domain":     string(domain),
			},
		})
		return
	}

	o.bus.Publish(models.Event{
		Type:   models.EventAnalysisCompleted,
		Source: "Orchestrator",
		Data: map[string]any{
			"request_id":             requestID,
			"domain":                 string(domain),
			"status":                 string(result.Status),
			"alert_count":            len(result.Alerts),
			"recommendations":        result.Recommendations,
			"metrics":                result.Metrics,
			"data_quality_score":     result.DataQualityScore,
			"execution_time_seconds": result.ExecutionTime.Seconds(),
		},
	})

	logging.Info().
		Str("component", "orchestrator").
		Str("request_id", requestID).
		Str("domain", string(domain)).
		Int("alerts", len(result.Alerts)).
		Dur("elapsed", result.ExecutionTime).
		Msg("analysis completed")
}

// BreakerState returns the named engine breaker's state for status
// reporting. The second return is false for unknown domains.
func (o *Orchestrator) BreakerState(domain models.AnalysisDomain) (gobreaker.State, bool) {
	b, ok := o.breakers[domain]
	if !ok {
		return 0, false
	}
	return b.State(), true
}
