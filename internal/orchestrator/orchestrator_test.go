// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/tacsight/tacsight/internal/config"
	"github.com/tacsight/tacsight/internal/dataset"
	"github.com/tacsight/tacsight/internal/engines"
	"github.com/tacsight/tacsight/internal/eventbus"
	"github.com/tacsight/tacsight/internal/models"
	"github.com/tacsight/tacsight/internal/validation"
)

// fakeBus records published events without delivering them.
type fakeBus struct {
	mu     sync.Mutex
	events []models.Event
}

func (b *fakeBus) Subscribe(eventType string, cb eventbus.Callback, priority int) string {
	return "handler"
}

func (b *fakeBus) Unsubscribe(handlerID string) bool { return true }

func (b *fakeBus) Publish(event any) {
	evt, ok := eventbus.Normalize(event)
	if !ok {
		return
	}
	b.mu.Lock()
	b.events = append(b.events, evt)
	b.mu.Unlock()
}

func (b *fakeBus) countByType(eventType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, evt := range b.events {
		if evt.Type == eventType {
			n++
		}
	}
	return n
}

// failingEngine always reports a failed run.
type failingEngine struct {
	domain     models.AnalysisDomain
	thresholds *engines.ThresholdStore
}

func (e *failingEngine) Domain() models.AnalysisDomain { return e.domain }
func (e *failingEngine) RequiredColumns() []string { return []string{"callsign"} }
func (e *failingEngine) OptionalColumns() []string { return nil }
func (e *failingEngine) Thresholds() *engines.ThresholdStore { return e.thresholds }

func (e *failingEngine) ValidateData(ds *dataset.Dataset) engines.QualityMetrics {
	return engines.QualityMetrics{TotalRecords: ds.Len()}
}

func (e *failingEngine) Analyze(ctx context.Context, ds *dataset.Dataset) *models.AnalysisResult {
	return &models.AnalysisResult{Domain: e.domain, Status: models.AnalysisFailed}
}

func analysisConfig() config.AnalysisConfig {
	return config.AnalysisConfig{
		Timeout:                 5 * time.Second,
		BreakerMaxRequests:      1,
		BreakerTimeout:          time.Minute,
		BreakerFailureThreshold: 2,
	}
}

func pipelineRows(n int) []map[string]any {
	rows := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, map[string]any{
			"callsign":         "ALPHA_1",
			"falldetected":     "No",
			"casualtystate":    "GOOD",
			"processedtimegmt": fmt.Sprintf("2026-08-01T10:%02d:00Z", i),
			"temp":             25,
			"battery":          80,
			"rssi":             25,
			"mcs":              6,
			"nexthop":          "NODE_1",
		})
	}
	return rows
}

func TestPipelineRunsValidationAndAllEngines(t *testing.T) {
	bus := &fakeBus{}
	validator := validation.NewEngine(bus, false)
	registry := engines.NewRegistry()
	registry.Register(engines.NewSafetyEngine(bus))
	registry.Register(engines.NewNetworkEngine(bus))

	orch := New(bus, validator, registry, analysisConfig())
	orch.Run(context.Background(), "req-1", dataset.FromRecords(pipelineRows(5)))

	if got := bus.countByType(models.EventValidationComplete); got != 1 {
		t.Errorf("DATA_VALIDATION_COMPLETED count = %d; want 1", got)
	}
	if got := bus.countByType(models.EventAnalysisStarted); got != 2 {
		t.Errorf("ANALYSIS_STARTED count = %d; want 2", got)
	}
	if got := bus.countByType(models.EventAnalysisCompleted); got != 2 {
		t.Errorf("ANALYSIS_COMPLETED count = %d; want 2", got)
	}
	if got := bus.countByType(models.EventAnalysisFailed); got != 0 {
		t.Errorf("ANALYSIS_FAILED count = %d; want 0", got)
	}
}

func TestCompletedEventCarriesRunSummary(t *testing.T) {
	bus := &fakeBus{}
	validator := validation.NewEngine(bus, false)
	registry := engines.NewRegistry()
	registry.Register(engines.NewSafetyEngine(bus))

	orch := New(bus, validator, registry, analysisConfig())
	orch.Run(context.Background(), "req-7", dataset.FromRecords(pipelineRows(5)))

	bus.mu.Lock()
	defer bus.mu.Unlock()
	for _, evt := range bus.events {
		if evt.Type != models.EventAnalysisCompleted {
			continue
		}
		if evt.Data["request_id"] != "req-7" {
			t.Errorf("request_id = %v; want req-7", evt.Data["request_id"])
		}
		if evt.Data["domain"] != string(models.DomainSoldierSafety) {
			t.Errorf("domain = %v", evt.Data["domain"])
		}
		if _, ok := evt.Data["metrics"].(map[string]any); !ok {
			t.Error("Completed event should carry the metrics map")
		}
		return
	}
	t.Fatal("No ANALYSIS_COMPLETED event published")
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	bus := &fakeBus{}
	validator := validation.NewEngine(bus, false)
	registry := engines.NewRegistry()
	registry.Register(&failingEngine{
		domain:     models.DomainEquipment,
		thresholds: engines.NewThresholdStore(nil),
	})

	orch := New(bus, validator, registry, analysisConfig())
	ds := dataset.FromRecords(pipelineRows(3))

	// Threshold is 2 consecutive failures: runs 1 and 2 fail through the
	// engine, run 3 is rejected by the open breaker.
	for i := 0; i < 3; i++ {
		orch.Run(context.Background(), "req", ds)
	}

	if got := bus.countByType(models.EventAnalysisFailed); got != 2 {
		t.Errorf("ANALYSIS_FAILED count = %d; want 2", got)
	}
	if got := bus.countByType(models.EventErrorOccurred); got != 1 {
		t.Errorf("ERROR_OCCURRED count = %d; want 1 breaker skip", got)
	}

	state, ok := orch.BreakerState(models.DomainEquipment)
	if !ok {
		t.Fatal("Missing breaker for registered domain")
	}
	if state != gobreaker.StateOpen {
		t.Errorf("Breaker state = %v; want open", state)
	}
}

func TestBreakerStateUnknownDomain(t *testing.T) {
	orch := New(&fakeBus{}, validation.NewEngine(nil, false), engines.NewRegistry(), analysisConfig())
	if _, ok := orch.BreakerState(models.DomainCombatEffect); ok {
		t.Error("Expected no breaker for an unregistered domain")
	}
}

func TestServeConsumesDataLoadEvents(t *testing.T) {
	bus := eventbus.New(eventbus.DefaultConfig())
	validator := validation.NewEngine(bus, false)
	registry := engines.NewRegistry()
	registry.Register(engines.NewSafetyEngine(bus))

	orch := New(bus, validator, registry, analysisConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = orch.Serve(ctx)
	}()

	// Serve subscribes on its own goroutine; wait for the subscription
	// before publishing so the event is actually delivered.
	for start := time.Now(); bus.Statistics().SubscribersCount == 0; {
		if time.Since(start) > 2*time.Second {
			t.Fatal("Serve never subscribed to the bus")
		}
		time.Sleep(5 * time.Millisecond)
	}

	bus.Publish(models.Event{
		Type:   models.EventDataLoadCompleted,
		Source: "DataLoader",
		Data: map[string]any{
			"dataset":    dataset.FromRecords(pipelineRows(5)),
			"request_id": "req-load",
		},
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(bus.History(models.EventAnalysisCompleted, 10)) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	completed := bus.History(models.EventAnalysisCompleted, 10)
	if len(completed) != 1 {
		t.Fatalf("ANALYSIS_COMPLETED count = %d; want 1", len(completed))
	}
	if completed[0].Data["request_id"] != "req-load" {
		t.Errorf("request_id = %v; want req-load", completed[0].Data["request_id"])
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Serve did not stop on context cancel")
	}
}

func TestDataLoadEventWithoutDatasetIsSkipped(t *testing.T) {
	bus := &fakeBus{}
	validator := validation.NewEngine(bus, false)
	registry := engines.NewRegistry()
	registry.Register(engines.NewSafetyEngine(bus))

	orch := New(bus, validator, registry, analysisConfig())
	orch.enqueue(models.Event{Type: models.EventDataLoadCompleted, Data: map[string]any{}})

	select {
	case <-orch.jobs:
		t.Error("Event without a dataset must not enqueue a run")
	default:
	}
}
