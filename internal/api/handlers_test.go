// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tacsight/tacsight/internal/config"
	"github.com/tacsight/tacsight/internal/engines"
	"github.com/tacsight/tacsight/internal/eventbus"
	"github.com/tacsight/tacsight/internal/models"
	"github.com/tacsight/tacsight/internal/servicemanager"
)

type nopService struct{}

func (nopService) Start(context.Context) error { return nil }
func (nopService) Stop(context.Context) error  { return nil }

type fixture struct {
	bus        *eventbus.Bus
	manager    *servicemanager.Manager
	registry   *engines.Registry
	server     *httptest.Server
	exportPath string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	bus := eventbus.New(eventbus.DefaultConfig())
	manager := servicemanager.New(bus)
	registry := engines.NewRegistry()
	registry.Register(engines.NewSafetyEngine(bus))
	registry.Register(engines.NewNetworkEngine(bus))

	// Threshold updates round-trip through CONFIG_CHANGED.
	bus.Subscribe(models.EventConfigChanged, func(evt models.Event) {
		registry.ApplyConfigEvent(evt.Data)
	}, 0)

	exportPath := filepath.Join(t.TempDir(), "event_history.json")
	cfg := config.ServerConfig{
		Host:            "127.0.0.1",
		Port:            0,
		Timeout:         5 * time.Second,
		ShutdownTimeout: time.Second,
		CORSOrigins:     []string{"*"},
	}

	router := New(cfg, bus, manager, registry, nil, exportPath)
	srv := httptest.NewServer(router.Routes())
	t.Cleanup(srv.Close)

	return &fixture{
		bus:        bus,
		manager:    manager,
		registry:   registry,
		server:     srv,
		exportPath: exportPath,
	}
}

func (f *fixture) request(t *testing.T, method, path string, body string) (*http.Response, models.APIResponse) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var decoded models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func TestEventsHistoryEndpoint(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.bus.Publish(models.Event{Type: "TEST_EVENT", Source: "test"})
	}
	f.bus.Publish(models.Event{Type: "OTHER_EVENT", Source: "test"})

	resp, decoded := f.request(t, http.MethodGet, "/api/v1/events/history?type=TEST_EVENT&limit=2", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d; want 200", resp.StatusCode)
	}
	data := decoded.Data.(map[string]any)
	if count := data["count"].(float64); count != 2 {
		t.Errorf("count = %v; want 2", count)
	}
	events := data["events"].([]any)
	for _, raw := range events {
		evt := raw.(map[string]any)
		if evt["event_type"] != "TEST_EVENT" {
			t.Errorf("event_type = %v; want TEST_EVENT", evt["event_type"])
		}
	}
}

func TestEventsHistoryRejectsBadLimit(t *testing.T) {
	f := newFixture(t)
	resp, decoded := f.request(t, http.MethodGet, "/api/v1/events/history?limit=banana", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d; want 400", resp.StatusCode)
	}
	if decoded.Error == nil || decoded.Error.Code != "invalid_limit" {
		t.Errorf("error = %+v", decoded.Error)
	}
}

func TestEventsStatsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.bus.Publish(models.Event{Type: "TEST_EVENT", Source: "test"})

	resp, decoded := f.request(t, http.MethodGet, "/api/v1/events/stats", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d; want 200", resp.StatusCode)
	}
	data := decoded.Data.(map[string]any)
	if total := data["total_events"].(float64); total < 1 {
		t.Errorf("total_events = %v; want >= 1", total)
	}
}

func TestEventsExportEndpoint(t *testing.T) {
	f := newFixture(t)
	f.bus.Publish(models.Event{Type: "TEST_EVENT", Source: "test"})

	resp, _ := f.request(t, http.MethodPost, "/api/v1/events/export", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d; want 200", resp.StatusCode)
	}

	raw, err := os.ReadFile(f.exportPath)
	if err != nil {
		t.Fatalf("export file missing: %v", err)
	}
	var exported []models.ExportedEvent
	if err := json.Unmarshal(raw, &exported); err != nil {
		t.Fatalf("export not valid JSON: %v", err)
	}
	if len(exported) == 0 {
		t.Error("export is empty")
	}
}

func TestServicesEndpoints(t *testing.T) {
	f := newFixture(t)
	if err := f.manager.Register("bus", nopService{}); err != nil {
		t.Fatal(err)
	}
	if err := f.manager.Register("api", nopService{}, "bus"); err != nil {
		t.Fatal(err)
	}
	if err := f.manager.StartAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	resp, decoded := f.request(t, http.MethodGet, "/api/v1/services", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d; want 200", resp.StatusCode)
	}
	data := decoded.Data.(map[string]any)
	if ready := data["system_ready"].(bool); !ready {
		t.Error("system_ready = false; want true")
	}
	services := data["services"].([]any)
	if len(services) != 2 {
		t.Errorf("services count = %d; want 2", len(services))
	}

	resp, decoded = f.request(t, http.MethodGet, "/api/v1/services/api", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d; want 200", resp.StatusCode)
	}
	svc := decoded.Data.(map[string]any)
	if svc["status"] != "running" {
		t.Errorf("status = %v; want running", svc["status"])
	}
	if start, _ := svc["start_time"].(string); start == "" {
		t.Error("start_time missing for a running service")
	}
	if uptime, _ := svc["uptime"].(string); uptime == "" {
		t.Error("uptime missing for a running service")
	}

	resp, _ = f.request(t, http.MethodGet, "/api/v1/services/ghost", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d; want 404", resp.StatusCode)
	}

	resp, decoded = f.request(t, http.MethodPost, "/api/v1/services/api/restart", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("restart status = %d; want 200", resp.StatusCode)
	}
	restarted := decoded.Data.(map[string]any)
	if restarted["status"] != "running" {
		t.Errorf("restarted status = %v; want running", restarted["status"])
	}

	resp, _ = f.request(t, http.MethodPost, "/api/v1/services/ghost/restart", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("restart unknown status = %d; want 404", resp.StatusCode)
	}
}

func TestThresholdsRoundTrip(t *testing.T) {
	f := newFixture(t)

	resp, decoded := f.request(t, http.MethodGet, "/api/v1/thresholds/soldier_safety", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d; want 200", resp.StatusCode)
	}
	data := decoded.Data.(map[string]any)
	thresholds := data["thresholds"].(map[string]any)
	if v := thresholds["high_fall_risk_threshold"].(float64); v != 5 {
		t.Errorf("default high_fall_risk_threshold = %v; want 5", v)
	}

	resp, decoded = f.request(t, http.MethodPut, "/api/v1/thresholds/soldier_safety",
		`{"high_fall_risk_threshold": 3}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d; want 200", resp.StatusCode)
	}
	data = decoded.Data.(map[string]any)
	thresholds = data["thresholds"].(map[string]any)
	if v := thresholds["high_fall_risk_threshold"].(float64); v != 3 {
		t.Errorf("updated high_fall_risk_threshold = %v; want 3", v)
	}

	// The update must be visible to the engine itself.
	engine, _ := f.registry.Get(models.DomainSoldierSafety)
	if v, _ := engine.Thresholds().Get("high_fall_risk_threshold"); v != 3 {
		t.Errorf("engine threshold = %v; want 3", v)
	}
}

func TestThresholdsRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.request(t, http.MethodGet, "/api/v1/thresholds/nonsense", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown domain status = %d; want 404", resp.StatusCode)
	}

	resp, _ = f.request(t, http.MethodPut, "/api/v1/thresholds/soldier_safety", `"scalar"`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad body status = %d; want 400", resp.StatusCode)
	}

	resp, _ = f.request(t, http.MethodPut, "/api/v1/thresholds/soldier_safety", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty body status = %d; want 400", resp.StatusCode)
	}
}

func TestHealthReflectsSystemState(t *testing.T) {
	f := newFixture(t)

	resp, decoded := f.request(t, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d; want 503 before startup", resp.StatusCode)
	}
	data := decoded.Data.(map[string]any)
	if data["status"] != "degraded" {
		t.Errorf("status field = %v; want degraded", data["status"])
	}

	if err := f.manager.Register("bus", nopService{}); err != nil {
		t.Fatal(err)
	}
	if err := f.manager.StartAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	resp, decoded = f.request(t, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d; want 200 after startup", resp.StatusCode)
	}
	data = decoded.Data.(map[string]any)
	if data["system_ready"] != true {
		t.Error("system_ready = false; want true")
	}
}

func TestRequestIDHeader(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.request(t, http.MethodGet, "/api/v1/events/stats", "")
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID response header")
	}
}
