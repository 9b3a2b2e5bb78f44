// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package engines

import (
	"testing"

	"github.com/tacsight/tacsight/internal/models"
)

func TestApplyConfigEventByDomainKey(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewSafetyEngine(nil))
	registry.Register(NewNetworkEngine(nil))

	registry.ApplyConfigEvent(map[string]any{
		"domain":     string(models.DomainSoldierSafety),
		"thresholds": map[string]any{ThresholdHighFallRisk: 3.0},
	})

	safety, _ := registry.Get(models.DomainSoldierSafety)
	if v, _ := safety.Thresholds().Get(ThresholdHighFallRisk); v != 3 {
		t.Errorf("high fall risk threshold = %v; want 3", v)
	}
	network, _ := registry.Get(models.DomainNetworkPerformance)
	if v, _ := network.Thresholds().Get(ThresholdRSSIPoor); v != 10 {
		t.Errorf("network threshold changed unexpectedly: %v", v)
	}
}

func TestApplyConfigEventPerDomainSections(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewSafetyEngine(nil))
	registry.Register(NewNetworkEngine(nil))

	registry.ApplyConfigEvent(map[string]any{
		"soldier_safety_thresholds":      map[string]float64{ThresholdHeatStress: 40},
		"network_performance_thresholds": map[string]float64{ThresholdRSSIPoor: 12},
	})

	safety, _ := registry.Get(models.DomainSoldierSafety)
	if v, _ := safety.Thresholds().Get(ThresholdHeatStress); v != 40 {
		t.Errorf("heat stress threshold = %v; want 40", v)
	}
	network, _ := registry.Get(models.DomainNetworkPerformance)
	if v, _ := network.Thresholds().Get(ThresholdRSSIPoor); v != 12 {
		t.Errorf("rssi poor threshold = %v; want 12", v)
	}
}

func TestApplyConfigEventShortKeys(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewSafetyEngine(nil))
	registry.Register(NewNetworkEngine(nil))

	registry.ApplyConfigEvent(map[string]any{
		"safety_thresholds":  map[string]any{ThresholdHeatStress: 40.0},
		"network_thresholds": map[string]any{ThresholdRSSIPoor: 12.0},
	})

	safety, _ := registry.Get(models.DomainSoldierSafety)
	if v, _ := safety.Thresholds().Get(ThresholdHeatStress); v != 40 {
		t.Errorf("heat stress threshold = %v; want 40", v)
	}
	network, _ := registry.Get(models.DomainNetworkPerformance)
	if v, _ := network.Thresholds().Get(ThresholdRSSIPoor); v != 12 {
		t.Errorf("rssi poor threshold = %v; want 12", v)
	}
}

func TestApplyConfigEventUnknownDomainIgnored(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewSafetyEngine(nil))

	registry.ApplyConfigEvent(map[string]any{
		"domain":     "unknown_domain",
		"thresholds": map[string]any{"x": 1.0},
	})
	registry.ApplyConfigEvent(map[string]any{
		"soldier_safety_thresholds": "not-a-map",
	})

	safety, _ := registry.Get(models.DomainSoldierSafety)
	if v, _ := safety.Thresholds().Get(ThresholdHighFallRisk); v != 5 {
		t.Errorf("default threshold = %v; want 5 untouched", v)
	}
}
