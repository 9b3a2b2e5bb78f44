// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package engines

import (
	"github.com/tacsight/tacsight/internal/logging"
	"github.com/tacsight/tacsight/internal/models"
)

// Short threshold keys published by external config collaborators,
// accepted alongside the full per-domain key names.
var thresholdKeyAliases = map[string]models.AnalysisDomain{
	"safety_thresholds":  models.DomainSoldierSafety,
	"network_thresholds": models.DomainNetworkPerformance,
}

// ApplyConfigEvent applies a CONFIG_CHANGED payload to registered
// engines' threshold stores. Three payload shapes are understood:
//
//	{"domain": "soldier_safety", "thresholds": {...}}
//	{"safety_thresholds": {...}, "network_thresholds": {...}}
//	{"soldier_safety_thresholds": {...}, "network_performance_thresholds": {...}}
//
// Unknown domains and non-map values are logged and skipped.
func (r *Registry) ApplyConfigEvent(data map[string]any) {
	if domain, ok := data["domain"].(string); ok {
		if thresholds := asThresholdMap(data["thresholds"]); thresholds != nil {
			r.applyToDomain(models.AnalysisDomain(domain), thresholds)
		}
		return
	}

	for _, domain := range r.Domains() {
		r.applyKey(data, string(domain)+"_thresholds", domain)
	}
	for key, domain := range thresholdKeyAliases {
		r.applyKey(data, key, domain)
	}
}

func (r *Registry) applyKey(data map[string]any, key string, domain models.AnalysisDomain) {
	raw, ok := data[key]
	if !ok {
		return
	}
	thresholds := asThresholdMap(raw)
	if thresholds == nil {
		logging.Warn().
			Str("component", "engines").
			Str("key", key).
			Msg("config change value is not a threshold map, skipping")
		return
	}
	r.applyToDomain(domain, thresholds)
}

func (r *Registry) applyToDomain(domain models.AnalysisDomain, thresholds map[string]any) {
	engine, ok := r.Get(domain)
	if !ok {
		logging.Warn().
			Str("component", "engines").
			Str("domain", string(domain)).
			Msg("config change for unknown domain, skipping")
		return
	}
	engine.Thresholds().Apply(thresholds)
	logging.Info().
		Str("component", "engines").
		Str("domain", string(domain)).
		Int("keys", len(thresholds)).
		Msg("engine thresholds updated")
}

func asThresholdMap(raw any) map[string]any {
	switch v := raw.(type) {
	case map[string]any:
		return v
	case map[string]float64:
		out := make(map[string]any, len(v))
		for k, f := range v {
			out[k] = f
		}
		return out
	default:
		return nil
	}
}
