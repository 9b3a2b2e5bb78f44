// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package engines

import (
	"sync"

	"github.com/spf13/cast"

	"github.com/tacsight/tacsight/internal/logging"
)

// ThresholdStore holds an engine's numeric thresholds. Reads take a
// snapshot so a running analysis sees one consistent view while
// CONFIG_CHANGED updates land concurrently. Updates are last-writer-wins.
type ThresholdStore struct {
	mu     sync.RWMutex
	values map[string]float64
}

// NewThresholdStore creates a store seeded with defaults.
func NewThresholdStore(defaults map[string]float64) *ThresholdStore {
	values := make(map[string]float64, len(defaults))
	for k, v := range defaults {
		values[k] = v
	}
	return &ThresholdStore{values: values}
}

// Snapshot returns a copy of the current thresholds.
func (s *ThresholdStore) Snapshot() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Get returns a single threshold value.
func (s *ThresholdStore) Get(name string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Apply merges updates over the current thresholds. Values that cannot
// coerce to float64 are skipped.
func (s *ThresholdStore) Apply(updates map[string]any) {
	if len(updates) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, raw := range updates {
		v, err := cast.ToFloat64E(raw)
		if err != nil {
			logging.Warn().
				Str("component", "engines").
				Str("threshold", name).
				Msg("ignoring non-numeric threshold update")
			continue
		}
		s.values[name] = v
	}
}

// ApplyFloats merges float updates, used for config-file overrides.
func (s *ThresholdStore) ApplyFloats(updates map[string]float64) {
	if len(updates) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, v := range updates {
		s.values[name] = v
	}
}
