// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package models

// AlertLevel orders alert severity from informational to critical.
type AlertLevel int

const (
	AlertInfo AlertLevel = iota
	AlertWarning
	AlertCritical
)

// String returns the canonical lowercase name of the level.
func (l AlertLevel) String() string {
	switch l {
	case AlertInfo:
		return "info"
	case AlertWarning:
		return "warning"
	case AlertCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalJSON serializes the level as its string name.
func (l AlertLevel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

// Alert is a threshold-triggered finding produced by analysis engines
// or the data validator. Immutable once produced.
type Alert struct {
	// Type names the condition, e.g. "CRITICAL_FALL_RISK".
	Type string `json:"alert_type"`

	// Level is the severity tier of the alert.
	Level AlertLevel `json:"level"`

	// Message is a human-readable description for downstream rendering.
	Message string `json:"message"`

	// AffectedUnits lists the callsigns the alert applies to.
	// Empty for dataset-wide alerts.
	AffectedUnits []string `json:"affected_units,omitempty"`

	// MetricValue is the observed value that triggered the alert.
	MetricValue *float64 `json:"metric_value,omitempty"`

	// Threshold is the configured limit the value was compared against.
	Threshold *float64 `json:"threshold,omitempty"`
}

// Float returns a pointer to v, for populating optional alert fields.
func Float(v float64) *float64 {
	return &v
}
