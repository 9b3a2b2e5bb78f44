// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

// Package models provides the shared data structures for TacSight:
// events, alerts, validation results, and analysis results.
package models

import "time"

// Event type constants published through the event bus.
// Producers use these instead of ad-hoc strings so subscribers
// and filters can match reliably.
const (
	EventDataLoadStarted    = "DATA_LOAD_STARTED"
	EventDataLoadCompleted  = "DATA_LOAD_COMPLETED"
	EventDataLoadFailed     = "DATA_LOAD_FAILED"
	EventValidationComplete = "DATA_VALIDATION_COMPLETED"
	EventAnalysisStarted    = "ANALYSIS_STARTED"
	EventAnalysisCompleted  = "ANALYSIS_COMPLETED"
	EventAnalysisFailed     = "ANALYSIS_FAILED"
	EventAlertTriggered     = "ALERT_TRIGGERED"
	EventConfigChanged      = "CONFIG_CHANGED"
	EventErrorOccurred      = "ERROR_OCCURRED"
	EventReportStarted      = "REPORT_GENERATION_STARTED"
	EventReportCompleted    = "REPORT_GENERATION_COMPLETED"
	EventSystemReady        = "system_ready"
	EventServiceStarted     = "service_started"
	EventServiceFailed      = "service_failed"
	EventServiceStopped     = "service_stopped"
)

// SourceUnknown is assigned to events published without a source.
const SourceUnknown = "unknown"

// Event is the canonical message carried by the event bus.
// Events are immutable once the middleware chain has run; subscribers
// must treat the Data map as read-only.
type Event struct {
	// ID uniquely identifies this event instance.
	ID string `json:"id"`

	// Type is one of the Event* constants (or any producer-defined type).
	Type string `json:"event_type"`

	// Data carries the type-specific payload.
	Data map[string]any `json:"data"`

	// Timestamp records when the event was published.
	Timestamp time.Time `json:"timestamp"`

	// Source identifies the publishing component.
	Source string `json:"source"`
}

// ExportedEvent is the wire shape used by history export.
// Timestamps are serialized as RFC 3339 strings.
type ExportedEvent struct {
	EventType string         `json:"event_type"`
	Timestamp string         `json:"timestamp"`
	Source    string         `json:"source"`
	Data      map[string]any `json:"data"`
}

// Exported converts an Event to its export wire shape.
func (e Event) Exported() ExportedEvent {
	return ExportedEvent{
		EventType: e.Type,
		Timestamp: e.Timestamp.Format(time.RFC3339),
		Source:    e.Source,
		Data:      e.Data,
	}
}
