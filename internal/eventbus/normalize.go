// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package eventbus

import (
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/tacsight/tacsight/internal/models"
)

// Normalize converts a publish payload into a canonical Event.
//
// Accepted shapes:
//   - models.Event / *models.Event: used as-is, defaults filled in
//   - map[string]any: "event_type" (or legacy "type") names the event;
//     "data", "source", and "timestamp" keys are honored, remaining
//     keys fold into Data
//
// Missing source defaults to "unknown", missing timestamp to now, and
// a missing ID is generated. Returns false for anything else.
func Normalize(payload any) (models.Event, bool) {
	switch v := payload.(type) {
	case models.Event:
		return fillDefaults(v), true
	case *models.Event:
		if v == nil {
			return models.Event{}, false
		}
		return fillDefaults(*v), true
	case map[string]any:
		return fromMap(v)
	default:
		return models.Event{}, false
	}
}

func fillDefaults(evt models.Event) models.Event {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Source == "" {
		evt.Source = models.SourceUnknown
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	if evt.Data == nil {
		evt.Data = map[string]any{}
	}
	return evt
}

func fromMap(m map[string]any) (models.Event, bool) {
	eventType, _ := m["event_type"].(string)
	if eventType == "" {
		eventType, _ = m["type"].(string)
	}
	if eventType == "" {
		return models.Event{}, false
	}

	evt := models.Event{Type: eventType}

	if src, ok := m["source"].(string); ok {
		evt.Source = src
	}
	if ts, ok := m["timestamp"]; ok {
		if t, err := cast.ToTimeE(ts); err == nil {
			evt.Timestamp = t
		}
	}

	if data, ok := m["data"].(map[string]any); ok {
		evt.Data = data
	} else {
		// Loose payload: fold the remaining keys into Data.
		data := make(map[string]any)
		for k, v := range m {
			switch k {
			case "event_type", "type", "source", "timestamp":
			default:
				data[k] = v
			}
		}
		evt.Data = data
	}

	return fillDefaults(evt), true
}
