// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package eventbus

import (
	"github.com/tacsight/tacsight/internal/logging"
	"github.com/tacsight/tacsight/internal/models"
)

// LoggingMiddleware debug-logs every event passing through the bus.
// Installed by default in the server wiring.
func LoggingMiddleware() Middleware {
	return func(evt models.Event) *models.Event {
		logging.Debug().
			Str("event_type", evt.Type).
			Str("source", evt.Source).
			Str("event_id", evt.ID).
			Msg("event published")
		return &evt
	}
}

// TypeAllowlistMiddleware suppresses every event whose type is not in
// the allow set. Useful for replay and test harnesses.
func TypeAllowlistMiddleware(allowed ...string) Middleware {
	set := make(map[string]struct{}, len(allowed))
	for _, t := range allowed {
		set[t] = struct{}{}
	}
	return func(evt models.Event) *models.Event {
		if _, ok := set[evt.Type]; !ok {
			return nil
		}
		return &evt
	}
}
