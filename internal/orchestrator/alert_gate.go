// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package orchestrator

import (
	"golang.org/x/time/rate"

	"github.com/tacsight/tacsight/internal/config"
	"github.com/tacsight/tacsight/internal/eventbus"
	"github.com/tacsight/tacsight/internal/logging"
	"github.com/tacsight/tacsight/internal/metrics"
	"github.com/tacsight/tacsight/internal/models"
)

// Publisher is the downstream publish surface the gate wraps.
type Publisher interface {
	Publish(event any)
}

// AlertGate rate-limits ALERT_TRIGGERED events on their way to the bus.
// Engines publish through the gate; an alert storm is throttled here
// instead of flooding every subscriber. All other event types pass
// through untouched.
type AlertGate struct {
	next    Publisher
	limiter *rate.Limiter
}

// NewAlertGate wraps a publisher with an alert rate limit. A
// non-positive rate disables throttling.
func NewAlertGate(next Publisher, cfg config.AlertsConfig) *AlertGate {
	limit := rate.Limit(cfg.RatePerSecond)
	if cfg.RatePerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &AlertGate{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Publish forwards the event, dropping throttled alerts.
func (g *AlertGate) Publish(event any) {
	if evt, ok := eventbus.Normalize(event); ok && evt.Type == models.EventAlertTriggered {
		if !g.limiter.Allow() {
			metrics.AlertsThrottled.Inc()
			logging.Debug().
				Str("component", "orchestrator").
				Str("source", evt.Source).
				Msg("alert throttled")
			return
		}
	}
	g.next.Publish(event)
}
