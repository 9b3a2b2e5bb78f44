// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

// Package api exposes the HTTP monitoring surface: event history and
// statistics, service lifecycle, engine thresholds, health, Prometheus
// metrics, and the websocket upgrade endpoint.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tacsight/tacsight/internal/config"
	"github.com/tacsight/tacsight/internal/engines"
	"github.com/tacsight/tacsight/internal/eventbus"
	"github.com/tacsight/tacsight/internal/servicemanager"
	"github.com/tacsight/tacsight/internal/websocket"
)

// Router wires the API handlers to their collaborators.
type Router struct {
	cfg        config.ServerConfig
	bus        *eventbus.Bus
	manager    *servicemanager.Manager
	registry   *engines.Registry
	hub        *websocket.Hub
	exportPath string
}

// New creates a router. hub may be nil when the websocket surface is
// disabled.
func New(cfg config.ServerConfig, bus *eventbus.Bus, manager *servicemanager.Manager, registry *engines.Registry, hub *websocket.Hub, exportPath string) *Router {
	return &Router{
		cfg:        cfg,
		bus:        bus,
		manager:    manager,
		registry:   registry,
		hub:        hub,
		exportPath: exportPath,
	}
}

// Routes builds the chi handler tree.
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", rt.Health)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/ws", rt.WebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		if rt.cfg.RateLimitReqs > 0 && rt.cfg.RateLimitWindow > 0 {
			r.Use(httprate.LimitByIP(rt.cfg.RateLimitReqs, rt.cfg.RateLimitWindow))
		}
		r.Use(recordMetrics)

		r.Post("/telemetry", rt.TelemetryIngest)

		r.Get("/events/history", rt.EventsHistory)
		r.Get("/events/stats", rt.EventsStats)
		r.Post("/events/export", rt.EventsExport)

		r.Get("/services", rt.Services)
		r.Get("/services/{name}", rt.ServiceByName)
		r.Post("/services/{name}/restart", rt.ServiceRestart)

		r.Get("/thresholds/{domain}", rt.ThresholdsGet)
		r.Put("/thresholds/{domain}", rt.ThresholdsPut)
	})

	return r
}
