// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tacsight/tacsight/internal/logging"
	"github.com/tacsight/tacsight/internal/models"
	"github.com/tacsight/tacsight/internal/servicemanager"
	ws "github.com/tacsight/tacsight/internal/websocket"
)

func respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	respond(w, r, status, &models.APIResponse{
		Status: "success",
		Data:   data,
	})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respond(w, r, status, &models.APIResponse{
		Status: "error",
		Error:  &models.APIError{Code: code, Message: message},
	})
}

func respond(w http.ResponseWriter, r *http.Request, status int, response *models.APIResponse) {
	response.Metadata = models.Metadata{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: RequestIDFromContext(r.Context()),
	}

	w.Header().Set("Content-Type", "application/json")
	body, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal API response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Error().Err(err).Msg("failed to write API response")
	}
}

// EventsHistory returns recent events, optionally filtered by type.
func (rt *Router) EventsHistory(w http.ResponseWriter, r *http.Request) {
	eventType := r.URL.Query().Get("type")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, r, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	events := rt.bus.History(eventType, limit)
	exported := make([]models.ExportedEvent, len(events))
	for i, evt := range events {
		exported[i] = evt.Exported()
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"events": exported,
		"count":  len(exported),
	})
}

// EventsStats returns the bus counters.
func (rt *Router) EventsStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, rt.bus.Statistics())
}

type exportRequest struct {
	EventType string `json:"event_type"`
}

// EventsExport writes the retained history to the configured export
// path.
func (rt *Router) EventsExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, r, http.StatusBadRequest, "invalid_body", "request body must be JSON")
			return
		}
	}

	if err := rt.bus.ExportHistory(rt.exportPath, req.EventType); err != nil {
		logging.Err(err).Msg("event history export failed")
		respondError(w, r, http.StatusInternalServerError, "export_failed", err.Error())
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"path": rt.exportPath})
}

// Services lists every managed service with its state and dependencies.
func (rt *Router) Services(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]any{
		"services":     rt.manager.Info(),
		"system_ready": rt.manager.IsSystemReady(),
	})
}

// ServiceByName returns one managed service.
func (rt *Router) ServiceByName(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	for _, info := range rt.manager.Info() {
		if info.Name == name {
			respondJSON(w, r, http.StatusOK, info)
			return
		}
	}
	respondError(w, r, http.StatusNotFound, "unknown_service", "no such service: "+name)
}

// ServiceRestart stops and starts one service.
func (rt *Router) ServiceRestart(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := rt.manager.Restart(r.Context(), name)
	switch {
	case err == nil:
		state, _ := rt.manager.Status(name)
		respondJSON(w, r, http.StatusOK, map[string]any{
			"service": name,
			"status":  string(state),
		})
	case errors.Is(err, servicemanager.ErrServiceNotFound):
		respondError(w, r, http.StatusNotFound, "unknown_service", err.Error())
	default:
		respondError(w, r, http.StatusConflict, "restart_failed", err.Error())
	}
}

// ThresholdsGet returns the current threshold snapshot for a domain
// engine.
func (rt *Router) ThresholdsGet(w http.ResponseWriter, r *http.Request) {
	domain := models.AnalysisDomain(chi.URLParam(r, "domain"))
	engine, ok := rt.registry.Get(domain)
	if !ok {
		respondError(w, r, http.StatusNotFound, "unknown_domain", "no engine for domain: "+string(domain))
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"domain":     string(domain),
		"thresholds": engine.Thresholds().Snapshot(),
	})
}

// ThresholdsPut updates domain thresholds. The update travels through a
// CONFIG_CHANGED event rather than mutating the engine directly, so
// every subscriber sees the change.
func (rt *Router) ThresholdsPut(w http.ResponseWriter, r *http.Request) {
	domain := models.AnalysisDomain(chi.URLParam(r, "domain"))
	engine, ok := rt.registry.Get(domain)
	if !ok {
		respondError(w, r, http.StatusNotFound, "unknown_domain", "no engine for domain: "+string(domain))
		return
	}

	var thresholds map[string]float64
	if err := json.NewDecoder(r.Body).Decode(&thresholds); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_body", "body must be a JSON object of numeric thresholds")
		return
	}
	if len(thresholds) == 0 {
		respondError(w, r, http.StatusBadRequest, "empty_update", "no thresholds supplied")
		return
	}

	rt.bus.Publish(models.Event{
		Type:   models.EventConfigChanged,
		Source: "API",
		Data: map[string]any{
			"domain":     string(domain),
			"thresholds": thresholds,
		},
	})

	respondJSON(w, r, http.StatusOK, map[string]any{
		"domain":     string(domain),
		"thresholds": engine.Thresholds().Snapshot(),
	})
}

// Health reports overall system state.
func (rt *Router) Health(w http.ResponseWriter, r *http.Request) {
	ready := rt.manager.IsSystemReady()
	status := "ok"
	code := http.StatusOK
	if !ready {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, r, code, map[string]any{
		"status":          status,
		"system_ready":    ready,
		"running":         rt.manager.RunningServices(),
		"failed":          rt.manager.FailedServices(),
		"total_events":    rt.bus.Statistics().TotalEvents,
		"registered_svcs": len(rt.manager.Info()),
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is enforced by the CORS middleware; the
	// upgrade itself accepts any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocket upgrades the connection and attaches it to the hub.
func (rt *Router) WebSocket(w http.ResponseWriter, r *http.Request) {
	if rt.hub == nil {
		respondError(w, r, http.StatusNotImplemented, "ws_disabled", "websocket streaming is not enabled")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Err(err).Msg("websocket upgrade failed")
		return
	}
	client := ws.NewClient(rt.hub, conn)
	rt.hub.Register <- client
	client.Start()
}
