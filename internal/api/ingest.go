// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package api

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tacsight/tacsight/internal/dataset"
	"github.com/tacsight/tacsight/internal/logging"
	"github.com/tacsight/tacsight/internal/models"
)

// TelemetryIngest accepts a batch of telemetry records and hands them
// to the pipeline via DATA_LOAD events. The response is returned as
// soon as the batch is published; analysis results arrive on the
// websocket and event history.
func (rt *Router) TelemetryIngest(w http.ResponseWriter, r *http.Request) {
	requestID := RequestIDFromContext(r.Context())
	if requestID == "" {
		requestID = uuid.NewString()
	}

	rt.bus.Publish(models.Event{
		Type:   models.EventDataLoadStarted,
		Source: "API",
		Data:   map[string]any{"request_id": requestID},
	})

	var records []map[string]any
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		rt.bus.Publish(models.Event{
			Type:   models.EventDataLoadFailed,
			Source: "API",
			Data: map[string]any{
				"request_id": requestID,
				"error":      err.Error(),
			},
		})
		respondError(w, r, http.StatusBadRequest, "invalid_body", "body must be a JSON array of records")
		return
	}

	ds := dataset.FromRecords(records)
	rt.bus.Publish(models.Event{
		Type:   models.EventDataLoadCompleted,
		Source: "API",
		Data: map[string]any{
			"request_id":   requestID,
			"dataset":      ds,
			"record_count": ds.Len(),
		},
	})

	logging.Info().
		Str("request_id", requestID).
		Int("records", ds.Len()).
		Msg("telemetry batch accepted")

	respondJSON(w, r, http.StatusAccepted, map[string]any{
		"request_id": requestID,
		"records":    ds.Len(),
	})
}
