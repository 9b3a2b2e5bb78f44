// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package eventbus

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/tacsight/tacsight/internal/models"
)

// ExportHistory serializes the retained history (optionally filtered by
// event type) to a JSON array at path. The file is written to a
// temporary sibling and renamed into place, so a failed export never
// leaves a partial file behind.
func (b *Bus) ExportHistory(path, eventType string) error {
	events := b.History(eventType, b.cfg.MaxHistory)

	exported := make([]models.ExportedEvent, len(events))
	for i, evt := range events {
		exported[i] = evt.Exported()
	}

	data, err := json.MarshalIndent(exported, "", "  ")
	if err != nil {
		return fmt.Errorf("encode event history: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("create temp export file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write event history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp export file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename export into place: %w", err)
	}
	return nil
}
