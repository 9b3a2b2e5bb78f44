// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tacsight/tacsight/internal/eventbus"
	"github.com/tacsight/tacsight/internal/models"
)

type captureSink struct {
	mu       sync.Mutex
	messages []capturedMessage
}

type capturedMessage struct {
	messageType string
	data        map[string]any
}

func (s *captureSink) BroadcastJSON(messageType string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, _ := data.(map[string]any)
	s.messages = append(s.messages, capturedMessage{messageType, m})
}

func (s *captureSink) snapshot() []capturedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]capturedMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

func TestBridgeForwardsAlerts(t *testing.T) {
	bus := eventbus.New(eventbus.DefaultConfig())
	sink := &captureSink{}
	b := New(bus, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = b.Serve(ctx)
		close(done)
	}()

	// Give Serve a moment to register its bus subscriptions.
	time.Sleep(50 * time.Millisecond)

	bus.Publish(models.Event{
		Type: models.EventAlertTriggered,
		Data: map[string]any{"alert_type": "CRITICAL_FALL_RISK", "level": "critical"},
	})
	bus.Publish(models.Event{
		Type: models.EventAnalysisCompleted,
		Data: map[string]any{"domain": "soldier_safety"},
	})

	deadline := time.After(2 * time.Second)
	for {
		msgs := sink.snapshot()
		if len(msgs) >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("Expected 2 forwarded messages, got %d", len(msgs))
		case <-time.After(10 * time.Millisecond):
		}
	}

	types := map[string]bool{}
	for _, m := range sink.snapshot() {
		types[m.messageType] = true
	}
	if !types["alert"] || !types["analysis"] {
		t.Errorf("Expected alert and analysis messages, got %v", types)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Bridge did not stop on context cancellation")
	}
}

func TestBridgeUnsubscribesOnShutdown(t *testing.T) {
	bus := eventbus.New(eventbus.DefaultConfig())
	b := New(bus, &captureSink{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = b.Serve(ctx)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)

	before := bus.Statistics().SubscribersCount
	if before != 2 {
		t.Fatalf("Expected 2 bridge subscriptions, got %d", before)
	}

	cancel()
	<-done

	if after := bus.Statistics().SubscribersCount; after != 0 {
		t.Errorf("Expected bridge subscriptions removed, got %d", after)
	}
}
