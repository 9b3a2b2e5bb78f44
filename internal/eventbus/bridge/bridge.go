// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

// Package bridge forwards alert and analysis events from the internal
// event bus onto Watermill topics at the report/GUI boundary, and feeds
// the consumed messages to a broadcast sink (the WebSocket hub).
//
// The indirection keeps presentation consumers off the bus proper: a
// slow GUI client backs up a Watermill channel, never a bus subscriber.
package bridge

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tacsight/tacsight/internal/eventbus"
	"github.com/tacsight/tacsight/internal/logging"
	"github.com/tacsight/tacsight/internal/models"
)

// Watermill topics carrying events out of the core.
const (
	TopicAlerts   = "tacsight.alerts"
	TopicAnalysis = "tacsight.analysis"
)

// Sink receives decoded messages for broadcast to presentation clients.
type Sink interface {
	BroadcastJSON(messageType string, data any)
}

// Bridge couples the event bus to a Watermill in-process pub/sub.
type Bridge struct {
	bus    *eventbus.Bus
	sink   Sink
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter

	mu       sync.Mutex
	handlers []string
}

// New creates a bridge over an in-memory Watermill channel.
func New(bus *eventbus.Bus, sink Sink) *Bridge {
	logger := NewZerologAdapter()
	return &Bridge{
		bus:  bus,
		sink: sink,
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, logger),
		logger: logger,
	}
}

// Serve implements suture.Service. It wires bus subscriptions to
// Watermill publication, consumes both topics, and blocks until the
// context is canceled.
func (b *Bridge) Serve(ctx context.Context) error {
	alerts, err := b.pubsub.Subscribe(ctx, TopicAlerts)
	if err != nil {
		return err
	}
	analysis, err := b.pubsub.Subscribe(ctx, TopicAnalysis)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.handlers = []string{
		b.bus.Subscribe(models.EventAlertTriggered, b.forwardTo(TopicAlerts), 0),
		b.bus.Subscribe(models.EventAnalysisCompleted, b.forwardTo(TopicAnalysis), 0),
	}
	b.mu.Unlock()

	logging.Info().Msg("event bridge started")

	for {
		select {
		case <-ctx.Done():
			b.shutdown()
			return ctx.Err()
		case msg, ok := <-alerts:
			if !ok {
				b.shutdown()
				return nil
			}
			b.deliver("alert", msg)
		case msg, ok := <-analysis:
			if !ok {
				b.shutdown()
				return nil
			}
			b.deliver("analysis", msg)
		}
	}
}

// forwardTo returns a bus callback that republishes the event payload
// as a Watermill message on the given topic.
func (b *Bridge) forwardTo(topic string) eventbus.Callback {
	return func(evt models.Event) {
		payload, err := json.Marshal(evt.Data)
		if err != nil {
			logging.Err(err).Str("event_type", evt.Type).Msg("bridge failed to encode event payload")
			return
		}
		msg := message.NewMessage(evt.ID, payload)
		msg.Metadata.Set("event_type", evt.Type)
		msg.Metadata.Set("source", evt.Source)

		if err := b.pubsub.Publish(topic, msg); err != nil {
			logging.Err(err).Str("topic", topic).Msg("bridge publish failed")
		}
	}
}

// deliver decodes one Watermill message and hands it to the sink.
func (b *Bridge) deliver(messageType string, msg *message.Message) {
	defer msg.Ack()

	var data map[string]any
	if err := json.Unmarshal(msg.Payload, &data); err != nil {
		logging.Err(err).Str("message_id", msg.UUID).Msg("bridge failed to decode message")
		return
	}
	if b.sink != nil {
		b.sink.BroadcastJSON(messageType, data)
	}
}

func (b *Bridge) shutdown() {
	b.mu.Lock()
	handlers := b.handlers
	b.handlers = nil
	b.mu.Unlock()

	for _, id := range handlers {
		b.bus.Unsubscribe(id)
	}
	if err := b.pubsub.Close(); err != nil {
		logging.Warn().Err(err).Msg("error closing bridge pubsub")
	}
	logging.Info().Msg("event bridge stopped")
}
