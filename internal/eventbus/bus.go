// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

// Package eventbus implements the in-process publish/subscribe hub that
// decouples loaders, validators, analysis engines, and reporters.
//
// The bus guarantees that Publish never fails because of a misbehaving
// consumer: middleware panics are logged and skipped, filter and
// subscriber panics are logged and isolated, and a subscriber that
// blocks past the configured timeout is abandoned. Every published
// event is recorded in the bounded history and statistics before
// middleware or filters get a chance to suppress its delivery.
package eventbus

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tacsight/tacsight/internal/logging"
	"github.com/tacsight/tacsight/internal/metrics"
	"github.com/tacsight/tacsight/internal/models"
)

// Callback receives a delivered event. Callbacks must not mutate the
// event's Data map.
type Callback func(event models.Event)

// Middleware transforms an event before delivery. Returning nil
// suppresses delivery; the event has already been recorded in history
// and statistics by that point.
type Middleware func(event models.Event) *models.Event

// Filter decides whether events of one type are delivered.
type Filter func(event models.Event) bool

// Config holds event bus tuning parameters.
type Config struct {
	// MaxHistory bounds the FIFO event history.
	MaxHistory int `koanf:"max_history" validate:"gt=0"`

	// CallbackTimeout bounds a single subscriber callback. A callback
	// exceeding it is abandoned so it cannot stall the publisher.
	// Zero disables the timeout.
	CallbackTimeout time.Duration `koanf:"callback_timeout" validate:"gte=0"`
}

// DefaultConfig returns the default bus configuration.
func DefaultConfig() Config {
	return Config{
		MaxHistory:      1000,
		CallbackTimeout: 5 * time.Second,
	}
}

// subscription is one registered callback. Owned by the bus registry.
type subscription struct {
	id        string
	eventType string
	callback  Callback
	priority  int
	seq       uint64
}

// Stats is a read-only snapshot of bus counters.
type Stats struct {
	TotalEvents      uint64            `json:"total_events"`
	EventsByType     map[string]uint64 `json:"events_by_type"`
	SubscribersCount int               `json:"subscribers_count"`
	ActiveEventTypes []string          `json:"active_event_types"`
	HistorySize      int               `json:"history_size"`
}

// Bus is the thread-safe publish/subscribe hub. A single mutex guards
// the subscriber registry, history buffer, and statistics; callback
// invocation happens outside the lock against a point-in-time snapshot
// of the subscriber list, so subscribers may call back into the bus.
type Bus struct {
	mu         sync.Mutex
	cfg        Config
	subs       map[string][]*subscription
	byID       map[string]*subscription
	middleware []Middleware
	filters    map[string]Filter
	history    []models.Event
	total      uint64
	byType     map[string]uint64
	nextSeq    uint64
}

// New creates a bus with the given configuration.
func New(cfg Config) *Bus {
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultConfig().MaxHistory
	}
	return &Bus{
		cfg:     cfg,
		subs:    make(map[string][]*subscription),
		byID:    make(map[string]*subscription),
		filters: make(map[string]Filter),
		byType:  make(map[string]uint64),
	}
}

// Subscribe registers a callback for an event type and returns its
// handler ID. Delivery order is priority descending; subscribers with
// equal priority are delivered in registration order. Always succeeds.
func (b *Bus) Subscribe(eventType string, cb Callback, priority int) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscription{
		id:        uuid.NewString(),
		eventType: eventType,
		callback:  cb,
		priority:  priority,
		seq:       b.nextSeq,
	}
	b.nextSeq++

	list := append(b.subs[eventType], sub)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority > list[j].priority
		}
		return list[i].seq < list[j].seq
	})
	b.subs[eventType] = list
	b.byID[sub.id] = sub

	metrics.BusSubscribers.Set(float64(len(b.byID)))
	return sub.id
}

// Unsubscribe removes a subscription by handler ID.
// Returns false if the ID is unknown.
func (b *Bus) Unsubscribe(handlerID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.byID[handlerID]
	if !ok {
		return false
	}
	delete(b.byID, handlerID)

	list := b.subs[sub.eventType]
	for i, s := range list {
		if s.id == handlerID {
			b.subs[sub.eventType] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[sub.eventType]) == 0 {
		delete(b.subs, sub.eventType)
	}

	metrics.BusSubscribers.Set(float64(len(b.byID)))
	return true
}

// AddMiddleware appends a middleware to the chain. Middleware runs in
// registration order on every published event.
func (b *Bus) AddMiddleware(mw Middleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, mw)
}

// SetEventFilter installs a delivery predicate for one event type,
// replacing any existing filter for that type.
func (b *Bus) SetEventFilter(eventType string, f Filter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filters[eventType] = f
}

// RemoveEventFilter removes the filter for an event type.
func (b *Bus) RemoveEventFilter(eventType string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.filters, eventType)
}

// Publish normalizes and distributes an event. It accepts a
// models.Event, *models.Event, or a loosely-typed map (see Normalize).
// Publish never panics and never returns an error to the caller:
// unparseable input is logged and dropped, and all middleware, filter,
// and subscriber failures are contained.
func (b *Bus) Publish(event any) {
	evt, ok := Normalize(event)
	if !ok {
		logging.Warn().Msg("event bus dropped unrecognized publish payload")
		return
	}

	// Record first: history and statistics reflect every publish,
	// including events middleware or filters later suppress.
	b.mu.Lock()
	b.total++
	b.byType[evt.Type]++
	b.history = append(b.history, evt)
	if len(b.history) > b.cfg.MaxHistory {
		b.history = b.history[1:]
	}
	historySize := len(b.history)
	mws := make([]Middleware, len(b.middleware))
	copy(mws, b.middleware)
	filter := b.filters[evt.Type]
	b.mu.Unlock()

	metrics.RecordEventPublished(evt.Type, historySize)

	for i, mw := range mws {
		out := b.runMiddleware(mw, evt, i)
		if out == nil {
			metrics.EventsSuppressed.WithLabelValues(evt.Type, "middleware").Inc()
			return
		}
		evt = *out
	}

	if filter != nil && !b.runFilter(filter, evt) {
		metrics.EventsSuppressed.WithLabelValues(evt.Type, "filter").Inc()
		return
	}

	b.mu.Lock()
	snapshot := make([]*subscription, len(b.subs[evt.Type]))
	copy(snapshot, b.subs[evt.Type])
	b.mu.Unlock()

	for _, sub := range snapshot {
		b.invoke(sub, evt)
	}
}

// runMiddleware executes one middleware, converting a panic into an
// identity transform.
func (b *Bus) runMiddleware(mw Middleware, evt models.Event, index int) (out *models.Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().
				Int("middleware_index", index).
				Str("event_type", evt.Type).
				Any("panic", r).
				Msg("event middleware panicked, applying identity transform")
			out = &evt
		}
	}()
	return mw(evt)
}

// runFilter executes a filter, treating a panic as "deliver".
func (b *Bus) runFilter(f Filter, evt models.Event) (pass bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().
				Str("event_type", evt.Type).
				Any("panic", r).
				Msg("event filter panicked, delivering event")
			pass = true
		}
	}()
	return f(evt)
}

// invoke delivers an event to one subscriber, isolating panics and
// enforcing the callback timeout. On timeout the callback goroutine is
// abandoned; this leaks the goroutine but keeps the publisher healthy.
func (b *Bus) invoke(sub *subscription, evt models.Event) {
	run := func() {
		start := time.Now()
		defer func() {
			metrics.RecordCallback(evt.Type, time.Since(start))
			if r := recover(); r != nil {
				metrics.CallbackErrors.WithLabelValues(evt.Type, "panic").Inc()
				logging.Error().
					Str("handler_id", sub.id).
					Str("event_type", evt.Type).
					Any("panic", r).
					Msg("subscriber callback panicked")
			}
		}()
		sub.callback(evt)
	}

	if b.cfg.CallbackTimeout <= 0 {
		run()
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		run()
	}()

	select {
	case <-done:
	case <-time.After(b.cfg.CallbackTimeout):
		metrics.CallbackErrors.WithLabelValues(evt.Type, "timeout").Inc()
		logging.Warn().
			Str("handler_id", sub.id).
			Str("event_type", evt.Type).
			Dur("timeout", b.cfg.CallbackTimeout).
			Msg("subscriber callback exceeded timeout, abandoning")
	}
}

// History returns the most recent events, newest last. A non-empty
// eventType filters by type; limit <= 0 defaults to 100.
func (b *Bus) History(eventType string, limit int) []models.Event {
	if limit <= 0 {
		limit = 100
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var matched []models.Event
	if eventType == "" {
		matched = b.history
	} else {
		for _, evt := range b.history {
			if evt.Type == eventType {
				matched = append(matched, evt)
			}
		}
	}

	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	out := make([]models.Event, len(matched))
	copy(out, matched)
	return out
}

// ClearHistory discards all retained events. Statistics counters keep
// their values.
func (b *Bus) ClearHistory() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = nil
	metrics.EventHistorySize.Set(0)
}

// Statistics returns a snapshot of the bus counters.
func (b *Bus) Statistics() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	byType := make(map[string]uint64, len(b.byType))
	types := make([]string, 0, len(b.byType))
	for t, n := range b.byType {
		byType[t] = n
		types = append(types, t)
	}
	sort.Strings(types)

	return Stats{
		TotalEvents:      b.total,
		EventsByType:     byType,
		SubscribersCount: len(b.byID),
		ActiveEventTypes: types,
		HistorySize:      len(b.history),
	}
}
