// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

// Package servicemanager coordinates application service lifecycles.
//
// Services register with explicit dependencies. StartAll resolves a
// dependency-respecting start order up front, rejecting cycles and
// unknown dependencies before touching any service, then starts
// services one by one. A failed service does not abort the run: its
// dependents are skipped with an error state and independent services
// still start. StopAll stops services in reverse start order.
package servicemanager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tacsight/tacsight/internal/logging"
	"github.com/tacsight/tacsight/internal/metrics"
	"github.com/tacsight/tacsight/internal/models"
)

// State is a service lifecycle state.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateError    State = "error"
)

var (
	ErrServiceExists   = errors.New("service already registered")
	ErrServiceNotFound = errors.New("service not found")
)

// Service is a managed component with a blocking start and stop.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// EventPublisher is the subset of the event bus the manager publishes to.
type EventPublisher interface {
	Publish(event any)
}

type entry struct {
	service   Service
	deps      []string
	state     State
	lastErr   error
	startedAt time.Time
}

// Manager registers services and drives their lifecycles.
type Manager struct {
	mu           sync.Mutex
	services     map[string]*entry
	startOrder   []string
	publisher    EventPublisher
	systemReady  bool
	shuttingDown bool
}

// New creates a service manager. publisher may be nil.
func New(publisher EventPublisher) *Manager {
	return &Manager{
		services:  make(map[string]*entry),
		publisher: publisher,
	}
}

// Register adds a service with its dependency names. Dependencies are
// validated when StartAll resolves the start order, not here, so
// services can register in any order.
func (m *Manager) Register(name string, service Service, deps ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.services[name]; ok {
		return fmt.Errorf("%w: %s", ErrServiceExists, name)
	}
	m.services[name] = &entry{
		service: service,
		deps:    append([]string(nil), deps...),
		state:   StateStopped,
	}
	logging.Info().
		Str("component", "servicemanager").
		Str("service", name).
		Strs("dependencies", deps).
		Msg("service registered")
	return nil
}

// Unregister removes a stopped service.
func (m *Manager) Unregister(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.services[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}
	if e.state == StateRunning || e.state == StateStarting {
		return fmt.Errorf("service %s is %s; stop it before unregistering", name, e.state)
	}
	delete(m.services, name)
	return nil
}

// startPlan resolves the full start order with a depth-first topological
// sort. Unknown dependencies and cycles fail the plan before any
// service starts.
func (m *Manager) startPlan() ([]string, error) {
	names := make([]string, 0, len(m.services))
	for name := range m.services {
		names = append(names, name)
	}
	sort.Strings(names)

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	marks := make(map[string]int, len(names))
	order := make([]string, 0, len(names))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch marks[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("dependency cycle involving %s (path %v)", name, path)
		}
		marks[name] = visiting
		e, ok := m.services[name]
		if !ok {
			return fmt.Errorf("unknown dependency %s (required by %s)", name, path[len(path)-1])
		}
		deps := append([]string(nil), e.deps...)
		sort.Strings(deps)
		for _, dep := range deps {
			if err := visit(dep, append(path, name)); err != nil {
				return err
			}
		}
		marks[name] = done
		order = append(order, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name, []string{name}); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// StartAll starts every registered service in dependency order.
// Individual start failures do not abort the run; the error return
// aggregates every failure. When every service reaches running, a
// system_ready event is published.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	m.shuttingDown = false
	plan, err := m.startPlan()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	var errs []error
	for _, name := range plan {
		m.mu.Lock()
		if m.shuttingDown {
			m.mu.Unlock()
			break
		}
		e := m.services[name]
		if e == nil || e.state == StateRunning {
			m.mu.Unlock()
			continue
		}

		// A service only starts when every dependency is running.
		var failedDep string
		for _, dep := range e.deps {
			if d, ok := m.services[dep]; !ok || d.state != StateRunning {
				failedDep = dep
				break
			}
		}
		if failedDep != "" {
			err := fmt.Errorf("service %s: dependency %s is not running", name, failedDep)
			e.state = StateError
			e.lastErr = err
			m.mu.Unlock()
			m.recordStartFailure(name, err)
			errs = append(errs, err)
			continue
		}

		e.state = StateStarting
		service := e.service
		m.mu.Unlock()

		logging.Info().
			Str("component", "servicemanager").
			Str("service", name).
			Msg("starting service")

		startErr := service.Start(ctx)

		m.mu.Lock()
		if startErr != nil {
			e.state = StateError
			e.lastErr = startErr
			m.mu.Unlock()
			m.recordStartFailure(name, startErr)
			errs = append(errs, fmt.Errorf("service %s: %w", name, startErr))
			continue
		}
		e.state = StateRunning
		e.lastErr = nil
		e.startedAt = time.Now()
		m.startOrder = append(m.startOrder, name)
		m.mu.Unlock()

		metrics.ServiceStarts.WithLabelValues(name, "ok").Inc()
		metrics.ServicesRunning.Inc()
		m.publish(models.EventServiceStarted, map[string]any{"service": name})
	}

	if m.allRunning() {
		m.mu.Lock()
		m.systemReady = true
		m.mu.Unlock()
		logging.Info().Str("component", "servicemanager").Msg("all services running")
		m.publish(models.EventSystemReady, map[string]any{"services": m.RunningServices()})
	}
	return errors.Join(errs...)
}

func (m *Manager) recordStartFailure(name string, err error) {
	logging.Err(err).
		Str("component", "servicemanager").
		Str("service", name).
		Msg("service failed to start")
	metrics.ServiceStarts.WithLabelValues(name, "failed").Inc()
	m.publish(models.EventServiceFailed, map[string]any{
		"service": name,
		"error":   err.Error(),
	})
}

// StopAll stops running services in reverse start order.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	m.shuttingDown = true
	m.systemReady = false
	order := append([]string(nil), m.startOrder...)
	m.startOrder = m.startOrder[:0]
	m.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		if err := m.stopOne(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) stopOne(ctx context.Context, name string) error {
	m.mu.Lock()
	e, ok := m.services[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}
	if e.state != StateRunning {
		m.mu.Unlock()
		return nil
	}
	e.state = StateStopping
	service := e.service
	m.mu.Unlock()

	logging.Info().
		Str("component", "servicemanager").
		Str("service", name).
		Msg("stopping service")

	err := service.Stop(ctx)

	m.mu.Lock()
	e.startedAt = time.Time{}
	if err != nil {
		e.state = StateError
		e.lastErr = err
		m.mu.Unlock()
		return fmt.Errorf("service %s: %w", name, err)
	}
	e.state = StateStopped
	m.mu.Unlock()

	metrics.ServicesRunning.Dec()
	m.publish(models.EventServiceStopped, map[string]any{"service": name})
	return nil
}

// Restart stops then starts one service. Its dependencies must already
// be running.
func (m *Manager) Restart(ctx context.Context, name string) error {
	m.mu.Lock()
	e, ok := m.services[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}
	for _, dep := range e.deps {
		if d, ok := m.services[dep]; !ok || d.state != StateRunning {
			m.mu.Unlock()
			return fmt.Errorf("service %s: dependency %s is not running", name, dep)
		}
	}
	m.mu.Unlock()

	if err := m.stopOne(ctx, name); err != nil {
		return err
	}

	m.mu.Lock()
	e.state = StateStarting
	service := e.service
	// Drop the service from the recorded start order; it is appended
	// again on successful start.
	for i, n := range m.startOrder {
		if n == name {
			m.startOrder = append(m.startOrder[:i], m.startOrder[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	err := service.Start(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		e.state = StateError
		e.lastErr = err
		m.recordStartFailure(name, err)
		return fmt.Errorf("service %s: %w", name, err)
	}
	e.state = StateRunning
	e.lastErr = nil
	e.startedAt = time.Now()
	m.startOrder = append(m.startOrder, name)
	metrics.ServiceStarts.WithLabelValues(name, "ok").Inc()
	metrics.ServicesRunning.Inc()
	m.publish(models.EventServiceStarted, map[string]any{"service": name, "restart": true})
	return nil
}

// Status returns the state of one service.
func (m *Manager) Status(name string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.services[name]
	if !ok {
		return "", false
	}
	return e.state, true
}

// LastError returns the most recent start or stop error for a service.
func (m *Manager) LastError(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.services[name]; ok {
		return e.lastErr
	}
	return nil
}

// AllStatus returns every service's state.
func (m *Manager) AllStatus() map[string]State {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]State, len(m.services))
	for name, e := range m.services {
		out[name] = e.state
	}
	return out
}

// StartTime returns when a service last entered the running state.
// The second return is false for unknown or non-running services.
func (m *Manager) StartTime(name string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.services[name]
	if !ok || e.startedAt.IsZero() {
		return time.Time{}, false
	}
	return e.startedAt, true
}

// Info returns the API view of every service, sorted by name.
func (m *Manager) Info() []models.ServiceInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := make([]models.ServiceInfo, 0, len(m.services))
	for name, e := range m.services {
		info := models.ServiceInfo{
			Name:         name,
			Status:       string(e.state),
			Dependencies: append([]string(nil), e.deps...),
		}
		if !e.startedAt.IsZero() {
			info.StartTime = e.startedAt.UTC().Format(time.RFC3339)
			info.Uptime = now.Sub(e.startedAt).Round(time.Second).String()
		}
		if e.lastErr != nil {
			info.Error = e.lastErr.Error()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RunningServices returns running service names, sorted.
func (m *Manager) RunningServices() []string {
	return m.byState(StateRunning)
}

// FailedServices returns service names in the error state, sorted.
func (m *Manager) FailedServices() []string {
	return m.byState(StateError)
}

func (m *Manager) byState(state State) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for name, e := range m.services {
		if e.state == state {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// IsSystemReady reports whether every registered service is running.
func (m *Manager) IsSystemReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.systemReady
}

func (m *Manager) allRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.services) == 0 {
		return false
	}
	for _, e := range m.services {
		if e.state != StateRunning {
			return false
		}
	}
	return true
}

func (m *Manager) publish(eventType string, data map[string]any) {
	if m.publisher == nil {
		return
	}
	m.publisher.Publish(models.Event{
		Type:   eventType,
		Source: "ServiceManager",
		Data:   data,
	})
}
