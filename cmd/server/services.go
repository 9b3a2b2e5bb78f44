// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package main

import (
	"context"
	"fmt"

	"github.com/thejerf/suture/v4"

	"github.com/tacsight/tacsight/internal/logging"
	"github.com/tacsight/tacsight/internal/servicemanager"
	"github.com/tacsight/tacsight/internal/supervisor"
)

// supervised adapts a suture.Service to the service manager lifecycle:
// Start hands the component to the supervisor tree, Stop removes it.
// The manager decides ordering and readiness; suture handles restarts.
type supervised struct {
	svc    suture.Service
	add    func(suture.Service) suture.ServiceToken
	remove func(suture.ServiceToken) error

	token suture.ServiceToken
	added bool
}

func (s *supervised) Start(ctx context.Context) error {
	s.token = s.add(s.svc)
	s.added = true
	return nil
}

func (s *supervised) Stop(ctx context.Context) error {
	if !s.added {
		return nil
	}
	s.added = false
	if err := s.remove(s.token); err != nil {
		return fmt.Errorf("remove from supervisor: %w", err)
	}
	return nil
}

// registerServices wires the long-lived components into the service
// manager with their dependencies. The HTTP server starts last so the
// surface never reports healthy before the pipeline exists.
func registerServices(
	manager *servicemanager.Manager,
	tree *supervisor.Tree,
	hub suture.Service,
	eventBridge suture.Service,
	orch suture.Service,
	httpServer suture.Service,
) {
	pipeline := func(svc suture.Service) *supervised {
		return &supervised{svc: svc, add: tree.AddPipelineService, remove: tree.RemovePipelineService}
	}

	mustRegister := func(name string, svc servicemanager.Service, deps ...string) {
		if err := manager.Register(name, svc, deps...); err != nil {
			logging.Fatal().Err(err).Str("service", name).Msg("service registration failed")
		}
	}

	mustRegister("websocket-hub", pipeline(hub))
	mustRegister("event-bridge", pipeline(eventBridge), "websocket-hub")
	mustRegister("orchestrator", pipeline(orch))
	mustRegister("http-server", &supervised{
		svc:    httpServer,
		add:    tree.AddAPIService,
		remove: tree.RemoveAPIService,
	}, "websocket-hub", "event-bridge", "orchestrator")
}
