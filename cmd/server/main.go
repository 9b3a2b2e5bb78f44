// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

// Command server runs the TacSight analytics service: the event bus,
// validation rule engine, domain analysis engines, and the HTTP/
// websocket monitoring surface, supervised under one suture tree and
// started in dependency order by the service manager.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tacsight/tacsight/internal/api"
	"github.com/tacsight/tacsight/internal/config"
	"github.com/tacsight/tacsight/internal/engines"
	"github.com/tacsight/tacsight/internal/eventbus"
	"github.com/tacsight/tacsight/internal/eventbus/bridge"
	"github.com/tacsight/tacsight/internal/logging"
	"github.com/tacsight/tacsight/internal/models"
	"github.com/tacsight/tacsight/internal/orchestrator"
	"github.com/tacsight/tacsight/internal/servicemanager"
	"github.com/tacsight/tacsight/internal/supervisor"
	"github.com/tacsight/tacsight/internal/validation"
	"github.com/tacsight/tacsight/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tacsight: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logging.Init(cfg.Logging)
	logging.Info().Msg("starting tacsight")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Core pub/sub hub. Every other component hangs off the bus.
	bus := eventbus.New(eventbus.Config{
		MaxHistory:      cfg.Bus.MaxHistory,
		CallbackTimeout: cfg.Bus.CallbackTimeout,
	})
	bus.AddMiddleware(eventbus.LoggingMiddleware())

	validator := buildValidator(bus, cfg.Validation)
	registry := buildEngines(bus, cfg)

	// Runtime configuration changes fan out to the validator and every
	// engine threshold store.
	bus.Subscribe(models.EventConfigChanged, func(evt models.Event) {
		registry.ApplyConfigEvent(evt.Data)
		validator.ApplyConfig(evt.Data)
	}, 0)

	hub := websocket.NewHub()
	eventBridge := bridge.New(bus, hub)
	orch := orchestrator.New(bus, validator, registry, cfg.Analysis)

	manager := servicemanager.New(bus)
	router := api.New(cfg.Server, bus, manager, registry, hub, cfg.Bus.ExportPath)
	httpServer := api.NewServer(cfg.Server, router.Routes())

	slogger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	tree := supervisor.NewTree(slogger, supervisor.DefaultTreeConfig())
	treeErr := tree.ServeBackground(ctx)

	registerServices(manager, tree, hub, eventBridge, orch, httpServer)

	if err := manager.StartAll(ctx); err != nil {
		logging.Err(err).Msg("some services failed to start")
	}

	select {
	case <-ctx.Done():
		logging.Info().Msg("shutdown signal received")
	case err := <-treeErr:
		logging.Err(err).Msg("supervisor tree terminated")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := manager.StopAll(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("errors during service shutdown")
	}

	if path := cfg.Bus.ExportPath; path != "" {
		if err := bus.ExportHistory(path, ""); err != nil {
			logging.Warn().Err(err).Msg("final event history export failed")
		}
	}

	logging.Info().Msg("tacsight stopped")
	return nil
}

// buildValidator creates the validation rule engine and applies
// configured per-rule overrides.
func buildValidator(bus *eventbus.Bus, cfg config.ValidationConfig) *validation.Engine {
	validator := validation.NewEngine(bus, cfg.DefaultRules)
	for ruleID, enabled := range cfg.RuleOverrides {
		if enabled {
			validator.EnableRule(ruleID)
		} else {
			validator.DisableRule(ruleID)
		}
	}
	return validator
}

// buildEngines registers every analysis engine behind the alert rate
// gate and merges configured threshold overrides over the engine
// defaults.
func buildEngines(bus *eventbus.Bus, cfg *config.Config) *engines.Registry {
	gate := orchestrator.NewAlertGate(bus, cfg.Alerts)

	registry := engines.NewRegistry()
	safety := engines.NewSafetyEngine(gate)
	network := engines.NewNetworkEngine(gate)
	registry.Register(safety)
	registry.Register(network)
	registry.Register(engines.NewActivityEngine(gate))
	registry.Register(engines.NewEquipmentEngine(gate))
	registry.Register(engines.NewEnvironmentalEngine(gate))

	safety.Thresholds().ApplyFloats(cfg.SafetyThresholds)
	network.Thresholds().ApplyFloats(cfg.NetworkThresholds)
	return registry
}
