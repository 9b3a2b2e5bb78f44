// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tacsight/tacsight/internal/logging"
)

// Config holds all application configuration.
//
// Loading order (Koanf v2):
//  1. Defaults: built-in values for every setting
//  2. Config file: optional YAML file (config.yaml)
//  3. Environment variables: TACSIGHT_* overrides
//
// Config is immutable after Load and safe for concurrent reads.
// Runtime threshold changes travel through CONFIG_CHANGED events
// instead of mutating this struct.
type Config struct {
	Logging    logging.Config   `koanf:"logging"`
	Server     ServerConfig     `koanf:"server"`
	Bus        BusConfig        `koanf:"bus"`
	Alerts     AlertsConfig     `koanf:"alerts"`
	Analysis   AnalysisConfig   `koanf:"analysis"`
	Validation ValidationConfig `koanf:"validation"`

	// Threshold overrides merged over each engine's built-in defaults.
	SafetyThresholds  map[string]float64 `koanf:"safety_thresholds"`
	NetworkThresholds map[string]float64 `koanf:"network_thresholds"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout" validate:"min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=1s"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// BusConfig holds event bus settings.
type BusConfig struct {
	MaxHistory      int           `koanf:"max_history" validate:"min=1"`
	CallbackTimeout time.Duration `koanf:"callback_timeout" validate:"min=0"`
	ExportPath      string        `koanf:"export_path"`
}

// AlertsConfig bounds the rate at which alerts fan out to consumers.
type AlertsConfig struct {
	RatePerSecond float64 `koanf:"rate_per_second" validate:"min=0"`
	Burst         int     `koanf:"burst" validate:"min=1"`
}

// AnalysisConfig holds the analysis pipeline settings.
type AnalysisConfig struct {
	Timeout                 time.Duration `koanf:"timeout" validate:"min=1s"`
	BreakerMaxRequests      uint32        `koanf:"breaker_max_requests" validate:"min=1"`
	BreakerInterval         time.Duration `koanf:"breaker_interval"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout" validate:"min=1s"`
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold" validate:"min=1"`
}

// ValidationConfig holds data validation settings.
type ValidationConfig struct {
	DefaultRules bool `koanf:"default_rules"`

	// RuleOverrides toggles individual rules by ID, e.g. VR_RSSI: false.
	RuleOverrides map[string]bool `koanf:"rule_overrides"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func configValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks structural constraints on the loaded configuration.
func (c *Config) Validate() error {
	if err := configValidator().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for name, v := range c.SafetyThresholds {
		if v < 0 {
			return fmt.Errorf("invalid configuration: safety threshold %s must not be negative", name)
		}
	}
	return nil
}
