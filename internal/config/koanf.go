// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tacsight/tacsight/internal/logging"
)

// DefaultConfigPaths lists the paths searched for a config file, in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tacsight/config.yaml",
	"/etc/tacsight/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "TACSIGHT_CONFIG"

// envPrefix scopes which environment variables are considered.
const envPrefix = "TACSIGHT_"

// Default returns a Config with every setting at its built-in default.
func Default() *Config {
	return &Config{
		Logging: logging.Config{
			Level:     "info",
			Format:    "json",
			Caller:    false,
			Timestamp: true,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8087,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Bus: BusConfig{
			MaxHistory:      1000,
			CallbackTimeout: 5 * time.Second,
			ExportPath:      "event_history.json",
		},
		Alerts: AlertsConfig{
			RatePerSecond: 10,
			Burst:         20,
		},
		Analysis: AnalysisConfig{
			Timeout:                 60 * time.Second,
			BreakerMaxRequests:      1,
			BreakerInterval:         0,
			BreakerTimeout:          30 * time.Second,
			BreakerFailureThreshold: 3,
		},
		Validation: ValidationConfig{
			DefaultRules:  true,
			RuleOverrides: map[string]bool{},
		},
		SafetyThresholds:  map[string]float64{},
		NetworkThresholds: map[string]float64{},
	}
}

// Load builds the configuration from layered sources:
//  1. Defaults from Default()
//  2. Optional YAML config file
//  3. TACSIGHT_* environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile returns the first existing config file path, checking
// the TACSIGHT_CONFIG override before the default search paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when set through environment variables.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices
// for known slice fields. Env vars come in as plain strings.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps TACSIGHT_* environment variable names to koanf
// config paths. Unknown variables are dropped so unrelated environment
// entries cannot pollute the config.
//
// Examples:
//   - TACSIGHT_LOG_LEVEL -> logging.level
//   - TACSIGHT_HTTP_PORT -> server.port
//   - TACSIGHT_SAFETY_HIGH_FALL_RISK_THRESHOLD -> safety_thresholds.high_fall_risk_threshold
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	envMappings := map[string]string{
		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Server mappings
		"http_host":         "server.host",
		"http_port":         "server.port",
		"http_timeout":      "server.timeout",
		"shutdown_timeout":  "server.shutdown_timeout",
		"cors_origins":      "server.cors_origins",
		"rate_limit_reqs":   "server.rate_limit_reqs",
		"rate_limit_window": "server.rate_limit_window",

		// Event bus mappings
		"bus_max_history":      "bus.max_history",
		"bus_callback_timeout": "bus.callback_timeout",
		"bus_export_path":      "bus.export_path",

		// Alert throttle mappings
		"alerts_rate":  "alerts.rate_per_second",
		"alerts_burst": "alerts.burst",

		// Analysis pipeline mappings
		"analysis_timeout":          "analysis.timeout",
		"breaker_max_requests":      "analysis.breaker_max_requests",
		"breaker_interval":          "analysis.breaker_interval",
		"breaker_timeout":           "analysis.breaker_timeout",
		"breaker_failure_threshold": "analysis.breaker_failure_threshold",

		// Validation mappings
		"validation_default_rules": "validation.default_rules",
	}
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Threshold overrides keep their key name under the domain prefix.
	if name, ok := strings.CutPrefix(key, "safety_"); ok {
		return "safety_thresholds." + name
	}
	if name, ok := strings.CutPrefix(key, "network_"); ok {
		return "network_thresholds." + name
	}
	return ""
}
