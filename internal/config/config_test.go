// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config failed validation: %v", err)
	}
	if cfg.Server.Port != 8087 {
		t.Errorf("Port = %d; want 8087", cfg.Server.Port)
	}
	if cfg.Bus.MaxHistory != 1000 {
		t.Errorf("MaxHistory = %d; want 1000", cfg.Bus.MaxHistory)
	}
	if !cfg.Validation.DefaultRules {
		t.Error("DefaultRules should be enabled by default")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q; want info", cfg.Logging.Level)
	}
	if cfg.Server.Timeout != 30*time.Second {
		t.Errorf("Server.Timeout = %v; want 30s", cfg.Server.Timeout)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TACSIGHT_HTTP_PORT", "9099")
	t.Setenv("TACSIGHT_LOG_LEVEL", "debug")
	t.Setenv("TACSIGHT_BUS_MAX_HISTORY", "250")
	t.Setenv("TACSIGHT_SAFETY_HIGH_FALL_RISK_THRESHOLD", "8")
	t.Setenv("TACSIGHT_CORS_ORIGINS", "http://a.example, http://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9099 {
		t.Errorf("Port = %d; want 9099", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q; want debug", cfg.Logging.Level)
	}
	if cfg.Bus.MaxHistory != 250 {
		t.Errorf("Bus.MaxHistory = %d; want 250", cfg.Bus.MaxHistory)
	}
	if got := cfg.SafetyThresholds["high_fall_risk_threshold"]; got != 8 {
		t.Errorf("safety high_fall_risk_threshold = %v; want 8", got)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "http://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
}

func TestUnknownEnvVarsIgnored(t *testing.T) {
	t.Setenv("TACSIGHT_NO_SUCH_SETTING", "whatever")

	if _, err := Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
}

func TestConfigFileLayer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 7070
logging:
  level: warn
network_thresholds:
  rssi_poor: 12
validation:
  rule_overrides:
    VR_RSSI: false
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Port = %d; want 7070", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q; want warn", cfg.Logging.Level)
	}
	if got := cfg.NetworkThresholds["rssi_poor"]; got != 12 {
		t.Errorf("network rssi_poor = %v; want 12", got)
	}
	if enabled, ok := cfg.Validation.RuleOverrides["VR_RSSI"]; !ok || enabled {
		t.Errorf("RuleOverrides[VR_RSSI] = %v, %v; want false, true", enabled, ok)
	}
	// Untouched settings keep their defaults.
	if cfg.Bus.MaxHistory != 1000 {
		t.Errorf("Bus.MaxHistory = %d; want default 1000", cfg.Bus.MaxHistory)
	}
}

func TestEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("TACSIGHT_HTTP_PORT", "9099")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9099 {
		t.Errorf("Port = %d; want env override 9099", cfg.Server.Port)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"zero history", func(c *Config) { c.Bus.MaxHistory = 0 }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"negative safety threshold", func(c *Config) { c.SafetyThresholds["high_fall_risk_threshold"] = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
