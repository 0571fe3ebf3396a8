// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

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
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/bservicesuite/config.yaml",
	"/etc/bservicesuite/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix namespaces the service's environment variables:
// BSS_PLATFORM_URL, BSS_SYNC_INTERVAL, and so on.
const envPrefix = "BSS_"

// defaultConfig returns the built-in defaults. They are applied first,
// then overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8470,
			Timeout: 30 * time.Second,
		},
		Site: SiteConfig{
			URL: "",
		},
		Platform: PlatformConfig{
			URL: "", // outbound delivery disabled until configured
		},
		Sync: SyncConfig{
			Enabled:  true,
			Interval: 5 * time.Minute,
		},
		Database: DatabaseConfig{
			Path: "/data/bservicesuite.duckdb",
		},
		Security: SecurityConfig{
			JWTSecret:            "",
			AllowDuplicateEmails: false,
			CORSOrigins:          []string{"*"},
			RateLimitReqs:        100,
			RateLimitWindow:      1 * time.Minute,
			RateLimitDisabled:    false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration with layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. BSS_-prefixed environment variables (highest priority)
//
// The merged configuration is validated before being returned.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// BSS_SYNC_INTERVAL -> sync.interval, BSS_SECURITY_JWT_SECRET ->
	// security.jwt_secret. Multi-word leaf keys are resolved through an
	// explicit mapping since underscores are ambiguous.
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
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first readable config file, or "" if none.
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

// sliceConfigPaths are the config paths parsed as comma-separated slices
// when they arrive as plain strings from the environment.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

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
			p = strings.TrimSpace(p)
			if p != "" {
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

// envTransformFunc maps BSS_-prefixed environment variable names to koanf
// config paths. Unknown variables map to "" and are skipped so stray
// environment variables cannot pollute the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	envMappings := map[string]string{
		"server_host":    "server.host",
		"server_port":    "server.port",
		"server_timeout": "server.timeout",

		"site_url":     "site.url",
		"platform_url": "platform.url",

		"sync_enabled":  "sync.enabled",
		"sync_interval": "sync.interval",

		"database_path": "database.path",

		"jwt_secret":             "security.jwt_secret",
		"allow_duplicate_emails": "security.allow_duplicate_emails",
		"cors_origins":           "security.cors_origins",
		"rate_limit_requests":    "security.rate_limit_reqs",
		"rate_limit_window":      "security.rate_limit_window",
		"disable_rate_limit":     "security.rate_limit_disabled",

		"log_level":  "logging.level",
		"log_format": "logging.format",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
