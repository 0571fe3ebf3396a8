// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config defines the service configuration and its layered loader.
// Precedence is env vars > YAML config file > built-in defaults.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration for the service.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Site     SiteConfig     `koanf:"site"`
	Platform PlatformConfig `koanf:"platform"`
	Sync     SyncConfig     `koanf:"sync"`
	Database DatabaseConfig `koanf:"database"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// SiteConfig identifies the local LMS site this service runs alongside.
// URL is sent to the external platform as the X-Origin-Url header so the
// remote side can attribute incoming user records.
type SiteConfig struct {
	URL string `koanf:"url"`
}

// PlatformConfig points at the external platform that receives user
// records. An empty URL disables outbound delivery entirely: sync records
// still accumulate locally and are delivered once the URL is set.
type PlatformConfig struct {
	URL string `koanf:"url"`
}

// SyncConfig controls the background reconciliation job.
type SyncConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

// DatabaseConfig controls the DuckDB database holding both the site
// tables and the plugin-owned user_sync table.
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// SecurityConfig holds authentication and request-shaping settings.
type SecurityConfig struct {
	JWTSecret            string        `koanf:"jwt_secret"`
	AllowDuplicateEmails bool          `koanf:"allow_duplicate_emails"`
	CORSOrigins          []string      `koanf:"cors_origins"`
	RateLimitReqs        int           `koanf:"rate_limit_reqs"`
	RateLimitWindow      time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled    bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Validate checks the configuration for internal consistency. It is called
// by LoadWithKoanf after all layers are merged; tests may also call it
// directly on hand-built configs.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}

	if c.Site.URL == "" {
		return fmt.Errorf("site.url is required")
	}
	if err := validateURL(c.Site.URL); err != nil {
		return fmt.Errorf("site.url: %w", err)
	}

	// Platform URL is optional (delivery disabled when empty), but when
	// set it must be well-formed.
	if c.Platform.URL != "" {
		if err := validateURL(c.Platform.URL); err != nil {
			return fmt.Errorf("platform.url: %w", err)
		}
	}

	if c.Sync.Enabled && c.Sync.Interval < time.Second {
		return fmt.Errorf("sync.interval must be at least 1s, got %s", c.Sync.Interval)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required")
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters, got %d", len(c.Security.JWTSecret))
	}

	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs <= 0 {
			return fmt.Errorf("security.rate_limit_reqs must be positive, got %d", c.Security.RateLimitReqs)
		}
		if c.Security.RateLimitWindow <= 0 {
			return fmt.Errorf("security.rate_limit_window must be positive, got %s", c.Security.RateLimitWindow)
		}
	}

	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of trace, debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	return nil
}

// ListenAddr returns the host:port pair for the HTTP listener.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL is missing a host")
	}
	if strings.ContainsAny(raw, " \t\n") {
		return fmt.Errorf("URL contains whitespace")
	}
	return nil
}
