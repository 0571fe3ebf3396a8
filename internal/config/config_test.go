// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Site.URL = "https://lms.example.org"
	cfg.Database.Path = "/tmp/test.duckdb"
	cfg.Security.JWTSecret = strings.Repeat("s", 32)
	return cfg
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config passes",
			mutate: func(c *Config) {},
		},
		{
			name:    "port zero rejected",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "port too high rejected",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "missing site url rejected",
			mutate:  func(c *Config) { c.Site.URL = "" },
			wantErr: "site.url",
		},
		{
			name:    "site url without scheme rejected",
			mutate:  func(c *Config) { c.Site.URL = "lms.example.org" },
			wantErr: "site.url",
		},
		{
			name:   "empty platform url allowed",
			mutate: func(c *Config) { c.Platform.URL = "" },
		},
		{
			name:    "malformed platform url rejected",
			mutate:  func(c *Config) { c.Platform.URL = "ftp://remote.example.org" },
			wantErr: "platform.url",
		},
		{
			name:    "sub-second sync interval rejected when enabled",
			mutate:  func(c *Config) { c.Sync.Interval = 500 * time.Millisecond },
			wantErr: "sync.interval",
		},
		{
			name: "sub-second sync interval ignored when disabled",
			mutate: func(c *Config) {
				c.Sync.Enabled = false
				c.Sync.Interval = 0
			},
		},
		{
			name:    "missing database path rejected",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "missing jwt secret rejected",
			mutate:  func(c *Config) { c.Security.JWTSecret = "" },
			wantErr: "jwt_secret",
		},
		{
			name:    "short jwt secret rejected",
			mutate:  func(c *Config) { c.Security.JWTSecret = "short" },
			wantErr: "jwt_secret",
		},
		{
			name:    "zero rate limit rejected when enabled",
			mutate:  func(c *Config) { c.Security.RateLimitReqs = 0 },
			wantErr: "rate_limit_reqs",
		},
		{
			name: "zero rate limit allowed when disabled",
			mutate: func(c *Config) {
				c.Security.RateLimitDisabled = true
				c.Security.RateLimitReqs = 0
			},
		},
		{
			name:    "unknown log level rejected",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "unknown log format rejected",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestListenAddr(t *testing.T) {
	t.Parallel()

	cfg := &Config{Server: ServerConfig{Host: "127.0.0.1", Port: 8470}}
	if got, want := cfg.ListenAddr(), "127.0.0.1:8470"; got != want {
		t.Errorf("ListenAddr() = %q, want %q", got, want)
	}
}

func TestLoadWithKoanfDefaults(t *testing.T) {
	// Environment manipulation; cannot run in parallel.
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "nonexistent.yaml"))
	t.Setenv("BSS_SITE_URL", "https://lms.example.org")
	t.Setenv("BSS_DATABASE_PATH", filepath.Join(t.TempDir(), "bss.duckdb"))
	t.Setenv("BSS_JWT_SECRET", strings.Repeat("k", 32))

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error: %v", err)
	}

	if cfg.Server.Port != 8470 {
		t.Errorf("default server.port = %d, want 8470", cfg.Server.Port)
	}
	if cfg.Sync.Interval != 5*time.Minute {
		t.Errorf("default sync.interval = %s, want 5m", cfg.Sync.Interval)
	}
	if !cfg.Sync.Enabled {
		t.Error("default sync.enabled = false, want true")
	}
	if cfg.Platform.URL != "" {
		t.Errorf("default platform.url = %q, want empty", cfg.Platform.URL)
	}
}

func TestLoadWithKoanfLayering(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
server:
  port: 9000
site:
  url: https://file.example.org
platform:
  url: https://platform.example.org
database:
  path: ` + filepath.Join(dir, "bss.duckdb") + `
security:
  jwt_secret: ` + strings.Repeat("f", 32) + `
sync:
  interval: 90s
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	t.Setenv(ConfigPathEnvVar, configPath)
	// Env overrides the file value.
	t.Setenv("BSS_SERVER_PORT", "9100")
	t.Setenv("BSS_CORS_ORIGINS", "https://a.example.org, https://b.example.org")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("server.port = %d, want env override 9100", cfg.Server.Port)
	}
	if cfg.Site.URL != "https://file.example.org" {
		t.Errorf("site.url = %q, want file value", cfg.Site.URL)
	}
	if cfg.Sync.Interval != 90*time.Second {
		t.Errorf("sync.interval = %s, want 90s from file", cfg.Sync.Interval)
	}
	want := []string{"https://a.example.org", "https://b.example.org"}
	if len(cfg.Security.CORSOrigins) != len(want) {
		t.Fatalf("cors_origins = %v, want %v", cfg.Security.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Security.CORSOrigins[i] != want[i] {
			t.Errorf("cors_origins[%d] = %q, want %q", i, cfg.Security.CORSOrigins[i], want[i])
		}
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"BSS_PLATFORM_URL", "platform.url"},
		{"BSS_SYNC_INTERVAL", "sync.interval"},
		{"BSS_JWT_SECRET", "security.jwt_secret"},
		{"BSS_ALLOW_DUPLICATE_EMAILS", "security.allow_duplicate_emails"},
		{"BSS_LOG_LEVEL", "logging.level"},
		{"BSS_UNRELATED_VAR", ""},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.in); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
