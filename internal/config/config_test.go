// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// isolate points the config directory at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SCHOOLHUB_HOME", dir)
	for _, key := range []string{
		"SCHOOLHUB_API_URL", "SCHOOLHUB_IDLE_TIMEOUT", "SCHOOLHUB_WARNING_COUNTDOWN",
		"SCHOOLHUB_MENU_FILE", "SCHOOLHUB_LOG_LEVEL", "SCHOOLHUB_THEME", "SCHOOLHUB_AUDIT",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Session.IdleTimeoutSecs != 900 {
		t.Errorf("IdleTimeoutSecs = %d, want 900", cfg.Session.IdleTimeoutSecs)
	}
	if cfg.Session.WarningCountdownSecs != 60 {
		t.Errorf("WarningCountdownSecs = %d, want 60", cfg.Session.WarningCountdownSecs)
	}
}

func TestLoad_NoFilesUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.BaseURL != Default().API.BaseURL {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
}

func TestLoad_TOMLOverridesDefaults(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	content := `
[api]
base_url = "https://school.example.com/api/"

[session]
idle_timeout_secs = 300
warning_countdown_secs = 30

[audit]
enabled = false
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.BaseURL != "https://school.example.com/api" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", cfg.API.BaseURL)
	}
	if cfg.Session.IdleTimeoutSecs != 300 || cfg.Session.WarningCountdownSecs != 30 {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.Audit.Enabled {
		t.Error("audit should be disabled by file")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want default info", cfg.Log.Level)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 && runtime.GOOS != "windows" {
		t.Errorf("config permissions = %o, want 0600", perm)
	}
}

func TestLoad_JSONFallback(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"session": {"idle_timeout_secs": 120}}`), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Session.IdleTimeoutSecs != 120 {
		t.Errorf("IdleTimeoutSecs = %d, want 120", cfg.Session.IdleTimeoutSecs)
	}
	if cfg.Session.WarningCountdownSecs != 60 {
		t.Errorf("WarningCountdownSecs = %d, want default 60", cfg.Session.WarningCountdownSecs)
	}
}

func TestLoad_InvalidFileFails(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[session]\nidle_timeout_secs = 0\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	var verrs ValidateErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("error %v should wrap ValidateErrors", err)
	}
	if verrs[0].Field != "session.idle_timeout_secs" {
		t.Errorf("field = %q", verrs[0].Field)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("SCHOOLHUB_API_URL", "https://env.example.com")
	t.Setenv("SCHOOLHUB_IDLE_TIMEOUT", "45")
	t.Setenv("SCHOOLHUB_WARNING_COUNTDOWN", "not-a-number")
	t.Setenv("SCHOOLHUB_AUDIT", "false")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.API.BaseURL != "https://env.example.com" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.Session.IdleTimeoutSecs != 45 {
		t.Errorf("IdleTimeoutSecs = %d, want 45", cfg.Session.IdleTimeoutSecs)
	}
	if cfg.Session.WarningCountdownSecs != 60 {
		t.Errorf("malformed override should be ignored, got %d", cfg.Session.WarningCountdownSecs)
	}
	if cfg.Audit.Enabled {
		t.Error("SCHOOLHUB_AUDIT=false should disable audit")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"bad url", func(c *Config) { c.API.BaseURL = "not a url" }, "api.base_url"},
		{"ftp url", func(c *Config) { c.API.BaseURL = "ftp://example.com" }, "api.base_url"},
		{"zero timeout", func(c *Config) { c.API.TimeoutSecs = 0 }, "api.timeout_secs"},
		{"zero idle", func(c *Config) { c.Session.IdleTimeoutSecs = 0 }, "session.idle_timeout_secs"},
		{"zero countdown", func(c *Config) { c.Session.WarningCountdownSecs = 0 }, "session.warning_countdown_secs"},
		{"watch without file", func(c *Config) { c.Menu.Watch = true }, "menu.watch"},
		{"bad level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q should mention %s", err, tt.field)
			}
		})
	}
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	if err := cfg.Set("session.idle_timeout_secs", "600"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, err := cfg.Get("session.idle_timeout_secs")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if v.(int) != 600 {
		t.Errorf("Get() = %v, want 600", v)
	}

	if err := cfg.Set("ui.mouse", "false"); err != nil {
		t.Fatal(err)
	}
	if cfg.UI.Mouse {
		t.Error("ui.mouse should be false")
	}

	if err := cfg.Set("api.requests_per_second", "2.5"); err != nil {
		t.Fatal(err)
	}
	if cfg.API.RequestsPerSecond != 2.5 {
		t.Errorf("RequestsPerSecond = %v", cfg.API.RequestsPerSecond)
	}

	for _, bad := range []string{"", "nope", "session.nope", "session", "api.base_url.x"} {
		if _, err := cfg.Get(bad); err == nil {
			t.Errorf("Get(%q) should fail", bad)
		}
	}
	if err := cfg.Set("session.idle_timeout_secs", "soon"); err == nil {
		t.Error("Set with non-integer should fail")
	}
}

func TestGetAllKeys_Resolve(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		if _, err := cfg.Get(key); err != nil {
			t.Errorf("Get(%q) error = %v", key, err)
		}
	}
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.toml")

	cfg := Default()
	cfg.Session.IdleTimeoutSecs = 1200
	cfg.Menu.File = "/etc/schoolhub/menu.toml"
	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 0600", perm)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if loaded.Session.IdleTimeoutSecs != 1200 || loaded.Menu.File != cfg.Menu.File {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}

func TestPathsResolveUnderConfigDir(t *testing.T) {
	dir := isolate(t)
	cfg := Default()

	for name, fn := range map[string]func() (string, error){
		"session.db":    cfg.StorePath,
		"audit.log":     cfg.AuditPath,
		"schoolhub.log": cfg.LogPath,
	} {
		got, err := fn()
		if err != nil {
			t.Fatal(err)
		}
		if got != filepath.Join(dir, name) {
			t.Errorf("path = %q, want %q", got, filepath.Join(dir, name))
		}
	}

	cfg.Session.StorePath = "/tmp/custom.db"
	if got, _ := cfg.StorePath(); got != "/tmp/custom.db" {
		t.Errorf("explicit StorePath = %q", got)
	}
}
