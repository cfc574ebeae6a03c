package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rmbot/internal/domain"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvToken, EnvRmapiPath, EnvFolder, EnvLogLevel} {
		t.Setenv(k, "")
	}
}

// --- Validate ---

func TestValidate_Defaults(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_Renderer(t *testing.T) {
	for _, r := range []string{"http", "chrome"} {
		cfg := Defaults()
		cfg.Fetch.Renderer = r
		if err := Validate(cfg); err != nil {
			t.Fatalf("renderer %q should be valid: %v", r, err)
		}
	}
	cfg := Defaults()
	cfg.Fetch.Renderer = "lynx"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown renderer")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Remarkable.Folder = "  "
	cfg.Fetch.TimeoutSeconds = 0
	cfg.Log.Format = "xml"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"remarkable.folder", "fetch.timeout_seconds", "log.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidate_MetricsPath(t *testing.T) {
	cfg := Defaults()
	cfg.Metrics.Listen = "127.0.0.1:9464"
	cfg.Metrics.Path = "metrics"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for relative metrics path")
	}
}

// --- Load ---

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Remarkable.RmapiPath != "/usr/local/bin/rmapi" {
		t.Errorf("rmapi path: got %q", cfg.Remarkable.RmapiPath)
	}
	if cfg.Remarkable.Folder != "/Articles" {
		t.Errorf("folder: got %q", cfg.Remarkable.Folder)
	}
	if cfg.Telegram.Token != "" {
		t.Errorf("token should be empty, got %q", cfg.Telegram.Token)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvToken, "123:abc")
	t.Setenv(EnvRmapiPath, "/opt/rmapi")
	t.Setenv(EnvFolder, "/Reading")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Errorf("token: got %q", cfg.Telegram.Token)
	}
	if cfg.Remarkable.RmapiPath != "/opt/rmapi" {
		t.Errorf("rmapi path: got %q", cfg.Remarkable.RmapiPath)
	}
	if cfg.Remarkable.Folder != "/Reading" {
		t.Errorf("folder: got %q", cfg.Remarkable.Folder)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level: got %q", cfg.Log.Level)
	}
}

func TestLoad_YAMLFileWithEnvExpansion(t *testing.T) {
	clearEnv(t)
	t.Setenv("RMBOT_TEST_TOKEN", "999:xyz")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
telegram:
  token: ${RMBOT_TEST_TOKEN}
  allow_from: [42, 43]
remarkable:
  folder: ${RMBOT_TEST_FOLDER:-/Inbox}
fetch:
  renderer: chrome
  timeout_seconds: 12
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "999:xyz" {
		t.Errorf("token: got %q", cfg.Telegram.Token)
	}
	if len(cfg.Telegram.AllowFrom) != 2 || cfg.Telegram.AllowFrom[0] != 42 {
		t.Errorf("allow_from: got %v", cfg.Telegram.AllowFrom)
	}
	if cfg.Remarkable.Folder != "/Inbox" {
		t.Errorf("folder default not applied: got %q", cfg.Remarkable.Folder)
	}
	if cfg.Fetch.Renderer != "chrome" || cfg.Fetch.TimeoutSeconds != 12 {
		t.Errorf("fetch: got %+v", cfg.Fetch)
	}
	// Untouched keys keep their defaults.
	if cfg.Remarkable.RmapiPath != "/usr/local/bin/rmapi" {
		t.Errorf("rmapi path default lost: got %q", cfg.Remarkable.RmapiPath)
	}
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("remarkable:\n  folder: /FromFile\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvFolder, "/FromEnv")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Remarkable.Folder != "/FromEnv" {
		t.Errorf("folder: got %q", cfg.Remarkable.Folder)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("telegram: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	original := Defaults()
	original.Remarkable.Folder = "/Saved"
	original.Telegram.AllowFrom = []int64{7}
	if err := Save(path, original); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Remarkable.Folder != "/Saved" {
		t.Errorf("folder: got %q", loaded.Remarkable.Folder)
	}
	if len(loaded.Telegram.AllowFrom) != 1 || loaded.Telegram.AllowFrom[0] != 7 {
		t.Errorf("allow_from: got %v", loaded.Telegram.AllowFrom)
	}
}

// --- ExpandEnvVars ---

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("RMBOT_SET", "value")
	t.Setenv("RMBOT_EMPTY", "")

	tests := []struct {
		in, want string
	}{
		{"${RMBOT_SET}", "value"},
		{"${RMBOT_EMPTY:-fallback}", "fallback"},
		{"${RMBOT_UNSET_XYZ:-/Articles}", "/Articles"},
		{"${RMBOT_UNSET_XYZ}", ""},
		{"plain", "plain"},
		{"a-${RMBOT_SET}-b", "a-value-b"},
	}
	for _, tt := range tests {
		if got := ExpandEnvVars(tt.in); got != tt.want {
			t.Errorf("ExpandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// --- Preflight ---

func TestPreflight_OK(t *testing.T) {
	tool := filepath.Join(t.TempDir(), "rmapi")
	if err := os.WriteFile(tool, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := Defaults()
	cfg.Telegram.Token = "123:abc"
	cfg.Remarkable.RmapiPath = tool
	if err := Preflight(cfg); err != nil {
		t.Fatalf("preflight: %v", err)
	}
}

func TestPreflight_MissingToken(t *testing.T) {
	tool := filepath.Join(t.TempDir(), "rmapi")
	if err := os.WriteFile(tool, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := Defaults()
	cfg.Remarkable.RmapiPath = tool

	err := Preflight(cfg)
	if !errors.Is(err, domain.ErrStartup) {
		t.Fatalf("expected ErrStartup, got %v", err)
	}
	if !strings.Contains(err.Error(), EnvToken) {
		t.Errorf("error should name %s: %v", EnvToken, err)
	}
}

func TestPreflight_MissingToolAndToken(t *testing.T) {
	cfg := Defaults()
	cfg.Remarkable.RmapiPath = filepath.Join(t.TempDir(), "missing")

	err := Preflight(cfg)
	if !errors.Is(err, domain.ErrStartup) {
		t.Fatalf("expected ErrStartup, got %v", err)
	}
	if !strings.Contains(err.Error(), "rmapi not found") || !strings.Contains(err.Error(), EnvToken) {
		t.Errorf("both problems should be reported: %v", err)
	}
}

func TestPreflight_ToolIsDirectory(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.Token = "123:abc"
	cfg.Remarkable.RmapiPath = t.TempDir()
	if err := Preflight(cfg); !errors.Is(err, domain.ErrStartup) {
		t.Fatalf("expected ErrStartup for directory, got %v", err)
	}
}

// --- accessor ---

func TestSanitize_MasksToken(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.Token = "123456789:ABCDEFGHIJ"
	s := Sanitize(cfg)
	if s.Telegram.Token == cfg.Telegram.Token {
		t.Fatal("token not masked")
	}
	if !strings.HasPrefix(s.Telegram.Token, "1234") || !strings.HasSuffix(s.Telegram.Token, "GHIJ") {
		t.Errorf("unexpected mask: %q", s.Telegram.Token)
	}
	if cfg.Telegram.Token != "123456789:ABCDEFGHIJ" {
		t.Error("Sanitize modified the original")
	}
}

func TestGetByPath(t *testing.T) {
	cfg := Defaults()
	v, err := GetByPath(cfg, "remarkable.folder")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "/Articles" {
		t.Errorf("got %v", v)
	}
	if _, err := GetByPath(cfg, "remarkable.nope"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"debug", "INFO", "", "warn", "error"} {
		if _, err := ParseLevel(s); err != nil {
			t.Errorf("ParseLevel(%q): %v", s, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
