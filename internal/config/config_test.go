package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd() error = %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir() error = %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CONFIG_ENV", "none")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Store.Driver != "memory" {
		t.Fatalf("Store.Driver = %q, want memory", cfg.Store.Driver)
	}
	if cfg.Session.RecencyWindow != 10*time.Second {
		t.Fatalf("RecencyWindow = %v, want 10s", cfg.Session.RecencyWindow)
	}
	if cfg.Screen.Width != 1080 || cfg.Screen.Height != 1920 {
		t.Fatalf("Screen = %+v, want 1080x1920", cfg.Screen)
	}
	if cfg.Rate.Interval != time.Second {
		t.Fatalf("Rate.Interval = %v, want 1s", cfg.Rate.Interval)
	}
}

func TestFileAndEnvOverrides(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("CONFIG_ENV", "test")
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	yaml := "port: 9090\nstore:\n  driver: mongo\nsession:\n  recency_window: 30s\n"
	if err := os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("CAST_PORT", "7070")
	t.Setenv("CAST_PARTICIPANT_NAME", "tv")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 7070 {
		t.Fatalf("Port = %d, want env override 7070", cfg.Port)
	}
	if cfg.Store.Driver != "mongo" {
		t.Fatalf("Store.Driver = %q, want mongo", cfg.Store.Driver)
	}
	if cfg.Session.RecencyWindow != 30*time.Second {
		t.Fatalf("RecencyWindow = %v, want 30s", cfg.Session.RecencyWindow)
	}
	if cfg.Participant.Name != "tv" {
		t.Fatalf("Participant.Name = %q, want tv", cfg.Participant.Name)
	}
}

func TestRejectsUnknownDriver(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CONFIG_ENV", "none")
	t.Setenv("CAST_STORE_DRIVER", "redis")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want unknown driver error")
	}
}
