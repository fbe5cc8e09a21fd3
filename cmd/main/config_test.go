package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.PagesAddr != ":8470" || cfg.Server.ApiAddr != ":8471" {
		t.Errorf("unexpected default addresses: %q / %q", cfg.Server.PagesAddr, cfg.Server.ApiAddr)
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("default log level = %q, want %q", cfg.Server.LogLevel, "info")
	}
	if cfg.Renderer == nil || cfg.Renderer.MaxIncludeBytes != 4<<20 {
		t.Errorf("renderer defaults not applied: %+v", cfg.Renderer)
	}

	// A missing file gets written back so operators have something to edit.
	if _, err = os.Stat(path); err != nil {
		t.Errorf("default config file was not created: %v", err)
	}
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	partial := `{"server_config": {"pages_addr": ":9999", "log_level": "debug"}}`
	if err := os.WriteFile(path, []byte(partial), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.PagesAddr != ":9999" {
		t.Errorf("pages_addr = %q, want the file's value %q", cfg.Server.PagesAddr, ":9999")
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("log_level = %q, want the file's value %q", cfg.Server.LogLevel, "debug")
	}
	// Fields the file omits keep their defaults.
	if cfg.Server.DataDir != "./data" {
		t.Errorf("data_dir = %q, want default %q", cfg.Server.DataDir, "./data")
	}
	if cfg.Renderer == nil || cfg.Renderer.MaxIncludeBytes != 4<<20 {
		t.Errorf("omitted renderer section should keep defaults, got %+v", cfg.Renderer)
	}
}

func TestLoadConfigRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected an error for a malformed config file")
	}
}
