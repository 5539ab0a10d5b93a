package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileConfigMissingFileReturnsZeroValue(t *testing.T) {
	cfg, err := loadFileConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("loadFileConfig on a missing file should not error: %v", err)
	}
	if cfg.Workers != 0 || cfg.DBPath != "" || cfg.Otel || len(cfg.Plugins) != 0 {
		t.Fatalf("expected a zero-value config for a missing file, got %+v", cfg)
	}
}

func TestLoadFileConfigParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatchd.yaml")
	contents := "workers: 8\ndb_path: /var/lib/dispatch/dispatch.db\notel: true\nplugins:\n  - ./plugins/echo\n  - ./plugins/weather\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing fixture config: %v", err)
	}

	cfg, err := loadFileConfig(path)
	if err != nil {
		t.Fatalf("loadFileConfig: %v", err)
	}
	if cfg.Workers != 8 {
		t.Fatalf("expected Workers 8, got %d", cfg.Workers)
	}
	if cfg.DBPath != "/var/lib/dispatch/dispatch.db" {
		t.Fatalf("expected the configured db path, got %q", cfg.DBPath)
	}
	if !cfg.Otel {
		t.Fatal("expected Otel true")
	}
	if len(cfg.Plugins) != 2 || cfg.Plugins[0] != "./plugins/echo" || cfg.Plugins[1] != "./plugins/weather" {
		t.Fatalf("unexpected plugin list: %v", cfg.Plugins)
	}
}

func TestLoadFileConfigRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("workers: [this is not a number"), 0o644); err != nil {
		t.Fatalf("writing fixture config: %v", err)
	}
	if _, err := loadFileConfig(path); err == nil {
		t.Fatal("expected an error for malformed YAML")
	}
}
