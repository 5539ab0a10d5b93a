package service

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadManifestParsesPluginJSON(t *testing.T) {
	dir := t.TempDir()
	contents := `{"name":"echo","author":"corvidwing","version":"1.0.0","usage":"/echo <text>","binary":"echo-plugin","image":"alpine"}`
	if err := os.WriteFile(filepath.Join(dir, "plugin.json"), []byte(contents), 0o644); err != nil {
		t.Fatalf("writing fixture manifest: %v", err)
	}

	m, err := loadManifest(dir)
	if err != nil {
		t.Fatalf("loadManifest: %v", err)
	}
	if m.Name != "echo" || m.Binary != "echo-plugin" || m.Image != "alpine" {
		t.Fatalf("unexpected manifest: %+v", m)
	}
}

func TestLoadManifestRequiresName(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "plugin.json"), []byte(`{"version":"1.0.0"}`), 0o644); err != nil {
		t.Fatalf("writing fixture manifest: %v", err)
	}
	if _, err := loadManifest(dir); err == nil {
		t.Fatal("expected an error for a manifest missing name")
	}
}

func TestLoadManifestMissingFile(t *testing.T) {
	if _, err := loadManifest(t.TempDir()); err == nil {
		t.Fatal("expected an error when plugin.json does not exist")
	}
}
