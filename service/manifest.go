package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Manifest is a plugin's plugin.json descriptor (spec §6: unchanged shape,
// plus Binary/Image for the sandboxed-process hot-reload mechanism).
type Manifest struct {
	Name    string `json:"name"`
	Author  string `json:"author"`
	Version string `json:"version"`
	Usage   string `json:"usage"`

	// Binary names the executable Sandbox should launch, relative to the
	// plugin directory. Empty means the plugin has no out-of-process code
	// (its services are registered in-process by the launcher instead).
	Binary string `json:"binary,omitempty"`

	// Image names the Docker image to run Binary in. Empty uses
	// defaultPluginImage.
	Image string `json:"image,omitempty"`
}

func loadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, "plugin.json"))
	if err != nil {
		return nil, fmt.Errorf("service: read plugin.json: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("service: parse plugin.json: %w", err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("service: plugin.json missing name")
	}
	return &m, nil
}
