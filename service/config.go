package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Config is a service's persisted settings (spec §4.7). Mutating
// enable/disable or a user's privilege override always goes through a
// method that re-saves the whole struct atomically.
type Config struct {
	mu   sync.Mutex `json:"-"`
	path string     `json:"-"`

	Name            string        `json:"name"`
	UsePriv         Priv          `json:"use_priv"`
	ManagePriv      Priv          `json:"manage_priv"`
	EnableOnDefault bool          `json:"enable_on_default"`
	Visible         bool          `json:"visible"`
	EnableGroup     []int64       `json:"enable_group"`
	DisableGroup    []int64       `json:"disable_group"`
	UserPrivs       map[int64]int `json:"user_privs"`
}

// configDir is where service configs are persisted, relative to the
// working directory the launcher is started from.
const configDir = "./service_config"

func configPath(pluginName, serviceName string) string {
	return filepath.Join(configDir, fmt.Sprintf("%s.%s.json", pluginName, serviceName))
}

// LoadConfig reads a service's config from disk, or returns a fresh default
// config if none is persisted yet.
func LoadConfig(pluginName, serviceName string) (*Config, error) {
	path := configPath(pluginName, serviceName)
	cfg := &Config{
		path:            path,
		Name:            serviceName,
		EnableOnDefault: true,
		Visible:         true,
		UserPrivs:       make(map[int64]int),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("service: parse config %s: %w", path, err)
	}
	if cfg.UserPrivs == nil {
		cfg.UserPrivs = make(map[int64]int)
	}
	cfg.path = path
	return cfg, nil
}

// save writes cfg atomically: write to a temp file in the same directory,
// then rename over the target, so a crash mid-write never leaves a
// truncated config (grounded on the teacher's JSONPersistence.Save, made
// atomic per spec §4.7).
func (c *Config) save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

func (c *Config) inSet(set []int64, id int64) bool {
	for _, v := range set {
		if v == id {
			return true
		}
	}
	return false
}

func (c *Config) isBlacklisted(qq int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.UserPrivs[qq]
	return ok && Priv(v) == Black
}

func (c *Config) userPriv(qq int64) (Priv, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.UserPrivs[qq]
	return Priv(v), ok
}

// SetUserPriv overrides qq's privilege and persists the change.
func (c *Config) SetUserPriv(qq int64, priv Priv) error {
	c.mu.Lock()
	c.UserPrivs[qq] = int(priv)
	c.mu.Unlock()
	return c.save()
}

// EnableGroupID marks group as enabled for this service and persists it.
func (c *Config) EnableGroupID(group int64) error {
	c.mu.Lock()
	c.EnableGroup = appendUnique(c.EnableGroup, group)
	c.DisableGroup = removeFrom(c.DisableGroup, group)
	c.mu.Unlock()
	return c.save()
}

// DisableGroupID marks group as disabled for this service and persists it.
func (c *Config) DisableGroupID(group int64) error {
	c.mu.Lock()
	c.DisableGroup = appendUnique(c.DisableGroup, group)
	c.EnableGroup = removeFrom(c.EnableGroup, group)
	c.mu.Unlock()
	return c.save()
}

func appendUnique(s []int64, v int64) []int64 {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

func removeFrom(s []int64, v int64) []int64 {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
