// Package config persists storage profiles and editor settings in
// ~/.config/sheetdb/config.json.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"sheetdb/internal/editor"
)

// Storage drivers a profile can name.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// DefaultProfile is the name of the profile created on first run.
const DefaultProfile = "local"

// Profile is a saved storage backend.
type Profile struct {
	Name   string `json:"name"`
	Driver string `json:"driver"`
	// DSN is a file path for sqlite and a postgres:// URI for postgres.
	DSN    string `json:"dsn,omitempty"`
	UserID string `json:"userID"`
}

// Editor holds editor settings.
type Editor struct {
	RowsPerPage int             `json:"rowsPerPage"`
	Features    editor.Features `json:"features"`
}

type Config struct {
	Profiles      []Profile `json:"profiles"`
	ActiveProfile string    `json:"activeProfile,omitempty"`
	Editor        Editor    `json:"editor"`

	dir string
}

// Dir returns the configuration directory. SHEETDB_CONFIG_DIR overrides
// the default.
func Dir() (string, error) {
	if d := os.Getenv("SHEETDB_CONFIG_DIR"); d != "" {
		return d, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "sheetdb"), nil
}

// LogPath returns the log file path inside dir.
func LogPath(dir string) string {
	return filepath.Join(dir, "sheetdb.log")
}

// Default returns the configuration used before anything was saved.
func Default(dir string) *Config {
	return &Config{
		Profiles: []Profile{{
			Name:   DefaultProfile,
			Driver: DriverSQLite,
			DSN:    filepath.Join(dir, "storage.db"),
			UserID: "local",
		}},
		ActiveProfile: DefaultProfile,
		Editor: Editor{
			RowsPerPage: editor.DefaultRowsPerPage,
			Features:    editor.AllFeatures(),
		},
		dir: dir,
	}
}

// LoadFrom reads dir/config.json. A missing file yields the defaults.
func LoadFrom(dir string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(dir), nil
		}
		return Default(dir), fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default(dir)
	cfg.Profiles = nil
	cfg.ActiveProfile = ""
	if err := json.Unmarshal(data, cfg); err != nil {
		return Default(dir), fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Editor.RowsPerPage <= 0 {
		cfg.Editor.RowsPerPage = editor.DefaultRowsPerPage
	}
	return cfg, nil
}

// Save writes the configuration back to the directory it was loaded from.
func (c *Config) Save() error {
	if c.dir == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		c.dir = dir
	}
	if err := os.MkdirAll(c.dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(c.dir, "config.json"), data, 0600)
}

// Add stores p, replacing a profile of the same name.
func (c *Config) Add(p Profile) {
	for i, existing := range c.Profiles {
		if existing.Name == p.Name {
			c.Profiles[i] = p
			return
		}
	}
	c.Profiles = append(c.Profiles, p)
}

// Delete removes the profile at index. The active profile is cleared when
// it is the one removed.
func (c *Config) Delete(index int) {
	if index < 0 || index >= len(c.Profiles) {
		return
	}
	if c.Profiles[index].Name == c.ActiveProfile {
		c.ActiveProfile = ""
	}
	c.Profiles = append(c.Profiles[:index], c.Profiles[index+1:]...)
}

// Index returns the position of the named profile, or -1.
func (c *Config) Index(name string) int {
	for i, p := range c.Profiles {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// Active returns the active profile, falling back to the first one.
func (c *Config) Active() (Profile, bool) {
	if i := c.Index(c.ActiveProfile); i >= 0 {
		return c.Profiles[i], true
	}
	if len(c.Profiles) > 0 {
		return c.Profiles[0], true
	}
	return Profile{}, false
}
