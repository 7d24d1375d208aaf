// Package config loads and saves application settings as a JSON file.
// A Config is treated as immutable once loaded; Save writes a new
// file rather than mutating in place.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vnrename/vnrename/pkg/vnrename/normalize"
)

// Config is the full application configuration.
type Config struct {
	Rules             normalize.Rules `json:"normalization_rules"`
	HistoryPath       string          `json:"history_path"`
	LogLevel          string          `json:"log_level"`
	RecentDirectories []string        `json:"recent_directories,omitempty"`
	MaxRecentEntries  int             `json:"max_recent_entries"`
}

// Default returns the configuration used when no file exists yet.
func Default() Config {
	return Config{
		Rules:            normalize.DefaultRules(),
		HistoryPath:      "history.json",
		LogLevel:         "info",
		MaxRecentEntries: 10,
	}
}

// Load reads the configuration at path, falling back to Default when
// the file does not exist. Unknown fields are ignored; missing fields
// keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Rules.Validate(); err != nil {
		return Default(), fmt.Errorf("invalid config %s: %w", path, err)
	}
	if cfg.MaxRecentEntries <= 0 {
		cfg.MaxRecentEntries = 10
	}
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories
// as needed. The write goes through a temp file so a crash cannot
// leave a truncated config behind.
func Save(cfg Config, path string) error {
	if err := cfg.Rules.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// WithRecentDirectory returns a copy of cfg with dir promoted to the
// front of the recent list, bounded by MaxRecentEntries.
func (c Config) WithRecentDirectory(dir string) Config {
	recent := make([]string, 0, len(c.RecentDirectories)+1)
	recent = append(recent, dir)
	for _, d := range c.RecentDirectories {
		if d != dir {
			recent = append(recent, d)
		}
	}
	if len(recent) > c.MaxRecentEntries {
		recent = recent[:c.MaxRecentEntries]
	}
	c.RecentDirectories = recent
	return c
}
