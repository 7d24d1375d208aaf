package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "no-such.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.HistoryPath != def.HistoryPath || cfg.LogLevel != def.LogLevel {
		t.Errorf("missing file did not yield defaults: %+v", cfg)
	}
	if cfg.MaxRecentEntries != 10 {
		t.Errorf("MaxRecentEntries = %d, want 10", cfg.MaxRecentEntries)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.LogLevel = "debug"
	cfg.HistoryPath = "elsewhere.json"
	cfg.Rules.MaxFilenameLength = 120
	cfg = cfg.WithRecentDirectory("/docs")

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.LogLevel != "debug" || got.HistoryPath != "elsewhere.json" {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if got.Rules.MaxFilenameLength != 120 {
		t.Errorf("MaxFilenameLength = %d, want 120", got.Rules.MaxFilenameLength)
	}
	if len(got.RecentDirectories) != 1 || got.RecentDirectories[0] != "/docs" {
		t.Errorf("RecentDirectories = %v", got.RecentDirectories)
	}
}

func TestSaveRejectsInvalidRules(t *testing.T) {
	cfg := Default()
	cfg.Rules.MaxFilenameLength = -1
	if err := Save(cfg, filepath.Join(t.TempDir(), "config.json")); err == nil {
		t.Error("Save accepted invalid rules")
	}
}

func TestLoadCorruptFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err == nil {
		t.Error("Load accepted corrupt JSON")
	}
	if cfg.LogLevel != Default().LogLevel {
		t.Errorf("corrupt file did not fall back to defaults: %+v", cfg)
	}
}

func TestWithRecentDirectoryBounds(t *testing.T) {
	cfg := Default()
	cfg.MaxRecentEntries = 3
	for _, d := range []string{"/a", "/b", "/c", "/d"} {
		cfg = cfg.WithRecentDirectory(d)
	}
	want := []string{"/d", "/c", "/b"}
	if len(cfg.RecentDirectories) != len(want) {
		t.Fatalf("RecentDirectories = %v", cfg.RecentDirectories)
	}
	for i, d := range want {
		if cfg.RecentDirectories[i] != d {
			t.Errorf("RecentDirectories[%d] = %q, want %q", i, cfg.RecentDirectories[i], d)
		}
	}

	// Re-adding an existing entry promotes it without duplication.
	cfg = cfg.WithRecentDirectory("/b")
	if cfg.RecentDirectories[0] != "/b" || len(cfg.RecentDirectories) != 3 {
		t.Errorf("promotion failed: %v", cfg.RecentDirectories)
	}
}
