package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/kandrag.db")
	if cfg.Database.Path != "/tmp/kandrag.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("unexpected log level %q", cfg.Logging.Level)
	}
	if !cfg.Logging.DevFile.Enabled || cfg.Logging.DevFile.Dir != ".kandrag/log" {
		t.Fatalf("unexpected dev file config %#v", cfg.Logging.DevFile)
	}
	if len(cfg.Board.States) != 3 || cfg.Board.States[0].ID != "todo" {
		t.Fatalf("unexpected default states %#v", cfg.Board.States)
	}
	if cfg.Drag.MaxSnapDistance != 0 || cfg.Drag.StrictContracts {
		t.Fatalf("unexpected drag defaults %#v", cfg.Drag)
	}
	if cfg.Keys.Grab != "space" || cfg.Keys.Cancel != "esc" {
		t.Fatalf("unexpected key defaults %#v", cfg.Keys)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate(defaults) error = %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/kandrag.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != defaults.Database.Path {
		t.Fatalf("expected default db path, got %q", cfg.Database.Path)
	}

	cfg, err = Load("", defaults)
	if err != nil {
		t.Fatalf("Load(empty path) error = %v", err)
	}
	if cfg.Keys != defaults.Keys {
		t.Fatalf("expected default keys, got %#v", cfg.Keys)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[database]
path = "/custom/kandrag.db"

[logging]
level = "debug"

[logging.dev_file]
enabled = false

[[board.states]]
id = "backlog"
name = "Backlog"
position = 0

[[board.states]]
id = "shipped"
name = "Shipped"
position = 1

[drag]
max_snap_distance = 12.5
strict_contracts = true

[keys]
grab = "g"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path, Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/custom/kandrag.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.DevFile.Enabled {
		t.Fatalf("unexpected logging config %#v", cfg.Logging)
	}
	if cfg.Logging.DevFile.Dir != ".kandrag/log" {
		t.Fatalf("expected unset dev_file.dir to keep default, got %q", cfg.Logging.DevFile.Dir)
	}
	if len(cfg.Board.States) != 2 || cfg.Board.States[1].ID != "shipped" {
		t.Fatalf("unexpected states %#v", cfg.Board.States)
	}
	if cfg.Drag.MaxSnapDistance != 12.5 || !cfg.Drag.StrictContracts {
		t.Fatalf("unexpected drag config %#v", cfg.Drag)
	}
	if cfg.Keys.Grab != "g" || cfg.Keys.Drop != "enter" {
		t.Fatalf("unexpected keys %#v", cfg.Keys)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{name: "bad toml", content: "[database\n", want: "decode toml"},
		{name: "empty db path", content: "[database]\npath = \"  \"\n", want: "database path is required"},
		{name: "bad level", content: "[logging]\nlevel = \"loud\"\n", want: "invalid logging.level"},
		{name: "state without id", content: "[[board.states]]\nname = \"X\"\n", want: "board.states[0].id is required"},
		{name: "state without name", content: "[[board.states]]\nid = \"x\"\n", want: "board.states[0].name is required"},
		{name: "negative position", content: "[[board.states]]\nid = \"x\"\nname = \"X\"\nposition = -1\n", want: "position must be >= 0"},
		{name: "duplicate state", content: "[[board.states]]\nid = \"x\"\nname = \"X\"\n[[board.states]]\nid = \"X\"\nname = \"Y\"\n", want: "duplicated"},
		{name: "negative snap", content: "[drag]\nmax_snap_distance = -1.0\n", want: "max_snap_distance"},
		{name: "duplicate keys", content: "[keys]\ngrab = \"enter\"\n", want: "keys.drop duplicates keys.grab"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			_, err := Load(path, Default("/tmp/kandrag.db"))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadWithoutStatesKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"warn\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	defaults := Default("/tmp/kandrag.db")
	cfg, err := Load(path, defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Board.States) != len(defaults.Board.States) {
		t.Fatalf("expected default states, got %#v", cfg.Board.States)
	}
	cfg.Board.States[0].Name = "mutated"
	if defaults.Board.States[0].Name == "mutated" {
		t.Fatal("expected loaded states not to alias defaults")
	}
}

func TestEnsureConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")
	if err := EnsureConfigDir(path); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	if info, err := os.Stat(filepath.Dir(path)); err != nil || !info.IsDir() {
		t.Fatalf("expected config dir to exist, err=%v", err)
	}
	if err := EnsureConfigDir("config.toml"); err != nil {
		t.Fatalf("EnsureConfigDir(relative) error = %v", err)
	}
}
