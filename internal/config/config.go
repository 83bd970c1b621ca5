package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	charmLog "github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Board    BoardConfig    `toml:"board"`
	Drag     DragConfig     `toml:"drag"`
	Keys     KeyConfig      `toml:"keys"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

// DevFileConfig controls the logfmt file sink used in dev mode.
type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"` // relative paths resolve from the workspace root
}

type BoardConfig struct {
	States []StateConfig `toml:"states"`
}

type StateConfig struct {
	ID       string `toml:"id"`
	Name     string `toml:"name"`
	Position int    `toml:"position"`
}

// DragConfig tunes the drag engine.
type DragConfig struct {
	// MaxSnapDistance is the farthest, in terminal cells, a drop target may
	// be from the dragged card. Zero snaps to the nearest target at any
	// distance while the pointer is over a column; a pointer outside every
	// column never has a target, whatever this is set to.
	MaxSnapDistance float64 `toml:"max_snap_distance"`
	// StrictContracts panics on engine contract violations instead of
	// surfacing them as status errors. Forced on in dev mode.
	StrictContracts bool `toml:"strict_contracts"`
}

type KeyConfig struct {
	Grab   string `toml:"grab"`
	Drop   string `toml:"drop"`
	Cancel string `toml:"cancel"`
	CopyID string `toml:"copy_id"`
}

func defaultStates() []StateConfig {
	return []StateConfig{
		{ID: "todo", Name: "To Do", Position: 0},
		{ID: "progress", Name: "In Progress", Position: 1},
		{ID: "done", Name: "Done", Position: 2},
	}
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".kandrag/log",
			},
		},
		Board: BoardConfig{
			States: defaultStates(),
		},
		Drag: DragConfig{
			MaxSnapDistance: 0,
		},
		Keys: KeyConfig{
			Grab:   "space",
			Drop:   "enter",
			Cancel: "esc",
			CopyID: "y",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	// Array tables append to existing slices, so configured states replace
	// the defaults only when present.
	cfg.Board.States = nil
	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}
	if cfg.Board.States == nil {
		cfg.Board.States = append([]StateConfig(nil), defaults.Board.States...)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	c.Database.Path = strings.TrimSpace(c.Database.Path)
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if _, err := charmLog.ParseLevel(strings.TrimSpace(c.Logging.Level)); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	if len(c.Board.States) == 0 {
		return errors.New("board.states must include at least one state")
	}
	seenStateID := map[string]struct{}{}
	for idx, state := range c.Board.States {
		id := strings.TrimSpace(strings.ToLower(state.ID))
		if id == "" {
			return fmt.Errorf("board.states[%d].id is required", idx)
		}
		if strings.TrimSpace(state.Name) == "" {
			return fmt.Errorf("board.states[%d].name is required", idx)
		}
		if state.Position < 0 {
			return fmt.Errorf("board.states[%d].position must be >= 0", idx)
		}
		if _, ok := seenStateID[id]; ok {
			return fmt.Errorf("board.states[%d].id is duplicated: %s", idx, id)
		}
		seenStateID[id] = struct{}{}
	}

	if c.Drag.MaxSnapDistance < 0 {
		return fmt.Errorf("drag.max_snap_distance must be >= 0, got %v", c.Drag.MaxSnapDistance)
	}

	keys := map[string]string{
		"grab":    c.Keys.Grab,
		"drop":    c.Keys.Drop,
		"cancel":  c.Keys.Cancel,
		"copy_id": c.Keys.CopyID,
	}
	seenKey := map[string]string{}
	for _, name := range []string{"grab", "drop", "cancel", "copy_id"} {
		key := strings.TrimSpace(keys[name])
		if key == "" {
			continue
		}
		if other, ok := seenKey[key]; ok {
			return fmt.Errorf("keys.%s duplicates keys.%s: %q", name, other, key)
		}
		seenKey[key] = name
	}

	return nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
