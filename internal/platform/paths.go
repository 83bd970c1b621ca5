// Package platform resolves where kandrag keeps its config file and board database.
package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultAppName names the per-user config and data directories.
const DefaultAppName = "kandrag"

// Environment variables that override the platform layout.
const (
	EnvConfigPath = "KANDRAG_CONFIG"
	EnvDBPath     = "KANDRAG_DB_PATH"
)

// Request describes one path lookup. Flag fields win over the environment,
// which wins over the platform layout.
type Request struct {
	AppName    string
	DevMode    bool
	ConfigFlag string
	DBFlag     string
}

// Paths is the effective location set for one run.
type Paths struct {
	ConfigPath string
	DataDir    string
	DBPath     string
	// DBOverridden reports that DBPath came from a flag or the environment.
	// Config files only set the database path when it is not overridden.
	DBOverridden bool
}

// Host is the part of the process environment path resolution reads.
type Host struct {
	GOOS      string
	Getenv    func(string) string
	ConfigDir func() (string, error)
	HomeDir   func() (string, error)
}

// CurrentHost describes the running process.
func CurrentHost() Host {
	return Host{
		GOOS:      runtime.GOOS,
		Getenv:    os.Getenv,
		ConfigDir: os.UserConfigDir,
		HomeDir:   os.UserHomeDir,
	}
}

// Resolve resolves req against the running process.
func Resolve(req Request) (Paths, error) {
	return CurrentHost().Resolve(req)
}

// Resolve layers flags and KANDRAG_* variables over the per-OS layout. User
// directories are only looked up for locations that are not overridden, so a
// fully overridden run works without a home directory.
func (h Host) Resolve(req Request) (Paths, error) {
	name := AppDirName(req.AppName, req.DevMode)

	var out Paths
	if v := firstSet(req.ConfigFlag, h.env(EnvConfigPath)); v != "" {
		out.ConfigPath = v
	} else {
		base, err := h.configBase()
		if err != nil {
			return Paths{}, err
		}
		out.ConfigPath = filepath.Join(base, name, "config.toml")
	}

	if v := firstSet(req.DBFlag, h.env(EnvDBPath)); v != "" {
		out.DBPath = v
		out.DataDir = filepath.Dir(v)
		out.DBOverridden = true
		return out, nil
	}
	base, err := h.dataBase()
	if err != nil {
		return Paths{}, err
	}
	out.DataDir = filepath.Join(base, name)
	out.DBPath = filepath.Join(out.DataDir, name+".db")
	return out, nil
}

// AppDirName returns the directory and database stem for an app name. Dev
// mode gets its own "-dev" tree so it never touches the real board.
func AppDirName(appName string, devMode bool) string {
	name := strings.TrimSpace(appName)
	if name == "" {
		name = DefaultAppName
	}
	if devMode {
		name += "-dev"
	}
	return name
}

// configBase picks the directory holding per-app config directories.
func (h Host) configBase() (string, error) {
	switch h.GOOS {
	case "linux":
		if v := h.env("XDG_CONFIG_HOME"); v != "" {
			return v, nil
		}
	case "windows":
		if v := h.env("APPDATA"); v != "" {
			return v, nil
		}
	}
	return userDir("config", h.ConfigDir)
}

// dataBase picks the directory holding per-app data directories. macOS and
// other platforms keep data next to config.
func (h Host) dataBase() (string, error) {
	switch h.GOOS {
	case "linux":
		if v := h.env("XDG_DATA_HOME"); v != "" {
			return v, nil
		}
		home, err := userDir("home", h.HomeDir)
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share"), nil
	case "windows":
		if v := h.env("LOCALAPPDATA"); v != "" {
			return v, nil
		}
	}
	return userDir("config", h.ConfigDir)
}

func (h Host) env(key string) string {
	if h.Getenv == nil {
		return ""
	}
	return strings.TrimSpace(h.Getenv(key))
}

func userDir(kind string, lookup func() (string, error)) (string, error) {
	if lookup == nil {
		return "", fmt.Errorf("user %s dir: no lookup configured", kind)
	}
	dir, err := lookup()
	if err != nil {
		return "", fmt.Errorf("user %s dir: %w", kind, err)
	}
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("user %s dir is empty", kind)
	}
	return dir, nil
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
