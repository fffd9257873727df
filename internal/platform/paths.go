// Package platform resolves where daybox keeps its per-user files.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultAppName names the config and data directories.
const DefaultAppName = "daybox"

// Paths locates the per-user daybox files. Schedules sit beside config.toml; the
// database and the keyring file backend sit in the data dir.
type Paths struct {
	ConfigPath  string
	DataDir     string
	DBPath      string
	ScheduleDir string
	KeyringDir  string
}

// Options selects the app name and dev-mode suffix.
type Options struct {
	AppName string
	DevMode bool
}

// baseOverride names the environment variables that replace the config and data bases on one OS.
type baseOverride struct {
	config string
	data   string
}

// macOS and unknown platforms keep the os.UserConfigDir defaults.
var baseOverrides = map[string]baseOverride{
	"linux":   {config: "XDG_CONFIG_HOME", data: "XDG_DATA_HOME"},
	"windows": {config: "APPDATA", data: "LOCALAPPDATA"},
}

// DefaultPathsWithOptions resolves paths for the running OS and process environment.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	appName := strings.TrimSpace(opts.AppName)
	if appName == "" {
		appName = DefaultAppName
	}
	if opts.DevMode {
		appName += "-dev"
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	dataDir, err := userDataDir(runtime.GOOS, configDir)
	if err != nil {
		return Paths{}, err
	}

	env := map[string]string{}
	if o, ok := baseOverrides[runtime.GOOS]; ok {
		env[o.config] = os.Getenv(o.config)
		env[o.data] = os.Getenv(o.data)
	}
	return PathsFor(runtime.GOOS, env, configDir, dataDir, appName)
}

// userDataDir is ~/.local/share on linux and the config dir elsewhere.
func userDataDir(goos, configDir string) (string, error) {
	if goos != "linux" {
		return configDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("user home dir: %w", err)
	}
	return filepath.Join(home, ".local", "share"), nil
}

// PathsFor resolves paths for goos from explicit base dirs and environment.
func PathsFor(goos string, env map[string]string, userConfigDir, userDataDir, appName string) (Paths, error) {
	if userConfigDir == "" || userDataDir == "" {
		return Paths{}, errors.New("empty base dirs")
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, errors.New("empty app name")
	}

	configBase, dataBase := userConfigDir, userDataDir
	if o, ok := baseOverrides[goos]; ok {
		if v := strings.TrimSpace(env[o.config]); v != "" {
			configBase = v
		}
		if v := strings.TrimSpace(env[o.data]); v != "" {
			dataBase = v
		}
	}

	configRoot := filepath.Join(configBase, appName)
	dataRoot := filepath.Join(dataBase, appName)
	return Paths{
		ConfigPath:  filepath.Join(configRoot, "config.toml"),
		DataDir:     dataRoot,
		DBPath:      filepath.Join(dataRoot, appName+".db"),
		ScheduleDir: filepath.Join(configRoot, "schedules"),
		KeyringDir:  filepath.Join(dataRoot, "keyring"),
	}, nil
}

// EnsureDirs creates the config, schedule and data directories.
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{filepath.Dir(p.ConfigPath), p.ScheduleDir, p.DataDir} {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
