// Package platform resolves the per-user locations of config, the period store and exports.
package platform

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultAppName names the config and data directories.
const DefaultAppName = "selftrack"

const (
	configFileName = "config.toml"
	reportsDirName = "reports"
	rawDirName     = "raw"
	devSuffix      = "-dev"
)

// Paths holds the per-user locations for config, the period database and exported reports.
type Paths struct {
	ConfigPath string
	DataDir    string
	DBPath     string
	ExportsDir string
	RawDir     string
}

// Options selects the application directory name.
type Options struct {
	AppName string
	// DevMode appends "-dev" so development runs never touch real data.
	DevMode bool
}

// Env is the process environment PathsFor resolves against.
type Env struct {
	GOOS   string
	Home   string
	Getenv func(string) string
}

// dirName returns the directory name for opts, or "" when no name is usable.
func (o Options) dirName() string {
	name := strings.TrimSpace(o.AppName)
	if name == "" {
		return ""
	}
	if o.DevMode {
		name += devSuffix
	}
	return name
}

// DefaultPaths returns the paths of the default application.
func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{AppName: DefaultAppName})
}

// DefaultPathsWithOptions resolves paths for the running process.
// An empty app name selects DefaultAppName.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	if strings.TrimSpace(opts.AppName) == "" {
		opts.AppName = DefaultAppName
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, err
	}
	return PathsFor(Env{GOOS: runtime.GOOS, Home: home, Getenv: os.Getenv}, opts)
}

// PathsFor resolves paths for one environment.
// linux and other unix systems follow the XDG base directories, windows uses
// APPDATA for config and LOCALAPPDATA for data, darwin keeps both under Application Support.
func PathsFor(env Env, opts Options) (Paths, error) {
	if strings.TrimSpace(env.Home) == "" {
		return Paths{}, errors.New("home directory is required")
	}
	name := opts.dirName()
	if name == "" {
		return Paths{}, errors.New("app name is required")
	}
	getenv := env.Getenv
	if getenv == nil {
		getenv = func(string) string { return "" }
	}

	configBase, dataBase := baseDirs(env.GOOS, env.Home, getenv)
	dataDir := filepath.Join(dataBase, name)
	return Paths{
		ConfigPath: filepath.Join(configBase, name, configFileName),
		DataDir:    dataDir,
		DBPath:     filepath.Join(dataDir, name+".db"),
		ExportsDir: filepath.Join(dataDir, reportsDirName),
		RawDir:     filepath.Join(dataDir, rawDirName),
	}, nil
}

func baseDirs(goos, home string, getenv func(string) string) (string, string) {
	switch goos {
	case "windows":
		return firstSet(getenv("APPDATA"), filepath.Join(home, "AppData", "Roaming")),
			firstSet(getenv("LOCALAPPDATA"), filepath.Join(home, "AppData", "Local"))
	case "darwin":
		support := filepath.Join(home, "Library", "Application Support")
		return support, support
	default:
		return xdgDir(getenv("XDG_CONFIG_HOME"), filepath.Join(home, ".config")),
			xdgDir(getenv("XDG_DATA_HOME"), filepath.Join(home, ".local", "share"))
	}
}

// xdgDir returns value when it is an absolute path; relative XDG values are ignored.
func xdgDir(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" || !filepath.IsAbs(value) {
		return fallback
	}
	return value
}

func firstSet(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
