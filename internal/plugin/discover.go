// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// platformSuffix returns the native shared library extension for the
// running OS, so plugin directories can be shared across a project that
// still also ships the legacy ".cuckooplugin" naming for compatibility
// with existing plugin trees.
func platformSuffix() string {
	switch runtime.GOOS {
	case "darwin":
		return ".dylib"
	case "windows":
		return ".dll"
	default:
		return ".so"
	}
}

// Capability describes one discoverable plugin library on disk.
type Capability struct {
	FullPath string
	FileName string
}

// Discover lists every plugin library found in dir, matching either the
// native platform suffix or the legacy ".cuckooplugin" suffix.
func Discover(dir string) ([]Capability, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read plugin dir %s: %w", dir, err)
	}

	suffixes := []string{platformSuffix(), ".cuckooplugin"}
	var caps []Capability
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		for _, suf := range suffixes {
			if filepath.Ext(name) == suf {
				caps = append(caps, Capability{
					FullPath: filepath.Join(dir, name),
					FileName: name,
				})
				break
			}
		}
	}
	return caps, nil
}

// Resolve finds the absolute library path for pluginName within dir,
// trying the native suffix first and the legacy suffix second. It
// returns a *NotFoundError if no match exists.
func Resolve(dir, pluginName string) (string, error) {
	for _, suf := range []string{platformSuffix(), ".cuckooplugin"} {
		candidate := filepath.Join(dir, pluginName+suf)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", &NotFoundError{
		Path:  filepath.Join(dir, pluginName),
		Cause: fmt.Errorf("no library with suffix %s or .cuckooplugin", platformSuffix()),
	}
}

// DefaultPluginDir resolves the plugin directory when none is
// configured: a "plugins" subdirectory adjacent to the running
// executable.
func DefaultPluginDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable path: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), "plugins"), nil
}
