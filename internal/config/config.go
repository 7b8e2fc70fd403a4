// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package config loads and validates the TOML configuration file the
// client reads once at startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// PluginConfig is one entry of mining.miner_plugin_config: a plugin
// name (matched against a library in the plugin dir) plus its
// recognized parameter overrides.
type PluginConfig struct {
	PluginName string            `toml:"plugin_name"`
	Parameters map[string]uint32 `toml:"parameters"`
}

// Mining is the [mining] table of the config file.
type Mining struct {
	StratumServerAddr      string         `toml:"stratum_server_addr"`
	StratumServerLogin     string         `toml:"stratum_server_login"`
	StratumServerPassword  string         `toml:"stratum_server_password"`
	StratumServerTLSEnabled bool          `toml:"stratum_server_tls_enabled"`
	MinerPluginDir         string         `toml:"miner_plugin_dir"`
	RunTUI                 bool           `toml:"run_tui"`
	MinerPluginConfig      []PluginConfig `toml:"miner_plugin_config"`

	// Domain-stack additions beyond the core spec, read from the same
	// [mining] table.
	ProxyAddr     string `toml:"proxy_addr"`
	ProxyUsername string `toml:"proxy_username"`
	ProxyPassword string `toml:"proxy_password"`

	// StatsFeedAddr, if set, starts a websocket broadcaster exposing
	// ClientStats/MiningStats for an external dashboard.
	StatsFeedAddr string `toml:"stats_feed_addr"`

	// LogFile and LogLevel configure the rotating logger.
	LogFile  string `toml:"log_file"`
	LogLevel string `toml:"log_level"`
}

// Config is the root of the TOML document.
type Config struct {
	Mining Mining `toml:"mining"`
}

// Default returns a Config with every field the core relies on set to
// a sane default, to be overlaid by whatever the TOML file specifies.
func Default() Config {
	return Config{
		Mining: Mining{
			StratumServerAddr: "127.0.0.1:3416",
			LogFile:           "grin-miner.log",
			LogLevel:          "info",
		},
	}
}

// discoveryPaths returns the config file search order: $CWD, the
// directory containing the running executable, then $HOME/.grin.
func discoveryPaths() []string {
	var paths []string

	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, "grin-miner.toml"))
	}
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), "grin-miner.toml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".grin", "grin-miner.toml"))
	}
	return paths
}

// Load reads and parses the config file. If explicitPath is non-empty
// it is used as-is; otherwise Load searches discoveryPaths in order and
// uses the first file that exists.
func Load(explicitPath string) (Config, error) {
	path := explicitPath
	if path == "" {
		for _, candidate := range discoveryPaths() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path == "" {
		return Config{}, &FileNotFoundError{SearchedPaths: discoveryPaths()}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &IOError{Path: path, Cause: err}
	}

	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, &ParseError{Path: path, Cause: err}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields the core cannot run without.
func (c Config) Validate() error {
	if c.Mining.StratumServerAddr == "" {
		return &ParseError{Cause: fmt.Errorf("mining.stratum_server_addr is required")}
	}
	if len(c.Mining.MinerPluginConfig) == 0 {
		return &ParseError{Cause: fmt.Errorf("mining.miner_plugin_config must configure at least one solver")}
	}
	for _, pc := range c.Mining.MinerPluginConfig {
		if pc.PluginName == "" {
			return &ParseError{Cause: fmt.Errorf("miner_plugin_config entry missing plugin_name")}
		}
	}
	return nil
}

// PluginDir resolves the configured plugin directory, falling back to
// the default adjacent-to-executable directory when unset.
func (c Config) PluginDir(defaultDir func() (string, error)) (string, error) {
	if c.Mining.MinerPluginDir != "" {
		abs, err := filepath.Abs(c.Mining.MinerPluginDir)
		if err != nil {
			return "", fmt.Errorf("resolve miner_plugin_dir: %w", err)
		}
		return abs, nil
	}
	return defaultDir()
}
