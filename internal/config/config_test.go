// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/toole-brendan/grinminer/internal/plugin"
)

func TestLoadExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grin-miner.toml")
	doc := `
[mining]
stratum_server_addr = "stratum.example.org:13416"
stratum_server_login = "me"

[[mining.miner_plugin_config]]
plugin_name = "cuckaroo29_cpu"

[mining.miner_plugin_config.parameters]
nthreads = 4
edge_bits = 29
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "stratum.example.org:13416", cfg.Mining.StratumServerAddr)
	require.Len(t, cfg.Mining.MinerPluginConfig, 1)
	require.Equal(t, "cuckaroo29_cpu", cfg.Mining.MinerPluginConfig[0].PluginName)
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "does-not-exist.toml"))
	require.Error(t, err)
}

func TestValidateRequiresAtLeastOnePlugin(t *testing.T) {
	cfg := Default()
	cfg.Mining.StratumServerAddr = "x:1"
	err := cfg.Validate()
	require.Error(t, err)
}

func TestApplyParamsOverlaysRecognizedKeysOnly(t *testing.T) {
	var params plugin.SolverParams
	var unknown []string

	ApplyParams(&params, map[string]uint32{
		"nthreads":  4,
		"edge_bits": 29,
		"cpuload":   1,
		"bogus_key": 7,
	}, func(key string) { unknown = append(unknown, key) })

	require.EqualValues(t, 4, params.NThreads)
	require.EqualValues(t, 29, params.EdgeBits)
	require.EqualValues(t, 1, params.CPULoad)
	require.Equal(t, []string{"bogus_key"}, unknown)
}

func TestApplyParamsCPULoadConvention(t *testing.T) {
	var params plugin.SolverParams
	ApplyParams(&params, map[string]uint32{"cpuload": 5}, nil)
	require.EqualValues(t, 0, params.CPULoad)
}
