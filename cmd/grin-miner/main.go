// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// grin-miner connects to a Cuckoo Cycle stratum pool, loads the
// configured solver plugins, and mines against whatever job the pool
// hands back.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/toole-brendan/grinminer/internal/config"
	grinlog "github.com/toole-brendan/grinminer/internal/log"
	"github.com/toole-brendan/grinminer/internal/miner"
	"github.com/toole-brendan/grinminer/internal/plugin"
	"github.com/toole-brendan/grinminer/internal/queue"
	"github.com/toole-brendan/grinminer/internal/statsfeed"
	"github.com/toole-brendan/grinminer/internal/stratum"
	"github.com/toole-brendan/grinminer/internal/supervisor"
	"github.com/toole-brendan/grinminer/internal/tui"
	"github.com/toole-brendan/grinminer/internal/worker"
)

func main() {
	os.Exit(run())
}

// run does the real work and returns a process exit code, so main stays
// a one-liner and defers run everywhere else in the program.
func run() int {
	opts, err := config.ParseCLIOptions(os.Args[1:])
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "grin-miner: %v\n", err)
		return 1
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "grin-miner: %v\n", err)
		return 1
	}
	if opts.LogLevel != "" {
		cfg.Mining.LogLevel = opts.LogLevel
	}

	if err := grinlog.InitLogRotator(cfg.Mining.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "grin-miner: %v\n", err)
		return 1
	}
	if err := grinlog.SetLogLevels(cfg.Mining.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "grin-miner: %v\n", err)
		return 1
	}

	pluginDir, err := cfg.PluginDir(plugin.DefaultPluginDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "grin-miner: resolve plugin dir: %v\n", err)
		return 1
	}

	workerConfigs, err := buildWorkerConfigs(cfg, pluginDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "grin-miner: %v\n", err)
		return 1
	}

	sharedJob := miner.NewSharedJob(len(workerConfigs))
	control := miner.NewControl()
	clientStats := miner.NewClientStats(cfg.Mining.StratumServerAddr)
	miningStats := miner.NewMiningStats()

	inbound := queue.New[supervisor.InboundMessage]()
	outbound := queue.New[supervisor.OutboundMessage]()

	spv := supervisor.New(sharedJob, control, miningStats, inbound, outbound)
	if err := spv.StartSolvers(workerConfigs); err != nil {
		fmt.Fprintf(os.Stderr, "grin-miner: %v\n", err)
		return 1
	}

	client := stratum.New(stratum.Config{
		ServerAddr: cfg.Mining.StratumServerAddr,
		Login:      cfg.Mining.StratumServerLogin,
		Password:   cfg.Mining.StratumServerPassword,
		DialOptions: stratum.DialOptions{
			TLSEnabled:    cfg.Mining.StratumServerTLSEnabled,
			ProxyAddr:     cfg.Mining.ProxyAddr,
			ProxyUsername: cfg.Mining.ProxyUsername,
			ProxyPassword: cfg.Mining.ProxyPassword,
		},
	}, clientStats, miningStats, inbound, outbound)

	var feed *statsfeed.Feed
	if cfg.Mining.StatsFeedAddr != "" {
		feed = statsfeed.New(clientStats, miningStats)
		go serveStatsFeed(feed, cfg.Mining.StatsFeedAddr)
		go feed.Run()
	}

	dashboard := newDashboard(cfg, clientStats, miningStats)
	go func() {
		if err := dashboard.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "grin-miner: dashboard stopped: %v\n", err)
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-interrupt
		client.Stop()
		spv.StopSolvers()
	}()

	client.Run()
	spv.Wait()
	dashboard.Stop()
	if feed != nil {
		feed.Stop()
	}
	return 0
}

// newDashboard returns the interactive dashboard requested by
// mining.run_tui. No real dashboard implementation is linked into this
// binary yet, so a true run_tui still resolves to a no-op, logged once
// here rather than silently ignored.
func newDashboard(cfg config.Config, clientStats *miner.ClientStats, miningStats *miner.MiningStats) tui.Dashboard {
	if !cfg.Mining.RunTUI {
		return tui.NullDashboard{}
	}
	// A real dashboard would be constructed here from a tui.Source built
	// out of clientStats/miningStats; none is linked into this binary yet.
	fmt.Fprintln(os.Stderr, "grin-miner: run_tui is set but no terminal dashboard is built into this binary; continuing without one")
	return tui.NullDashboard{}
}

// buildWorkerConfigs resolves every configured plugin against pluginDir
// and overlays its recognized parameters onto a worker.Config.
func buildWorkerConfigs(cfg config.Config, pluginDir string) ([]worker.Config, error) {
	configs := make([]worker.Config, 0, len(cfg.Mining.MinerPluginConfig))
	for _, pc := range cfg.Mining.MinerPluginConfig {
		path, err := plugin.Resolve(pluginDir, pc.PluginName)
		if err != nil {
			return nil, fmt.Errorf("resolve plugin %q: %w", pc.PluginName, err)
		}

		var params plugin.SolverParams
		config.ApplyParams(&params, pc.Parameters, func(key string) {
			fmt.Fprintf(os.Stderr, "grin-miner: ignoring unknown plugin parameter %q for %s\n", key, pc.PluginName)
		})

		configs = append(configs, worker.Config{
			PluginName: pc.PluginName,
			PluginPath: path,
			Params:     params,
		})
	}
	return configs, nil
}

func serveStatsFeed(feed *statsfeed.Feed, addr string) {
	if err := http.ListenAndServe(addr, feed); err != nil {
		fmt.Fprintf(os.Stderr, "grin-miner: stats feed stopped: %v\n", err)
	}
}
