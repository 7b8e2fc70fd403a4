// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package worker runs one solver plugin against a stream of graph
// attempts, reporting stats and solutions into the Shared Job Record it
// is handed at construction time.
package worker

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/btcsuite/btclog"

	"github.com/toole-brendan/grinminer/internal/miner"
	"github.com/toole-brendan/grinminer/internal/plugin"
)

// log is a logger that is initialized with no output filters. This
// means the package will not perform any logging by default until the
// caller requests it.
var log btclog.Logger

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger btclog.Logger) {
	log = logger
}

func init() {
	DisableLog()
}

// DisableLog disables all library log output.
func DisableLog() {
	log = btclog.Disabled
}

// stopHookPollInterval is how often the stop-hook sibling checks the
// Control record for a stop or pause signal.
const stopHookPollInterval = 100 * time.Millisecond

// pausedRetryInterval is how long the main loop sleeps before re-reading
// the Control record while paused.
const pausedRetryInterval = 100 * time.Millisecond

// Config describes one configured solver: the plugin to load and the
// parameter overrides to apply on top of its defaults.
type Config struct {
	PluginName string
	PluginPath string
	Params     plugin.SolverParams
}

// Worker owns one loaded plugin and one solver context, and drives the
// graph-attempt loop against the shared job and control records.
type Worker struct {
	index      int
	cfg        Config
	lib        *plugin.Library
	ctx        uintptr
	sharedJob  *miner.SharedJob
	control    *miner.Control
	rng        *rand.ChaCha8
	wg         sync.WaitGroup
	iterCount  uint64
}

// New loads the configured plugin and allocates a solver context. It
// returns a *plugin.NotFoundError or *plugin.SymbolMissingError on load
// failure; callers treat either as a fatal supervisor-startup error.
func New(index int, cfg Config, sharedJob *miner.SharedJob, control *miner.Control, seed [32]byte) (*Worker, error) {
	lib, err := plugin.Load(cfg.PluginPath)
	if err != nil {
		return nil, err
	}

	params := cfg.Params
	lib.FillDefaultParams(&params)
	overlayParams(&params, cfg.Params)

	ctx := lib.CreateSolverCtx(&params)

	return &Worker{
		index:     index,
		cfg:       cfg,
		lib:       lib,
		ctx:       ctx,
		sharedJob: sharedJob,
		control:   control,
		rng: rand.NewChaCha8(seed),
	}, nil
}

// overlayParams copies every nonzero field of overrides onto params,
// leaving plugin-supplied defaults in place for fields the config did
// not set. Zero is indistinguishable from "unset" for this recognized
// options table, matching the plugin's own convention of treating 0 as
// "use my default".
func overlayParams(params *plugin.SolverParams, overrides plugin.SolverParams) {
	if overrides.NThreads != 0 {
		params.NThreads = overrides.NThreads
	}
	if overrides.NTrims != 0 {
		params.NTrims = overrides.NTrims
	}
	if overrides.CPULoad != 0 {
		params.CPULoad = overrides.CPULoad
	}
	if overrides.Device != 0 {
		params.Device = overrides.Device
	}
	if overrides.Blocks != 0 {
		params.Blocks = overrides.Blocks
	}
	if overrides.TPB != 0 {
		params.TPB = overrides.TPB
	}
	if overrides.Expand != 0 {
		params.Expand = overrides.Expand
	}
	if overrides.GenABlocks != 0 {
		params.GenABlocks = overrides.GenABlocks
	}
	if overrides.GenATPB != 0 {
		params.GenATPB = overrides.GenATPB
	}
	if overrides.GenBTPB != 0 {
		params.GenBTPB = overrides.GenBTPB
	}
	if overrides.TrimTPB != 0 {
		params.TrimTPB = overrides.TrimTPB
	}
	if overrides.TailTPB != 0 {
		params.TailTPB = overrides.TailTPB
	}
	if overrides.RecoverBlocks != 0 {
		params.RecoverBlocks = overrides.RecoverBlocks
	}
	if overrides.RecoverTPB != 0 {
		params.RecoverTPB = overrides.RecoverTPB
	}
	if overrides.Platform != 0 {
		params.Platform = overrides.Platform
	}
	if overrides.EdgeBits != 0 {
		params.EdgeBits = overrides.EdgeBits
	}
}

// stopHook polls the Control record and forwards stop_flag/pause_signal
// into a synchronous stop_solver call, so a worker blocked inside
// run_solver can still be cancelled. It exits on stop_flag, or clears
// pause_signal and exits on a one-shot pause.
func (w *Worker) stopHook() {
	defer w.wg.Done()

	ticker := time.NewTicker(stopHookPollInterval)
	defer ticker.Stop()

	for range ticker.C {
		stopFlag, _, pauseSignal := w.control.Snapshot()
		if stopFlag {
			w.lib.StopSolver(w.ctx)
			return
		}
		if pauseSignal {
			w.lib.StopSolver(w.ctx)
			w.control.ClearPauseSignal()
			return
		}
	}
}

// Run drives the graph-attempt loop until the Control record's
// stop_flag is observed. It is meant to be launched as a goroutine; Run
// blocks until shutdown is complete and the plugin is unloaded.
func (w *Worker) Run() {
	defer w.shutdown()

	log.Debugf("worker %d starting plugin %s", w.index, w.cfg.PluginName)

	for {
		stopFlag, paused, _ := w.control.Snapshot()
		if stopFlag {
			return
		}
		if paused {
			time.Sleep(pausedRetryInterval)
			continue
		}

		w.sharedJob.SetWorkerPluginName(w.index, w.cfg.PluginName)

		w.runOneAttempt()
	}
}

// runOneAttempt performs one graph attempt: snapshot the job, build a
// fresh nonce and header, invoke run_solver, and push any solutions.
func (w *Worker) runOneAttempt() {
	jobID, height, _, prePow, postNonce := w.sharedJob.CurrentJob()

	nonce := w.rng.Uint64()
	headerBytes, err := miner.BuildHeaderBytes(prePow, nonce, postNonce)
	if err != nil {
		log.Errorf("worker %d: build header bytes: %v", w.index, err)
		return
	}

	var solutions plugin.SolverSolutions
	var stats plugin.SolverStats
	stats.LastStartTime = time.Now().UnixNano()

	w.lib.RunSolver(w.ctx, headerBytes, nonce, 1, &solutions, &stats)

	stats.LastEndTime = time.Now().UnixNano()
	if stats.LastSolutionTime == 0 {
		stats.LastSolutionTime = stats.LastEndTime - stats.LastStartTime
	}

	ws := miner.WorkerStats{
		DeviceID:         stats.DeviceID,
		DeviceName:       stats.DeviceNameString(),
		EdgeBits:         stats.EdgeBits,
		LastStartTime:    stats.LastStartTime,
		LastEndTime:      stats.LastEndTime,
		LastSolutionTime: stats.LastSolutionTime,
		Iterations:       w.nextIteration(),
		HasErrored:       stats.HasErrored != 0,
		ErrorReason:      stats.ErrorReasonString(),
		PluginName:       w.cfg.PluginName,
	}
	w.sharedJob.SetWorkerStats(w.index, ws)

	if solutions.NumSols == 0 {
		return
	}

	for i := uint32(0); i < solutions.NumSols; i++ {
		sol := solutions.Sols[i]
		w.sharedJob.PushSolution(miner.PendingSolution{
			Height:   height,
			JobID:    jobID,
			EdgeBits: solutions.EdgeBits,
			Nonce:    nonce,
			Proof:    sol.Proof,
		})
	}
}

func (w *Worker) nextIteration() uint64 {
	w.iterCount++
	return w.iterCount
}

// Start launches the worker's main loop and its stop-hook sibling. The
// caller must have already created the solver context via New.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.stopHook()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.Run()
	}()
}

// Wait blocks until both the main loop and the stop-hook sibling have
// exited.
func (w *Worker) Wait() {
	w.wg.Wait()
}

// shutdown destroys the solver context and unloads the plugin library.
// Called once, after the main loop observes stop_flag.
func (w *Worker) shutdown() {
	if w.ctx != 0 {
		w.lib.DestroySolverCtx(w.ctx)
		w.ctx = 0
	}
	if err := w.lib.Unload(); err != nil {
		log.Warnf("worker %d: %v", w.index, err)
	}
	log.Debugf("worker %d stopped", w.index)
}
