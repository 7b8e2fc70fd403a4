// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package plugin

import (
	"fmt"

	"github.com/btcsuite/btclog"
	"github.com/ebitengine/purego"
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

// requiredSymbols are the C-linkage exports every plugin must resolve.
// Missing any of these is a SymbolMissing load error.
var requiredSymbols = []string{
	"create_solver_ctx",
	"destroy_solver_ctx",
	"run_solver",
	"stop_solver",
	"fill_default_params",
}

// Library is a loaded solver plugin with its five ABI symbols bound.
// One Library is owned by exactly one worker; it is never shared.
type Library struct {
	handle uintptr
	path   string

	createSolverCtx   func(params *SolverParams) uintptr
	destroySolverCtx  func(ctx uintptr)
	runSolver         func(ctx uintptr, headerBytes *byte, headerLen uint32, nonce uint64, rng uint32, solutions *SolverSolutions, stats *SolverStats) uint32
	stopSolver        func(ctx uintptr)
	fillDefaultParams func(params *SolverParams)
}

// Load opens the shared library at path and binds every required
// symbol. It returns a *NotFoundError if the library cannot be opened
// and a *SymbolMissingError if any required export is absent.
func Load(path string) (*Library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, &NotFoundError{Path: path, Cause: err}
	}

	lib := &Library{handle: handle, path: path}

	if err := bindSymbol(handle, "create_solver_ctx", &lib.createSolverCtx); err != nil {
		purego.Dlclose(handle)
		return nil, err
	}
	if err := bindSymbol(handle, "destroy_solver_ctx", &lib.destroySolverCtx); err != nil {
		purego.Dlclose(handle)
		return nil, err
	}
	if err := bindSymbol(handle, "run_solver", &lib.runSolver); err != nil {
		purego.Dlclose(handle)
		return nil, err
	}
	if err := bindSymbol(handle, "stop_solver", &lib.stopSolver); err != nil {
		purego.Dlclose(handle)
		return nil, err
	}
	if err := bindSymbol(handle, "fill_default_params", &lib.fillDefaultParams); err != nil {
		purego.Dlclose(handle)
		return nil, err
	}

	log.Debugf("loaded solver plugin %s", path)
	return lib, nil
}

// bindSymbol wraps purego.RegisterLibFunc with the SymbolMissingError
// the rest of this package expects; purego itself panics on an unknown
// symbol, so the lookup is done with Dlsym first.
func bindSymbol(handle uintptr, name string, fptr interface{}) error {
	if _, err := purego.Dlsym(handle, name); err != nil {
		return &SymbolMissingError{Symbol: name, Cause: err}
	}
	purego.RegisterLibFunc(fptr, handle, name)
	return nil
}

// FillDefaultParams populates params with the plugin's defaults. Must
// be called before any user overrides are applied.
func (l *Library) FillDefaultParams(params *SolverParams) {
	l.fillDefaultParams(params)
}

// CreateSolverCtx allocates a solver context from params. A zero return
// value indicates allocation failure (e.g. OOM).
func (l *Library) CreateSolverCtx(params *SolverParams) uintptr {
	return l.createSolverCtx(params)
}

// DestroySolverCtx releases every resource owned by ctx. The plugin
// contract requires this to tolerate a partially initialized ctx.
func (l *Library) DestroySolverCtx(ctx uintptr) {
	l.destroySolverCtx(ctx)
}

// RunSolver executes one solve attempt over the given header bytes and
// nonce, filling solutions and stats. It blocks until the plugin
// returns or StopSolver interrupts it from another goroutine.
func (l *Library) RunSolver(ctx uintptr, headerBytes []byte, nonce uint64, rng uint32, solutions *SolverSolutions, stats *SolverStats) uint32 {
	var headerPtr *byte
	if len(headerBytes) > 0 {
		headerPtr = &headerBytes[0]
	}
	return l.runSolver(ctx, headerPtr, uint32(len(headerBytes)), nonce, rng, solutions, stats)
}

// StopSolver requests prompt termination of an in-progress RunSolver
// call. Safe to call concurrently with RunSolver from the stop-hook
// goroutine.
func (l *Library) StopSolver(ctx uintptr) {
	l.stopSolver(ctx)
}

// Unload releases the library handle. Callers must ensure every
// function pointer derived from this handle has gone out of scope
// (i.e. the owning worker and its stop-hook have both exited) before
// calling Unload.
func (l *Library) Unload() error {
	if l.handle == 0 {
		return nil
	}
	if err := purego.Dlclose(l.handle); err != nil {
		return fmt.Errorf("unload plugin %s: %w", l.path, err)
	}
	l.handle = 0
	log.Debugf("unloaded solver plugin %s", l.path)
	return nil
}

// Path returns the filesystem path this library was loaded from.
func (l *Library) Path() string { return l.path }
