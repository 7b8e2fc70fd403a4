// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package log wires up the subsystem loggers every other internal
// package exposes through a UseLogger/DisableLog pair, backing them
// with a rotating log file plus stdout.
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate"

	"github.com/toole-brendan/grinminer/internal/plugin"
	"github.com/toole-brendan/grinminer/internal/stratum"
	"github.com/toole-brendan/grinminer/internal/supervisor"
	"github.com/toole-brendan/grinminer/internal/worker"
)

// subsystemLoggers maps each subsystem tag to the function that installs
// a new logger for it: plugin, worker, supervisor and stratum. The
// statsfeed package also has a UseLogger/DisableLog pair but has no
// entry here, so its logger stays disabled.
var subsystemLoggers = map[string]func(btclog.Logger){
	"PLGN": plugin.UseLogger,
	"WORK": worker.UseLogger,
	"SPVR": supervisor.UseLogger,
	"STRM": stratum.UseLogger,
}

var backendLog btclog.Logger
var rotator *logrotate.Rotator

// InitLogRotator creates a rotating file writer at logFile (and its
// parent directories) and fans every subsystem logger's output to both
// that file and stdout. It must be called at most once, before any
// mining activity starts.
func InitLogRotator(logFile string) error {
	logDir := filepath.Dir(logFile)
	if logDir != "" && logDir != "." {
		if err := os.MkdirAll(logDir, 0o700); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
	}

	r, err := logrotate.NewRotator(logFile)
	if err != nil {
		return fmt.Errorf("open log rotator: %w", err)
	}
	rotator = r

	backend := btclog.NewBackend(io.MultiWriter(os.Stdout, rotator))
	backendLog = backend.Logger("GRIN")

	for tag, use := range subsystemLoggers {
		use(backend.Logger(tag))
	}
	return nil
}

// SetLogLevels applies levelStr (e.g. "info", "debug", "trace") to the
// top-level GRIN logger only. The subsystem loggers installed by
// InitLogRotator are not changed and keep btclog's default level.
func SetLogLevels(levelStr string) error {
	level, ok := btclog.LevelFromString(levelStr)
	if !ok {
		return fmt.Errorf("unknown log level %q", levelStr)
	}
	if backendLog != nil {
		backendLog.SetLevel(level)
	}
	return nil
}

// Disable turns every subsystem logger off, used by tests that do not
// want log noise.
func Disable() {
	plugin.DisableLog()
	worker.DisableLog()
	supervisor.DisableLog()
	stratum.DisableLog()
}
