// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package tui defines the interface an interactive terminal dashboard
// would implement. The dashboard itself is out of scope; this package
// exists so the core can be wired against one without depending on any
// particular rendering library.
package tui

import "github.com/toole-brendan/grinminer/internal/miner"

// Dashboard renders a live view of mining progress. Run blocks until
// the dashboard exits (user quit, or ctx cancellation upstream); Stop
// asks it to exit early.
type Dashboard interface {
	Run() error
	Stop()
}

// NullDashboard is a Dashboard that does nothing, used when
// mining.run_tui is false, and as the fallback when it is true but no
// real dashboard implementation is linked in.
type NullDashboard struct{}

func (NullDashboard) Run() error { return nil }
func (NullDashboard) Stop()      {}

// Source is what a real Dashboard implementation would poll to render
// its view.
type Source struct {
	ClientStats *miner.ClientStats
	MiningStats *miner.MiningStats
}
