// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package miner

import (
	"math"
	"sync"
)

// ClientStats is the dashboard-observed view of the stratum session.
type ClientStats struct {
	mu sync.RWMutex

	state           string
	connected       bool
	lastSent        string
	lastReceived    string
	serverURL       string
}

// NewClientStats returns a ClientStats record in the Disconnected state.
func NewClientStats(serverURL string) *ClientStats {
	return &ClientStats{
		state:     "disconnected",
		serverURL: serverURL,
	}
}

// SetState updates the connection state string and connected flag.
func (c *ClientStats) SetState(state string, connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	c.connected = connected
}

// SetLastSent records the last message sent to the server.
func (c *ClientStats) SetLastSent(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSent = msg
}

// SetLastReceived records the last message received from the server.
func (c *ClientStats) SetLastReceived(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastReceived = msg
}

// Snapshot returns a copy of every field for dashboard consumption.
func (c *ClientStats) Snapshot() (state string, connected bool, lastSent, lastReceived, serverURL string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state, c.connected, c.lastSent, c.lastReceived, c.serverURL
}

// MiningCounters are the cumulative, monotonically increasing share
// outcome tallies.
type MiningCounters struct {
	SolutionsFound uint64
	SharesAccepted uint64
	Rejected       uint64
	Staled         uint64
	BlocksFound    uint64
}

// MiningStats is the dashboard-observed view of overall mining progress.
type MiningStats struct {
	mu sync.RWMutex

	gpsWindow  []float64
	height     uint64
	difficulty uint64
	counters   MiningCounters
	workers    []WorkerStats
}

// NewMiningStats returns an empty MiningStats record.
func NewMiningStats() *MiningStats {
	return &MiningStats{
		gpsWindow: make([]float64, 0, RollingWindowSize),
	}
}

// PushGPSSample appends a combined graphs-per-second sample, evicting
// the oldest entry once the window reaches RollingWindowSize.
func (m *MiningStats) PushGPSSample(sample float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gpsWindow = append(m.gpsWindow, sample)
	if len(m.gpsWindow) > RollingWindowSize {
		m.gpsWindow = m.gpsWindow[len(m.gpsWindow)-RollingWindowSize:]
	}
}

// SetJob updates the currently advertised height/difficulty.
func (m *MiningStats) SetJob(height, difficulty uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.height = height
	m.difficulty = difficulty
}

// AddSolutionsFound increments the solutions_found counter.
func (m *MiningStats) AddSolutionsFound(n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters.SolutionsFound += n
}

// AddAccepted increments shares_accepted, and blocks_found if isBlock.
func (m *MiningStats) AddAccepted(isBlock bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters.SharesAccepted++
	if isBlock {
		m.counters.BlocksFound++
	}
}

// AddStaled increments the staled counter.
func (m *MiningStats) AddStaled() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters.Staled++
}

// AddRejected increments the rejected counter.
func (m *MiningStats) AddRejected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters.Rejected++
}

// SetWorkerStats replaces the per-worker stats snapshot folded in from
// the Shared Job Record.
func (m *MiningStats) SetWorkerStats(workers []WorkerStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers = workers
}

// Snapshot returns copies of every observable field.
func (m *MiningStats) Snapshot() (gpsWindow []float64, height, difficulty uint64, counters MiningCounters, workers []WorkerStats) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	gpsWindow = make([]float64, len(m.gpsWindow))
	copy(gpsWindow, m.gpsWindow)
	workers = make([]WorkerStats, len(m.workers))
	copy(workers, m.workers)
	return gpsWindow, m.height, m.difficulty, m.counters, workers
}

// CombinedGPS sums the finite (non-NaN, non-Inf) per-worker GPS values
// implied by WorkerStats.LastSolutionTime, as computed by the
// supervisor's 2s sampling tick. Exposed here for tests.
func CombinedGPS(workers []WorkerStats) float64 {
	var total float64
	for _, w := range workers {
		if w.LastSolutionTime <= 0 {
			continue
		}
		secs := float64(w.LastSolutionTime) / 1e9
		if secs <= 0 {
			continue
		}
		gps := 1.0 / secs
		if !math.IsInf(gps, 0) && !math.IsNaN(gps) {
			total += gps
		}
	}
	return total
}
