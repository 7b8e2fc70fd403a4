// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package miner holds the data shared between the stratum client, the
// mining supervisor, and the solver workers: jobs, shares, and the two
// lock-guarded records every goroutine in the process touches.
package miner

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"
)

// ProofSize is the fixed length of a Cuckoo Cycle proof.
const ProofSize = 42

// RollingWindowSize bounds the graphs-per-second sample history kept in
// MiningStats.
const RollingWindowSize = 50

// Job is a unit of work pushed or pulled from the stratum server.
type Job struct {
	Height     uint64
	JobID      uint64
	Difficulty uint64
	PrePow     string // hex-encoded bytes preceding the nonce
}

// Share is a candidate solution submitted back to the server.
type Share struct {
	Height    uint64    `json:"height"`
	JobID     uint64    `json:"job_id"`
	EdgeBits  uint32    `json:"edge_bits"`
	Nonce     uint64    `json:"nonce"`
	Proof     [ProofSize]uint64 `json:"pow"`
}

// BuildHeaderBytes concatenates pre_pow, the big-endian nonce, and
// post_nonce into the byte string passed to run_solver. It is the
// inverse of ExtractNonce for any fixed prePow/postNonce pair.
func BuildHeaderBytes(prePowHex string, nonce uint64, postNonceHex string) ([]byte, error) {
	pre, err := hex.DecodeString(prePowHex)
	if err != nil {
		return nil, fmt.Errorf("decode pre_pow: %w", err)
	}
	post, err := hex.DecodeString(postNonceHex)
	if err != nil {
		return nil, fmt.Errorf("decode post_nonce: %w", err)
	}

	buf := make([]byte, 0, len(pre)+8+len(post))
	buf = append(buf, pre...)
	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], nonce)
	buf = append(buf, nonceBytes[:]...)
	buf = append(buf, post...)
	return buf, nil
}

// ExtractNonce recovers the nonce written by BuildHeaderBytes, given the
// length in bytes of the pre_pow segment that precedes it.
func ExtractNonce(headerBytes []byte, prePowLen int) (uint64, error) {
	if len(headerBytes) < prePowLen+8 {
		return 0, fmt.Errorf("header too short: %d bytes, need at least %d", len(headerBytes), prePowLen+8)
	}
	return binary.BigEndian.Uint64(headerBytes[prePowLen : prePowLen+8]), nil
}

// PendingSolution is one solver solution waiting to be drained by the
// supervisor and turned into a Share.
type PendingSolution struct {
	Height   uint64
	JobID    uint64
	EdgeBits uint32
	Nonce    uint64
	Proof    [ProofSize]uint64
}

// WorkerStats mirrors the plugin-populated SolverStats record, plus the
// plugin_name field the supervisor itself fills in.
type WorkerStats struct {
	DeviceID         uint32
	DeviceName       string
	EdgeBits         uint32
	LastStartTime    int64 // unix nanoseconds
	LastEndTime      int64
	LastSolutionTime int64
	Iterations       uint64
	HasErrored       bool
	ErrorReason      string
	PluginName       string
}

// SharedJob is the lock-guarded record workers read their current job
// from and the supervisor and client write into. One instance is created
// at startup and handed by pointer to every goroutine that needs it.
type SharedJob struct {
	mu sync.RWMutex

	jobID      uint64
	height     uint64
	difficulty uint64
	prePow     string
	postNonce  string

	pending []PendingSolution
	stats   []WorkerStats
}

// NewSharedJob allocates a SharedJob with stat slots for numWorkers
// workers.
func NewSharedJob(numWorkers int) *SharedJob {
	return &SharedJob{
		stats: make([]WorkerStats, numWorkers),
	}
}

// SetJob replaces the current job wholesale. Callers are expected to
// have already paused workers via the Control record; SetJob itself only
// guards the record fields.
func (s *SharedJob) SetJob(j Job, postNonce string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobID = j.JobID
	s.height = j.Height
	s.difficulty = j.Difficulty
	s.prePow = j.PrePow
	s.postNonce = postNonce
}

// CurrentJob returns a snapshot of the current job fields, as read by a
// worker at the start of a graph attempt.
func (s *SharedJob) CurrentJob() (jobID, height, difficulty uint64, prePow, postNonce string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobID, s.height, s.difficulty, s.prePow, s.postNonce
}

// PushSolution appends a drained solution to the pending FIFO.
func (s *SharedJob) PushSolution(p PendingSolution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, p)
}

// DrainSolutions removes and returns every pending solution, leaving the
// FIFO empty. Called from the supervisor's ~100ms drain loop.
func (s *SharedJob) DrainSolutions() []PendingSolution {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	drained := s.pending
	s.pending = nil
	return drained
}

// SetWorkerStats copies stats into the worker's slot.
func (s *SharedJob) SetWorkerStats(idx int, stats WorkerStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.stats) {
		return
	}
	s.stats[idx] = stats
}

// SetWorkerPluginName writes only the plugin_name field of a worker's
// stats slot, leaving the rest untouched - this lets a worker announce
// itself before its first iteration completes.
func (s *SharedJob) SetWorkerPluginName(idx int, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.stats) {
		return
	}
	s.stats[idx].PluginName = name
}

// AllWorkerStats returns a copy of every worker's stats slot, for the
// supervisor to fold into MiningStats.
func (s *SharedJob) AllWorkerStats() []WorkerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]WorkerStats, len(s.stats))
	copy(out, s.stats)
	return out
}

// Control is the lock-guarded stop/pause record. Workers and their
// stop-hook siblings poll it; the supervisor writes it on notify/stop.
type Control struct {
	mu sync.RWMutex

	stopFlag    bool
	paused      bool
	pauseSignal bool
}

// NewControl returns a fresh, unpaused, unstopped Control record.
func NewControl() *Control {
	return &Control{}
}

// Snapshot returns the three flags atomically with respect to each
// other.
func (c *Control) Snapshot() (stopFlag, paused, pauseSignal bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stopFlag, c.paused, c.pauseSignal
}

// BeginPause sets paused and pauseSignal together, as required before
// notify() writes a new job.
func (c *Control) BeginPause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
	c.pauseSignal = true
}

// EndPause clears paused once the new job has been written.
func (c *Control) EndPause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

// ClearPauseSignal is called by the stop-hook sibling once it has acted
// on a one-shot pause signal.
func (c *Control) ClearPauseSignal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pauseSignal = false
}

// Stop sets the universal cancellation flag.
func (c *Control) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopFlag = true
}
