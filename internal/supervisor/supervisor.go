// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package supervisor owns the pool of solver workers: it distributes
// jobs to them, drains their solutions, and aggregates their stats for
// the dashboard.
package supervisor

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btclog"

	"github.com/toole-brendan/grinminer/internal/miner"
	"github.com/toole-brendan/grinminer/internal/queue"
	"github.com/toole-brendan/grinminer/internal/worker"
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

// drainInterval is how often the supervisor drains solutions from the
// Shared Job Record.
const drainInterval = 100 * time.Millisecond

// gpsSampleInterval is how often the supervisor samples combined
// graphs-per-second into the rolling window.
const gpsSampleInterval = 2 * time.Second

// Supervisor owns N solver workers and bridges between them and the
// stratum client via the Inbound/Outbound queues.
type Supervisor struct {
	sharedJob   *miner.SharedJob
	control     *miner.Control
	miningStats *miner.MiningStats

	workers []*worker.Worker

	inbound  *queue.Queue[InboundMessage]
	outbound *queue.Queue[OutboundMessage]

	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup
}

// New constructs a Supervisor around an already-allocated Shared Job
// Record, Control record, and Mining Stats. The stratum client supplies
// the inbound queue it pushes onto and reads the outbound queue this
// supervisor pushes onto.
func New(sharedJob *miner.SharedJob, control *miner.Control, miningStats *miner.MiningStats, inbound *queue.Queue[InboundMessage], outbound *queue.Queue[OutboundMessage]) *Supervisor {
	return &Supervisor{
		sharedJob:   sharedJob,
		control:     control,
		miningStats: miningStats,
		inbound:     inbound,
		outbound:    outbound,
		quit:        make(chan struct{}),
	}
}

// StartSolvers instantiates and launches one worker per configured
// solver. It returns the first plugin load failure encountered, which
// callers treat as fatal.
func (s *Supervisor) StartSolvers(configs []worker.Config) error {
	for i, cfg := range configs {
		seed, err := randomSeed()
		if err != nil {
			return fmt.Errorf("seed worker %d rng: %w", i, err)
		}

		w, err := worker.New(i, cfg, s.sharedJob, s.control, seed)
		if err != nil {
			return fmt.Errorf("start solver %q: %w", cfg.PluginName, err)
		}
		s.workers = append(s.workers, w)
	}

	for _, w := range s.workers {
		w.Start()
	}

	s.wg.Add(1)
	go s.run()

	s.wg.Add(1)
	go s.consumeInbound()

	return nil
}

// Notify replaces the current job: it pauses every worker, writes the
// new job under lock, then resumes. Workers observe the pause, abort
// any in-flight solve via the stop hook, and pick up the new job on
// their next iteration.
func (s *Supervisor) Notify(job miner.Job, postNonce string) {
	s.control.BeginPause()
	s.sharedJob.SetJob(job, postNonce)
	s.miningStats.SetJob(job.Height, job.Difficulty)
	s.control.EndPause()
	log.Debugf("notified workers of job_id=%d height=%d", job.JobID, job.Height)
}

// StopSolvers sets the universal stop flag. Workers exit their loops
// and unload their plugins; callers wait for shutdown via Wait.
func (s *Supervisor) StopSolvers() {
	s.control.Stop()
	s.quitOnce.Do(func() { close(s.quit) })
}

// Wait blocks until every worker (and the supervisor's own drain loop)
// has exited.
func (s *Supervisor) Wait() {
	for _, w := range s.workers {
		w.Wait()
	}
	s.wg.Wait()
}

// run is the supervisor's own loop: it drains solutions every 100ms and
// samples combined GPS every 2s.
func (s *Supervisor) run() {
	defer s.wg.Done()

	drainTicker := time.NewTicker(drainInterval)
	defer drainTicker.Stop()
	gpsTicker := time.NewTicker(gpsSampleInterval)
	defer gpsTicker.Stop()

	for {
		select {
		case <-s.quit:
			s.outbound.Push(OutboundShutdown{})
			return

		case <-drainTicker.C:
			s.drainSolutions()

		case <-gpsTicker.C:
			s.sampleGPS()
		}
	}
}

// consumeInbound handles ReceivedJob/StopJob/Shutdown messages pushed by
// the stratum client, one at a time, for as long as the supervisor is
// running.
func (s *Supervisor) consumeInbound() {
	defer s.wg.Done()

	for {
		msg, ok := s.inbound.Wait(s.quit)
		if !ok {
			return
		}
		s.handleInbound(msg)
	}
}

func (s *Supervisor) handleInbound(msg InboundMessage) {
	switch m := msg.(type) {
	case ReceivedJob:
		s.Notify(m.Job, m.PostNonce)
	case StopJob:
		s.control.BeginPause()
	case Shutdown:
		s.StopSolvers()
	}
}

func (s *Supervisor) drainSolutions() {
	drained := s.sharedJob.DrainSolutions()
	if len(drained) == 0 {
		return
	}
	s.miningStats.AddSolutionsFound(uint64(len(drained)))
	for _, sol := range drained {
		s.outbound.Push(FoundSolution{Share: sol})
	}
}

func (s *Supervisor) sampleGPS() {
	workers := s.sharedJob.AllWorkerStats()
	s.miningStats.SetWorkerStats(workers)
	combined := miner.CombinedGPS(workers)
	s.miningStats.PushGPSSample(combined)
}

// randomSeed draws a 32-byte ChaCha8 seed from a cryptographically
// secure source, so each worker's nonce stream is independent and
// unpredictable.
func randomSeed() ([32]byte, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return seed, err
	}
	return seed, nil
}
