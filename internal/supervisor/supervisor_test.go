// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/toole-brendan/grinminer/internal/miner"
	"github.com/toole-brendan/grinminer/internal/queue"
)

func newTestSupervisor() (*Supervisor, *queue.Queue[InboundMessage], *queue.Queue[OutboundMessage], *miner.SharedJob, *miner.MiningStats) {
	sharedJob := miner.NewSharedJob(0)
	control := miner.NewControl()
	miningStats := miner.NewMiningStats()
	inbound := queue.New[InboundMessage]()
	outbound := queue.New[OutboundMessage]()

	s := New(sharedJob, control, miningStats, inbound, outbound)
	return s, inbound, outbound, sharedJob, miningStats
}

func TestDrainSolutionsEmitsFoundSolutionOncePerEntry(t *testing.T) {
	s, _, outbound, sharedJob, miningStats := newTestSupervisor()

	sharedJob.PushSolution(miner.PendingSolution{JobID: 1, Nonce: 42})
	sharedJob.PushSolution(miner.PendingSolution{JobID: 1, Nonce: 43})

	s.drainSolutions()

	first, ok := outbound.TryPop()
	require.True(t, ok)
	require.IsType(t, FoundSolution{}, first)

	second, ok := outbound.TryPop()
	require.True(t, ok)
	require.IsType(t, FoundSolution{}, second)

	_, ok = outbound.TryPop()
	require.False(t, ok)

	_, _, _, counters, _ := miningStats.Snapshot()
	require.EqualValues(t, 2, counters.SolutionsFound)
}

func TestNotifyWritesJobAndClearsPause(t *testing.T) {
	s, _, _, sharedJob, miningStats := newTestSupervisor()

	s.Notify(miner.Job{JobID: 7, Height: 100, Difficulty: 5, PrePow: "ab"}, "")

	jobID, height, difficulty, prePow, _ := sharedJob.CurrentJob()
	require.EqualValues(t, 7, jobID)
	require.EqualValues(t, 100, height)
	require.EqualValues(t, 5, difficulty)
	require.Equal(t, "ab", prePow)

	_, paused, _ := s.control.Snapshot()
	require.False(t, paused)

	_, statHeight, statDifficulty, _, _ := miningStats.Snapshot()
	require.EqualValues(t, 100, statHeight)
	require.EqualValues(t, 5, statDifficulty)
}

func TestHandleInboundReceivedJobTriggersNotify(t *testing.T) {
	s, inbound, _, sharedJob, _ := newTestSupervisor()

	s.wg.Add(1)
	go s.consumeInbound()

	inbound.Push(ReceivedJob{Job: miner.Job{JobID: 9, Height: 1}, PostNonce: ""})

	require.Eventually(t, func() bool {
		jobID, _, _, _, _ := sharedJob.CurrentJob()
		return jobID == 9
	}, time.Second, 5*time.Millisecond)

	s.StopSolvers()
	s.wg.Wait()
}
