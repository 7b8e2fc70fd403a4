// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package stratum

import (
	"bufio"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/toole-brendan/grinminer/internal/miner"
	"github.com/toole-brendan/grinminer/internal/queue"
	"github.com/toole-brendan/grinminer/internal/supervisor"
)

func newTestClient() (*Client, *queue.Queue[supervisor.InboundMessage], *queue.Queue[supervisor.OutboundMessage]) {
	toSupervisor := queue.New[supervisor.InboundMessage]()
	fromSupervisor := queue.New[supervisor.OutboundMessage]()
	clientStats := miner.NewClientStats("test:1234")
	miningStats := miner.NewMiningStats()

	c := New(Config{ServerAddr: "test:1234"}, clientStats, miningStats, toSupervisor, fromSupervisor)
	return c, toSupervisor, fromSupervisor
}

func TestHandleFrameDispatchesJobRequest(t *testing.T) {
	c, toSupervisor, _ := newTestClient()

	c.handleFrame(`{"id":"0","jsonrpc":"2.0","method":"job","params":{"height":100,"job_id":1,"difficulty":1,"pre_pow":"ab"}}`)

	msg, ok := toSupervisor.TryPop()
	require.True(t, ok)
	received, ok := msg.(supervisor.ReceivedJob)
	require.True(t, ok)
	require.EqualValues(t, 100, received.Job.Height)
	require.EqualValues(t, 1, received.Job.JobID)
	require.Equal(t, "ab", received.Job.PrePow)
}

func TestHandleFrameDispatchesGetJobTemplateResponse(t *testing.T) {
	c, toSupervisor, _ := newTestClient()

	c.handleFrame(`{"id":"0","jsonrpc":"2.0","method":"getjobtemplate","result":{"height":100,"job_id":1,"difficulty":1,"pre_pow":"ab"}}`)

	msg, ok := toSupervisor.TryPop()
	require.True(t, ok)
	received, ok := msg.(supervisor.ReceivedJob)
	require.True(t, ok)
	require.EqualValues(t, 1, received.Job.JobID)
}

func TestHandleFrameStaleSubmitIncrementsStaled(t *testing.T) {
	c, _, _ := newTestClient()

	c.handleFrame(`{"id":"1","jsonrpc":"2.0","method":"submit","error":{"code":-32000,"message":"too late"}}`)

	_, _, _, counters, _ := c.miningStats.Snapshot()
	require.EqualValues(t, 1, counters.Staled)
	require.EqualValues(t, 0, counters.SharesAccepted)
}

func TestHandleFrameBlockFoundIncrementsBothCounters(t *testing.T) {
	c, _, _ := newTestClient()

	c.handleFrame(`{"id":"1","jsonrpc":"2.0","method":"submit","result":"blockfound"}`)

	_, _, _, counters, _ := c.miningStats.Snapshot()
	require.EqualValues(t, 1, counters.SharesAccepted)
	require.EqualValues(t, 1, counters.BlocksFound)
}

func TestHandleFrameRejectedSubmit(t *testing.T) {
	c, _, _ := newTestClient()

	c.handleFrame(`{"id":"1","jsonrpc":"2.0","method":"submit","error":{"code":-32001,"message":"invalid solution"}}`)

	_, _, _, counters, _ := c.miningStats.Snapshot()
	require.EqualValues(t, 0, counters.Staled)
	require.EqualValues(t, 1, counters.Rejected)
}

func TestHandleFrameLoginFailureMarksConnectionStatus(t *testing.T) {
	c, _, _ := newTestClient()

	c.handleFrame(`{"id":"0","jsonrpc":"2.0","method":"login","error":{"code":1,"message":"bad credentials"}}`)

	state, connected, _, _, _ := c.clientStats.Snapshot()
	require.Equal(t, "server requires login", state)
	require.False(t, connected)
}

func TestDrainSupervisorMessagesSubmitsFoundSolution(t *testing.T) {
	c, _, fromSupervisor := newTestClient()

	serverSide, clientSide := newPipeConn()
	defer serverSide.Close()
	defer clientSide.Close()
	c.conn = clientSide
	c.reader = bufio.NewReader(clientSide)

	fromSupervisor.Push(supervisor.FoundSolution{Share: miner.PendingSolution{
		Height: 100, JobID: 2, EdgeBits: 29, Nonce: 7,
	}})

	done := make(chan struct{})
	go func() {
		c.drainSupervisorMessages()
		close(done)
	}()

	line := readLine(t, serverSide)
	<-done

	var req Request
	require.NoError(t, json.Unmarshal([]byte(line), &req))
	require.Equal(t, "submit", req.Method)

	var params SubmitParams
	require.NoError(t, json.Unmarshal(req.Params, &params))
	require.EqualValues(t, 2, params.JobID)
	require.EqualValues(t, 7, params.Nonce)
}

func TestSubmitSolutionDedupesRepeatedShare(t *testing.T) {
	c, _, fromSupervisor := newTestClient()

	serverSide, clientSide := newPipeConn()
	defer serverSide.Close()
	defer clientSide.Close()
	c.conn = clientSide
	c.reader = bufio.NewReader(clientSide)

	sol := miner.PendingSolution{Height: 1, JobID: 1, Nonce: 1}
	fromSupervisor.Push(supervisor.FoundSolution{Share: sol})
	fromSupervisor.Push(supervisor.FoundSolution{Share: sol})

	go func() {
		c.drainSupervisorMessages()
	}()

	// Only the first submission should reach the wire: after one line
	// has been read, a second read must time out with nothing sent.
	_ = readLine(t, serverSide)

	serverSide.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, err := bufio.NewReader(serverSide).ReadString('\n')
	require.Error(t, err)
}

func TestSubmitSolutionDoesNotDedupeDistinctProofsForSameNonce(t *testing.T) {
	c, _, fromSupervisor := newTestClient()

	serverSide, clientSide := newPipeConn()
	defer serverSide.Close()
	defer clientSide.Close()
	c.conn = clientSide
	c.reader = bufio.NewReader(clientSide)

	// A single graph attempt can yield up to 4 solutions sharing one
	// nonce but carrying distinct proofs; all of them must be submitted.
	first := miner.PendingSolution{Height: 1, JobID: 1, Nonce: 1}
	first.Proof[0] = 1
	second := miner.PendingSolution{Height: 1, JobID: 1, Nonce: 1}
	second.Proof[0] = 2

	fromSupervisor.Push(supervisor.FoundSolution{Share: first})
	fromSupervisor.Push(supervisor.FoundSolution{Share: second})

	go func() {
		c.drainSupervisorMessages()
	}()

	firstLine := readLine(t, serverSide)
	secondLine := readLine(t, serverSide)
	require.NotEqual(t, firstLine, secondLine)
}

func TestDrainSupervisorMessagesOutboundShutdownStopsClient(t *testing.T) {
	c, _, fromSupervisor := newTestClient()

	fromSupervisor.Push(supervisor.OutboundShutdown{})
	c.drainSupervisorMessages()

	select {
	case <-c.quit:
	default:
		t.Fatal("expected client quit channel to be closed")
	}
}
