// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package supervisor

import "github.com/toole-brendan/grinminer/internal/miner"

// InboundMessage is the set of messages the Stratum Client sends to the
// Supervisor.
type InboundMessage interface {
	isInboundMessage()
}

// ReceivedJob carries a freshly acquired job from the server.
type ReceivedJob struct {
	Job       miner.Job
	PostNonce string
}

func (ReceivedJob) isInboundMessage() {}

// StopJob pauses every worker without tearing them down, used while the
// client is disconnected.
type StopJob struct{}

func (StopJob) isInboundMessage() {}

// Shutdown asks the supervisor to stop every worker and return.
type Shutdown struct{}

func (Shutdown) isInboundMessage() {}

// OutboundMessage is the set of messages the Supervisor sends to the
// Stratum Client.
type OutboundMessage interface {
	isOutboundMessage()
}

// FoundSolution carries one drained solver solution, ready to become a
// submit request.
type FoundSolution struct {
	Share miner.PendingSolution
}

func (FoundSolution) isOutboundMessage() {}

// OutboundShutdown tells the client the supervisor is shutting down. It
// is sent once the stop flag has been set, without waiting for the
// workers to exit.
type OutboundShutdown struct{}

func (OutboundShutdown) isOutboundMessage() {}
