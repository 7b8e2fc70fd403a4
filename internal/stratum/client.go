// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package stratum

import (
	"bufio"
	"encoding/json"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/decred/dcrd/lru"

	"github.com/toole-brendan/grinminer/internal/miner"
	"github.com/toole-brendan/grinminer/internal/queue"
	"github.com/toole-brendan/grinminer/internal/supervisor"
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

// Session state, as a string for ClientStats display.
const (
	stateDisconnected = "disconnected"
	stateConnected    = "connected"
	stateLoggedIn     = "logged_in"
)

const (
	serverReadInterval  = 1 * time.Second
	serverRetryInterval = 5 * time.Second
	statusInterval      = 30 * time.Second
	mainLoopTick        = 10 * time.Millisecond

	// submitCacheSize bounds the recently-submitted (job_id, nonce,
	// proof) dedup cache; it is sized generously above any plausible solve
	// rate so it never evicts an entry the server could still be
	// asked about.
	submitCacheSize = 4096
)

// Config configures one Client instance.
type Config struct {
	ServerAddr string
	Login      string
	Password   string
	DialOptions
}

// Client owns the stratum session: the connection, the state machine,
// and the cyclic channel pair shared with the Mining Supervisor.
type Client struct {
	cfg Config

	conn   net.Conn
	reader *bufio.Reader

	state         string
	lastRequestID uint32

	clientStats *miner.ClientStats
	miningStats *miner.MiningStats

	// fromSupervisor is pushed onto by the supervisor (FoundSolution,
	// OutboundShutdown) for this client to drain; toSupervisor is pushed
	// onto by this client (ReceivedJob, StopJob, Shutdown) for the
	// supervisor to consume.
	fromSupervisor *queue.Queue[supervisor.OutboundMessage]
	toSupervisor   *queue.Queue[supervisor.InboundMessage]

	submitCache *lru.Cache[submitCacheKey]

	quit chan struct{}
}

// submitCacheKey identifies one distinct solution. A single graph
// attempt's nonce can yield up to 4 solutions with distinct proofs
// (SolverSolutions.Sols[4]), so the proof must be part of the key —
// keying on jobID/nonce alone would collapse a whole multi-solution
// batch into a single submit.
type submitCacheKey struct {
	jobID uint64
	nonce uint64
	proof [miner.ProofSize]uint64
}

// New constructs a Client. toSupervisor is the queue this client pushes
// ReceivedJob/StopJob/Shutdown onto; fromSupervisor is the queue the
// supervisor pushes FoundSolution/OutboundShutdown onto for this client
// to drain.
func New(cfg Config, clientStats *miner.ClientStats, miningStats *miner.MiningStats, toSupervisor *queue.Queue[supervisor.InboundMessage], fromSupervisor *queue.Queue[supervisor.OutboundMessage]) *Client {
	return &Client{
		cfg:            cfg,
		state:          stateDisconnected,
		clientStats:    clientStats,
		miningStats:    miningStats,
		toSupervisor:   toSupervisor,
		fromSupervisor: fromSupervisor,
		submitCache:    lru.NewCache[submitCacheKey](submitCacheSize),
		quit:           make(chan struct{}),
	}
}

// Stop signals the client's Run loop to return after finishing its
// current iteration.
func (c *Client) Stop() {
	close(c.quit)
}

// Run drives the session state machine until Stop is called or a
// Shutdown message is drained from the supervisor. It blocks.
func (c *Client) Run() {
	nextServerRead := time.Now().Add(serverReadInterval)
	nextStatusRequest := time.Now().Add(statusInterval)
	nextServerRetry := time.Now()
	wasDisconnected := true

	ticker := time.NewTicker(mainLoopTick)
	defer ticker.Stop()

	for {
		select {
		case <-c.quit:
			c.toSupervisor.Push(supervisor.Shutdown{})
			return
		case <-ticker.C:
		}

		if c.conn == nil {
			if !wasDisconnected {
				c.toSupervisor.Push(supervisor.StopJob{})
			}
			wasDisconnected = true

			if time.Now().After(nextServerRetry) {
				if err := c.connect(); err != nil {
					log.Warnf("can't establish server connection to %s: %v; retrying every %s", c.cfg.ServerAddr, err, serverRetryInterval)
					c.clientStats.SetState("can't establish server connection", false)
				} else {
					log.Infof("connected to stratum server at %s", c.cfg.ServerAddr)
					c.clientStats.SetState(stateConnected, true)
				}
				nextServerRetry = time.Now().Add(serverRetryInterval)
			}
			if c.conn == nil {
				continue
			}
		} else {
			if wasDisconnected {
				c.sendLogin()
				c.sendGetJobTemplate()
				wasDisconnected = false
			}

			if time.Now().After(nextServerRead) {
				c.readAvailableFrames()
				nextServerRead = time.Now().Add(serverReadInterval)
			}

			if time.Now().After(nextStatusRequest) {
				c.sendGetStatus()
				nextStatusRequest = time.Now().Add(statusInterval)
			}
		}

		c.drainSupervisorMessages()
	}
}

func (c *Client) connect() error {
	conn, err := dial(c.cfg.ServerAddr, c.cfg.DialOptions)
	if err != nil {
		return err
	}
	// Reads are driven on a polling cadence, not a blocking read, so a
	// short per-read deadline lets readAvailableFrames distinguish "no
	// data yet" from a broken connection without blocking the main loop.
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

func (c *Client) disconnect(reason error) {
	log.Errorf("stratum connection lost: %v", reason)
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = nil
	c.reader = nil
	c.clientStats.SetState(stateDisconnected, false)
}

// readAvailableFrames reads every fully buffered line from the
// connection without blocking past a short deadline, classifying each
// as a job request or a response.
func (c *Client) readAvailableFrames() {
	for {
		c.conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
		line, err := c.reader.ReadString('\n')
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return
			}
			if line == "" {
				c.disconnect(connectionError("broken pipe: %v", err))
				return
			}
		}
		if line == "" {
			return
		}

		c.clientStats.SetState(stateConnected, true)
		c.handleFrame(strings.TrimRight(line, "\r\n"))
	}
}

func (c *Client) handleFrame(raw string) {
	var probe struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		log.Errorf("error parsing message %q: %v", raw, err)
		return
	}

	if isJobRequest(probe.Method) {
		var req Request
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			log.Errorf("error parsing request %q: %v", raw, err)
			return
		}
		if err := c.handleRequest(req); err != nil {
			log.Errorf("error handling request %q: %v", raw, err)
		}
		return
	}

	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		log.Errorf("error parsing response %q: %v", raw, err)
		return
	}
	if err := c.handleResponse(resp); err != nil {
		log.Errorf("error handling response %q: %v", raw, err)
	}
}

func (c *Client) handleRequest(req Request) error {
	switch req.Method {
	case "job":
		if len(req.Params) == 0 {
			return requestError("no params in job request")
		}
		var job JobTemplate
		if err := json.Unmarshal(req.Params, &job); err != nil {
			return jsonError(err)
		}
		log.Infof("got a new job: height=%d job_id=%d", job.Height, job.JobID)
		c.forwardJob(job)
		return nil
	default:
		return requestError("unknown method %q", req.Method)
	}
}

func (c *Client) handleResponse(resp Response) error {
	switch resp.Method {
	case "status":
		return c.handleStatusResponse(resp)
	case "getjobtemplate":
		return c.handleGetJobTemplateResponse(resp)
	case "submit":
		return c.handleSubmitResponse(resp)
	case "keepalive":
		return c.handleKeepaliveResponse(resp)
	case "login":
		return c.handleLoginResponse(resp)
	default:
		c.clientStats.SetLastReceived("unknown response: " + resp.Method)
		log.Warnf("unknown response: %+v", resp)
		return nil
	}
}

func (c *Client) handleStatusResponse(resp Response) error {
	if resp.Result == nil {
		return c.logResponseError("failed to get status", resp.Error)
	}
	var st WorkerStatus
	if err := json.Unmarshal(resp.Result, &st); err != nil {
		return jsonError(err)
	}
	log.Infof("status for worker %s - height=%d difficulty=%d (%d/%d/%d)", st.ID, st.Height, st.Difficulty, st.Accepted, st.Rejected, st.Stale)
	c.clientStats.SetLastReceived("accepted: " + strconv.FormatUint(st.Accepted, 10) +
		", rejected: " + strconv.FormatUint(st.Rejected, 10) +
		", stale: " + strconv.FormatUint(st.Stale, 10))
	return nil
}

func (c *Client) handleGetJobTemplateResponse(resp Response) error {
	if resp.Result == nil {
		return c.logResponseError("failed to get job template", resp.Error)
	}
	var job JobTemplate
	if err := json.Unmarshal(resp.Result, &job); err != nil {
		return jsonError(err)
	}
	c.clientStats.SetLastReceived("got job for block " + strconv.FormatUint(job.Height, 10))
	log.Infof("got a job at height %d and difficulty %d", job.Height, job.Difficulty)
	c.forwardJob(job)
	return nil
}

func (c *Client) handleSubmitResponse(resp Response) error {
	if resp.Result != nil {
		c.clientStats.SetLastReceived("share accepted")
		isBlock := strings.Contains(string(resp.Result), "blockfound")
		c.miningStats.AddAccepted(isBlock)
		if isBlock {
			log.Infof("block found!")
		} else {
			log.Infof("share accepted")
		}
		return nil
	}
	if resp.Error == nil {
		return c.logResponseError("failed to submit a solution", nil)
	}
	c.clientStats.SetLastReceived("failed to submit a solution: " + resp.Error.Message)
	if strings.Contains(resp.Error.Message, "too late") {
		c.miningStats.AddStaled()
	} else {
		c.miningStats.AddRejected()
	}
	log.Errorf("failed to submit a solution: %s", resp.Error.Message)
	return nil
}

func (c *Client) handleKeepaliveResponse(resp Response) error {
	if resp.Result != nil {
		return nil
	}
	return c.logResponseError("failed to request keepalive", resp.Error)
}

func (c *Client) handleLoginResponse(resp Response) error {
	if resp.Result != nil {
		return nil
	}
	msg := c.logResponseError("failed to log in", resp.Error)
	c.clientStats.SetState("server requires login", false)
	return msg
}

func (c *Client) logResponseError(what string, rpcErr *RPCError) error {
	if rpcErr == nil {
		rpcErr = &RPCError{Message: "invalid error response received"}
	}
	c.clientStats.SetLastReceived(what + ": " + rpcErr.Message)
	log.Errorf("%s: %s", what, rpcErr.Message)
	return nil
}

func (c *Client) forwardJob(job JobTemplate) {
	c.toSupervisor.Push(supervisor.ReceivedJob{
		Job: miner.Job{
			Height:     job.Height,
			JobID:      job.JobID,
			Difficulty: job.Difficulty,
			PrePow:     job.PrePow,
		},
	})
}

func (c *Client) drainSupervisorMessages() {
	for {
		msg, ok := c.fromSupervisor.TryPop()
		if !ok {
			return
		}
		switch m := msg.(type) {
		case supervisor.FoundSolution:
			c.submitSolution(m.Share)
		case supervisor.OutboundShutdown:
			log.Debugf("shutting down stratum client")
			c.Stop()
			return
		}
	}
}

func (c *Client) submitSolution(sol miner.PendingSolution) {
	key := submitCacheKey{jobID: sol.JobID, nonce: sol.Nonce, proof: sol.Proof}
	if c.submitCache.Contains(key) {
		return
	}
	c.submitCache.Add(key)

	pow := make([]uint64, len(sol.Proof))
	copy(pow, sol.Proof[:])

	c.sendRequest("submit", SubmitParams{
		Height:   sol.Height,
		JobID:    sol.JobID,
		EdgeBits: sol.EdgeBits,
		Nonce:    sol.Nonce,
		Pow:      pow,
	})
	c.clientStats.SetLastSent("found share for height " + strconv.FormatUint(sol.Height, 10))
}

func (c *Client) sendLogin() {
	if c.cfg.Login == "" {
		return
	}
	c.sendRequest("login", LoginParams{Login: c.cfg.Login, Pass: c.cfg.Password, Agent: "grin-miner"})
	c.clientStats.SetLastSent("login")
}

func (c *Client) sendGetJobTemplate() {
	c.sendRequest("getjobtemplate", nil)
	c.clientStats.SetLastSent("get new job")
}

func (c *Client) sendGetStatus() {
	c.sendRequest("status", nil)
}

func (c *Client) sendRequest(method string, params interface{}) {
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			log.Errorf("marshal %s params: %v", method, err)
			return
		}
		raw = data
	}

	req := Request{
		ID:      strconv.FormatUint(uint64(atomic.AddUint32(&c.lastRequestID, 1)), 10),
		Jsonrpc: "2.0",
		Method:  method,
		Params:  raw,
	}

	data, err := json.Marshal(req)
	if err != nil {
		log.Errorf("marshal %s request: %v", method, err)
		return
	}

	if c.conn == nil {
		return
	}
	log.Debugf("sending request: %s", data)
	data = append(data, '\n')
	if _, err := c.conn.Write(data); err != nil {
		c.disconnect(connectionError("write %s: %v", method, err))
	}
}
