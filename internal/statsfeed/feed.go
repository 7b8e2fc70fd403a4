// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package statsfeed broadcasts ClientStats and MiningStats snapshots to
// any number of connected websocket subscribers, for an external
// dashboard. The dashboard itself is out of scope; this package only
// ships the numbers it would render.
package statsfeed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/btcsuite/websocket"

	"github.com/toole-brendan/grinminer/internal/miner"
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

// broadcastInterval is how often a fresh snapshot is pushed to every
// connected subscriber.
const broadcastInterval = 1 * time.Second

// Snapshot is the JSON payload sent to every subscriber.
type Snapshot struct {
	State          string                `json:"state"`
	Connected      bool                  `json:"connected"`
	LastSent       string                `json:"last_sent"`
	LastReceived   string                `json:"last_received"`
	ServerURL      string                `json:"server_url"`
	Height         uint64                `json:"height"`
	Difficulty     uint64                `json:"difficulty"`
	GPSWindow      []float64             `json:"gps_window"`
	SolutionsFound uint64                `json:"solutions_found"`
	SharesAccepted uint64                `json:"shares_accepted"`
	Rejected       uint64                `json:"rejected"`
	Staled         uint64                `json:"staled"`
	BlocksFound    uint64                `json:"blocks_found"`
	Workers        []miner.WorkerStats   `json:"workers"`
}

// Feed serves a websocket endpoint that streams Snapshot values.
type Feed struct {
	clientStats *miner.ClientStats
	miningStats *miner.MiningStats

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	quit chan struct{}
}

// New constructs a Feed over the given stats records.
func New(clientStats *miner.ClientStats, miningStats *miner.MiningStats) *Feed {
	return &Feed{
		clientStats: clientStats,
		miningStats: miningStats,
		clients:     make(map[*websocket.Conn]struct{}),
		quit:        make(chan struct{}),
	}
}

// ServeHTTP upgrades the connection and registers it as a subscriber.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("websocket upgrade failed: %v", err)
		return
	}

	f.mu.Lock()
	f.clients[conn] = struct{}{}
	f.mu.Unlock()

	log.Debugf("stats feed subscriber connected from %s", r.RemoteAddr)

	// Drain and discard anything the subscriber sends; this is a
	// read-only feed, but a dead connection must be detected by a
	// failed read so it can be deregistered.
	go func() {
		defer f.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (f *Feed) remove(conn *websocket.Conn) {
	f.mu.Lock()
	delete(f.clients, conn)
	f.mu.Unlock()
	conn.Close()
}

// Run broadcasts a fresh snapshot to every subscriber every
// broadcastInterval, until Stop is called.
func (f *Feed) Run() {
	ticker := time.NewTicker(broadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.quit:
			return
		case <-ticker.C:
			f.broadcast()
		}
	}
}

// Stop ends the broadcast loop and closes every subscriber connection.
func (f *Feed) Stop() {
	close(f.quit)

	f.mu.Lock()
	defer f.mu.Unlock()
	for conn := range f.clients {
		conn.Close()
	}
	f.clients = make(map[*websocket.Conn]struct{})
}

func (f *Feed) broadcast() {
	snap := f.snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		log.Errorf("marshal stats snapshot: %v", err)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for conn := range f.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debugf("dropping stats feed subscriber: %v", err)
			delete(f.clients, conn)
			conn.Close()
		}
	}
}

func (f *Feed) snapshot() Snapshot {
	state, connected, lastSent, lastReceived, serverURL := f.clientStats.Snapshot()
	gpsWindow, height, difficulty, counters, workers := f.miningStats.Snapshot()

	return Snapshot{
		State:          state,
		Connected:      connected,
		LastSent:       lastSent,
		LastReceived:   lastReceived,
		ServerURL:      serverURL,
		Height:         height,
		Difficulty:     difficulty,
		GPSWindow:      gpsWindow,
		SolutionsFound: counters.SolutionsFound,
		SharesAccepted: counters.SharesAccepted,
		Rejected:       counters.Rejected,
		Staled:         counters.Staled,
		BlocksFound:    counters.BlocksFound,
		Workers:        workers,
	}
}
