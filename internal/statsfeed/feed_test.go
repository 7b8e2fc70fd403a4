// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package statsfeed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/websocket"
	"github.com/stretchr/testify/require"

	"github.com/toole-brendan/grinminer/internal/miner"
)

func newTestFeed(t *testing.T) (*Feed, *miner.ClientStats, *miner.MiningStats) {
	t.Helper()
	clientStats := miner.NewClientStats("stratum.example.org:13416")
	miningStats := miner.NewMiningStats()
	return New(clientStats, miningStats), clientStats, miningStats
}

func TestSnapshotReflectsUnderlyingStats(t *testing.T) {
	feed, clientStats, miningStats := newTestFeed(t)

	clientStats.SetState("logged_in", true)
	miningStats.SetJob(100, 42)
	miningStats.AddSolutionsFound(2)
	miningStats.AddAccepted(false)
	miningStats.AddAccepted(true)

	snap := feed.snapshot()
	require.Equal(t, "logged_in", snap.State)
	require.True(t, snap.Connected)
	require.EqualValues(t, 100, snap.Height)
	require.EqualValues(t, 42, snap.Difficulty)
	require.EqualValues(t, 2, snap.SolutionsFound)
	require.EqualValues(t, 2, snap.SharesAccepted)
	require.EqualValues(t, 1, snap.BlocksFound)
}

func TestServeHTTPBroadcastsToSubscriber(t *testing.T) {
	feed, clientStats, _ := newTestFeed(t)
	clientStats.SetState("connected", true)

	server := httptest.NewServer(http.HandlerFunc(feed.ServeHTTP))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	go feed.Run()
	defer feed.Stop()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	require.Equal(t, "connected", snap.State)
}

func TestStopClosesSubscriberConnections(t *testing.T) {
	feed, _, _ := newTestFeed(t)

	server := httptest.NewServer(http.HandlerFunc(feed.ServeHTTP))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	go feed.Run()

	require.Eventually(t, func() bool {
		feed.mu.Lock()
		defer feed.mu.Unlock()
		return len(feed.clients) == 1
	}, 2*time.Second, 10*time.Millisecond)

	feed.Stop()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
}
