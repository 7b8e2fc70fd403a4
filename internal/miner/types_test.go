// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package miner

import (
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func randHexString(t *rapid.T, label string, nbytes int) string {
	b := rapid.SliceOfN(rapid.Byte(), nbytes, nbytes).Draw(t, label)
	return hex.EncodeToString(b)
}

func TestHeaderBytesNonceRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		preLen := rapid.IntRange(0, 64).Draw(t, "preLen")
		postLen := rapid.IntRange(0, 32).Draw(t, "postLen")
		prePow := randHexString(t, "prePow", preLen)
		postNonce := randHexString(t, "postNonce", postLen)
		nonce := rapid.Uint64().Draw(t, "nonce")

		headerBytes, err := BuildHeaderBytes(prePow, nonce, postNonce)
		require.NoError(t, err)
		require.Len(t, headerBytes, preLen+8+postLen)

		got, err := ExtractNonce(headerBytes, preLen)
		require.NoError(t, err)
		require.Equal(t, nonce, got)
	})
}

func TestShareJSONRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var proof [ProofSize]uint64
		for i := range proof {
			proof[i] = rapid.Uint64().Draw(t, "edge")
		}
		share := Share{
			Height:   rapid.Uint64().Draw(t, "height"),
			JobID:    rapid.Uint64().Draw(t, "jobID"),
			EdgeBits: rapid.Uint32Range(0, 63).Draw(t, "edgeBits"),
			Nonce:    rapid.Uint64().Draw(t, "nonce"),
			Proof:    proof,
		}

		data, err := json.Marshal(share)
		require.NoError(t, err)

		var decoded Share
		require.NoError(t, json.Unmarshal(data, &decoded))
		require.Equal(t, share, decoded)
	})
}

func TestSharedJobDrainIsMonotonic(t *testing.T) {
	sj := NewSharedJob(1)
	sj.PushSolution(PendingSolution{JobID: 1, Nonce: 1})
	sj.PushSolution(PendingSolution{JobID: 1, Nonce: 2})

	first := sj.DrainSolutions()
	require.Len(t, first, 2)

	second := sj.DrainSolutions()
	require.Empty(t, second)
}

func TestMiningStatsRollingWindowBound(t *testing.T) {
	ms := NewMiningStats()
	for i := 0; i < RollingWindowSize+20; i++ {
		ms.PushGPSSample(float64(i))
	}
	window, _, _, _, _ := ms.Snapshot()
	require.Len(t, window, RollingWindowSize)
	require.Equal(t, float64(20), window[0])
}
