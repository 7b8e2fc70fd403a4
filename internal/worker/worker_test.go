// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package worker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/toole-brendan/grinminer/internal/plugin"
)

func TestOverlayParamsLeavesZeroFieldsAtDefault(t *testing.T) {
	defaults := plugin.SolverParams{NThreads: 4, NTrims: 30, EdgeBits: 29}
	overrides := plugin.SolverParams{NThreads: 8}

	overlayParams(&defaults, overrides)

	require.EqualValues(t, 8, defaults.NThreads)
	require.EqualValues(t, 30, defaults.NTrims)
	require.EqualValues(t, 29, defaults.EdgeBits)
}

func TestWorkerIterationCounterMonotonic(t *testing.T) {
	w := &Worker{}
	require.EqualValues(t, 1, w.nextIteration())
	require.EqualValues(t, 2, w.nextIteration())
	require.EqualValues(t, 3, w.nextIteration())
}
