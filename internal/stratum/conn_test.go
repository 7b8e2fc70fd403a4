// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package stratum

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTLSHostnameTakesLastTwoLabels(t *testing.T) {
	cases := []struct {
		addr string
		want string
	}{
		{"stratum.grin-pool.org:13416", "grin-pool.org"},
		{"mining.eu.grinmint.com:4416", "grinmint.com"},
		{"localhost:13416", "localhost"},
		{"pool.example.co.uk:1234", "co.uk"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, tlsHostname(c.addr), c.addr)
	}
}
