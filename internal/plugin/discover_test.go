// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiscoverFindsPlatformAndLegacySuffixes(t *testing.T) {
	dir := t.TempDir()
	native := filepath.Join(dir, "cuckaroo"+platformSuffix())
	legacy := filepath.Join(dir, "cuckatoo.cuckooplugin")
	other := filepath.Join(dir, "README.md")

	for _, p := range []string{native, legacy, other} {
		require.NoError(t, os.WriteFile(p, []byte{}, 0o644))
	}

	caps, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, caps, 2)
}

func TestResolveNotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := Resolve(dir, "missing")
	require.Error(t, err)

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}
