package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/fahmunge/internal/domain"
	"github.com/bft-labs/fahmunge/internal/fixtures"
	"github.com/bft-labs/fahmunge/internal/topology"
)

func TestSelectionResolve(t *testing.T) {
	top := func() (*topology.Topology, error) { return fixtures.Topology(4), nil }
	noTop := func() (*topology.Topology, error) {
		t.Fatal("topology loaded for an explicit selection")
		return nil, nil
	}

	indexFile := filepath.Join(t.TempDir(), "atoms.txt")
	require.NoError(t, os.WriteFile(indexFile, []byte("0\n2 3\n"), 0o644))

	got, err := (&selection{atoms: "0-2"}).resolve(noTop)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, got)

	got, err = (&selection{indexFile: indexFile}).resolve(noTop)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 3}, got)

	got, err = (&selection{named: "all"}).resolve(top)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, got)

	_, err = (&selection{}).resolve(top)
	assert.ErrorIs(t, err, domain.ErrInvalidSelection)

	_, err = (&selection{atoms: "1", named: "all"}).resolve(top)
	assert.ErrorIs(t, err, domain.ErrInvalidSelection)
}
