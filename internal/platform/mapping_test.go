package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("mapped contents"), 0o644))

	m, err := Map(path)
	require.NoError(t, err)
	assert.Equal(t, "mapped contents", string(m.Bytes()))
	assert.Equal(t, 15, m.Len())

	require.NoError(t, m.Close())
	assert.Nil(t, m.Bytes())
	require.NoError(t, m.Close())
}

func TestMapEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	m, err := Map(path)
	require.NoError(t, err)
	assert.Zero(t, m.Len())
	require.NoError(t, m.Close())
}

func TestMapMissing(t *testing.T) {
	t.Parallel()

	_, err := Map(filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
