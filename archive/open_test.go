package archive

import (
	"io/fs"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/assetfs/internal/testutil"
	"github.com/meigma/assetfs/internal/zipfmt"
)

func TestOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	zipPath := testutil.WriteFile(t, dir, "assets.zip", sampleZip(t))
	textPath := testutil.WriteFile(t, dir, "notes.txt", []byte("not an archive, just text"))
	truncated := testutil.WriteFile(t, dir, "truncated.zip", testutil.BuildRaw(
		[]testutil.RawEntry{testutil.Stored("a", "1")},
		testutil.RawOptions{ExtraCount: 1},
	))
	corrupt := testutil.WriteFile(t, dir, "corrupt.zip", badCentralSignature(t, sampleZip(t)))

	t.Run("directory", func(t *testing.T) {
		t.Parallel()
		a, err := Open(sampleDir(t))
		require.NoError(t, err)
		assert.Equal(t, KindDir, a.Kind())
	})

	t.Run("container", func(t *testing.T) {
		t.Parallel()
		a, err := Open(zipPath, WithMountpoint("pak"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = a.Close() })
		assert.Equal(t, KindZip, a.Kind())
		assert.Equal(t, "pak", a.Mountpoint())

		got, err := a.Read("pak/readme.txt", -1)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(got))
	})

	t.Run("neither", func(t *testing.T) {
		t.Parallel()
		_, err := Open(textPath)
		require.ErrorIs(t, err, ErrNotArchive)
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		_, err := Open(filepath.Join(dir, "missing.zip"))
		require.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("truncated container", func(t *testing.T) {
		t.Parallel()
		_, err := Open(truncated)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotArchive)
		assert.ErrorIs(t, err, zipfmt.ErrTruncated)
	})

	t.Run("corrupt container", func(t *testing.T) {
		t.Parallel()
		_, err := Open(corrupt)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotArchive)
		assert.ErrorIs(t, err, zipfmt.ErrCorrupt)
	})
}

// badCentralSignature returns a copy of data whose first central directory
// record no longer starts with its signature.
func badCentralSignature(t *testing.T, data []byte) []byte {
	t.Helper()
	dir, err := zipfmt.LocateIndex(data)
	require.NoError(t, err)
	out := slices.Clone(data)
	copy(out[dir.Offset:], []byte{0xff, 0xff, 0xff, 0xff})
	return out
}

func TestKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "dir", KindDir.String())
	assert.Equal(t, "zip", KindZip.String())
	assert.Equal(t, "unknown", Kind(0).String())
	assert.Equal(t, "directory", TypeDirectory.String())
	assert.Equal(t, "file", TypeRegular.String())
}
