package assetfs

import (
	"io"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/assetfs/internal/testutil"
)

func newLayeredFS(t *testing.T) *FS {
	t.Helper()

	dev := t.TempDir()
	testutil.WriteTree(t, dev, map[string]string{
		"config/app.yaml": "debug: true",
		"readme.txt":      "loose readme",
	})
	pak := writeZip(t, t.TempDir(), "pak.zip", []testutil.File{
		{Name: "textures/"},
		{Name: "textures/stone.png", Content: "png bytes"},
		{Name: "textures/ui/button.png", Content: "button", Deflate: true},
		{Name: "readme.txt", Content: "packed readme"},
	})

	f := New()
	t.Cleanup(func() { _ = f.Close() })
	require.NoError(t, f.Mount(dev))
	require.NoError(t, f.Mount(pak))
	return f
}

func TestIOFSConformance(t *testing.T) {
	t.Parallel()

	f := newLayeredFS(t)
	require.NoError(t, fstest.TestFS(f.IOFS(),
		"config/app.yaml",
		"readme.txt",
		"textures/stone.png",
		"textures/ui/button.png",
	))
}

func TestIOFSReadDirSortedAndMerged(t *testing.T) {
	t.Parallel()

	v := newLayeredFS(t).IOFS()

	entries, err := fs.ReadDir(v, ".")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"config", "readme.txt", "textures"}, names)
	assert.True(t, entries[0].IsDir())
	assert.False(t, entries[1].IsDir())

	data, err := fs.ReadFile(v, "readme.txt")
	require.NoError(t, err)
	assert.Equal(t, "loose readme", string(data))
}

func TestIOFSModes(t *testing.T) {
	t.Parallel()

	v := newLayeredFS(t).IOFS()

	info, err := fs.Stat(v, "textures")
	require.NoError(t, err)
	assert.Equal(t, fs.ModeDir|0o555, info.Mode())
	assert.Equal(t, "textures", info.Name())

	info, err = fs.Stat(v, "textures/ui/button.png")
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o444), info.Mode())
	assert.Equal(t, "button.png", info.Name())
	assert.Equal(t, int64(6), info.Size())

	info, err = fs.Stat(v, ".")
	require.NoError(t, err)
	assert.Equal(t, ".", info.Name())
	assert.True(t, info.IsDir())
}

func TestIOFSErrors(t *testing.T) {
	t.Parallel()

	v := newLayeredFS(t).IOFS()

	_, err := v.Open("missing.txt")
	require.ErrorIs(t, err, fs.ErrNotExist)

	_, err = v.Open("/readme.txt")
	require.ErrorIs(t, err, fs.ErrInvalid)

	_, err = v.Open("a:b")
	require.ErrorIs(t, err, fs.ErrInvalid)

	_, err = v.ReadFile("textures")
	require.ErrorIs(t, err, fs.ErrInvalid)

	_, err = v.ReadDir("readme.txt")
	require.ErrorIs(t, err, fs.ErrInvalid)

	dir, err := v.Open("textures")
	require.NoError(t, err)
	_, err = dir.Read(make([]byte, 1))
	require.Error(t, err)
	require.NoError(t, dir.Close())
}

func TestIOFSReadDirPaging(t *testing.T) {
	t.Parallel()

	v := newLayeredFS(t).IOFS()
	f, err := v.Open("textures")
	require.NoError(t, err)
	dir, ok := f.(fs.ReadDirFile)
	require.True(t, ok)

	first, err := dir.ReadDir(1)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "stone.png", first[0].Name())

	second, err := dir.ReadDir(5)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "ui", second[0].Name())

	_, err = dir.ReadDir(1)
	require.ErrorIs(t, err, io.EOF)

	rest, err := dir.ReadDir(-1)
	require.NoError(t, err)
	assert.Empty(t, rest)
}
