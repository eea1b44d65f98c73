package archive

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/assetfs/internal/pathutil"
	"github.com/meigma/assetfs/internal/testutil"
)

func sampleDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"a/b/c.txt":  "see",
		"a/b/d.txt":  "dee",
		"readme.txt": "hello from disk",
		"empty/":     "",
	})
	return root
}

func TestDirStatListRead(t *testing.T) {
	t.Parallel()

	root := sampleDir(t)
	d, err := OpenDir(root)
	require.NoError(t, err)
	assert.Equal(t, KindDir, d.Kind())
	assert.Equal(t, root, d.Source())

	info, err := d.Stat("a/b")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	info, err = d.Stat("readme.txt")
	require.NoError(t, err)
	assert.False(t, info.IsDir())
	assert.Equal(t, uint64(15), info.Size)

	fi, err := os.Stat(filepath.Join(root, "readme.txt"))
	require.NoError(t, err)
	assert.Equal(t, fi.ModTime().Unix(), info.LastModified)

	assert.ElementsMatch(t, []string{"c.txt", "d.txt"}, listNames(d, "a/b"))
	assert.ElementsMatch(t, []string{"a", "empty", "readme.txt"}, listNames(d, ""))
	assert.Empty(t, listNames(d, "empty"))
	assert.Empty(t, listNames(d, "readme.txt"))

	got, err := d.Read("readme.txt", -1)
	require.NoError(t, err)
	assert.Equal(t, "hello from disk", string(got))

	got, err = d.Read("readme.txt", 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	got, err = d.Read("a", -1)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = d.Read("a/nope", -1)
	require.ErrorIs(t, err, fs.ErrNotExist)

	_, err = d.Stat("a/../../etc")
	require.ErrorIs(t, err, fs.ErrInvalid)

	require.NoError(t, d.Close())
}

func TestDirMountpoint(t *testing.T) {
	t.Parallel()

	d, err := OpenDir(sampleDir(t), WithMountpoint("mods/base"))
	require.NoError(t, err)

	for _, p := range []string{"", "mods", "mods/base"} {
		info, err := d.Stat(p)
		require.NoError(t, err, p)
		assert.True(t, info.IsDir(), p)
	}
	assert.Equal(t, []string{"mods"}, listNames(d, ""))
	assert.Equal(t, []string{"base"}, listNames(d, "mods"))

	got, err := d.Read("mods/base/a/b/c.txt", -1)
	require.NoError(t, err)
	assert.Equal(t, "see", string(got))

	_, err = d.Stat("readme.txt")
	require.ErrorIs(t, err, fs.ErrNotExist)
	_, err = d.Stat("modsx")
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestDirPathBeneathFile(t *testing.T) {
	t.Parallel()

	d, err := OpenDir(sampleDir(t))
	require.NoError(t, err)

	_, err = d.Stat("readme.txt/inner")
	require.ErrorIs(t, err, fs.ErrNotExist)
	_, err = d.Read("readme.txt/inner", -1)
	require.ErrorIs(t, err, fs.ErrNotExist)
	assert.NotErrorIs(t, err, ErrUnreadable)
}

func TestDirRoot(t *testing.T) {
	t.Parallel()

	d, err := OpenDir(sampleDir(t), WithRoot("a/b"))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"c.txt", "d.txt"}, listNames(d, ""))
	got, err := d.Read("d.txt", -1)
	require.NoError(t, err)
	assert.Equal(t, "dee", string(got))

	_, err = OpenDir(sampleDir(t), WithRoot("missing"))
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestDirSizeLimit(t *testing.T) {
	t.Parallel()

	d, err := OpenDir(sampleDir(t), WithMaxFileSize(4))
	require.NoError(t, err)

	_, err = d.Read("readme.txt", -1)
	require.ErrorIs(t, err, ErrUnreadable)
	require.ErrorIs(t, err, ErrTooLarge)

	got, err := d.Read("readme.txt", 4)
	require.NoError(t, err)
	assert.Equal(t, "hell", string(got))
}

func TestDirPathTooLong(t *testing.T) {
	t.Parallel()

	d, err := OpenDir(sampleDir(t))
	require.NoError(t, err)

	_, err = d.Stat(strings.Repeat("x", pathutil.MaxPath))
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestOpenDirRejectsFile(t *testing.T) {
	t.Parallel()

	path := testutil.WriteFile(t, t.TempDir(), "plain.txt", []byte("x"))
	_, err := OpenDir(path)
	require.ErrorIs(t, err, ErrNotArchive)
}
