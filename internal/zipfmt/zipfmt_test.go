package zipfmt

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/assetfs/internal/testutil"
)

func TestLocateIndex(t *testing.T) {
	t.Parallel()

	data := testutil.BuildRaw([]testutil.RawEntry{
		testutil.Stored("a.txt", "alpha"),
		testutil.Stored("b/", ""),
	}, testutil.RawOptions{})

	dir, err := LocateIndex(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), dir.Count)
	assert.False(t, dir.Zip64)
	assert.Equal(t, uint32(sigCentral), binary.LittleEndian.Uint32(data[dir.Offset:]))
}

func TestLocateIndexZip64(t *testing.T) {
	t.Parallel()

	entries := []testutil.RawEntry{
		testutil.Stored("one", "1"),
		testutil.Stored("two", "22"),
		testutil.Stored("three", "333"),
	}

	t.Run("supersedes legacy", func(t *testing.T) {
		t.Parallel()
		data := testutil.BuildRaw(entries, testutil.RawOptions{Zip64: true, SaturateLegacy: true})
		dir, err := LocateIndex(data)
		require.NoError(t, err)
		assert.True(t, dir.Zip64)
		assert.Equal(t, uint64(3), dir.Count)

		var names []string
		for e, err := range dir.Entries(data) {
			require.NoError(t, err)
			names = append(names, string(e.Name))
		}
		assert.Equal(t, []string{"one", "two", "three"}, names)
	})

	t.Run("invalid record falls back", func(t *testing.T) {
		t.Parallel()
		data := testutil.BuildRaw(entries, testutil.RawOptions{Zip64: true, BreakZip64: true})
		dir, err := LocateIndex(data)
		require.NoError(t, err)
		assert.False(t, dir.Zip64)
		assert.Equal(t, uint64(3), dir.Count)
	})
}

func TestLocateIndexRejects(t *testing.T) {
	t.Parallel()

	valid := testutil.BuildRaw([]testutil.RawEntry{testutil.Stored("a", "a")}, testutil.RawOptions{})
	withComment := append(append([]byte{}, valid...), "comment"...)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", []byte("PK\x05\x06")},
		{"plain text", []byte("this is certainly not an archive at all")},
		{"trailing comment", withComment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := LocateIndex(tt.data)
			require.ErrorIs(t, err, ErrNotContainer)
		})
	}
}

func TestNextEntry(t *testing.T) {
	t.Parallel()

	mod := time.Date(2023, time.July, 4, 9, 15, 40, 0, time.UTC)
	data := testutil.BuildRaw([]testutil.RawEntry{
		{Name: "docs/readme.md", Payload: []byte("hello"), Modified: mod},
		testutil.Deflated(t, "docs/big.txt", "compress me compress me compress me"),
	}, testutil.RawOptions{})

	dir, err := LocateIndex(data)
	require.NoError(t, err)

	e, next, err := NextEntry(data, dir.Offset)
	require.NoError(t, err)
	assert.Equal(t, "docs/readme.md", string(e.Name))
	assert.Equal(t, MethodStore, e.Method)
	assert.Equal(t, uint64(5), e.CompressedSize)
	assert.Equal(t, uint64(5), e.UncompressedSize)
	assert.Equal(t, uint64(0), e.LocalOffset)
	assert.Equal(t, mod.Unix(), e.Modified(time.UTC))
	assert.False(t, e.IsDir())

	e2, _, err := NextEntry(data, next)
	require.NoError(t, err)
	assert.Equal(t, "docs/big.txt", string(e2.Name))
	assert.Equal(t, MethodDeflate, e2.Method)
	assert.Equal(t, uint64(35), e2.UncompressedSize)
}

func TestNextEntryErrors(t *testing.T) {
	t.Parallel()

	data := testutil.BuildRaw([]testutil.RawEntry{testutil.Stored("file.txt", "x")}, testutil.RawOptions{})
	dir, err := LocateIndex(data)
	require.NoError(t, err)

	t.Run("end of buffer", func(t *testing.T) {
		t.Parallel()
		_, _, err := NextEntry(data, uint64(len(data)))
		require.ErrorIs(t, err, ErrNoMoreEntries)
	})

	t.Run("bad signature", func(t *testing.T) {
		t.Parallel()
		_, _, err := NextEntry(data, 0)
		require.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("header past end", func(t *testing.T) {
		t.Parallel()
		_, _, err := NextEntry(data, uint64(len(data)-10))
		require.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("name past end", func(t *testing.T) {
		t.Parallel()
		cut := append([]byte{}, data[:dir.Offset+centralLen+2]...)
		_, _, err := NextEntry(cut, dir.Offset)
		require.ErrorIs(t, err, ErrTruncated)
	})
}

func TestEntriesTruncatedDirectory(t *testing.T) {
	t.Parallel()

	data := testutil.BuildRaw([]testutil.RawEntry{
		testutil.Stored("a", "1"),
		testutil.Stored("b", "2"),
	}, testutil.RawOptions{ExtraCount: 1})

	dir, err := LocateIndex(data)
	require.NoError(t, err)
	require.Equal(t, uint64(3), dir.Count)

	var seen int
	var lastErr error
	for _, err := range dir.Entries(data) {
		if err != nil {
			lastErr = err
			break
		}
		seen++
	}
	assert.Equal(t, 2, seen)
	require.Error(t, lastErr)
}

func TestOpenEntry(t *testing.T) {
	t.Parallel()

	deflated := testutil.Deflated(t, "z.txt", "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz")
	data := testutil.BuildRaw([]testutil.RawEntry{
		testutil.Stored("s.txt", "stored bytes"),
		deflated,
	}, testutil.RawOptions{})

	dir, err := LocateIndex(data)
	require.NoError(t, err)

	var got []Payload
	for e, err := range dir.Entries(data) {
		require.NoError(t, err)
		p, err := OpenEntry(data, e.LocalOffset, e.CompressedSize)
		require.NoError(t, err)
		got = append(got, p)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "stored bytes", string(got[0].Data))
	assert.False(t, got[0].Compressed)
	assert.Equal(t, deflated.Payload, got[1].Data)
	assert.True(t, got[1].Compressed)
}

func TestOpenEntryDataDescriptor(t *testing.T) {
	t.Parallel()

	data := testutil.BuildZip(t, []testutil.File{
		{Name: "dd.txt", Content: "descriptor sized"},
	})
	dir, err := LocateIndex(data)
	require.NoError(t, err)

	e, _, err := NextEntry(data, dir.Offset)
	require.NoError(t, err)
	require.NotZero(t, e.Flags&FlagDataDescriptor)

	p, err := OpenEntry(data, e.LocalOffset, e.CompressedSize)
	require.NoError(t, err)
	assert.Equal(t, "descriptor sized", string(p.Data))
}

func TestOpenEntryErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entry   testutil.RawEntry
		wantErr error
	}{
		{"bzip2", testutil.RawEntry{Name: "b", Payload: []byte("xx"), Method: 12}, ErrUnsupported},
		{"encrypted", testutil.RawEntry{Name: "e", Payload: []byte("xx"), Flags: FlagEncrypted}, ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data := testutil.BuildRaw([]testutil.RawEntry{tt.entry}, testutil.RawOptions{})
			_, err := OpenEntry(data, 0, 2)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("bad signature", func(t *testing.T) {
		t.Parallel()
		data := testutil.BuildRaw([]testutil.RawEntry{testutil.Stored("a", "abc")}, testutil.RawOptions{})
		_, err := OpenEntry(data, 1, 3)
		require.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("payload overruns", func(t *testing.T) {
		t.Parallel()
		data := testutil.BuildRaw([]testutil.RawEntry{testutil.Stored("a", "abcdef")}, testutil.RawOptions{})
		_, err := OpenEntry(data[:localLen+3], 0, 6)
		require.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("offset past end", func(t *testing.T) {
		t.Parallel()
		_, err := OpenEntry([]byte("PK"), 1<<40, 0)
		require.ErrorIs(t, err, ErrTruncated)
	})
}

func TestDOSTime(t *testing.T) {
	t.Parallel()

	want := time.Date(2019, time.December, 31, 23, 59, 58, 0, time.UTC)
	date, tm := testutil.DOSDateTime(want)
	assert.Equal(t, want.Unix(), DOSTime(date, tm, time.UTC))

	// Seconds are stored halved.
	odd := time.Date(2019, time.December, 31, 23, 59, 59, 0, time.UTC)
	date, tm = testutil.DOSDateTime(odd)
	assert.Equal(t, want.Unix(), DOSTime(date, tm, time.UTC))

	est := time.FixedZone("EST", -5*3600)
	assert.Equal(t, want.Unix()+5*3600, DOSTime(date, tm, est))
}
