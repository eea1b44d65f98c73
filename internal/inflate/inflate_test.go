package inflate

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deflate(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	t.Parallel()

	plain := []byte(strings.Repeat("the quick brown fox ", 200))
	src := deflate(t, plain)
	pool := NewPool()

	t.Run("full", func(t *testing.T) {
		t.Parallel()
		dst := make([]byte, len(plain))
		require.NoError(t, pool.Decode(dst, src))
		assert.Equal(t, plain, dst)
	})

	t.Run("prefix", func(t *testing.T) {
		t.Parallel()
		dst := make([]byte, 9)
		require.NoError(t, pool.Decode(dst, src))
		assert.Equal(t, "the quick", string(dst))
	})

	t.Run("empty destination", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, pool.Decode(nil, []byte("garbage")))
	})
}

func TestDecodeShortStream(t *testing.T) {
	t.Parallel()

	src := deflate(t, []byte("short"))
	err := NewPool().Decode(make([]byte, 100), src)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestDecodeGarbage(t *testing.T) {
	t.Parallel()

	err := NewPool().Decode(make([]byte, 10), []byte{0xff, 0xff, 0xff, 0xff})
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestPoolConcurrent(t *testing.T) {
	t.Parallel()

	plain := []byte(strings.Repeat("concurrent ", 64))
	src := deflate(t, plain)
	pool := NewPool()

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			dst := make([]byte, len(plain))
			assert.NoError(t, pool.Decode(dst, src))
			assert.Equal(t, plain, dst)
		})
	}
	wg.Wait()
}

func TestNilPool(t *testing.T) {
	t.Parallel()

	var pool *Pool
	src := deflate(t, []byte("no pool"))
	dst := make([]byte, 7)
	require.NoError(t, pool.Decode(dst, src))
	assert.Equal(t, "no pool", string(dst))
}
