// Package inflate decodes raw deflate streams with pooled decoders.
package inflate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
)

// ErrCorrupt is returned when a stream ends early or fails to decode.
var ErrCorrupt = errors.New("inflate: corrupt deflate stream")

// Pool manages reusable deflate decoders to reduce allocation overhead.
type Pool struct {
	pool *sync.Pool
}

// NewPool creates a new pool for deflate decoders.
func NewPool() *Pool {
	return &Pool{
		pool: &sync.Pool{
			New: func() any {
				return flate.NewReader(bytes.NewReader(nil))
			},
		},
	}
}

// Get returns a decoder configured to read from r.
// The caller must call the returned release function when done.
func (p *Pool) Get(r io.Reader) (io.ReadCloser, func(), error) {
	if p == nil || p.pool == nil {
		dec := flate.NewReader(r)
		return dec, func() { _ = dec.Close() }, nil
	}

	dec, ok := p.pool.Get().(io.ReadCloser)
	if !ok {
		dec = flate.NewReader(r)
		return dec, func() { _ = dec.Close() }, nil
	}
	resetter, ok := dec.(flate.Resetter)
	if !ok {
		dec = flate.NewReader(r)
		return dec, func() { _ = dec.Close() }, nil
	}
	if err := resetter.Reset(r, nil); err != nil {
		return nil, nil, err
	}

	return dec, func() {
		_ = dec.Close()
		p.pool.Put(dec)
	}, nil
}

// Decode inflates src until dst is full. It fails with ErrCorrupt when the
// stream yields fewer than len(dst) bytes.
func (p *Pool) Decode(dst, src []byte) error {
	if len(dst) == 0 {
		return nil
	}
	dec, release, err := p.Get(bytes.NewReader(src))
	if err != nil {
		return err
	}
	defer release()

	n, err := io.ReadFull(dec, dst)
	if err != nil {
		return fmt.Errorf("%w: decoded %d of %d bytes: %v", ErrCorrupt, n, len(dst), err)
	}
	return nil
}
