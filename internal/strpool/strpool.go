// Package strpool provides an append-only string arena.
//
// Strings are stored NUL-terminated in a single growable byte slice and
// referenced by Handle, a byte offset into that slice. Offsets stay valid
// when the slice is reallocated, so handles issued before growth remain
// usable for the life of the pool.
package strpool

import "bytes"

// Handle identifies a string stored in a Pool.
type Handle uint32

// Pool is an append-only arena of NUL-terminated strings.
// The zero value is an empty pool ready for use.
type Pool struct {
	buf []byte
}

// New returns a pool with capacity for roughly n bytes of string data.
func New(n int) *Pool {
	return &Pool{buf: make([]byte, 0, n)}
}

// Append copies s into the pool and returns its handle.
func (p *Pool) Append(s string) Handle {
	h := Handle(len(p.buf))
	p.buf = append(p.buf, s...)
	p.buf = append(p.buf, 0)
	return h
}

// AppendBytes copies b into the pool and returns its handle.
func (p *Pool) AppendBytes(b []byte) Handle {
	h := Handle(len(p.buf))
	p.buf = append(p.buf, b...)
	p.buf = append(p.buf, 0)
	return h
}

// Bytes returns the stored bytes for h without the terminator. The slice
// aliases the pool and must not be modified.
func (p *Pool) Bytes(h Handle) []byte {
	if int(h) >= len(p.buf) {
		return nil
	}
	s := p.buf[h:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		return s[:i:i]
	}
	return s
}

// String returns a copy of the string stored at h.
func (p *Pool) String(h Handle) string {
	return string(p.Bytes(h))
}

// Len returns the number of bytes held, terminators included.
func (p *Pool) Len() int {
	return len(p.buf)
}

// Reset releases the pool's storage. Handles issued earlier become invalid.
func (p *Pool) Reset() {
	p.buf = nil
}
