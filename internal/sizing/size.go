// Package sizing provides safe size arithmetic and conversions to prevent overflow.
package sizing

import "math"

// ToInt converts a uint64 to int, returning overflowErr if it doesn't fit.
func ToInt(size uint64, overflowErr error) (int, error) {
	if size > uint64(math.MaxInt) {
		return 0, overflowErr
	}
	return int(size), nil
}

// AddUint64 adds two uint64 values, returning (result, false) on overflow.
func AddUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// Fits reports whether the range [off, off+n) lies within a buffer of
// length size. Overflowing ranges never fit.
func Fits(off, n uint64, size int) bool {
	end, ok := AddUint64(off, n)
	if !ok || size < 0 {
		return false
	}
	return end <= uint64(size)
}

// Slice returns buf[off:off+n] when the range fits, or false otherwise.
func Slice(buf []byte, off, n uint64) ([]byte, bool) {
	if !Fits(off, n, len(buf)) {
		return nil, false
	}
	return buf[off : off+n : off+n], true
}
