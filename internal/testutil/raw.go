package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"
	"time"

	"github.com/klauspost/compress/flate"
)

// RawEntry is one member of a byte-exact archive built by BuildRaw.
// Payload is written verbatim; callers supply already-deflated bytes for
// Method 8 (see Deflated).
type RawEntry struct {
	Name    string
	Payload []byte
	Method  uint16
	Flags   uint16

	// Size is the uncompressed size. Zero means len(Payload).
	Size uint32

	// CRC is the recorded checksum. Zero means crc32 of Payload.
	CRC uint32

	// Modified defaults to Epoch.
	Modified time.Time
}

// RawOptions controls the trailer written by BuildRaw.
type RawOptions struct {
	// Zip64 writes a zip64 end record and locator before the legacy record.
	Zip64 bool

	// SaturateLegacy stores 0xFFFF and 0xFFFFFFFF in the legacy count and
	// offset fields, forcing readers onto the zip64 record.
	SaturateLegacy bool

	// BreakZip64 corrupts the zip64 record signature.
	BreakZip64 bool

	// ExtraCount is added to the recorded entry count.
	ExtraCount int
}

var le = binary.LittleEndian

// BuildRaw serializes entries without data descriptors or extra fields.
func BuildRaw(entries []RawEntry, opts RawOptions) []byte {
	var buf bytes.Buffer
	offsets := make([]uint32, len(entries))

	for i, e := range entries {
		e = withDefaults(e)
		offsets[i] = uint32(buf.Len())
		date, tm := DOSDateTime(e.Modified)

		put32(&buf, 0x04034b50)
		put16(&buf, 20)
		put16(&buf, e.Flags)
		put16(&buf, e.Method)
		put16(&buf, tm)
		put16(&buf, date)
		put32(&buf, e.CRC)
		put32(&buf, uint32(len(e.Payload)))
		put32(&buf, e.Size)
		put16(&buf, uint16(len(e.Name)))
		put16(&buf, 0)
		buf.WriteString(e.Name)
		buf.Write(e.Payload)
	}

	cdOffset := uint32(buf.Len())
	for i, e := range entries {
		e = withDefaults(e)
		date, tm := DOSDateTime(e.Modified)

		put32(&buf, 0x02014b50)
		put16(&buf, 20)
		put16(&buf, 20)
		put16(&buf, e.Flags)
		put16(&buf, e.Method)
		put16(&buf, tm)
		put16(&buf, date)
		put32(&buf, e.CRC)
		put32(&buf, uint32(len(e.Payload)))
		put32(&buf, e.Size)
		put16(&buf, uint16(len(e.Name)))
		put16(&buf, 0)
		put16(&buf, 0)
		put16(&buf, 0)
		put16(&buf, 0)
		put32(&buf, 0)
		put32(&buf, offsets[i])
		buf.WriteString(e.Name)
	}
	cdSize := uint32(buf.Len()) - cdOffset
	count := len(entries) + opts.ExtraCount

	if opts.Zip64 {
		recOffset := uint64(buf.Len())
		sig := uint32(0x06064b50)
		if opts.BreakZip64 {
			sig = 0xdeadbeef
		}
		put32(&buf, sig)
		put64(&buf, 44)
		put16(&buf, 45)
		put16(&buf, 45)
		put32(&buf, 0)
		put32(&buf, 0)
		put64(&buf, uint64(count))
		put64(&buf, uint64(count))
		put64(&buf, uint64(cdSize))
		put64(&buf, uint64(cdOffset))

		put32(&buf, 0x07064b50)
		put32(&buf, 0)
		put64(&buf, recOffset)
		put32(&buf, 1)
	}

	legacyCount, legacyOffset := uint16(count), cdOffset
	if opts.SaturateLegacy {
		legacyCount, legacyOffset = 0xffff, 0xffffffff
	}
	put32(&buf, 0x06054b50)
	put16(&buf, 0)
	put16(&buf, 0)
	put16(&buf, legacyCount)
	put16(&buf, legacyCount)
	put32(&buf, cdSize)
	put32(&buf, legacyOffset)
	put16(&buf, 0)

	return buf.Bytes()
}

// Deflated returns a Method 8 entry holding content.
func Deflated(tb testing.TB, name, content string) RawEntry {
	tb.Helper()

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		tb.Fatalf("flate writer: %v", err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		tb.Fatalf("deflate %s: %v", name, err)
	}
	if err := w.Close(); err != nil {
		tb.Fatalf("deflate %s: %v", name, err)
	}
	return RawEntry{
		Name:    name,
		Payload: buf.Bytes(),
		Method:  8,
		Size:    uint32(len(content)),
		CRC:     crc32.ChecksumIEEE([]byte(content)),
	}
}

// Stored returns a Method 0 entry holding content.
func Stored(name, content string) RawEntry {
	return RawEntry{Name: name, Payload: []byte(content)}
}

// DOSDateTime encodes t's calendar fields in MS-DOS format.
func DOSDateTime(t time.Time) (date, tm uint16) {
	date = uint16(t.Day() + int(t.Month())<<5 + (t.Year()-1980)<<9)
	tm = uint16(t.Second()/2 + t.Minute()<<5 + t.Hour()<<11)
	return date, tm
}

func withDefaults(e RawEntry) RawEntry {
	if e.Modified.IsZero() {
		e.Modified = Epoch
	}
	if e.Size == 0 {
		e.Size = uint32(len(e.Payload))
	}
	if e.CRC == 0 && e.Method == 0 {
		e.CRC = crc32.ChecksumIEEE(e.Payload)
	}
	return e
}

func put16(b *bytes.Buffer, v uint16) { b.Write(le.AppendUint16(nil, v)) }
func put32(b *bytes.Buffer, v uint32) { b.Write(le.AppendUint32(nil, v)) }
func put64(b *bytes.Buffer, v uint64) { b.Write(le.AppendUint64(nil, v)) }
