// Package zipfmt reads the ZIP container layout from an in-memory buffer.
//
// The reader is a set of stateless scans: LocateIndex finds the central
// directory from the tail of the buffer, NextEntry decodes one central
// directory record, and OpenEntry resolves a local header to its payload.
// Every offset and length read from the buffer is bounds-checked before use;
// archive metadata is treated as untrusted input.
//
// Supported: stored (0) and deflate (8) entries, the zip64 end-of-directory
// record for entry count and directory offset. Not supported: encryption,
// spanned archives, a comment after the end-of-directory record, and other
// zip64 extra fields.
package zipfmt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/meigma/assetfs/internal/sizing"
)

// Record signatures.
const (
	sigCentral      = 0x02014b50
	sigLocal        = 0x04034b50
	sigEnd          = 0x06054b50
	sigZip64Locator = 0x07064b50
	sigZip64End     = 0x06064b50
)

// Fixed record sizes.
const (
	endLen          = 22
	zip64LocatorLen = 20
	zip64EndLen     = 56
	centralLen      = 46
	localLen        = 30
)

// Storage methods.
const (
	MethodStore   uint16 = 0
	MethodDeflate uint16 = 8
)

// General purpose flag bits.
const (
	FlagEncrypted      uint16 = 1 << 0
	FlagDataDescriptor uint16 = 1 << 3
)

// Sentinel errors.
var (
	// ErrNotContainer is returned when the buffer has no end-of-directory record.
	ErrNotContainer = errors.New("zipfmt: not a zip container")

	// ErrTruncated is returned when a record's offsets or lengths run past the buffer.
	ErrTruncated = errors.New("zipfmt: truncated record")

	// ErrCorrupt is returned when a record signature does not match.
	ErrCorrupt = errors.New("zipfmt: corrupt record")

	// ErrUnsupported is returned for storage methods and features this reader does not handle.
	ErrUnsupported = errors.New("zipfmt: unsupported feature")

	// ErrNoMoreEntries is returned when the cursor has reached the end of the buffer.
	ErrNoMoreEntries = errors.New("zipfmt: no more entries")
)

var le = binary.LittleEndian

// Directory locates the central directory within a buffer.
type Directory struct {
	// Count is the total number of central directory records.
	Count uint64

	// Offset is the byte offset of the first central directory record.
	Offset uint64

	// Zip64 reports whether Count and Offset came from the zip64 record.
	Zip64 bool
}

// LocateIndex finds the central directory of the container in data.
//
// The legacy end-of-directory record must occupy the final 22 bytes. When a
// zip64 locator immediately precedes it and points at a valid zip64 record,
// that record's 64-bit count and offset are used; otherwise the legacy 16-bit
// count and 32-bit offset are returned.
func LocateIndex(data []byte) (Directory, error) {
	if len(data) < endLen {
		return Directory{}, ErrNotContainer
	}
	end := data[len(data)-endLen:]
	if le.Uint32(end) != sigEnd {
		return Directory{}, ErrNotContainer
	}
	if dir, ok := locateZip64(data); ok {
		return dir, nil
	}
	return Directory{
		Count:  uint64(le.Uint16(end[10:])),
		Offset: uint64(le.Uint32(end[16:])),
	}, nil
}

// locateZip64 follows the zip64 locator preceding the legacy record.
func locateZip64(data []byte) (Directory, bool) {
	if len(data) < endLen+zip64LocatorLen {
		return Directory{}, false
	}
	loc := data[len(data)-endLen-zip64LocatorLen:]
	if le.Uint32(loc) != sigZip64Locator {
		return Directory{}, false
	}
	rec, ok := sizing.Slice(data, le.Uint64(loc[8:]), zip64EndLen)
	if !ok || le.Uint32(rec) != sigZip64End {
		return Directory{}, false
	}
	return Directory{
		Count:  le.Uint64(rec[32:]),
		Offset: le.Uint64(rec[48:]),
		Zip64:  true,
	}, true
}

// Entry is one decoded central directory record.
type Entry struct {
	// Name is the raw file name. It aliases the container buffer.
	Name []byte

	Flags   uint16
	Method  uint16
	DOSTime uint16
	DOSDate uint16
	CRC32   uint32

	CompressedSize   uint64
	UncompressedSize uint64

	// LocalOffset is the byte offset of the entry's local header.
	LocalOffset uint64
}

// IsDir reports whether the entry names a directory (trailing slash).
func (e *Entry) IsDir() bool {
	return len(e.Name) > 0 && e.Name[len(e.Name)-1] == '/'
}

// Modified converts the entry's DOS timestamp to Unix seconds in loc.
func (e *Entry) Modified(loc *time.Location) int64 {
	return DOSTime(e.DOSDate, e.DOSTime, loc)
}

// NextEntry decodes the central directory record at cursor and returns it
// with the cursor advanced past the record, its name, extra field and
// comment.
func NextEntry(data []byte, cursor uint64) (Entry, uint64, error) {
	if cursor >= uint64(len(data)) {
		return Entry{}, cursor, ErrNoMoreEntries
	}
	rec, ok := sizing.Slice(data, cursor, centralLen)
	if !ok {
		return Entry{}, cursor, fmt.Errorf("%w: central record at %d", ErrTruncated, cursor)
	}
	if le.Uint32(rec) != sigCentral {
		return Entry{}, cursor, fmt.Errorf("%w: bad central record signature at %d", ErrCorrupt, cursor)
	}

	nameLen := uint64(le.Uint16(rec[28:]))
	extraLen := uint64(le.Uint16(rec[30:]))
	commentLen := uint64(le.Uint16(rec[32:]))

	name, ok := sizing.Slice(data, cursor+centralLen, nameLen)
	if !ok {
		return Entry{}, cursor, fmt.Errorf("%w: central record name at %d", ErrTruncated, cursor)
	}
	next := cursor + centralLen + nameLen + extraLen + commentLen
	if next > uint64(len(data)) {
		return Entry{}, cursor, fmt.Errorf("%w: central record fields at %d", ErrTruncated, cursor)
	}

	return Entry{
		Name:             name,
		Flags:            le.Uint16(rec[8:]),
		Method:           le.Uint16(rec[10:]),
		DOSTime:          le.Uint16(rec[12:]),
		DOSDate:          le.Uint16(rec[14:]),
		CRC32:            le.Uint32(rec[16:]),
		CompressedSize:   uint64(le.Uint32(rec[20:])),
		UncompressedSize: uint64(le.Uint32(rec[24:])),
		LocalOffset:      uint64(le.Uint32(rec[42:])),
	}, next, nil
}

// Entries returns an iterator over the directory's Count records. Iteration
// stops after the first error, which is yielded with a zero Entry.
func (d Directory) Entries(data []byte) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		cursor := d.Offset
		for i := uint64(0); i < d.Count; i++ {
			e, next, err := NextEntry(data, cursor)
			if err != nil {
				if errors.Is(err, ErrNoMoreEntries) {
					err = fmt.Errorf("%w: directory ends after %d of %d entries", ErrTruncated, i, d.Count)
				}
				yield(Entry{}, err)
				return
			}
			if !yield(e, nil) {
				return
			}
			cursor = next
		}
	}
}

// DOSTime converts an MS-DOS date and time to Unix seconds, interpreting the
// calendar fields in loc (time.Local when nil). Seconds have two-second
// resolution.
func DOSTime(date, tm uint16, loc *time.Location) int64 {
	if loc == nil {
		loc = time.Local
	}
	t := time.Date(
		int(date>>9&0x7f)+1980,
		time.Month(date>>5&0x0f),
		int(date&0x1f),
		int(tm>>11&0x1f),
		int(tm>>5&0x3f),
		int(tm&0x1f)*2,
		0,
		loc,
	)
	return t.Unix()
}

// Payload is the raw stored bytes of one entry.
type Payload struct {
	// Data aliases the container buffer.
	Data []byte

	// Compressed reports whether Data must be inflated.
	Compressed bool
}

// OpenEntry validates the local header at offset and returns the entry's
// payload.
//
// The compressed size comes from the local header unless the data
// descriptor flag is set, in which case the local fields are zero and
// centralSize (from the central directory record) is used instead.
func OpenEntry(data []byte, offset, centralSize uint64) (Payload, error) {
	hdr, ok := sizing.Slice(data, offset, localLen)
	if !ok {
		return Payload{}, fmt.Errorf("%w: local header at %d", ErrTruncated, offset)
	}
	if le.Uint32(hdr) != sigLocal {
		return Payload{}, fmt.Errorf("%w: bad local header signature at %d", ErrCorrupt, offset)
	}

	flags := le.Uint16(hdr[6:])
	method := le.Uint16(hdr[8:])
	if flags&FlagEncrypted != 0 {
		return Payload{}, fmt.Errorf("%w: encrypted entry at %d", ErrUnsupported, offset)
	}
	if method != MethodStore && method != MethodDeflate {
		return Payload{}, fmt.Errorf("%w: storage method %d", ErrUnsupported, method)
	}

	size := uint64(le.Uint32(hdr[18:]))
	if flags&FlagDataDescriptor != 0 {
		size = centralSize
	}
	start := offset + localLen + uint64(le.Uint16(hdr[26:])) + uint64(le.Uint16(hdr[28:]))
	payload, ok := sizing.Slice(data, start, size)
	if !ok {
		return Payload{}, fmt.Errorf("%w: payload at %d overruns buffer", ErrTruncated, offset)
	}
	return Payload{Data: payload, Compressed: method == MethodDeflate}, nil
}

// Supported reports whether method is a storage method this package decodes.
func Supported(method uint16) bool {
	return method == MethodStore || method == MethodDeflate
}
