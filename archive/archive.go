// Package archive serves files from a single backing store: a plain
// directory or a ZIP container.
//
// Both variants implement Archive. Paths are slash-separated virtual paths
// that include the archive's mountpoint; the empty path names the virtual
// root. Per-path failures are returned as *fs.PathError so callers can test
// them with errors.Is(err, fs.ErrNotExist).
package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/meigma/assetfs/internal/pathutil"
)

// Sentinel errors.
var (
	// ErrUnreadable is returned when a path exists but its contents cannot be
	// decoded. The underlying cause is wrapped alongside it.
	ErrUnreadable = errors.New("archive: entry unreadable")

	// ErrNotArchive is returned when a source is neither a directory nor a
	// valid container.
	ErrNotArchive = errors.New("archive: not a directory or container")

	// ErrChecksum is returned when decoded contents do not match the recorded
	// CRC-32.
	ErrChecksum = errors.New("archive: checksum mismatch")

	// ErrTooLarge is returned when a read would exceed the configured file
	// size limit.
	ErrTooLarge = errors.New("archive: file exceeds size limit")

	// ErrClosed is returned by operations on a closed archive.
	ErrClosed = errors.New("archive: closed")
)

// Kind identifies an Archive variant.
type Kind uint8

const (
	KindDir Kind = iota + 1
	KindZip
)

func (k Kind) String() string {
	switch k {
	case KindDir:
		return "dir"
	case KindZip:
		return "zip"
	default:
		return "unknown"
	}
}

// FileType classifies a path.
type FileType uint8

const (
	TypeRegular FileType = iota
	TypeDirectory
)

func (t FileType) String() string {
	if t == TypeDirectory {
		return "directory"
	}
	return "file"
}

// FileInfo describes a path at the time it was stat'ed.
type FileInfo struct {
	Type FileType

	// Size is the uncompressed size in bytes. Directories report zero.
	Size uint64

	// LastModified is the modification time in Unix seconds.
	LastModified int64
}

// IsDir reports whether the path is a directory.
func (fi FileInfo) IsDir() bool {
	return fi.Type == TypeDirectory
}

// ModTime returns LastModified as a time.Time.
func (fi FileInfo) ModTime() time.Time {
	return time.Unix(fi.LastModified, 0)
}

// Archive is a mounted backing store. The set of implementations is closed:
// *Dir and *Zip.
type Archive interface {
	// Stat describes path or fails with fs.ErrNotExist.
	Stat(path string) (FileInfo, error)

	// List calls visit once per immediate child of path when path is a
	// directory. It does nothing otherwise.
	List(path string, visit func(name string))

	// Read returns up to maxBytes of a regular file's contents, or all of
	// them when maxBytes is negative. Directories yield (nil, nil). A path
	// that exists but cannot be decoded fails with ErrUnreadable.
	Read(path string, maxBytes int) ([]byte, error)

	// Close releases the archive's resources. It is safe to call more than
	// once.
	Close() error

	// Source returns the path the archive was opened from.
	Source() string

	// Mountpoint returns the virtual prefix the archive is served under.
	Mountpoint() string

	// Kind reports the archive variant.
	Kind() Kind

	sealed()
}

// Interface compliance.
var (
	_ Archive = (*Dir)(nil)
	_ Archive = (*Zip)(nil)
)

// cleanPath validates and normalizes a virtual path.
func cleanPath(op, path string) (string, error) {
	if !pathutil.Validate(path) {
		return "", &fs.PathError{Op: op, Path: path, Err: fs.ErrInvalid}
	}
	return pathutil.Normalize(path), nil
}

// clamp returns how many of size bytes a read limited to maxBytes returns.
func clamp(size uint64, maxBytes int) uint64 {
	if maxBytes >= 0 && uint64(maxBytes) < size {
		return uint64(maxBytes)
	}
	return size
}

// mountAncestor reports whether path is a proper ancestor of mountpoint and,
// if so, returns the next segment of mountpoint below it.
func mountAncestor(mountpoint, path string) (string, bool) {
	if mountpoint == "" || path == mountpoint || !pathutil.HasPrefixSegment(mountpoint, path) {
		return "", false
	}
	rest, _ := pathutil.TrimPrefixSegment(mountpoint, path)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest, true
}

func unreadable(op, path string, cause error) error {
	return &fs.PathError{Op: op, Path: path, Err: fmt.Errorf("%w: %w", ErrUnreadable, cause)}
}

func notExist(op, path string) error {
	return &fs.PathError{Op: op, Path: path, Err: fs.ErrNotExist}
}
