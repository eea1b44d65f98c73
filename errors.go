package assetfs

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/meigma/assetfs/archive"
	"github.com/meigma/assetfs/internal/pathutil"
	"github.com/meigma/assetfs/internal/zipfmt"
)

// Sentinel errors specific to the assetfs package.
var (
	// ErrInvalidPath is returned for paths containing "..", ":" or "\".
	// It matches fs.ErrInvalid.
	ErrInvalidPath = fmt.Errorf("assetfs: invalid path: %w", fs.ErrInvalid)

	// ErrNotMounted is returned by Unmount for a source that is not mounted.
	ErrNotMounted = errors.New("assetfs: not mounted")

	// ErrAlreadyMounted is returned by Mount for a source that is already mounted.
	ErrAlreadyMounted = errors.New("assetfs: already mounted")

	// ErrInvalidManifest is returned when a mount manifest cannot be parsed or
	// is missing required fields.
	ErrInvalidManifest = errors.New("assetfs: invalid manifest")
)

// Errors re-exported from archive.
var (
	// ErrUnreadable is returned when a path exists but its contents cannot be decoded.
	ErrUnreadable = archive.ErrUnreadable

	// ErrNotArchive is returned when a source is neither a directory nor a container.
	ErrNotArchive = archive.ErrNotArchive

	// ErrChecksum is returned when decoded contents do not match the recorded CRC-32.
	ErrChecksum = archive.ErrChecksum

	// ErrTooLarge is returned when a read would exceed the configured size limit.
	ErrTooLarge = archive.ErrTooLarge
)

// Errors re-exported from the container reader.
var (
	// ErrNotContainer is returned when a file has no ZIP end-of-directory record.
	ErrNotContainer = zipfmt.ErrNotContainer

	// ErrTruncated is returned when container metadata points past the end of the file.
	ErrTruncated = zipfmt.ErrTruncated

	// ErrCorrupt is returned when a container record signature does not match.
	ErrCorrupt = zipfmt.ErrCorrupt

	// ErrUnsupported is returned for storage methods and features that cannot be decoded.
	ErrUnsupported = zipfmt.ErrUnsupported
)

// ErrPathTooLong is returned when a resolved path reaches the maximum length.
var ErrPathTooLong = pathutil.ErrPathTooLong
