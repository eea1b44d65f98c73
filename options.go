package assetfs

import (
	"log/slog"
	"time"

	"github.com/meigma/assetfs/archive"
)

// Option configures an FS.
type Option func(*FS)

// WithLogger sets the logger for mount table operations. The logger is
// also handed to every archive mounted afterward.
func WithLogger(logger *slog.Logger) Option {
	return func(f *FS) {
		f.logger = logger
	}
}

// WithArchiveOptions appends options applied to every archive mounted by
// the FS.
func WithArchiveOptions(opts ...archive.Option) Option {
	return func(f *FS) {
		f.archiveOpts = append(f.archiveOpts, opts...)
	}
}

// WithVerifyChecksums checks full container reads against their recorded
// CRC-32 (default: false).
func WithVerifyChecksums(enabled bool) Option {
	return WithArchiveOptions(archive.WithVerifyChecksums(enabled))
}

// WithMemoryMap controls whether containers are memory-mapped (default: true).
func WithMemoryMap(enabled bool) Option {
	return WithArchiveOptions(archive.WithMemoryMap(enabled))
}

// WithMaxFileSize limits the bytes returned by one read.
// Set limit to 0 to disable the limit.
func WithMaxFileSize(limit uint64) Option {
	return WithArchiveOptions(archive.WithMaxFileSize(limit))
}

// WithLocation sets the time zone used for container timestamps (default:
// time.Local).
func WithLocation(loc *time.Location) Option {
	return WithArchiveOptions(archive.WithLocation(loc))
}

// MountOption configures a single Mount call.
type MountOption func(*mountConfig)

type mountConfig struct {
	mountpoint string
	root       string
	prepend    bool
}

// MountAt serves the source under a virtual prefix.
func MountAt(mountpoint string) MountOption {
	return func(c *mountConfig) {
		c.mountpoint = mountpoint
	}
}

// MountRoot serves only the subtree of the source under root.
func MountRoot(root string) MountOption {
	return func(c *mountConfig) {
		c.root = root
	}
}

// MountPrepend inserts the source at the front of the table so it is
// probed before every existing mount.
func MountPrepend() MountOption {
	return func(c *mountConfig) {
		c.prepend = true
	}
}

// mountWithPrepend is MountPrepend driven by a flag.
func mountWithPrepend(enabled bool) MountOption {
	return func(c *mountConfig) {
		c.prepend = enabled
	}
}
