package archive

import (
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/meigma/assetfs/internal/pathutil"
)

// DefaultMaxFileSize is the default limit on bytes returned by one Read
// (256MB).
const DefaultMaxFileSize = 256 << 20

// Option configures an archive.
type Option func(*config)

type config struct {
	logger      *slog.Logger
	mountpoint  string
	root        string
	location    *time.Location
	memoryMap   bool
	verify      bool
	maxFileSize uint64
	mapper      func(path string) (buffer, error)
}

func newConfig(opts []Option) (*config, error) {
	c := &config{
		memoryMap:   true,
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if !pathutil.Validate(c.mountpoint) {
		return nil, fmt.Errorf("archive: mountpoint %q: %w", c.mountpoint, fs.ErrInvalid)
	}
	if !pathutil.Validate(c.root) {
		return nil, fmt.Errorf("archive: root %q: %w", c.root, fs.ErrInvalid)
	}
	c.mountpoint = pathutil.Normalize(c.mountpoint)
	c.root = pathutil.Normalize(c.root)
	if c.mapper == nil {
		c.mapper = mapFile
		if !c.memoryMap {
			c.mapper = readFile
		}
	}
	return c, nil
}

// WithLogger sets the logger for archive operations.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMountpoint serves the archive's contents under a virtual prefix.
func WithMountpoint(mountpoint string) Option {
	return func(c *config) {
		c.mountpoint = mountpoint
	}
}

// WithRoot serves only the subtree under root, with root stripped from
// every path.
func WithRoot(root string) Option {
	return func(c *config) {
		c.root = root
	}
}

// WithLocation sets the time zone used to interpret container timestamps,
// which carry no zone of their own (default: time.Local).
func WithLocation(loc *time.Location) Option {
	return func(c *config) {
		c.location = loc
	}
}

// WithMemoryMap controls whether containers are memory-mapped (default:
// true). When false, the container is read into memory at open.
func WithMemoryMap(enabled bool) Option {
	return func(c *config) {
		c.memoryMap = enabled
	}
}

// WithVerifyChecksums makes full reads from containers check the decoded
// contents against the recorded CRC-32 (default: false).
func WithVerifyChecksums(enabled bool) Option {
	return func(c *config) {
		c.verify = enabled
	}
}

// WithMaxFileSize limits the bytes returned by one Read.
// Set limit to 0 to disable the limit.
func WithMaxFileSize(limit uint64) Option {
	return func(c *config) {
		c.maxFileSize = limit
	}
}

// withMapper replaces the function that loads container files.
func withMapper(fn func(path string) (buffer, error)) Option {
	return func(c *config) {
		c.mapper = fn
	}
}
