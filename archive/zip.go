package archive

import (
	"fmt"
	"hash/crc32"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/meigma/assetfs/internal/index"
	"github.com/meigma/assetfs/internal/inflate"
	"github.com/meigma/assetfs/internal/sizing"
	"github.com/meigma/assetfs/internal/zipfmt"
)

// decoders is shared by every container archive.
var decoders = inflate.NewPool()

// Zip serves files from a ZIP container held in memory.
//
// The container is mapped (or read) once at open and indexed in a single
// pass over its central directory. After open the archive is immutable and
// safe for concurrent Stat, List and Read calls; Close must not race them.
type Zip struct {
	source      string
	mountpoint  string
	root        string
	buf         buffer
	idx         *index.Index
	verify      bool
	maxFileSize uint64
	logger      *slog.Logger
	closeOnce   sync.Once
	closeErr    error
}

// OpenZip maps the container at source and builds its index. On failure
// nothing is left mapped.
func OpenZip(source string, opts ...Option) (*Zip, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	buf, err := cfg.mapper(source)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", source, err)
	}
	z, err := newZip(source, buf, cfg)
	if err != nil {
		_ = buf.Close()
		return nil, fmt.Errorf("archive: open %s: %w", source, err)
	}
	return z, nil
}

// NewZip serves a container already in memory, such as one embedded with
// go:embed. The archive aliases data, which must not be modified.
func NewZip(data []byte, opts ...Option) (*Zip, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	z, err := newZip("", &memBuffer{data: data}, cfg)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	return z, nil
}

func newZip(source string, buf buffer, cfg *config) (*Zip, error) {
	idx, err := index.Build(buf.Bytes(), index.Options{
		Mountpoint: cfg.mountpoint,
		Root:       cfg.root,
		Location:   cfg.location,
		Logger:     cfg.logger,
	})
	if err != nil {
		return nil, err
	}
	z := &Zip{
		source:      source,
		mountpoint:  cfg.mountpoint,
		root:        cfg.root,
		buf:         buf,
		idx:         idx,
		verify:      cfg.verify,
		maxFileSize: cfg.maxFileSize,
		logger:      cfg.logger,
	}
	z.log().Debug("opened container archive",
		"source", source, "mountpoint", z.mountpoint, "nodes", idx.Len())
	return z, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (z *Zip) log() *slog.Logger {
	if z.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return z.logger
}

func (*Zip) sealed() {}

// Kind returns KindZip.
func (*Zip) Kind() Kind { return KindZip }

// Source returns the container path, or "" for NewZip archives.
func (z *Zip) Source() string { return z.source }

// Mountpoint returns the virtual prefix of the archive.
func (z *Zip) Mountpoint() string { return z.mountpoint }

// Len returns the number of indexed nodes, or 0 after Close.
func (z *Zip) Len() int {
	if z.idx == nil {
		return 0
	}
	return z.idx.Len()
}

// Close releases the index and unmaps the container.
func (z *Zip) Close() error {
	z.closeOnce.Do(func() {
		z.idx.Release()
		z.idx = nil
		z.closeErr = z.buf.Close()
		z.buf = nil
		z.log().Debug("closed container archive", "source", z.source)
	})
	return z.closeErr
}

// Stat implements Archive.
func (z *Zip) Stat(path string) (FileInfo, error) {
	n, err := z.lookup("stat", path)
	if err != nil {
		return FileInfo{}, err
	}
	return nodeInfo(n), nil
}

// List implements Archive.
func (z *Zip) List(path string, visit func(name string)) {
	n, err := z.lookup("list", path)
	if err != nil || !n.IsDir() {
		return
	}
	for c := range z.idx.Children(n) {
		visit(z.idx.Name(c))
	}
}

// Read implements Archive.
//
// Stored entries are copied out of the container; deflate entries are
// decoded into a fresh buffer. With WithVerifyChecksums, reads that return
// the whole file are checked against the recorded CRC-32.
func (z *Zip) Read(path string, maxBytes int) ([]byte, error) {
	n, err := z.lookup("read", path)
	if err != nil {
		return nil, err
	}
	if n.IsDir() {
		return nil, nil
	}
	if !n.Readable() {
		z.log().Warn("entry unreadable", "path", path, "method", n.Method, "flags", n.Flags)
		return nil, unreadable("read", path, fmt.Errorf("%w: method %d", zipfmt.ErrUnsupported, n.Method))
	}

	want := clamp(n.Size, maxBytes)
	if z.maxFileSize > 0 && want > z.maxFileSize {
		return nil, unreadable("read", path, ErrTooLarge)
	}
	size, err := sizing.ToInt(want, ErrTooLarge)
	if err != nil {
		return nil, unreadable("read", path, err)
	}

	payload, err := zipfmt.OpenEntry(z.buf.Bytes(), n.Offset, n.CompressedSize)
	if err != nil {
		z.log().Warn("entry unreadable", "path", path, "error", err)
		return nil, unreadable("read", path, err)
	}

	out := make([]byte, size)
	if payload.Compressed {
		if err := decoders.Decode(out, payload.Data); err != nil {
			z.log().Warn("entry unreadable", "path", path, "error", err)
			return nil, unreadable("read", path, err)
		}
	} else {
		if len(payload.Data) < size {
			return nil, unreadable("read", path,
				fmt.Errorf("%w: stored payload holds %d of %d bytes", zipfmt.ErrTruncated, len(payload.Data), size))
		}
		copy(out, payload.Data)
	}

	if z.verify && want == n.Size {
		if sum := crc32.ChecksumIEEE(out); sum != n.CRC32 {
			return nil, unreadable("read", path, fmt.Errorf("%w: got %08x, want %08x", ErrChecksum, sum, n.CRC32))
		}
	}
	return out, nil
}

// Walk visits every path served by the archive, depth-first, starting at
// the virtual root.
func (z *Zip) Walk(fn func(path string, info FileInfo) bool) {
	if z.idx == nil {
		return
	}
	z.idx.Walk(func(path string, n *index.Node) bool {
		return fn(path, nodeInfo(n))
	})
}

func (z *Zip) lookup(op, path string) (*index.Node, error) {
	p, err := cleanPath(op, path)
	if err != nil {
		return nil, err
	}
	if z.idx == nil {
		return nil, &fs.PathError{Op: op, Path: path, Err: ErrClosed}
	}
	n, ok := z.idx.Lookup(p)
	if !ok {
		return nil, notExist(op, path)
	}
	return n, nil
}

func nodeInfo(n *index.Node) FileInfo {
	if n.IsDir() {
		return FileInfo{Type: TypeDirectory, LastModified: n.Modified}
	}
	return FileInfo{Type: TypeRegular, Size: n.Size, LastModified: n.Modified}
}
