package archive

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/meigma/assetfs/internal/pathutil"
)

// Dir serves files from an OS directory. It holds no index; every
// operation resolves against the filesystem.
type Dir struct {
	source      string
	base        string
	mountpoint  string
	maxFileSize uint64
	logger      *slog.Logger
}

// OpenDir opens source as a directory archive. With WithRoot, the archive
// serves source/root instead.
func OpenDir(source string, opts ...Option) (*Dir, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	base := source
	if cfg.root != "" {
		base = filepath.Join(source, filepath.FromSlash(cfg.root))
	}
	info, err := os.Stat(base)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", source, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("archive: open %s: %w", source, ErrNotArchive)
	}

	d := &Dir{
		source:      source,
		base:        filepath.ToSlash(base),
		mountpoint:  cfg.mountpoint,
		maxFileSize: cfg.maxFileSize,
		logger:      cfg.logger,
	}
	d.log().Debug("opened directory archive", "source", source, "mountpoint", d.mountpoint)
	return d, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (d *Dir) log() *slog.Logger {
	if d.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.logger
}

func (*Dir) sealed() {}

// Kind returns KindDir.
func (*Dir) Kind() Kind { return KindDir }

// Source returns the directory the archive was opened from.
func (d *Dir) Source() string { return d.source }

// Mountpoint returns the virtual prefix of the archive.
func (d *Dir) Mountpoint() string { return d.mountpoint }

// Close is a no-op.
func (*Dir) Close() error { return nil }

// Stat implements Archive.
func (d *Dir) Stat(path string) (FileInfo, error) {
	p, err := cleanPath("stat", path)
	if err != nil {
		return FileInfo{}, err
	}
	if _, ok := mountAncestor(d.mountpoint, p); ok {
		return d.statBase(path)
	}
	concrete, err := d.resolve(p)
	if err != nil {
		return FileInfo{}, notExist("stat", path)
	}
	return d.stat("stat", path, concrete)
}

// List implements Archive.
func (d *Dir) List(path string, visit func(name string)) {
	p, err := cleanPath("list", path)
	if err != nil {
		return
	}
	if next, ok := mountAncestor(d.mountpoint, p); ok {
		visit(next)
		return
	}
	concrete, err := d.resolve(p)
	if err != nil {
		return
	}
	entries, err := os.ReadDir(concrete)
	if err != nil {
		return
	}
	for _, e := range entries {
		visit(e.Name())
	}
}

// Read implements Archive.
func (d *Dir) Read(path string, maxBytes int) ([]byte, error) {
	p, err := cleanPath("read", path)
	if err != nil {
		return nil, err
	}
	if _, ok := mountAncestor(d.mountpoint, p); ok {
		return nil, nil
	}
	concrete, err := d.resolve(p)
	if err != nil {
		return nil, notExist("read", path)
	}
	info, err := d.stat("read", path, concrete)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, nil
	}

	want := clamp(info.Size, maxBytes)
	if d.maxFileSize > 0 && want > d.maxFileSize {
		return nil, unreadable("read", path, ErrTooLarge)
	}

	f, err := os.Open(concrete)
	if err != nil {
		return nil, unreadable("read", path, err)
	}
	defer f.Close()

	buf := make([]byte, want)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, unreadable("read", path, err)
	}
	return buf[:n], nil
}

// resolve maps a normalized virtual path to an OS path.
func (d *Dir) resolve(p string) (string, error) {
	concrete, err := pathutil.ResolveMountRelative(d.base, d.mountpoint, p)
	if err != nil {
		if errors.Is(err, pathutil.ErrPathTooLong) {
			d.log().Debug("path too long", "path", p)
		}
		return "", err
	}
	return filepath.FromSlash(concrete), nil
}

func (d *Dir) stat(op, path, concrete string) (FileInfo, error) {
	info, err := os.Stat(concrete)
	if err != nil {
		// A path beneath a regular file fails with ENOTDIR; it is simply absent.
		d.log().Debug("stat failed", "path", path, "error", err)
		return FileInfo{}, notExist(op, path)
	}
	switch {
	case info.IsDir():
		return FileInfo{Type: TypeDirectory, LastModified: info.ModTime().Unix()}, nil
	case info.Mode().IsRegular():
		return FileInfo{Type: TypeRegular, Size: uint64(info.Size()), LastModified: info.ModTime().Unix()}, nil
	default:
		return FileInfo{}, notExist(op, path)
	}
}

// statBase describes a synthesized ancestor of the mountpoint using the
// base directory's metadata.
func (d *Dir) statBase(path string) (FileInfo, error) {
	info, err := d.stat("stat", path, filepath.FromSlash(d.base))
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{Type: TypeDirectory, LastModified: info.LastModified}, nil
}
