package assetfs

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"

	"github.com/meigma/assetfs/archive"
	"github.com/meigma/assetfs/internal/pathutil"
)

// Re-export types from archive for the public API.
type (
	// FileInfo describes a path at the time it was stat'ed.
	FileInfo = archive.FileInfo

	// FileType classifies a path as a regular file or a directory.
	FileType = archive.FileType

	// Kind identifies the variant of a mounted archive.
	Kind = archive.Kind
)

// Re-export constants from archive.
const (
	TypeRegular   = archive.TypeRegular
	TypeDirectory = archive.TypeDirectory

	KindDir = archive.KindDir
	KindZip = archive.KindZip
)

// Mount describes one entry of the mount table.
type Mount struct {
	Source     string
	Mountpoint string
	Kind       Kind
}

type mount struct {
	source string
	arc    archive.Archive
}

// FS is an ordered table of mounted archives.
//
// The zero value is not usable; create one with New.
type FS struct {
	mounts      []mount
	archiveOpts []archive.Option
	logger      *slog.Logger
}

// New creates an empty mount table.
func New(opts ...Option) *FS {
	f := &FS{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// log returns the logger, falling back to a discard logger if nil.
func (f *FS) log() *slog.Logger {
	if f.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return f.logger
}

// Mount opens source, a directory or a ZIP container, and adds it to the
// table. On any failure nothing is registered.
func (f *FS) Mount(source string, opts ...MountOption) error {
	cfg, err := f.mountConfig(source, opts)
	if err != nil {
		return err
	}
	a, err := archive.Open(source, f.openOptions(cfg)...)
	if err != nil {
		return fmt.Errorf("assetfs: mount %s: %w", source, err)
	}
	f.insert(source, a, cfg.prepend)
	return nil
}

// MountData mounts an in-memory ZIP container, such as one embedded with
// go:embed, under name. The FS aliases data, which must not be modified.
func (f *FS) MountData(name string, data []byte, opts ...MountOption) error {
	cfg, err := f.mountConfig(name, opts)
	if err != nil {
		return err
	}
	z, err := archive.NewZip(data, f.openOptions(cfg)...)
	if err != nil {
		return fmt.Errorf("assetfs: mount %s: %w", name, err)
	}
	f.insert(name, z, cfg.prepend)
	return nil
}

func (f *FS) mountConfig(source string, opts []MountOption) (*mountConfig, error) {
	cfg := &mountConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if !pathutil.Validate(cfg.mountpoint) || !pathutil.Validate(cfg.root) {
		return nil, fmt.Errorf("assetfs: mount %s: %w", source, ErrInvalidPath)
	}
	if f.find(source) >= 0 {
		return nil, fmt.Errorf("assetfs: mount %s: %w", source, ErrAlreadyMounted)
	}
	return cfg, nil
}

func (f *FS) openOptions(cfg *mountConfig) []archive.Option {
	opts := make([]archive.Option, 0, len(f.archiveOpts)+3)
	if f.logger != nil {
		opts = append(opts, archive.WithLogger(f.logger))
	}
	opts = append(opts, f.archiveOpts...)
	return append(opts, archive.WithMountpoint(cfg.mountpoint), archive.WithRoot(cfg.root))
}

func (f *FS) insert(source string, a archive.Archive, prepend bool) {
	m := mount{source: source, arc: a}
	if prepend {
		f.mounts = slices.Insert(f.mounts, 0, m)
	} else {
		f.mounts = append(f.mounts, m)
	}
	f.log().Info("mounted archive",
		"source", source, "kind", a.Kind(), "mountpoint", a.Mountpoint(), "prepend", prepend)
}

// Unmount removes source from the table and closes it. Source must match
// the string given to Mount exactly.
func (f *FS) Unmount(source string) error {
	i := f.find(source)
	if i < 0 {
		return fmt.Errorf("assetfs: unmount %s: %w", source, ErrNotMounted)
	}
	m := f.mounts[i]
	f.mounts = slices.Delete(f.mounts, i, i+1)
	f.log().Info("unmounted archive", "source", source)
	if err := m.arc.Close(); err != nil {
		return fmt.Errorf("assetfs: unmount %s: %w", source, err)
	}
	return nil
}

// Close unmounts every archive.
func (f *FS) Close() error {
	var errs []error
	for _, m := range f.mounts {
		if err := m.arc.Close(); err != nil {
			errs = append(errs, fmt.Errorf("assetfs: close %s: %w", m.source, err))
		}
	}
	f.mounts = nil
	return errors.Join(errs...)
}

// Mounts returns the table in priority order.
func (f *FS) Mounts() []Mount {
	out := make([]Mount, len(f.mounts))
	for i, m := range f.mounts {
		out[i] = Mount{Source: m.source, Mountpoint: m.arc.Mountpoint(), Kind: m.arc.Kind()}
	}
	return out
}

func (f *FS) find(source string) int {
	return slices.IndexFunc(f.mounts, func(m mount) bool { return m.source == source })
}

// clean validates and normalizes a virtual path.
func clean(op, path string) (string, error) {
	if !pathutil.Validate(path) {
		return "", &fs.PathError{Op: op, Path: path, Err: ErrInvalidPath}
	}
	return pathutil.Normalize(path), nil
}

// Stat describes path as served by the highest-priority archive that has
// it.
func (f *FS) Stat(path string) (FileInfo, error) {
	info, _, err := f.stat("stat", path)
	return info, err
}

func (f *FS) stat(op, path string) (FileInfo, *mount, error) {
	p, err := clean(op, path)
	if err != nil {
		return FileInfo{}, nil, err
	}
	for i := range f.mounts {
		info, err := f.mounts[i].arc.Stat(p)
		if err == nil {
			return info, &f.mounts[i], nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			f.log().Debug("stat failed", "path", p, "source", f.mounts[i].source, "error", err)
		}
	}
	return FileInfo{}, nil, &fs.PathError{Op: op, Path: path, Err: fs.ErrNotExist}
}

// Read returns up to maxBytes of path's contents, or all of them when
// maxBytes is negative. The first archive that has the path serves the
// read, even when decoding then fails with ErrUnreadable. Directories yield
// (nil, nil).
func (f *FS) Read(path string, maxBytes int) ([]byte, error) {
	p, err := clean("read", path)
	if err != nil {
		return nil, err
	}
	for _, m := range f.mounts {
		data, err := m.arc.Read(p, maxBytes)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, archive.ErrUnreadable) {
			f.log().Warn("read failed", "path", p, "source", m.source, "error", err)
			return nil, err
		}
		if !errors.Is(err, fs.ErrNotExist) {
			f.log().Debug("read failed", "path", p, "source", m.source, "error", err)
		}
	}
	f.log().Debug("path not found", "path", p)
	return nil, &fs.PathError{Op: "read", Path: path, Err: fs.ErrNotExist}
}

// ReadFile returns the entire contents of path.
func (f *FS) ReadFile(path string) ([]byte, error) {
	return f.Read(path, -1)
}

// List calls visit once per immediate child of path across every mounted
// archive. Names served by more than one archive are visited once, in
// priority order.
func (f *FS) List(path string, visit func(name string)) {
	p, err := clean("list", path)
	if err != nil {
		return
	}
	seen := make(map[string]struct{})
	for _, m := range f.mounts {
		m.arc.List(p, func(name string) {
			if _, ok := seen[name]; ok {
				return
			}
			seen[name] = struct{}{}
			visit(name)
		})
	}
}

// Names returns the merged listing of path.
func (f *FS) Names(path string) []string {
	var names []string
	f.List(path, func(name string) {
		names = append(names, name)
	})
	return names
}

// Exists reports whether any archive serves path.
func (f *FS) Exists(path string) bool {
	_, err := f.Stat(path)
	return err == nil
}

// IsFile reports whether path is a regular file.
func (f *FS) IsFile(path string) bool {
	info, err := f.Stat(path)
	return err == nil && !info.IsDir()
}

// IsDirectory reports whether path is a directory.
func (f *FS) IsDirectory(path string) bool {
	info, err := f.Stat(path)
	return err == nil && info.IsDir()
}

// Size returns the uncompressed size of path.
func (f *FS) Size(path string) (uint64, error) {
	info, err := f.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

// LastModified returns the modification time of path in Unix seconds.
func (f *FS) LastModified(path string) (int64, error) {
	info, err := f.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.LastModified, nil
}

// RealDirectory returns the mount source that serves path.
func (f *FS) RealDirectory(path string) (string, error) {
	_, m, err := f.stat("realdir", path)
	if err != nil {
		return "", err
	}
	return m.source, nil
}
