package assetfs

import (
	"bytes"
	"io"
	"io/fs"
	"slices"
	"time"

	"github.com/meigma/assetfs/internal/pathutil"
)

// Interface compliance.
var (
	_ fs.FS         = (*IOFS)(nil)
	_ fs.StatFS     = (*IOFS)(nil)
	_ fs.ReadFileFS = (*IOFS)(nil)
	_ fs.ReadDirFS  = (*IOFS)(nil)
)

// IOFS adapts an FS to the io/fs interfaces. Names follow fs.ValidPath; "."
// is the root. Directory listings are merged across mounts and sorted by
// name.
type IOFS struct {
	fsys *FS
}

// IOFS returns a standard library view of f. The view reflects later mounts
// and unmounts.
func (f *FS) IOFS() *IOFS {
	return &IOFS{fsys: f}
}

// virtual maps an io/fs name to a virtual path.
func virtual(op, name string) (string, error) {
	if !fs.ValidPath(name) || !pathutil.Validate(name) {
		return "", &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	if name == "." {
		return "", nil
	}
	return name, nil
}

// Open implements fs.FS.
func (v *IOFS) Open(name string) (fs.File, error) {
	p, err := virtual("open", name)
	if err != nil {
		return nil, err
	}
	info, err := v.fsys.Stat(p)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	fi := newFileInfo(name, info)
	if info.IsDir() {
		return &openDir{v: v, name: name, path: p, info: fi}, nil
	}
	data, err := v.fsys.Read(p, -1)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &openFile{Reader: bytes.NewReader(data), info: fi}, nil
}

// Stat implements fs.StatFS.
func (v *IOFS) Stat(name string) (fs.FileInfo, error) {
	p, err := virtual("stat", name)
	if err != nil {
		return nil, err
	}
	info, err := v.fsys.Stat(p)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return newFileInfo(name, info), nil
}

// ReadFile implements fs.ReadFileFS.
func (v *IOFS) ReadFile(name string) ([]byte, error) {
	p, err := virtual("readfile", name)
	if err != nil {
		return nil, err
	}
	info, err := v.fsys.Stat(p)
	if err != nil {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrNotExist}
	}
	if info.IsDir() {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrInvalid}
	}
	data, err := v.fsys.Read(p, -1)
	if err != nil {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: err}
	}
	return data, nil
}

// ReadDir implements fs.ReadDirFS.
func (v *IOFS) ReadDir(name string) ([]fs.DirEntry, error) {
	p, err := virtual("readdir", name)
	if err != nil {
		return nil, err
	}
	info, err := v.fsys.Stat(p)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	if !info.IsDir() {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	return v.entries(p), nil
}

// entries lists the children of a directory, sorted by name.
func (v *IOFS) entries(p string) []fs.DirEntry {
	names := v.fsys.Names(p)
	slices.Sort(names)
	out := make([]fs.DirEntry, 0, len(names))
	for _, name := range names {
		info, err := v.fsys.Stat(pathutil.Join(p, name))
		if err != nil {
			continue
		}
		out = append(out, fs.FileInfoToDirEntry(newFileInfo(name, info)))
	}
	return out
}

// fileInfo implements fs.FileInfo.
type fileInfo struct {
	name string
	info FileInfo
}

func newFileInfo(name string, info FileInfo) *fileInfo {
	if name != "." {
		name = pathutil.Base(name)
	}
	return &fileInfo{name: name, info: info}
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return int64(fi.info.Size) }
func (fi *fileInfo) ModTime() time.Time { return fi.info.ModTime() }
func (fi *fileInfo) IsDir() bool        { return fi.info.IsDir() }
func (fi *fileInfo) Sys() any           { return fi.info }

func (fi *fileInfo) Mode() fs.FileMode {
	if fi.info.IsDir() {
		return fs.ModeDir | 0o555
	}
	return 0o444
}

// openFile implements fs.File over a fully read payload.
type openFile struct {
	*bytes.Reader
	info *fileInfo
}

func (f *openFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *openFile) Close() error               { return nil }

// openDir implements fs.ReadDirFile for merged directories.
type openDir struct {
	v       *IOFS
	name    string
	path    string
	info    *fileInfo
	entries []fs.DirEntry
	loaded  bool
	offset  int
}

func (d *openDir) Read(_ []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

func (d *openDir) Stat() (fs.FileInfo, error) { return d.info, nil }

func (d *openDir) Close() error { return nil }

func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if !d.loaded {
		d.entries = d.v.entries(d.path)
		d.loaded = true
	}
	rest := d.entries[d.offset:]
	if n <= 0 {
		d.offset = len(d.entries)
		return slices.Clone(rest), nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	n = min(n, len(rest))
	d.offset += n
	return slices.Clone(rest[:n]), nil
}
