// Package fuse exports a mount table as a read-only FUSE filesystem.
//
// Every virtual path served by the table appears under the mountpoint with
// mode 0555 for directories and 0444 for files. File contents are decoded
// once per open and served from memory; the kernel page cache is kept
// across opens because archive contents do not change while mounted.
package fuse

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/meigma/assetfs"
	"github.com/meigma/assetfs/internal/pathutil"
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the host directory where the filesystem is mounted.
	// It is created if it does not exist.
	Mountpoint string

	// FS is the mount table to export. It must not be modified while the
	// filesystem is mounted.
	FS *assetfs.FS

	// AllowOther permits other users to access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger receives diagnostic messages. If nil, a no-op logger is used.
	Logger *slog.Logger
}

// Mount mounts fsys at the configured mountpoint. The caller must call
// Unmount on the returned server when done.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, errors.New("fuse: mountpoint is required")
	}
	if options.FS == nil {
		return nil, errors.New("fuse: filesystem is required")
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &node{fsys: options.FS, logger: options.Logger}

	entryTimeout := 1 * time.Second
	attrTimeout := 1 * time.Second
	negativeTimeout := 100 * time.Millisecond

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "assetfs",
			Name:       "assetfs",
			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("asset filesystem mounted", "mountpoint", options.Mountpoint)
	return server, nil
}

// node is one virtual path, either a file or a directory. The root has an
// empty path.
type node struct {
	gofuse.Inode
	fsys   *assetfs.FS
	logger *slog.Logger
	path   string
}

var _ gofuse.InodeEmbedder = (*node)(nil)
var _ gofuse.NodeLookuper = (*node)(nil)
var _ gofuse.NodeReaddirer = (*node)(nil)
var _ gofuse.NodeGetattrer = (*node)(nil)
var _ gofuse.NodeOpener = (*node)(nil)

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	child := pathutil.Join(n.path, name)
	info, err := n.fsys.Stat(child)
	if err != nil {
		return nil, errno(err)
	}
	fillAttr(&out.Attr, info)

	mode := uint32(syscall.S_IFREG)
	if info.IsDir() {
		mode = syscall.S_IFDIR
	}
	inode := n.NewInode(ctx, &node{
		fsys:   n.fsys,
		logger: n.logger,
		path:   child,
	}, gofuse.StableAttr{Mode: mode})
	return inode, 0
}

func (n *node) Readdir(_ context.Context) (gofuse.DirStream, syscall.Errno) {
	var entries []fuse.DirEntry
	n.fsys.List(n.path, func(name string) {
		info, err := n.fsys.Stat(pathutil.Join(n.path, name))
		if err != nil {
			return
		}
		mode := uint32(syscall.S_IFREG)
		if info.IsDir() {
			mode = syscall.S_IFDIR
		}
		entries = append(entries, fuse.DirEntry{Name: name, Mode: mode})
	})
	return gofuse.NewListDirStream(entries), 0
}

func (n *node) Getattr(_ context.Context, _ gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	info, err := n.fsys.Stat(n.path)
	if err != nil {
		return errno(err)
	}
	fillAttr(&out.Attr, info)
	return 0
}

func (n *node) Open(_ context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}
	data, err := n.fsys.ReadFile(n.path)
	if err != nil {
		n.logger.Error("open failed", "path", n.path, "error", err)
		return nil, 0, errno(err)
	}
	return &handle{data: data}, fuse.FOPEN_KEEP_CACHE, 0
}

// handle serves reads of one opened file from its decoded contents.
type handle struct {
	data []byte
}

var _ gofuse.FileReader = (*handle)(nil)

func (h *handle) Read(_ context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if off < 0 {
		return nil, syscall.EINVAL
	}
	if off >= int64(len(h.data)) {
		return fuse.ReadResultData(nil), 0
	}
	end := min(off+int64(len(dest)), int64(len(h.data)))
	return fuse.ReadResultData(h.data[off:end]), 0
}

func fillAttr(attr *fuse.Attr, info assetfs.FileInfo) {
	if info.IsDir() {
		attr.Mode = syscall.S_IFDIR | 0o555
	} else {
		attr.Mode = syscall.S_IFREG | 0o444
		attr.Size = info.Size
		attr.Blocks = (attr.Size + 511) / 512
	}
	mtime := info.ModTime()
	attr.SetTimes(nil, &mtime, &mtime)
}

// errno maps mount table errors to FUSE status codes.
func errno(err error) syscall.Errno {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return syscall.ENOENT
	case errors.Is(err, fs.ErrInvalid):
		return syscall.EINVAL
	case errors.Is(err, assetfs.ErrTooLarge):
		return syscall.EFBIG
	default:
		return syscall.EIO
	}
}
