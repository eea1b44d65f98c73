// Package index reconstructs a directory tree from a container's flat
// central directory.
//
// Nodes live in one slice and link to each other by position: FirstChild
// and NextSibling form an intrusive child list, so the tree has no pointers
// to manage. A hash map from each node's full path to its position gives
// constant-time lookup. Intermediate directories that have no entry of their
// own are synthesized while walking each entry's path toward the root.
//
// An Index is built once and is immutable afterward; it is safe for
// concurrent readers.
package index

import (
	"fmt"
	"iter"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/meigma/assetfs/internal/pathutil"
	"github.com/meigma/assetfs/internal/strpool"
	"github.com/meigma/assetfs/internal/zipfmt"
)

// None marks the absence of a child or sibling.
const None = ^uint32(0)

// minRecord is the smallest possible central directory record.
const minRecord = 46

// maxPrealloc caps the entries Build reserves space for up front.
const maxPrealloc = 1 << 16

// Type classifies a node.
type Type uint8

const (
	TypeFile Type = iota
	TypeDirectory
)

// Node is one file or directory in the tree.
type Node struct {
	FirstChild  uint32
	NextSibling uint32
	Name        strpool.Handle
	Type        Type

	// Offset is the position of the entry's local header in the container.
	Offset         uint64
	CompressedSize uint64
	Size           uint64
	Method         uint16
	Flags          uint16
	CRC32          uint32

	// Modified is the modification time in Unix seconds.
	Modified int64
}

// IsDir reports whether the node is a directory.
func (n *Node) IsDir() bool {
	return n.Type == TypeDirectory
}

// Readable reports whether the node's payload can be decoded. Entries with
// an unknown storage method or the encryption flag are indexed so they can
// be listed and stat'ed, but reading them fails.
func (n *Node) Readable() bool {
	return n.Type == TypeFile && zipfmt.Supported(n.Method) && n.Flags&zipfmt.FlagEncrypted == 0
}

// Options configures Build.
type Options struct {
	// Mountpoint is a normalized prefix prepended to every entry path.
	Mountpoint string

	// Root limits the index to entries under this normalized prefix, which
	// is stripped from their paths. Matching is by whole path segment after
	// normalization, so "release" selects "release/x" but not "releases/x".
	Root string

	// Location interprets DOS timestamps. Nil means time.Local.
	Location *time.Location

	// Logger receives debug records for skipped entries.
	Logger *slog.Logger
}

// Index is a navigable tree over a container's entries.
type Index struct {
	nodes  []Node
	names  *strpool.Pool
	lookup map[uint64]uint32
}

// Build reads the central directory of data and returns its tree. Any
// reader error aborts the build.
func Build(data []byte, opts Options) (*Index, error) {
	dir, err := zipfmt.LocateIndex(data)
	if err != nil {
		return nil, err
	}
	if dir.Count > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d entries", zipfmt.ErrUnsupported, dir.Count)
	}
	if dir.Count > uint64(len(data))/minRecord {
		return nil, fmt.Errorf("%w: %d entries cannot fit in %d bytes", zipfmt.ErrTruncated, dir.Count, len(data))
	}

	b := newBuilder(opts, int(dir.Count))
	for e, err := range dir.Entries(data) {
		if err != nil {
			return nil, err
		}
		if err := b.add(&e); err != nil {
			return nil, err
		}
	}
	b.log.Debug("index built", "entries", dir.Count, "nodes", len(b.idx.nodes), "zip64", dir.Zip64)
	return b.idx, nil
}

// Lookup returns the node at a normalized path. The empty path is the root.
func (x *Index) Lookup(path string) (*Node, bool) {
	i, ok := x.lookup[xxhash.Sum64String(path)]
	if !ok {
		return nil, false
	}
	return &x.nodes[i], true
}

// Root returns the root directory node.
func (x *Index) Root() *Node {
	return &x.nodes[0]
}

// Children iterates the immediate children of n, most recently discovered
// first.
func (x *Index) Children(n *Node) iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for i := n.FirstChild; i != None; i = x.nodes[i].NextSibling {
			if !yield(&x.nodes[i]) {
				return
			}
		}
	}
}

// Name returns the final path segment of n.
func (x *Index) Name(n *Node) string {
	return x.names.String(n.Name)
}

// Len returns the number of nodes, including the root and synthesized
// directories.
func (x *Index) Len() int {
	return len(x.nodes)
}

// Walk visits every node depth-first with its full path, starting at the
// root. Returning false from fn stops the walk.
func (x *Index) Walk(fn func(path string, n *Node) bool) {
	type frame struct {
		i    uint32
		path string
	}
	stack := []frame{{i: 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &x.nodes[f.i]
		if !fn(f.path, n) {
			return
		}
		for c := n.FirstChild; c != None; c = x.nodes[c].NextSibling {
			stack = append(stack, frame{i: c, path: pathutil.Join(f.path, x.Name(&x.nodes[c]))})
		}
	}
}

type builder struct {
	idx  *Index
	opts Options
	log  *slog.Logger
}

func newBuilder(opts Options, hint int) *builder {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	// The entry count comes from the container and is only an upper bound.
	hint = min(hint, maxPrealloc)
	idx := &Index{
		nodes:  make([]Node, 0, hint+1),
		names:  strpool.New(hint * 16),
		lookup: make(map[uint64]uint32, hint+1),
	}
	idx.nodes = append(idx.nodes, Node{
		FirstChild:  None,
		NextSibling: None,
		Name:        idx.names.Append(""),
		Type:        TypeDirectory,
	})
	idx.lookup[xxhash.Sum64String("")] = 0
	return &builder{idx: idx, opts: opts, log: logger}
}

// add classifies one entry and inserts it under its canonical path.
func (b *builder) add(e *zipfmt.Entry) error {
	isDir := e.IsDir()
	rel := pathutil.Normalize(string(e.Name))
	if b.opts.Root != "" {
		var ok bool
		if rel, ok = pathutil.TrimPrefixSegment(rel, b.opts.Root); !ok {
			return nil
		}
	}
	if !pathutil.Validate(rel) {
		b.log.Debug("skipping unsafe entry name", "name", string(e.Name))
		return nil
	}
	// Names are stored NUL-terminated.
	if strings.IndexByte(rel, 0) >= 0 {
		b.log.Debug("skipping entry name with NUL byte", "name", string(e.Name))
		return nil
	}
	full := pathutil.Join(b.opts.Mountpoint, rel)
	if len(full) >= pathutil.MaxPath {
		b.log.Debug("skipping entry with long path", "name", string(e.Name), "length", len(full))
		return nil
	}
	if !isDir && !zipfmt.Supported(e.Method) {
		b.log.Debug("entry uses unsupported storage method", "path", full, "method", e.Method)
	}
	return b.insert(full, e, isDir)
}

// insert walks full toward the root, creating nodes for unseen prefixes and
// linking the chain beneath the first prefix that already exists.
func (b *builder) insert(full string, e *zipfmt.Entry, isDir bool) error {
	x := b.idx
	mod := e.Modified(b.opts.Location)
	child := None
	for p := full; ; p = pathutil.Dir(p) {
		h := xxhash.Sum64String(p)
		if i, ok := x.lookup[h]; ok {
			if child == None {
				b.update(&x.nodes[i], full, e, isDir, mod)
			} else {
				x.link(i, child)
			}
			return nil
		}
		if uint64(len(x.nodes)) >= uint64(None) {
			return fmt.Errorf("%w: node count exceeds %d", zipfmt.ErrUnsupported, None)
		}

		n := Node{
			FirstChild:  None,
			NextSibling: None,
			Name:        x.names.Append(pathutil.Base(p)),
			Type:        TypeDirectory,
			Modified:    mod,
		}
		if child == None && !isDir {
			setFile(&n, e)
		}
		i := uint32(len(x.nodes))
		x.nodes = append(x.nodes, n)
		x.lookup[h] = i
		if child != None {
			x.link(i, child)
		}
		child = i
	}
}

// update applies a repeated entry to an existing node.
func (b *builder) update(n *Node, full string, e *zipfmt.Entry, isDir bool, mod int64) {
	switch {
	case isDir && n.IsDir():
		n.Modified = mod
	case !isDir && !n.IsDir():
		setFile(n, e)
		n.Modified = mod
	default:
		b.log.Debug("skipping entry that conflicts with existing node", "path", full, "dir", isDir)
	}
}

func (x *Index) link(parent, child uint32) {
	x.nodes[child].NextSibling = x.nodes[parent].FirstChild
	x.nodes[parent].FirstChild = child
}

func setFile(n *Node, e *zipfmt.Entry) {
	n.Type = TypeFile
	n.Offset = e.LocalOffset
	n.CompressedSize = e.CompressedSize
	n.Size = e.UncompressedSize
	n.Method = e.Method
	n.Flags = e.Flags
	n.CRC32 = e.CRC32
}

// Release drops the index's storage. The index must not be used afterward.
func (x *Index) Release() {
	x.nodes = nil
	x.lookup = nil
	x.names.Reset()
}
