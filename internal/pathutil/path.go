// Package pathutil provides validation and manipulation of slash-separated
// virtual paths.
//
// Virtual paths never start or end with a slash once normalized, and the
// empty string names the root. Paths are checked with Validate before any
// lookup so that traversal sequences never reach an archive.
package pathutil

import (
	"errors"
	"strings"
)

// MaxPath is the longest concrete or canonical path, in bytes, that an
// archive will serve. Resolved paths must be strictly shorter.
const MaxPath = 1024

var (
	// ErrPathTooLong is returned when a resolved path reaches MaxPath.
	ErrPathTooLong = errors.New("pathutil: path too long")

	// ErrOutsideMountpoint is returned when a virtual path is not under the
	// archive's mountpoint.
	ErrOutsideMountpoint = errors.New("pathutil: path outside mountpoint")
)

// Validate reports whether path is safe to resolve. It rejects drive-letter
// separators, backslashes and any ".." sequence.
func Validate(path string) bool {
	return !strings.ContainsAny(path, `:\`) && !strings.Contains(path, "..")
}

// Normalize collapses repeated slashes and strips leading and trailing
// slashes:
//   - "/etc/nginx" → "etc/nginx"
//   - "etc//nginx/" → "etc/nginx"
//   - "/" → ""
//
// "." and ".." elements are preserved; Validate rejects ".." upstream.
func Normalize(p string) string {
	if !needsNormalize(p) {
		return p
	}
	var b strings.Builder
	b.Grow(len(p))
	for seg := range strings.SplitSeq(p, "/") {
		if seg == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('/')
		}
		b.WriteString(seg)
	}
	return b.String()
}

// needsNormalize reports whether p has a leading, trailing or doubled slash.
func needsNormalize(p string) bool {
	if p == "" {
		return false
	}
	if p[0] == '/' || p[len(p)-1] == '/' {
		return true
	}
	return strings.Contains(p, "//")
}

// HasPrefixSegment reports whether path equals prefix or continues it with
// a slash. An empty prefix matches every path.
func HasPrefixSegment(path, prefix string) bool {
	if prefix == "" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// TrimPrefixSegment strips prefix from path when HasPrefixSegment holds,
// returning the remainder without its leading slash.
func TrimPrefixSegment(path, prefix string) (string, bool) {
	if !HasPrefixSegment(path, prefix) {
		return "", false
	}
	rest := path[len(prefix):]
	return strings.TrimPrefix(rest, "/"), true
}

// Join joins two normalized paths with a single slash, treating an empty
// element as the root.
func Join(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "/" + b
	}
}

// ResolveMountRelative maps a virtual path onto a concrete path under base.
//
// The mountpoint is stripped from virtual (which must lie under it), and the
// remainder is joined to base with one separator. The result must be shorter
// than MaxPath.
func ResolveMountRelative(base, mountpoint, virtual string) (string, error) {
	rest, ok := TrimPrefixSegment(virtual, mountpoint)
	if !ok {
		return "", ErrOutsideMountpoint
	}
	resolved := base
	if rest != "" {
		resolved = strings.TrimSuffix(base, "/") + "/" + rest
	}
	if len(resolved) >= MaxPath {
		return "", ErrPathTooLong
	}
	return resolved, nil
}

// Base returns the last element of a normalized path. The root's base is
// the empty string.
func Base(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Dir returns everything before the last element of a normalized path, or
// the empty string for top-level paths.
func Dir(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return ""
}
