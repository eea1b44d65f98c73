package assetfs

import "github.com/meigma/assetfs/internal/pathutil"

// MaxPath is the longest path, in bytes, an archive will serve.
const MaxPath = pathutil.MaxPath

// ValidPath reports whether path may be used with an FS. Paths containing
// "..", ":" or "\" are rejected.
func ValidPath(path string) bool {
	return pathutil.Validate(path)
}

// NormalizePath collapses repeated slashes and strips leading and trailing
// slashes. The root is "".
func NormalizePath(path string) string {
	return pathutil.Normalize(path)
}
