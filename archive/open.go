package archive

import (
	"errors"
	"fmt"
	"os"

	"github.com/meigma/assetfs/internal/zipfmt"
)

// Open opens source as a directory archive if it is a directory, and as a
// container archive otherwise. A source that is neither fails with
// ErrNotArchive.
func Open(source string, opts ...Option) (Archive, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", source, err)
	}
	if info.IsDir() {
		return OpenDir(source, opts...)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("archive: open %s: %w", source, ErrNotArchive)
	}

	z, err := OpenZip(source, opts...)
	if err != nil {
		if errors.Is(err, zipfmt.ErrNotContainer) {
			return nil, fmt.Errorf("archive: open %s: %w", source, ErrNotArchive)
		}
		return nil, err
	}
	return z, nil
}
