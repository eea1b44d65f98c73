//go:build !unix

package platform

import "os"

// Map reads the file at path into memory. Platforms without a memory-mapping
// syscall get a heap copy with the same lifecycle.
func Map(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data}, nil
}
