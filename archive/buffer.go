package archive

import (
	"os"

	"github.com/meigma/assetfs/internal/platform"
)

// buffer holds a container's bytes for the archive's lifetime.
type buffer interface {
	Bytes() []byte
	Close() error
}

// memBuffer is a heap-backed buffer.
type memBuffer struct {
	data []byte
}

func (m *memBuffer) Bytes() []byte { return m.data }

func (m *memBuffer) Close() error {
	m.data = nil
	return nil
}

func mapFile(path string) (buffer, error) {
	m, err := platform.Map(path)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func readFile(path string) (buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &memBuffer{data: data}, nil
}
