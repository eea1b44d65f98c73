// Package platform provides OS-specific access to container files.
package platform

import "sync"

// Mapping is a read-only view of a file's bytes. The view must not be used
// after Close.
type Mapping struct {
	data    []byte
	release func([]byte) error
	once    sync.Once
	err     error
}

// Bytes returns the mapped contents.
func (m *Mapping) Bytes() []byte {
	return m.data
}

// Len returns the mapped size.
func (m *Mapping) Len() int {
	return len(m.data)
}

// Close unmaps the view. Repeated calls return the first result.
func (m *Mapping) Close() error {
	m.once.Do(func() {
		if m.release != nil && m.data != nil {
			m.err = m.release(m.data)
		}
		m.data = nil
	})
	return m.err
}
