package testutil

import (
	"bytes"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
)

// File describes one member of a fixture archive built by BuildZip.
type File struct {
	Name     string
	Content  string
	Deflate  bool
	Modified time.Time
}

// BuildZip writes files into an in-memory archive with a conventional zip
// writer. Names ending in "/" become directory entries. File entries carry
// data descriptors, so their local header sizes are zero.
func BuildZip(tb testing.TB, files []File) []byte {
	tb.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		hdr := &zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Store,
			Modified: f.Modified,
		}
		if hdr.Modified.IsZero() {
			hdr.Modified = Epoch
		}
		if f.Deflate {
			hdr.Method = zip.Deflate
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			tb.Fatalf("create %s: %v", f.Name, err)
		}
		if f.Content == "" {
			continue
		}
		if _, err := w.Write([]byte(f.Content)); err != nil {
			tb.Fatalf("write %s: %v", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}
