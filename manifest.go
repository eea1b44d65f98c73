package assetfs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Manifest describes a mount table on disk. It is authored as YAML or as
// JSON with comments and trailing commas:
//
//	mounts:
//	  - source: patch.zip
//	    prepend: true
//	  - source: assets
//	  - source: game.zip
//	    mountpoint: data
//	    root: release
//	verify_checksums: true
type Manifest struct {
	Mounts          []ManifestMount `yaml:"mounts" json:"mounts"`
	VerifyChecksums bool            `yaml:"verify_checksums" json:"verify_checksums"`
	MemoryMap       *bool           `yaml:"memory_map" json:"memory_map"`
	MaxFileSize     *uint64         `yaml:"max_file_size" json:"max_file_size"`

	// Dir resolves relative mount sources. LoadManifest sets it to the
	// manifest's directory.
	Dir string `yaml:"-" json:"-"`
}

// ManifestMount is one entry of a Manifest.
type ManifestMount struct {
	Source     string `yaml:"source" json:"source"`
	Mountpoint string `yaml:"mountpoint" json:"mountpoint"`
	Root       string `yaml:"root" json:"root"`
	Prepend    bool   `yaml:"prepend" json:"prepend"`
}

// LoadManifest reads a manifest file. Files ending in .json or .jsonc are
// parsed as JSONC; everything else as YAML.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	format := "yaml"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		format = "json"
	}
	m, err := ParseManifest(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Dir = filepath.Dir(path)
	return m, nil
}

// ParseManifest parses manifest data in the given format, "yaml" or "json".
func ParseManifest(data []byte, format string) (*Manifest, error) {
	var m Manifest
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
		}
	case "json":
		if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidManifest, format)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	var errs []error
	for i, mt := range m.Mounts {
		if mt.Source == "" {
			errs = append(errs, fmt.Errorf("%w: mounts[%d]: source is required", ErrInvalidManifest, i))
		}
		if !ValidPath(mt.Mountpoint) {
			errs = append(errs, fmt.Errorf("%w: mounts[%d]: invalid mountpoint %q", ErrInvalidManifest, i, mt.Mountpoint))
		}
		if !ValidPath(mt.Root) {
			errs = append(errs, fmt.Errorf("%w: mounts[%d]: invalid root %q", ErrInvalidManifest, i, mt.Root))
		}
	}
	return errors.Join(errs...)
}

// Options returns the FS options the manifest sets.
func (m *Manifest) Options() []Option {
	opts := []Option{WithVerifyChecksums(m.VerifyChecksums)}
	if m.MemoryMap != nil {
		opts = append(opts, WithMemoryMap(*m.MemoryMap))
	}
	if m.MaxFileSize != nil {
		opts = append(opts, WithMaxFileSize(*m.MaxFileSize))
	}
	return opts
}

// source resolves a mount source against the manifest directory.
func (m *Manifest) source(mt ManifestMount) string {
	if m.Dir == "" || filepath.IsAbs(mt.Source) {
		return mt.Source
	}
	return filepath.Join(m.Dir, mt.Source)
}

// FromManifest builds an FS from m. The manifest's options are applied
// before opts. Mounts happen in manifest order; if any fails, every
// earlier mount is closed and the error is returned.
func FromManifest(m *Manifest, opts ...Option) (*FS, error) {
	f := New(append(m.Options(), opts...)...)
	for _, mt := range m.Mounts {
		err := f.Mount(m.source(mt),
			MountAt(mt.Mountpoint),
			MountRoot(mt.Root),
			mountWithPrepend(mt.Prepend),
		)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return f, nil
}
