// Package grid reads the metadata the mesher writes next to every grid and
// names grid files by refinement level.
//
// The grid itself is produced by an external mesher and consumed by the
// solver; this package only needs its cell count. Every grid file `g` is
// accompanied by a sidecar `g.meta.yaml`; a partitioned grid directory carries
// `grid.meta.yaml` inside it.
package grid

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// MetadataSuffix is appended to a grid file name to find its sidecar.
const MetadataSuffix = ".meta.yaml"

// DirectoryMetadata is the sidecar name inside a partitioned grid directory.
const DirectoryMetadata = "grid.meta.yaml"

// Metadata describes one grid.
type Metadata struct {
	NCells    int `yaml:"n_cells"`
	NVertices int `yaml:"n_vertices,omitempty"`
	NDims     int `yaml:"n_dims,omitempty"`
}

// Reader returns the metadata of a grid.
type Reader interface {
	Metadata(path string) (Metadata, error)
}

// FileReader reads sidecar files relative to Root. An empty Root resolves
// paths against the working directory.
type FileReader struct {
	Root string
}

// MetadataPath returns where the sidecar of gridPath is expected.
func MetadataPath(gridPath string) string {
	if info, err := os.Stat(gridPath); err == nil && info.IsDir() {
		return filepath.Join(gridPath, DirectoryMetadata)
	}
	return gridPath + MetadataSuffix
}

// Metadata reads and validates the sidecar of path.
func (r FileReader) Metadata(path string) (Metadata, error) {
	if r.Root != "" && !filepath.IsAbs(path) {
		path = filepath.Join(r.Root, path)
	}
	metaPath := MetadataPath(path)
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return Metadata{}, fmt.Errorf("reading grid metadata: %w", err)
	}
	var meta Metadata
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&meta); err != nil {
		return Metadata{}, fmt.Errorf("parsing grid metadata %s: %w", metaPath, err)
	}
	if meta.NCells <= 0 {
		return Metadata{}, fmt.Errorf("grid metadata %s: n_cells must be positive, got %d", metaPath, meta.NCells)
	}
	return meta, nil
}

// WriteMetadata writes the sidecar for gridPath. Used by grid generation
// scripts and tests.
func WriteMetadata(gridPath string, meta Metadata) error {
	data, err := yaml.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("encoding grid metadata: %w", err)
	}
	if err := os.WriteFile(MetadataPath(gridPath), data, 0o644); err != nil {
		return fmt.Errorf("writing grid metadata: %w", err)
	}
	return nil
}
