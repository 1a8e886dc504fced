package grid

import (
	"fmt"
	"path/filepath"
)

// NamingScheme lays out a family of grids by level:
//
//	<Root>/<Basename>/lNN/<Version>/grid.geo
//	<Root>/<Basename>/lNN/<Version>/grid.msh.h5
//
// Partitioned grids for MPI runs live in the level directory itself.
type NamingScheme struct {
	Root     string
	Basename string
	Version  string
}

// NewNamingScheme numbers the version as four zero-padded digits.
func NewNamingScheme(root, basename string, version int) NamingScheme {
	return NamingScheme{Root: root, Basename: basename, Version: fmt.Sprintf("%04d", version)}
}

// Dir returns the directory of level l.
func (n NamingScheme) Dir(l int) string {
	return filepath.Join(n.Root, n.Basename, fmt.Sprintf("l%02d", l), n.Version)
}

// Geo returns the mesher input file of level l.
func (n NamingScheme) Geo(l int) string { return n.stem(l) + ".geo" }

// MshH5 returns the converted mesh of level l.
func (n NamingScheme) MshH5(l int) string { return n.stem(l) + ".msh.h5" }

// ConfigString returns what the grid fragment's file should name: the
// partitioned directory for MPI runs, the single mesh file otherwise.
func (n NamingScheme) ConfigString(l int, mpi bool) string {
	if mpi {
		return n.Dir(l)
	}
	return n.MshH5(l)
}

func (n NamingScheme) stem(l int) string {
	return filepath.Join(n.Dir(l), "grid")
}
