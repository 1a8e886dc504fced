package sweep

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Scheme is a fully merged configuration document together with the identity
// registry used to name it. It is never mutated; WithRestart returns a copy.
type Scheme struct {
	doc Document
	ids *Identities
}

// NewScheme wraps doc. A nil ids selects DefaultIdentities.
func NewScheme(doc Document, ids *Identities) Scheme {
	if ids == nil {
		ids = DefaultIdentities()
	}
	return Scheme{doc: doc, ids: ids}
}

// Schemes wraps every document of lp, preserving enumeration order.
func Schemes(lp LaunchParams, ids *Identities) []Scheme {
	if ids == nil {
		ids = DefaultIdentities()
	}
	out := make([]Scheme, lp.Len())
	for i, d := range lp.docs {
		out[i] = Scheme{doc: d, ids: ids}
	}
	return out
}

// Document returns the merged document.
func (s Scheme) Document() Document { return s.doc }

// Has reports whether the subsection name was merged in.
func (s Scheme) Has(name string) bool { return s.doc.Has(name) }

// Fragment returns the subsection name or ErrMissingFragment.
func (s Scheme) Fragment(name string) (Fragment, error) {
	f, ok := s.doc.Get(name)
	if !ok {
		return Fragment{}, fmt.Errorf("%q: %w", name, ErrMissingFragment)
	}
	return f, nil
}

// Order returns the order of the first (central) reconstruction stencil.
func (s Scheme) Order() (int, error) {
	f, err := s.Fragment(KindReconstruction)
	if err != nil {
		return 0, err
	}
	orders, err := f.Ints("orders")
	if err != nil {
		return 0, err
	}
	if len(orders) == 0 {
		return 0, fmt.Errorf("reconstruction.orders is empty: %w", ErrMissingKey)
	}
	return orders[0], nil
}

// WellBalancing returns the well-balancing mode.
func (s Scheme) WellBalancing() (string, error) {
	f, err := s.Fragment(KindWellBalancing)
	if err != nil {
		return "", err
	}
	return f.String("mode")
}

// GridLevel returns the refinement level of the grid.
func (s Scheme) GridLevel() (int, error) {
	f, err := s.Fragment(KindGrid)
	if err != nil {
		return 0, err
	}
	return f.Int("level")
}

// GridFilename returns the grid file (or partitioned grid directory).
func (s Scheme) GridFilename() (string, error) {
	f, err := s.Fragment(KindGrid)
	if err != nil {
		return "", err
	}
	return f.String("file")
}

// ExperimentName returns the experiment name, used as the default job name.
func (s Scheme) ExperimentName() (string, error) {
	f, err := s.Fragment(KindExperiment)
	if err != nil {
		return "", err
	}
	return f.String("name")
}

// FolderName joins the short ids of the FolderFragments present in the
// document with underscores. Distinct sweep entries must differ in at least
// one contributing short id; CheckUniqueFolders verifies this for a sweep.
func (s Scheme) FolderName() (string, error) {
	parts := make([]string, 0, len(FolderFragments))
	for _, name := range FolderFragments {
		f, ok := s.doc.Get(name)
		if !ok {
			continue
		}
		id, err := s.ids.ShortID(f)
		if err != nil {
			return "", fmt.Errorf("folder name, subsection %q: %w", name, err)
		}
		parts = append(parts, id)
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("folder name: none of %v present: %w", FolderFragments, ErrMissingFragment)
	}
	return strings.Join(parts, "_"), nil
}

// Save writes the document as config.json-style JSON to path.
func (s Scheme) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := s.doc.WriteJSON(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return f.Close()
}

// WithRestart returns a copy of s that resumes from snapshot on grid. Both
// paths are written as given, normally relative to the run directory.
func (s Scheme) WithRestart(snapshot, grid string) (Scheme, error) {
	g, err := s.Fragment(KindGrid)
	if err != nil {
		return Scheme{}, err
	}
	doc := s.doc.Set(KindRestart, Restart(snapshot))
	doc = doc.Set(KindGrid, g.With("file", grid))
	return Scheme{doc: doc, ids: s.ids}, nil
}

// CheckUniqueFolders returns ErrFolderCollision if two schemes share a folder
// name. Two concurrent runs in one directory would corrupt each other, and a
// rerun would overwrite an unrelated result.
func CheckUniqueFolders(schemes []Scheme) error {
	byName := make(map[string][]int, len(schemes))
	for i, s := range schemes {
		name, err := s.FolderName()
		if err != nil {
			return fmt.Errorf("scheme %d: %w", i, err)
		}
		byName[name] = append(byName[name], i)
	}
	var collisions []string
	for name, idx := range byName {
		if len(idx) > 1 {
			collisions = append(collisions, fmt.Sprintf("%s (schemes %v)", name, idx))
		}
	}
	if len(collisions) > 0 {
		sort.Strings(collisions)
		return fmt.Errorf("%s: %w", strings.Join(collisions, "; "), ErrFolderCollision)
	}
	return nil
}
