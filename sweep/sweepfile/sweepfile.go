// Package sweepfile loads a declarative sweep definition from YAML.
//
// A sweep file names the options of every varied subsection. Independent
// subsections are combined as a Cartesian product, dependent ones pointwise,
// and the two results are multiplied. Mapping order in the file is the
// enumeration order of the sweep and the field order of config.json:
//
//	version: "1"
//	binary: build-release/zisa
//	base:
//	  io: {n_snapshots: 10}
//	independent:
//	  experiment:
//	    - {name: rayleigh_taylor, short_id: rt_a0.01, amplitude: 0.01}
//	  reconstruction:
//	    - {mode: CWENO-AO, orders: [3, 2, 2, 2]}
//	dependent:
//	  ode:
//	    - {solver: SSP2}
//	    - {solver: SSP3}
//	grids:
//	  root: grids
//	  basename: polytrope
//	  version: 0
//	  levels: [1, 2]
//	reference:
//	  independent: ...
//	estimate:
//	  n_cells: 1000
//	  runtime: 10h
//	resources:
//	  max_wall_clock: 24h
//
// An option's short_id key becomes its short id override and is not written
// to the configuration. Reconstruction, ode and quadrature options are
// completed with the builder defaults.
package sweepfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hpcsweep/hpcsweep/sweep"
	"github.com/hpcsweep/hpcsweep/sweep/estimate"
	"github.com/hpcsweep/hpcsweep/sweep/grid"
	"github.com/hpcsweep/hpcsweep/sweep/hosts"
	"github.com/hpcsweep/hpcsweep/sweep/launch"
)

// ErrInvalid marks a malformed sweep file.
var ErrInvalid = errors.New("invalid sweep file")

// Section is one family of runs.
type Section struct {
	Base        yaml.Node   `yaml:"base"`
	Independent yaml.Node   `yaml:"independent"`
	Dependent   yaml.Node   `yaml:"dependent"`
	Grids       *GridFamily `yaml:"grids"`
}

// File is the on-disk sweep definition.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type File struct {
	Section `yaml:",inline"`

	Version   string          `yaml:"version"`
	Binary    string          `yaml:"binary"`
	Reference *Section        `yaml:"reference"`
	Estimate  *EstimateConfig `yaml:"estimate"`
	Resources ResourceConfig  `yaml:"resources"`
}

// GridFamily generates the grid subsection from a naming scheme, one option
// per level, combined pointwise with the dependent subsections.
type GridFamily struct {
	Root     string `yaml:"root"`
	Basename string `yaml:"basename"`
	Version  int    `yaml:"version"`
	Levels   []int  `yaml:"levels"`
	MPI      bool   `yaml:"mpi"` // point at the partitioned grid directory
}

// EstimateConfig is the reference run of a work estimate.
type EstimateConfig struct {
	NCells      int           `yaml:"n_cells"`
	Runtime     time.Duration `yaml:"runtime"`
	Memory      float64       `yaml:"memory"`   // bytes
	Overhead    float64       `yaml:"overhead"` // bytes per process
	Dims        float64       `yaml:"dims"`
	UnitWork    float64       `yaml:"unit_work"`
	FixedMemory bool          `yaml:"fixed_memory"`
}

// ResourceConfig bounds the resources requested per run.
type ResourceConfig struct {
	MinWallClock time.Duration `yaml:"min_wall_clock"`
	MaxWallClock time.Duration `yaml:"max_wall_clock"`
	MemorySafety float64       `yaml:"memory_safety"`
	OMPThreads   int           `yaml:"omp_threads"`
	ExtraArgs    []string      `yaml:"extra_args"`
}

// Sweep is a loaded sweep file.
type Sweep struct {
	Binary    string
	Params    sweep.LaunchParams
	Reference sweep.LaunchParams
	Estimate  *EstimateConfig
	Resources ResourceConfig
}

// Load reads and expands the sweep file at path.
func Load(path string) (*Sweep, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sweep file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and expands a sweep file with strict field checking.
func Parse(data []byte) (*Sweep, error) {
	var f File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing sweep YAML: %w", err)
	}
	params, err := f.Section.expand()
	if err != nil {
		return nil, err
	}
	if params.Empty() {
		return nil, fmt.Errorf("no runs defined: %w", ErrInvalid)
	}
	s := &Sweep{
		Binary:    f.Binary,
		Params:    params,
		Estimate:  f.Estimate,
		Resources: f.Resources,
	}
	if f.Reference != nil {
		if s.Reference, err = f.Reference.expand(); err != nil {
			return nil, fmt.Errorf("reference: %w", err)
		}
	}
	if f.Estimate != nil && f.Estimate.NCells <= 0 {
		return nil, fmt.Errorf("estimate.n_cells must be positive: %w", ErrInvalid)
	}
	return s, nil
}

// Schemes returns the runs to launch: the sweep, the reference runs, or both
// (sweep first).
func (s *Sweep) Schemes(ids *sweep.Identities, reference, referenceOnly bool) []sweep.Scheme {
	switch {
	case referenceOnly:
		return sweep.Schemes(s.Reference, ids)
	case reference:
		return sweep.Schemes(s.Params.Union(s.Reference), ids)
	}
	return sweep.Schemes(s.Params, ids)
}

// Estimator returns the work estimate of the sweep, or nil without an
// estimate section.
func (s *Sweep) Estimator(grids grid.Reader) estimate.Estimator {
	if s.Estimate == nil {
		return nil
	}
	ref := estimate.Reference{
		NCells:   s.Estimate.NCells,
		Runtime:  s.Estimate.Runtime,
		Memory:   s.Estimate.Memory,
		Overhead: s.Estimate.Overhead,
	}
	if s.Estimate.FixedMemory {
		e := estimate.NewFixedMemory(ref, grids)
		e.Dims, e.UnitWork = s.Estimate.Dims, s.Estimate.UnitWork
		return e
	}
	e := estimate.NewLinear(ref, grids)
	e.Dims, e.UnitWork = s.Estimate.Dims, s.Estimate.UnitWork
	return e
}

// Planner returns the resource planner of the sweep on profile.
func (s *Sweep) Planner(profile hosts.Profile, grids grid.Reader) *launch.Planner {
	return &launch.Planner{
		Estimator:    s.Estimator(grids),
		Profile:      profile,
		MinWallClock: s.Resources.MinWallClock,
		MaxWallClock: s.Resources.MaxWallClock,
		MemorySafety: s.Resources.MemorySafety,
		OMPThreads:   s.Resources.OMPThreads,
		ExtraArgs:    s.Resources.ExtraArgs,
	}
}

func (sec *Section) expand() (sweep.LaunchParams, error) {
	base, err := decodeBase(&sec.Base)
	if err != nil {
		return sweep.LaunchParams{}, fmt.Errorf("base: %w", err)
	}
	independent, err := decodeChoices(&sec.Independent)
	if err != nil {
		return sweep.LaunchParams{}, fmt.Errorf("independent: %w", err)
	}
	dependent, err := decodeChoices(&sec.Dependent)
	if err != nil {
		return sweep.LaunchParams{}, fmt.Errorf("dependent: %w", err)
	}
	if sec.Grids != nil {
		dependent = append(dependent, sec.Grids.choice())
	}
	if err := checkDisjoint(base, independent, dependent); err != nil {
		return sweep.LaunchParams{}, err
	}

	all, err := sweep.AllCombinations(independent...)
	if err != nil {
		return sweep.LaunchParams{}, err
	}
	all, err = sweep.ProductOfPointwise(all, dependent...)
	if err != nil {
		return sweep.LaunchParams{}, err
	}
	if base.Len() == 0 {
		return all, nil
	}
	return sweep.NewLaunchParams(base).Product(all), nil
}

func (g *GridFamily) choice() sweep.Choice {
	naming := grid.NewNamingScheme(g.Root, g.Basename, g.Version)
	opts := make([]sweep.Fragment, len(g.Levels))
	for i, l := range g.Levels {
		opts[i] = sweep.Grid(naming.ConfigString(l, g.MPI), l)
	}
	return sweep.Choose(sweep.KindGrid, opts...)
}

func checkDisjoint(base sweep.Document, groups ...[]sweep.Choice) error {
	seen := make(map[string]bool)
	for _, name := range base.Names() {
		seen[name] = true
	}
	for _, group := range groups {
		for _, c := range group {
			if seen[c.Name] {
				return fmt.Errorf("subsection %q defined twice: %w", c.Name, ErrInvalid)
			}
			seen[c.Name] = true
		}
	}
	return nil
}
