// Package estimate extrapolates the cost of a configuration from one
// reference run.
//
// A reference run measured n0 cells, t0 serial wall-clock, b0 total memory and
// o0 per-process overhead. Every estimate is linear in the target cell count n,
// which is read from the grid metadata of the scheme's grid file. An optional
// dimensionality exponent d replaces n0 by n0^d; the ratio itself stays linear.
package estimate

import (
	"fmt"
	"math"
	"time"

	"github.com/hpcsweep/hpcsweep/sweep"
	"github.com/hpcsweep/hpcsweep/sweep/grid"
)

// DefaultUnitWork is the number of cells one core is expected to handle.
const DefaultUnitWork = 1024

// Memory is the extrapolated memory footprint in bytes.
type Memory struct {
	OverheadPerProcess float64
	Total              float64
}

// Estimator predicts the cost of running one scheme.
type Estimator interface {
	Work(s sweep.Scheme) (float64, error)
	CPUHours(s sweep.Scheme) (time.Duration, error)
	MemoryUsage(s sweep.Scheme) (Memory, error)
}

// Reference is a measured run used as the base of all extrapolations.
type Reference struct {
	NCells   int           // n0
	Runtime  time.Duration // t0, serial
	Memory   float64       // b0, bytes
	Overhead float64       // o0, bytes per process
}

// Linear scales runtime and memory with n/n0.
type Linear struct {
	Ref      Reference
	Dims     float64 // exponent applied to n0; zero means 1
	UnitWork float64 // zero means DefaultUnitWork
	Grids    grid.Reader
}

// NewLinear returns an estimator reading cell counts through grids.
func NewLinear(ref Reference, grids grid.Reader) *Linear {
	return &Linear{Ref: ref, Grids: grids}
}

// NCells reads the cell count of the scheme's grid.
func (e *Linear) NCells(s sweep.Scheme) (int, error) {
	return nCells(e.Grids, s)
}

// Work returns n / UnitWork.
func (e *Linear) Work(s sweep.Scheme) (float64, error) {
	n, err := e.NCells(s)
	if err != nil {
		return 0, err
	}
	unit := e.UnitWork
	if unit == 0 {
		unit = DefaultUnitWork
	}
	return float64(n) / unit, nil
}

// CPUHours returns t0 * n/n0.
func (e *Linear) CPUHours(s sweep.Scheme) (time.Duration, error) {
	ratio, err := e.ratio(s)
	if err != nil {
		return 0, err
	}
	return time.Duration(float64(e.Ref.Runtime) * ratio), nil
}

// MemoryUsage returns (o0 * n/n0, b0 * n/n0).
func (e *Linear) MemoryUsage(s sweep.Scheme) (Memory, error) {
	ratio, err := e.ratio(s)
	if err != nil {
		return Memory{}, err
	}
	return Memory{
		OverheadPerProcess: ratio * e.Ref.Overhead,
		Total:              ratio * e.Ref.Memory,
	}, nil
}

func (e *Linear) ratio(s sweep.Scheme) (float64, error) {
	if e.Ref.NCells <= 0 {
		return 0, fmt.Errorf("reference cell count must be positive, got %d", e.Ref.NCells)
	}
	n, err := e.NCells(s)
	if err != nil {
		return 0, err
	}
	n0 := float64(e.Ref.NCells)
	if e.Dims != 0 && e.Dims != 1 {
		n0 = math.Pow(n0, e.Dims)
	}
	return float64(n) / n0, nil
}

// FixedMemory scales runtime like Linear but always reports the reference
// memory footprint.
type FixedMemory struct {
	*Linear
}

// NewFixedMemory returns a fixed-memory estimator.
func NewFixedMemory(ref Reference, grids grid.Reader) FixedMemory {
	return FixedMemory{Linear: NewLinear(ref, grids)}
}

// MemoryUsage returns (o0, b0) regardless of the grid.
func (e FixedMemory) MemoryUsage(sweep.Scheme) (Memory, error) {
	return Memory{OverheadPerProcess: e.Ref.Overhead, Total: e.Ref.Memory}, nil
}

func nCells(grids grid.Reader, s sweep.Scheme) (int, error) {
	if grids == nil {
		return 0, fmt.Errorf("no grid reader configured")
	}
	file, err := s.GridFilename()
	if err != nil {
		return 0, err
	}
	meta, err := grids.Metadata(file)
	if err != nil {
		return 0, fmt.Errorf("estimating %s: %w", file, err)
	}
	return meta.NCells, nil
}
