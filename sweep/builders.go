package sweep

import "fmt"

// ReconstructionOption customizes a reconstruction fragment.
type ReconstructionOption func(*reconstructionSettings)

type reconstructionSettings struct {
	biases         []string
	overfitFactors []float64
	linearWeights  []float64
}

// WithBiases overrides the per-stencil biases ("c" central, "b" biased).
func WithBiases(biases ...string) ReconstructionOption {
	return func(s *reconstructionSettings) { s.biases = biases }
}

// WithOverfitFactors overrides the per-stencil overfit factors.
func WithOverfitFactors(factors ...float64) ReconstructionOption {
	return func(s *reconstructionSettings) { s.overfitFactors = factors }
}

// WithLinearWeights overrides the per-stencil linear weights.
func WithLinearWeights(weights ...float64) ReconstructionOption {
	return func(s *reconstructionSettings) { s.linearWeights = weights }
}

// Reconstruction builds the reconstruction fragment for mode (e.g. "CWENO-AO")
// with one stencil per entry of orders. The first stencil is central with
// overfit factor 2.0 and linear weight 100, the others are biased with 1.5 and 1.
func Reconstruction(mode string, orders []int, opts ...ReconstructionOption) Fragment {
	n := len(orders)
	s := reconstructionSettings{
		biases:         make([]string, n),
		overfitFactors: make([]float64, n),
		linearWeights:  make([]float64, n),
	}
	for i := range n {
		s.biases[i], s.overfitFactors[i], s.linearWeights[i] = "b", 1.5, 1
		if i == 0 {
			s.biases[i], s.overfitFactors[i], s.linearWeights[i] = "c", 2.0, 100
		}
	}
	for _, opt := range opts {
		opt(&s)
	}
	return NewFragment(KindReconstruction,
		F("mode", mode),
		F("orders", orders),
		F("biases", s.biases),
		F("overfit_factors", s.overfitFactors),
		F("linear_weights", s.linearWeights),
		F("smoothness_indicator", NewFragment("smoothness_indicator",
			F("epsilon", 1e-10),
			F("exponent", 4),
		)),
	)
}

// FillReconstructionDefaults completes a reconstruction fragment that only
// names mode and orders, e.g. one decoded from a sweep file. Fields already
// present are kept.
func FillReconstructionDefaults(f Fragment) (Fragment, error) {
	mode, err := f.String("mode")
	if err != nil {
		return Fragment{}, err
	}
	orders, err := f.Ints("orders")
	if err != nil {
		return Fragment{}, err
	}
	defaults := Reconstruction(mode, orders)
	out := defaults
	for _, fld := range f.fields {
		out = out.With(fld.Key, fld.Value)
	}
	out.shortID = f.shortID
	return out, nil
}

// DefaultCFLNumber is used by ODE when no CFL number is given.
const DefaultCFLNumber = 0.85

// ODE builds the time integration fragment. A non-positive cfl selects
// DefaultCFLNumber.
func ODE(solver string, cfl float64) Fragment {
	if cfl <= 0 {
		cfl = DefaultCFLNumber
	}
	return NewFragment(KindODE, F("solver", solver), F("cfl_number", cfl))
}

// WellBalancing builds the well-balancing fragment, e.g. "isentropic" or "constant".
func WellBalancing(mode string) Fragment {
	return NewFragment(KindWellBalancing, F("mode", mode))
}

// Grid builds the grid fragment for the grid file (or partitioned grid
// directory) on the given refinement level.
func Grid(file string, level int) Fragment {
	return NewFragment(KindGrid, F("file", file), F("level", level))
}

// Quadrature builds the quadrature fragment. Degrees, not numbers of points.
// A non-positive edge degree defaults to the volume degree.
func Quadrature(volumeDeg, edgeDeg int) Fragment {
	if edgeDeg <= 0 {
		edgeDeg = volumeDeg
	}
	return NewFragment(KindQuadrature, F("edge", edgeDeg), F("volume", volumeDeg))
}

// Experiment builds the experiment fragment. The short id is what separates
// runs of the same experiment with different physical parameters, so sweeps
// over such parameters must pass a distinct shortID per value.
func Experiment(name, shortID string, fields ...Field) Fragment {
	f := NewFragment(KindExperiment, append([]Field{F("name", name)}, fields...)...)
	if shortID != "" {
		f = f.WithShortID(shortID)
	}
	return f
}

// Reference builds the fragment that asks the solver to down-sample its
// solution onto the given coarse grids.
func Reference(equilibrium string, coarseGrids []string) Fragment {
	return NewFragment(KindReference, F("equilibrium", equilibrium), F("coarse_grids", coarseGrids))
}

// Restart builds the fragment pointing the solver at a snapshot to resume from.
func Restart(snapshot string) Fragment {
	return NewFragment(KindRestart, F("file", snapshot))
}

// CoarseGrids returns the coarse grid files named by a reference fragment.
func CoarseGrids(f Fragment) ([]string, error) {
	v, err := f.Lookup("coarse_grids")
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case []string:
		return x, nil
	case []any:
		out := make([]string, len(x))
		for i := range x {
			s, ok := x[i].(string)
			if !ok {
				return nil, fmt.Errorf("%s.coarse_grids[%d] is %T: %w", f.kind, i, x[i], ErrBadValue)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s.coarse_grids is %T: %w", f.kind, v, ErrBadValue)
}
