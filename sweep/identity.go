package sweep

import (
	"fmt"
	"strconv"
	"strings"
)

// Fragment kinds known to the default identity registry and the builders.
const (
	KindExperiment     = "experiment"
	KindReconstruction = "reconstruction"
	KindOrder          = "order"
	KindODE            = "ode"
	KindWellBalancing  = "well-balancing"
	KindGrid           = "grid"
	KindQuadrature     = "quadrature"
	KindReference      = "reference"
	KindRestart        = "restart"
)

// FolderFragments is the fixed, ordered subset of subsections whose short ids
// make up a folder name. Subsections absent from a document are skipped.
var FolderFragments = []string{
	KindExperiment,
	KindReconstruction,
	KindOrder,
	KindODE,
	KindWellBalancing,
	KindGrid,
}

// ShortIDFunc formats the short id of a fragment.
type ShortIDFunc func(Fragment) (string, error)

// Identities maps fragment kinds to short id formatters.
type Identities struct {
	byKind map[string]ShortIDFunc
}

// NewIdentities returns an empty registry.
func NewIdentities() *Identities {
	return &Identities{byKind: make(map[string]ShortIDFunc)}
}

// DefaultIdentities returns a registry with the formatters for the standard
// fragment kinds:
//   - reconstruction: "o" followed by the stencil orders, e.g. "o3222"
//   - ode: the solver name
//   - well-balancing: the mode
//   - grid: "L" followed by the level
//   - experiment: the short_id field, falling back to name
func DefaultIdentities() *Identities {
	r := NewIdentities()
	r.Register(KindReconstruction, reconstructionShortID)
	r.Register(KindODE, fieldShortID("solver"))
	r.Register(KindWellBalancing, fieldShortID("mode"))
	r.Register(KindGrid, gridShortID)
	r.Register(KindExperiment, experimentShortID)
	return r
}

// Register installs fn as the formatter for kind, replacing any previous one.
func (r *Identities) Register(kind string, fn ShortIDFunc) {
	r.byKind[kind] = fn
}

// ShortID returns the short id of f: its explicit override if set, otherwise
// the result of the formatter registered for its kind.
func (r *Identities) ShortID(f Fragment) (string, error) {
	id := f.shortID
	if id == "" {
		fn, ok := r.byKind[f.kind]
		if !ok {
			return "", fmt.Errorf("fragment kind %q: %w", f.kind, ErrNoShortID)
		}
		var err error
		if id, err = fn(f); err != nil {
			return "", err
		}
	}
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("fragment kind %q, id %q: %w", f.kind, id, ErrUnsafeShortID)
	}
	return id, nil
}

func fieldShortID(key string) ShortIDFunc {
	return func(f Fragment) (string, error) {
		v, err := f.Lookup(key)
		if err != nil {
			return "", err
		}
		return fmt.Sprint(v), nil
	}
}

func reconstructionShortID(f Fragment) (string, error) {
	orders, err := f.Ints("orders")
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("o")
	for _, k := range orders {
		b.WriteString(strconv.Itoa(k))
	}
	return b.String(), nil
}

func gridShortID(f Fragment) (string, error) {
	level, err := f.Int("level")
	if err != nil {
		return "", err
	}
	return "L" + strconv.Itoa(level), nil
}

func experimentShortID(f Fragment) (string, error) {
	if f.Has("short_id") {
		return f.String("short_id")
	}
	return f.String("name")
}
