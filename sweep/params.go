package sweep

import (
	"fmt"
	"strings"
)

// LaunchParams is an ordered collection of configuration documents, the
// carrier of the sweep algebra. Operations never modify their operands.
type LaunchParams struct {
	docs []Document
}

// NewLaunchParams wraps docs into a LaunchParams.
func NewLaunchParams(docs ...Document) LaunchParams {
	return LaunchParams{docs: append([]Document(nil), docs...)}
}

// Len returns the number of documents.
func (lp LaunchParams) Len() int { return len(lp.docs) }

// Empty reports whether lp holds no documents.
func (lp LaunchParams) Empty() bool { return len(lp.docs) == 0 }

// At returns the i-th document.
func (lp LaunchParams) At(i int) Document { return lp.docs[i] }

// Documents returns a copy of the documents in enumeration order.
func (lp LaunchParams) Documents() []Document {
	return append([]Document(nil), lp.docs...)
}

// Union concatenates lp and other. An empty operand is the identity.
func (lp LaunchParams) Union(other LaunchParams) LaunchParams {
	if other.Empty() {
		return lp
	}
	if lp.Empty() {
		return other
	}
	docs := make([]Document, 0, lp.Len()+other.Len())
	docs = append(docs, lp.docs...)
	docs = append(docs, other.docs...)
	return LaunchParams{docs: docs}
}

// Product returns the Cartesian merge of lp and other: for every document x
// of lp and y of other, in that nesting order, Merge(x, y). An empty operand
// is the identity, not an annihilator.
func (lp LaunchParams) Product(other LaunchParams) LaunchParams {
	if other.Empty() {
		return lp
	}
	if lp.Empty() {
		return other
	}
	docs := make([]Document, 0, lp.Len()*other.Len())
	for _, x := range lp.docs {
		for _, y := range other.docs {
			docs = append(docs, Merge(x, y))
		}
	}
	return LaunchParams{docs: docs}
}

// Equal compares lp and other as multisets: order is ignored, multiplicity is
// not.
func (lp LaunchParams) Equal(other LaunchParams) bool {
	if lp.Len() != other.Len() {
		return false
	}
	counts := make(map[string]int, lp.Len())
	for _, d := range lp.docs {
		counts[d.canonical()]++
	}
	for _, d := range other.docs {
		key := d.canonical()
		if counts[key] == 0 {
			return false
		}
		counts[key]--
	}
	return true
}

// Choice is one named dimension of a sweep: the subsection name and the
// fragments it may take.
type Choice struct {
	Name    string
	Options []Fragment
}

// Choose is shorthand for constructing a Choice.
func Choose(name string, options ...Fragment) Choice {
	return Choice{Name: name, Options: options}
}

// AllCombinations returns the full Cartesian product over choices. The first
// choice varies slowest, so the enumeration order follows the order in which
// choices are supplied. No choices yields an empty LaunchParams.
func AllCombinations(choices ...Choice) (LaunchParams, error) {
	if err := validateChoices(choices); err != nil {
		return LaunchParams{}, err
	}
	var lp LaunchParams
	for _, c := range choices {
		lp = lp.Product(singletons(c))
	}
	return lp, nil
}

// PointwiseCombinations zips choices: document i takes the i-th option of
// every choice. All choices must have the same number of options; a mismatch
// is a sweep definition bug and is reported, never truncated.
func PointwiseCombinations(choices ...Choice) (LaunchParams, error) {
	if err := validateChoices(choices); err != nil {
		return LaunchParams{}, err
	}
	if len(choices) == 0 {
		return LaunchParams{}, nil
	}
	n := len(choices[0].Options)
	for _, c := range choices[1:] {
		if len(c.Options) != n {
			return LaunchParams{}, fmt.Errorf("pointwise combination of %s: %w", describeLengths(choices), ErrLengthMismatch)
		}
	}
	docs := make([]Document, n)
	for k := range n {
		var d Document
		for _, c := range choices {
			d = Merge(d, Doc(c.Name, c.Options[k]))
		}
		docs[k] = d
	}
	return LaunchParams{docs: docs}, nil
}

// ProductOfPointwise returns base × PointwiseCombinations(choices).
func ProductOfPointwise(base LaunchParams, choices ...Choice) (LaunchParams, error) {
	pw, err := PointwiseCombinations(choices...)
	if err != nil {
		return LaunchParams{}, err
	}
	return base.Product(pw), nil
}

func singletons(c Choice) LaunchParams {
	docs := make([]Document, len(c.Options))
	for i, opt := range c.Options {
		docs[i] = Doc(c.Name, opt)
	}
	return LaunchParams{docs: docs}
}

func validateChoices(choices []Choice) error {
	seen := make(map[string]bool, len(choices))
	for _, c := range choices {
		if seen[c.Name] {
			return fmt.Errorf("choice %q: %w", c.Name, ErrDuplicateChoice)
		}
		seen[c.Name] = true
		if len(c.Options) == 0 {
			return fmt.Errorf("choice %q: %w", c.Name, ErrEmptyChoice)
		}
	}
	return nil
}

func describeLengths(choices []Choice) string {
	parts := make([]string, len(choices))
	for i, c := range choices {
		parts[i] = fmt.Sprintf("%s=%d", c.Name, len(c.Options))
	}
	return strings.Join(parts, ", ")
}
