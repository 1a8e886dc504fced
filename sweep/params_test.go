package sweep

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func valueDoc(name, value string) Document {
	return Doc(name, NewFragment(name, F("value", value)))
}

func valueParams(name string, values ...string) LaunchParams {
	docs := make([]Document, len(values))
	for i, v := range values {
		docs[i] = valueDoc(name, v)
	}
	return NewLaunchParams(docs...)
}

func TestLaunchParams_Empty(t *testing.T) {
	assert.True(t, LaunchParams{}.Empty())
	assert.True(t, NewLaunchParams().Empty())
	assert.False(t, valueParams("a", "x").Empty())
}

func TestLaunchParams_Product(t *testing.T) {
	a := valueParams("a", "1.1", "1.2")
	b := valueParams("b", "2.1", "2.2", "2.3")

	ab := a.Product(b)

	want := NewLaunchParams(
		Merge(valueDoc("a", "1.1"), valueDoc("b", "2.1")),
		Merge(valueDoc("a", "1.1"), valueDoc("b", "2.2")),
		Merge(valueDoc("a", "1.1"), valueDoc("b", "2.3")),
		Merge(valueDoc("a", "1.2"), valueDoc("b", "2.1")),
		Merge(valueDoc("a", "1.2"), valueDoc("b", "2.2")),
		Merge(valueDoc("a", "1.2"), valueDoc("b", "2.3")),
	)
	require.Equal(t, 6, ab.Len())
	assert.True(t, ab.Equal(want))
	// enumeration order: left operand varies slowest
	for i := range want.Len() {
		assert.True(t, ab.At(i).Equal(want.At(i)), "document %d out of order", i)
	}
}

func TestLaunchParams_ProductIdentity(t *testing.T) {
	a := valueParams("a", "1.1", "1.2")
	var none LaunchParams

	assert.True(t, none.Product(a).Equal(a))
	assert.True(t, a.Product(none).Equal(a))
	assert.True(t, none.Product(none).Empty())
}

func TestLaunchParams_UnionIdentity(t *testing.T) {
	a := valueParams("a", "1.1", "1.2")
	var none LaunchParams

	assert.True(t, none.Union(a).Equal(a))
	assert.True(t, a.Union(none).Equal(a))
	assert.Equal(t, 4, a.Union(a).Len())
}

func TestLaunchParams_OperandsUnchanged(t *testing.T) {
	a := valueParams("a", "1", "2")
	b := valueParams("b", "3")

	_ = a.Product(b)
	_ = a.Union(b)

	require.Equal(t, 2, a.Len())
	assert.Equal(t, []string{"a"}, a.At(0).Names())
	assert.Equal(t, []string{"b"}, b.At(0).Names())
}

func TestLaunchParams_Equality(t *testing.T) {
	d := func(a, b string) Document { return Merge(valueDoc("a", a), valueDoc("b", b)) }

	ab := NewLaunchParams(d("1.1", "2.1"), d("1.2", "2.1"), d("1.2", "2.2"), d("1.2", "2.3"))
	permuted := NewLaunchParams(d("1.1", "2.1"), d("1.2", "2.2"), d("1.2", "2.1"), d("1.2", "2.3"))
	different := NewLaunchParams(d("1.1", "2.1"), d("1.2", "2.2"), d("1.3", "2.1"), d("1.2", "2.3"))
	duplicated := NewLaunchParams(d("1.1", "2.1"), d("1.1", "2.1"), d("1.2", "2.2"), d("1.2", "2.3"))

	assert.True(t, ab.Equal(permuted))
	assert.False(t, ab.Equal(different))
	assert.False(t, ab.Equal(duplicated), "multiplicity must matter")
}

func TestAllCombinations(t *testing.T) {
	lp, err := AllCombinations(
		Choose("euler", NewFragment("euler", F("gamma", 2.0))),
		Choose("well-balancing", WellBalancing("constant"), WellBalancing("isentropic")),
		Choose("ode", ODE("ForwardEuler", 0), ODE("SSP2", 0), ODE("SSP3", 0)),
	)
	require.NoError(t, err)
	require.Equal(t, 6, lp.Len())

	first := NewScheme(lp.At(0), nil)
	wb, err := first.WellBalancing()
	require.NoError(t, err)
	assert.Equal(t, "constant", wb)
	assert.Equal(t, []string{"euler", "well-balancing", "ode"}, lp.At(0).Names())

	last := NewScheme(lp.At(5), nil)
	wb, err = last.WellBalancing()
	require.NoError(t, err)
	assert.Equal(t, "isentropic", wb)
}

func TestAllCombinations_SingleValues(t *testing.T) {
	lp, err := AllCombinations(
		Choose("a", NewFragment("a")),
		Choose("b", NewFragment("b")),
	)
	require.NoError(t, err)
	assert.Equal(t, 1, lp.Len())
}

func TestAllCombinations_RejectsEmptyAndDuplicateChoices(t *testing.T) {
	_, err := AllCombinations(Choose("a", NewFragment("a")), Choose("b"))
	assert.ErrorIs(t, err, ErrEmptyChoice)

	_, err = AllCombinations(Choose("a", NewFragment("a")), Choose("a", NewFragment("a")))
	assert.ErrorIs(t, err, ErrDuplicateChoice)
}

func TestPointwiseCombinations(t *testing.T) {
	lp, err := PointwiseCombinations(
		Choose("reconstruction", Reconstruction("CWENO-AO", []int{1}), Reconstruction("CWENO-AO", []int{3, 2, 2, 2})),
		Choose("ode", ODE("ForwardEuler", 0), ODE("SSP3", 0)),
	)
	require.NoError(t, err)
	require.Equal(t, 2, lp.Len())

	for i, want := range []struct {
		order  int
		solver string
	}{{1, "ForwardEuler"}, {3, "SSP3"}} {
		s := NewScheme(lp.At(i), nil)
		order, err := s.Order()
		require.NoError(t, err)
		assert.Equal(t, want.order, order)
		ode, err := s.Fragment("ode")
		require.NoError(t, err)
		solver, err := ode.String("solver")
		require.NoError(t, err)
		assert.Equal(t, want.solver, solver)
	}
}

func TestPointwiseCombinations_LengthMismatch(t *testing.T) {
	lp, err := PointwiseCombinations(
		Choose("reconstruction", Reconstruction("CWENO-AO", []int{1}), Reconstruction("CWENO-AO", []int{2, 2})),
		Choose("ode", ODE("SSP3", 0)),
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLengthMismatch))
	assert.Contains(t, err.Error(), "reconstruction=2, ode=1")
	assert.True(t, lp.Empty(), "no partial result on mismatch")
}

func TestProductOfPointwise(t *testing.T) {
	base, err := AllCombinations(Choose("well-balancing", WellBalancing("constant"), WellBalancing("isentropic")))
	require.NoError(t, err)

	lp, err := ProductOfPointwise(base,
		Choose("reconstruction", Reconstruction("CWENO-AO", []int{1}), Reconstruction("CWENO-AO", []int{2, 2})),
		Choose("ode", ODE("ForwardEuler", 0), ODE("SSP2", 0)),
	)
	require.NoError(t, err)
	assert.Equal(t, 4, lp.Len())

	_, err = ProductOfPointwise(base, Choose("ode", ODE("SSP3", 0)), Choose("quadrature"))
	assert.ErrorIs(t, err, ErrEmptyChoice)
}

// genParams draws a LaunchParams whose documents all use subsection names
// starting with prefix, so operands built with distinct prefixes are disjoint.
func genParams(t *rapid.T, label, prefix string) LaunchParams {
	nDocs := rapid.IntRange(0, 4).Draw(t, label+".docs")
	nSubs := rapid.IntRange(1, 3).Draw(t, label+".subsections")
	docs := make([]Document, nDocs)
	for i := range docs {
		var d Document
		for j := range nSubs {
			name := fmt.Sprintf("%s%d", prefix, j)
			v := rapid.IntRange(0, 9).Draw(t, fmt.Sprintf("%s.value.%d.%d", label, i, j))
			d = Merge(d, Doc(name, NewFragment(name, F("value", v))))
		}
		docs[i] = d
	}
	return NewLaunchParams(docs...)
}

func TestLaunchParams_ProductCardinality_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := genParams(t, "a", "a")
		b := genParams(t, "b", "b")

		ab := a.Product(b)

		switch {
		case a.Empty():
			require.True(t, ab.Equal(b))
		case b.Empty():
			require.True(t, ab.Equal(a))
		default:
			require.Equal(t, a.Len()*b.Len(), ab.Len())
			want := len(a.At(0).Names()) + len(b.At(0).Names())
			for i := range ab.Len() {
				require.Equal(t, want, ab.At(i).Len(), "merged document %d lost subsections", i)
				x, y := a.At(i/b.Len()), b.At(i%b.Len())
				require.True(t, ab.At(i).Equal(Merge(x, y)))
			}
		}
	})
}

func TestLaunchParams_Associative_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := genParams(t, "a", "a")
		b := genParams(t, "b", "b")
		c := genParams(t, "c", "c")

		left := a.Product(b).Product(c)
		right := a.Product(b.Product(c))
		require.Equal(t, left.Len(), right.Len())
		for i := range left.Len() {
			require.True(t, left.At(i).Equal(right.At(i)), "document %d differs", i)
		}

		require.True(t, a.Union(b).Union(c).Equal(a.Union(b.Union(c))))
		require.Equal(t, a.Len()+b.Len()+c.Len(), a.Union(b).Union(c).Len())
	})
}

func TestPointwiseCombinations_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		k := rapid.IntRange(1, 4).Draw(t, "choices")
		lengths := make([]int, k)
		choices := make([]Choice, k)
		for i := range k {
			lengths[i] = rapid.IntRange(1, 4).Draw(t, fmt.Sprintf("len.%d", i))
			opts := make([]Fragment, lengths[i])
			for j := range opts {
				opts[j] = NewFragment("c", F("index", j))
			}
			choices[i] = Choose(fmt.Sprintf("c%d", i), opts...)
		}

		lp, err := PointwiseCombinations(choices...)

		allEqual := true
		for _, n := range lengths {
			allEqual = allEqual && n == lengths[0]
		}
		if !allEqual {
			require.ErrorIs(t, err, ErrLengthMismatch)
			return
		}
		require.NoError(t, err)
		require.Equal(t, lengths[0], lp.Len())
		for i := range lp.Len() {
			for _, c := range choices {
				f, ok := lp.At(i).Get(c.Name)
				require.True(t, ok)
				idx, err := f.Int("index")
				require.NoError(t, err)
				require.Equal(t, i, idx)
			}
		}
	})
}
