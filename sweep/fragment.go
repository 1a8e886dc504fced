package sweep

import (
	"fmt"
	"math"
)

// Field is one key-value entry of a Fragment.
type Field struct {
	Key   string
	Value any
}

// F is shorthand for constructing a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Fragment is a named, immutable slice of a configuration document, e.g. the
// reconstruction or grid settings. Values are scalars, slices, maps or nested
// Fragments. Field order is preserved when the document is written to disk.
//
// The zero value is an empty fragment without a kind.
type Fragment struct {
	kind    string
	shortID string // explicit override; empty means "ask the Identities registry"
	fields  []Field
}

// NewFragment creates a fragment of the given kind. Later fields with a key
// already present replace the earlier value in place.
func NewFragment(kind string, fields ...Field) Fragment {
	f := Fragment{kind: kind}
	for _, fld := range fields {
		f.fields = setField(f.fields, fld.Key, cloneValue(fld.Value))
	}
	return f
}

// Kind returns the fragment kind, which selects its short id formatter.
func (f Fragment) Kind() string { return f.kind }

// ShortIDOverride returns the explicit short id, or "" if none was set.
func (f Fragment) ShortIDOverride() string { return f.shortID }

// WithShortID returns a copy of f whose short id is fixed to id.
func (f Fragment) WithShortID(id string) Fragment {
	out := f.clone()
	out.shortID = id
	return out
}

// With returns a copy of f with key set to value.
func (f Fragment) With(key string, value any) Fragment {
	out := f.clone()
	out.fields = setField(out.fields, key, cloneValue(value))
	return out
}

// Len returns the number of fields.
func (f Fragment) Len() int { return len(f.fields) }

// Keys returns the field keys in insertion order.
func (f Fragment) Keys() []string {
	keys := make([]string, len(f.fields))
	for i, fld := range f.fields {
		keys[i] = fld.Key
	}
	return keys
}

// Fields returns a copy of the fields in insertion order.
func (f Fragment) Fields() []Field {
	out := make([]Field, len(f.fields))
	for i, fld := range f.fields {
		out[i] = Field{Key: fld.Key, Value: cloneValue(fld.Value)}
	}
	return out
}

// Get returns the value stored under key.
func (f Fragment) Get(key string) (any, bool) {
	for _, fld := range f.fields {
		if fld.Key == key {
			return cloneValue(fld.Value), true
		}
	}
	return nil, false
}

// Has reports whether key is present.
func (f Fragment) Has(key string) bool {
	_, ok := f.Get(key)
	return ok
}

// Lookup is Get with an ErrMissingKey error instead of a bool.
func (f Fragment) Lookup(key string) (any, error) {
	v, ok := f.Get(key)
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", f.kind, key, ErrMissingKey)
	}
	return v, nil
}

// String returns the string field key.
func (f Fragment) String(key string) (string, error) {
	v, err := f.Lookup(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s.%s is %T, want string: %w", f.kind, key, v, ErrBadValue)
	}
	return s, nil
}

// Int returns the integer field key. Floats with an integral value are
// accepted since decoded YAML/JSON numbers may arrive as float64.
func (f Fragment) Int(key string) (int, error) {
	v, err := f.Lookup(key)
	if err != nil {
		return 0, err
	}
	n, ok := asInt(v)
	if !ok {
		return 0, fmt.Errorf("%s.%s is %T, want integer: %w", f.kind, key, v, ErrBadValue)
	}
	return n, nil
}

// Ints returns the integer list field key.
func (f Fragment) Ints(key string) ([]int, error) {
	v, err := f.Lookup(key)
	if err != nil {
		return nil, err
	}
	ns, ok := asInts(v)
	if !ok {
		return nil, fmt.Errorf("%s.%s is %T, want list of integers: %w", f.kind, key, v, ErrBadValue)
	}
	return ns, nil
}

// Float returns the numeric field key as float64.
func (f Fragment) Float(key string) (float64, error) {
	v, err := f.Lookup(key)
	if err != nil {
		return 0, err
	}
	x, ok := asFloat(v)
	if !ok {
		return 0, fmt.Errorf("%s.%s is %T, want number: %w", f.kind, key, v, ErrBadValue)
	}
	return x, nil
}

// Sub returns the nested fragment stored under key.
func (f Fragment) Sub(key string) (Fragment, error) {
	v, err := f.Lookup(key)
	if err != nil {
		return Fragment{}, err
	}
	sub, ok := v.(Fragment)
	if !ok {
		return Fragment{}, fmt.Errorf("%s.%s is %T, want fragment: %w", f.kind, key, v, ErrBadValue)
	}
	return sub, nil
}

func (f Fragment) clone() Fragment {
	return Fragment{kind: f.kind, shortID: f.shortID, fields: f.Fields()}
}

func setField(fields []Field, key string, value any) []Field {
	for i := range fields {
		if fields[i].Key == key {
			fields[i].Value = value
			return fields
		}
	}
	return append(fields, Field{Key: key, Value: value})
}

// cloneValue copies the mutable containers callers are likely to pass in, so
// a Fragment never aliases a slice or map owned by someone else.
func cloneValue(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = cloneValue(x[i])
		}
		return out
	case []int:
		return append([]int(nil), x...)
	case []float64:
		return append([]float64(nil), x...)
	case []string:
		return append([]string(nil), x...)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = cloneValue(val)
		}
		return out
	case Fragment:
		return x.clone()
	default:
		return v
	}
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case uint64:
		return int(x), true
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		return int(x), true
	}
	return 0, false
}

func asInts(v any) ([]int, bool) {
	switch x := v.(type) {
	case []int:
		return append([]int(nil), x...), true
	case []any:
		out := make([]int, len(x))
		for i := range x {
			n, ok := asInt(x[i])
			if !ok {
				return nil, false
			}
			out[i] = n
		}
		return out, true
	}
	return nil, false
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}
