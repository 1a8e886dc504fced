package sweep

// Document is a configuration document: fragments keyed by subsection name,
// in insertion order. Documents are values; every method that changes content
// returns a new Document.
type Document struct {
	names     []string
	fragments map[string]Fragment
}

// Doc returns a single-subsection document.
func Doc(name string, f Fragment) Document {
	return Document{names: []string{name}, fragments: map[string]Fragment{name: f}}
}

// Len returns the number of subsections.
func (d Document) Len() int { return len(d.names) }

// Names returns the subsection names in insertion order.
func (d Document) Names() []string { return append([]string(nil), d.names...) }

// Get returns the fragment stored under name.
func (d Document) Get(name string) (Fragment, bool) {
	f, ok := d.fragments[name]
	return f, ok
}

// Has reports whether the subsection name is present.
func (d Document) Has(name string) bool {
	_, ok := d.fragments[name]
	return ok
}

// Set returns a copy of d with subsection name set to f. An existing
// subsection keeps its position.
func (d Document) Set(name string, f Fragment) Document {
	out := d.clone(1)
	if _, ok := out.fragments[name]; !ok {
		out.names = append(out.names, name)
	}
	out.fragments[name] = f
	return out
}

// Merge returns the union of a and b. Subsection sets are expected to be
// disjoint; on conflict b wins and the subsection keeps a's position.
func Merge(a, b Document) Document {
	out := a.clone(b.Len())
	for _, name := range b.names {
		if _, ok := out.fragments[name]; !ok {
			out.names = append(out.names, name)
		}
		out.fragments[name] = b.fragments[name]
	}
	return out
}

// Equal reports whether d and other hold the same subsections with equal
// content, independent of order.
func (d Document) Equal(other Document) bool {
	if d.Len() != other.Len() {
		return false
	}
	return d.canonical() == other.canonical()
}

func (d Document) clone(extra int) Document {
	out := Document{
		names:     make([]string, len(d.names), len(d.names)+extra),
		fragments: make(map[string]Fragment, len(d.names)+extra),
	}
	copy(out.names, d.names)
	for k, v := range d.fragments {
		out.fragments[k] = v
	}
	return out
}
