package sweep

import (
	"io"
	"sort"

	jsoniter "github.com/json-iterator/go"
)

var (
	// documentJSON writes the configuration document read by the solver.
	documentJSON = jsoniter.Config{
		IndentionStep: 4,
		EscapeHTML:    false,
		SortMapKeys:   true,
	}.Froze()

	// canonicalJSON is the compact, key-sorted encoding used for equality.
	canonicalJSON = jsoniter.Config{
		EscapeHTML:  false,
		SortMapKeys: true,
	}.Froze()
)

// encoder walks documents and fragments by hand because jsoniter does not
// re-indent the output of json.Marshaler implementations.
type encoder struct {
	stream *jsoniter.Stream
	sorted bool
}

func (e *encoder) document(d Document) {
	names := d.Names()
	if e.sorted {
		sort.Strings(names)
	}
	if len(names) == 0 {
		e.stream.WriteEmptyObject()
		return
	}
	e.stream.WriteObjectStart()
	for i, name := range names {
		if i > 0 {
			e.stream.WriteMore()
		}
		e.stream.WriteObjectField(name)
		e.fragment(d.fragments[name])
	}
	e.stream.WriteObjectEnd()
}

// fragment writes the fields of f. The sorted encoding also carries the kind
// and short id override, which decide the folder name.
func (e *encoder) fragment(f Fragment) {
	if !e.sorted {
		e.fields(f.fields)
		return
	}
	fields := append([]Field(nil), f.fields...)
	sort.Slice(fields, func(i, j int) bool { return fields[i].Key < fields[j].Key })
	e.stream.WriteObjectStart()
	e.stream.WriteObjectField("kind")
	e.stream.WriteString(f.kind)
	e.stream.WriteMore()
	e.stream.WriteObjectField("short_id")
	e.stream.WriteString(f.shortID)
	e.stream.WriteMore()
	e.stream.WriteObjectField("fields")
	e.fields(fields)
	e.stream.WriteObjectEnd()
}

func (e *encoder) fields(fields []Field) {
	if len(fields) == 0 {
		e.stream.WriteEmptyObject()
		return
	}
	e.stream.WriteObjectStart()
	for i, fld := range fields {
		if i > 0 {
			e.stream.WriteMore()
		}
		e.stream.WriteObjectField(fld.Key)
		e.value(fld.Value)
	}
	e.stream.WriteObjectEnd()
}

func (e *encoder) value(v any) {
	switch x := v.(type) {
	case Fragment:
		e.fragment(x)
	case []any:
		if len(x) == 0 {
			e.stream.WriteEmptyArray()
			return
		}
		e.stream.WriteArrayStart()
		for i := range x {
			if i > 0 {
				e.stream.WriteMore()
			}
			e.value(x[i])
		}
		e.stream.WriteArrayEnd()
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) == 0 {
			e.stream.WriteEmptyObject()
			return
		}
		e.stream.WriteObjectStart()
		for i, k := range keys {
			if i > 0 {
				e.stream.WriteMore()
			}
			e.stream.WriteObjectField(k)
			e.value(x[k])
		}
		e.stream.WriteObjectEnd()
	default:
		e.stream.WriteVal(x)
	}
}

// WriteJSON writes d as an indented JSON object, one member per subsection,
// preserving subsection and field order.
func (d Document) WriteJSON(w io.Writer) error {
	stream := documentJSON.BorrowStream(w)
	defer documentJSON.ReturnStream(stream)
	enc := &encoder{stream: stream}
	enc.document(d)
	stream.WriteRaw("\n")
	if stream.Error != nil {
		return stream.Error
	}
	return stream.Flush()
}

// MarshalJSON implements json.Marshaler with the compact encoding.
func (d Document) MarshalJSON() ([]byte, error) {
	return encodeCompact(func(e *encoder) { e.document(d) }, false)
}

// MarshalJSON implements json.Marshaler with the compact encoding.
func (f Fragment) MarshalJSON() ([]byte, error) {
	return encodeCompact(func(e *encoder) { e.fragment(f) }, false)
}

// canonical returns an order-insensitive encoding of d.
func (d Document) canonical() string {
	b, err := encodeCompact(func(e *encoder) { e.document(d) }, true)
	if err != nil {
		return "\x00unencodable: " + err.Error()
	}
	return string(b)
}

func encodeCompact(write func(*encoder), sorted bool) ([]byte, error) {
	stream := canonicalJSON.BorrowStream(nil)
	defer canonicalJSON.ReturnStream(stream)
	write(&encoder{stream: stream, sorted: sorted})
	if stream.Error != nil {
		return nil, stream.Error
	}
	return append([]byte(nil), stream.Buffer()...), nil
}
