package sweepfile

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/hpcsweep/hpcsweep/sweep"
)

const shortIDKey = "short_id"

// decodeBase reads a mapping of subsection name to fields.
func decodeBase(n *yaml.Node) (sweep.Document, error) {
	var doc sweep.Document
	if n.Kind == 0 {
		return doc, nil
	}
	if n.Kind != yaml.MappingNode {
		return doc, fmt.Errorf("line %d: expected a mapping of subsections: %w", n.Line, ErrInvalid)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		name := n.Content[i].Value
		f, err := decodeFragment(name, n.Content[i+1])
		if err != nil {
			return doc, fmt.Errorf("%s: %w", name, err)
		}
		doc = sweep.Merge(doc, sweep.Doc(name, f))
	}
	return doc, nil
}

// decodeChoices reads a mapping of subsection name to a list of options.
func decodeChoices(n *yaml.Node) ([]sweep.Choice, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping of subsections: %w", n.Line, ErrInvalid)
	}
	var choices []sweep.Choice
	for i := 0; i+1 < len(n.Content); i += 2 {
		name, list := n.Content[i].Value, n.Content[i+1]
		if list.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("%s, line %d: expected a list of options: %w", name, list.Line, ErrInvalid)
		}
		c := sweep.Choice{Name: name}
		for _, item := range list.Content {
			f, err := decodeFragment(name, item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			c.Options = append(c.Options, f)
		}
		choices = append(choices, c)
	}
	return choices, nil
}

func decodeFragment(kind string, n *yaml.Node) (sweep.Fragment, error) {
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	if n.Kind != yaml.MappingNode {
		return sweep.Fragment{}, fmt.Errorf("line %d: expected a mapping: %w", n.Line, ErrInvalid)
	}
	var fields []sweep.Field
	var shortID string
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i].Value, n.Content[i+1]
		if key == shortIDKey {
			if err := val.Decode(&shortID); err != nil {
				return sweep.Fragment{}, fmt.Errorf("line %d: %w", val.Line, err)
			}
			continue
		}
		v, err := decodeValue(key, val)
		if err != nil {
			return sweep.Fragment{}, err
		}
		fields = append(fields, sweep.F(key, v))
	}
	f := sweep.NewFragment(kind, fields...)
	f, err := withDefaults(f)
	if err != nil {
		return sweep.Fragment{}, fmt.Errorf("line %d: %w", n.Line, err)
	}
	if shortID != "" {
		f = f.WithShortID(shortID)
	}
	return f, nil
}

// decodeValue converts a node into the values a Fragment holds: nested
// mappings become fragments named by their key, sequences []any, scalars
// their natural Go type.
func decodeValue(key string, n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return decodeValue(key, n.Alias)
	case yaml.MappingNode:
		return decodeFragment(key, n)
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := decodeValue(key, item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("line %d: unsupported value for %q: %w", n.Line, key, ErrInvalid)
}

func withDefaults(f sweep.Fragment) (sweep.Fragment, error) {
	switch f.Kind() {
	case sweep.KindReconstruction:
		return sweep.FillReconstructionDefaults(f)
	case sweep.KindODE:
		if !f.Has("cfl_number") {
			f = f.With("cfl_number", sweep.DefaultCFLNumber)
		}
	case sweep.KindQuadrature:
		if f.Has("volume") && !f.Has("edge") {
			v, _ := f.Get("volume")
			f = f.With("edge", v)
		}
	}
	return f, nil
}
