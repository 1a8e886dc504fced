package hosts

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Table is the on-disk host table:
//
//	version: "1"
//	hosts:
//	  euler:
//	    batch_system: lsf
//	    cores_per_node: 24
//	    max_nodes: 10
//	    work_per_core: 2.0
//
// All top-level sections must be listed to satisfy KnownFields(true).
type Table struct {
	Version string             `yaml:"version"`
	Hosts   map[string]Profile `yaml:"hosts"`
}

// LoadTable parses a host table with strict field checking.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("reading host table: %w", err)
	}
	return ParseTable(data)
}

// ParseTable decodes a host table from YAML.
func ParseTable(data []byte) (Table, error) {
	var t Table
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&t); err != nil {
		return Table{}, fmt.Errorf("parsing host table: %w", err)
	}
	return t, nil
}

// Merge adds every profile of t to r, replacing built-ins of the same name.
func (r *Registry) Merge(t Table) error {
	for name, p := range t.Hosts {
		p.Name = name
		if err := r.Add(p); err != nil {
			return err
		}
	}
	return nil
}

// WriteTable encodes the registry as a host table, suitable for editing and
// passing back through LoadTable.
func (r *Registry) WriteTable() ([]byte, error) {
	t := Table{Version: "1", Hosts: r.profiles}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&t); err != nil {
		return nil, fmt.Errorf("encoding host table: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
