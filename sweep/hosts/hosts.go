// Package hosts holds the per-machine constants used to turn estimated work
// into MPI task counts.
//
// A Profile is always passed explicitly; DetectHost maps a host name to a
// profile name but never reads the environment itself.
package hosts

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrUnknownHost is returned when no profile matches a host name.
var ErrUnknownHost = errors.New("unknown host")

// ErrTooManyThreads is returned when a hybrid layout does not fit the host.
var ErrTooManyThreads = errors.New("threads per rank do not fit the host")

// BatchSystem names the scheduler available on a host.
type BatchSystem string

const (
	BatchNone  BatchSystem = "none"
	BatchSLURM BatchSystem = "slurm"
	BatchLSF   BatchSystem = "lsf"
)

// ValidBatchSystems lists the recognized batch systems.
var ValidBatchSystems = map[BatchSystem]bool{
	BatchNone:  true,
	BatchSLURM: true,
	BatchLSF:   true,
}

// MinTasks is the smallest task count NTasks returns; single-rank MPI runs
// are not supported.
const MinTasks = 2

// Profile describes one machine.
type Profile struct {
	Name            string      `yaml:"-"`
	BatchSystem     BatchSystem `yaml:"batch_system"`
	CoresPerNode    int         `yaml:"cores_per_node"`
	MaxNodes        int         `yaml:"max_nodes"`
	WorkPerCore     float64     `yaml:"work_per_core"`
	MaxCoresPerNode int         `yaml:"max_cores_per_node,omitempty"` // physical cores; bounds threads per rank
}

// Validate checks that the profile can produce task counts.
func (p Profile) Validate() error {
	if !ValidBatchSystems[p.BatchSystem] {
		return fmt.Errorf("host %q: unknown batch system %q", p.Name, p.BatchSystem)
	}
	if p.CoresPerNode < 1 {
		return fmt.Errorf("host %q: cores_per_node must be >= 1, got %d", p.Name, p.CoresPerNode)
	}
	if p.MaxNodes < 1 {
		return fmt.Errorf("host %q: max_nodes must be >= 1, got %d", p.Name, p.MaxNodes)
	}
	if p.WorkPerCore <= 0 || math.IsNaN(p.WorkPerCore) || math.IsInf(p.WorkPerCore, 0) {
		return fmt.Errorf("host %q: work_per_core must be a positive number, got %v", p.Name, p.WorkPerCore)
	}
	return nil
}

// MaxCores returns MaxNodes * CoresPerNode.
func (p Profile) MaxCores() int {
	return p.MaxNodes * p.CoresPerNode
}

// NTasks converts work units into an MPI task count. The raw count
// work/WorkPerCore is truncated, rounded up to a whole number of nodes and
// clamped to [MinTasks, MaxCores].
func (p Profile) NTasks(work float64) int {
	maxCores := p.MaxCores()
	raw := work / p.WorkPerCore
	if raw >= float64(maxCores) || math.IsInf(raw, 1) {
		return max(MinTasks, maxCores)
	}
	n := 0
	if raw > 0 {
		n = int(raw)
	}
	if rem := n % p.CoresPerNode; rem != 0 {
		n += p.CoresPerNode - rem
	}
	return max(MinTasks, min(n, maxCores))
}

// ThreadsPerNode returns the most threads a single rank may use on one node.
func (p Profile) ThreadsPerNode() int {
	if p.MaxCoresPerNode > 0 {
		return p.MaxCoresPerNode
	}
	return p.CoresPerNode
}

// HybridTasks converts work units into a rank count for a hybrid run with
// one rank per node and threads cores each. The count is at least MinTasks
// and at most MaxNodes, and ranks × threads never exceeds MaxCores.
func (p Profile) HybridTasks(work float64, threads int) (int, error) {
	if threads < 1 {
		return 0, fmt.Errorf("host %q: threads per rank must be >= 1, got %d", p.Name, threads)
	}
	if threads > p.ThreadsPerNode() {
		return 0, fmt.Errorf("host %q: %d threads on a %d-core node: %w", p.Name, threads, p.ThreadsPerNode(), ErrTooManyThreads)
	}
	maxRanks := min(p.MaxNodes, p.MaxCores()/threads)
	if maxRanks < MinTasks {
		return 0, fmt.Errorf("host %q: room for %d ranks of %d threads: %w", p.Name, maxRanks, threads, ErrTooManyThreads)
	}
	raw := work / (p.WorkPerCore * float64(threads))
	if raw >= float64(maxRanks) || math.IsInf(raw, 1) {
		return maxRanks, nil
	}
	n := 0
	if raw > 0 {
		n = int(raw)
	}
	return max(MinTasks, n), nil
}

// Nodes returns how many nodes nTasks ranks occupy.
func (p Profile) Nodes(nTasks int) int {
	return (nTasks + p.CoresPerNode - 1) / p.CoresPerNode
}

// MemoryPerCore returns overhead + total/nTasks. The safety factor is the
// caller's to apply.
func MemoryPerCore(overhead, total float64, nTasks int) float64 {
	return overhead + total/float64(nTasks)
}

// Registry maps host names to profiles.
type Registry struct {
	profiles map[string]Profile
}

// NewRegistry validates and stores the given profiles, keyed by Name.
func NewRegistry(profiles ...Profile) (*Registry, error) {
	r := &Registry{profiles: make(map[string]Profile, len(profiles))}
	for _, p := range profiles {
		if err := r.Add(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add validates p and registers it, replacing a profile of the same name.
func (r *Registry) Add(p Profile) error {
	if p.Name == "" {
		return fmt.Errorf("host profile without a name")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	r.profiles[p.Name] = p
	return nil
}

// Lookup returns the profile of name or ErrUnknownHost.
func (r *Registry) Lookup(name string) (Profile, error) {
	p, ok := r.profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%q (known: %s): %w", name, strings.Join(r.Names(), ", "), ErrUnknownHost)
	}
	return p, nil
}

// Names returns the registered host names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for n := range r.profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Profiles returns all profiles sorted by name.
func (r *Registry) Profiles() []Profile {
	out := make([]Profile, 0, len(r.profiles))
	for _, n := range r.Names() {
		out = append(out, r.profiles[n])
	}
	return out
}

// DefaultProfiles returns the built-in machine table. nproc is the core
// count of the local workstation "ada", which runs two cores per rank.
func DefaultProfiles(nproc int) []Profile {
	adaNodes := max(1, nproc/2)
	return []Profile{
		{Name: "euler", BatchSystem: BatchLSF, CoresPerNode: 12, MaxNodes: 20, WorkPerCore: 2.0, MaxCoresPerNode: 128},
		{Name: "daint", BatchSystem: BatchSLURM, CoresPerNode: 12, MaxNodes: 160, WorkPerCore: 2.0},
		{Name: "rogui", BatchSystem: BatchNone, CoresPerNode: 1, MaxNodes: 16, WorkPerCore: 1.0},
		{Name: "liara", BatchSystem: BatchNone, CoresPerNode: 1, MaxNodes: 2, WorkPerCore: 1.0},
		{Name: "aoifa", BatchSystem: BatchNone, CoresPerNode: 1, MaxNodes: 12, WorkPerCore: 1.0},
		{Name: "ada", BatchSystem: BatchNone, CoresPerNode: 2, MaxNodes: adaNodes, WorkPerCore: 1.0},
	}
}

// DefaultRegistry returns a registry of DefaultProfiles.
func DefaultRegistry(nproc int) *Registry {
	r, err := NewRegistry(DefaultProfiles(nproc)...)
	if err != nil {
		panic(fmt.Sprintf("built-in host table is invalid: %v", err))
	}
	return r
}

// hostPrefixes maps login node name prefixes to profile names. Checked in
// order; the first match wins.
var hostPrefixes = []struct {
	prefix, profile string
}{
	{"daint", "daint"},
	{"liara", "liara"},
	{"rogui", "rogui"},
	{"eu-login", "euler"},
	{"euler", "euler"},
	{"ada", "ada"},
	{"aoifa", "aoifa"},
}

// DetectHost maps a machine's host name to a profile name.
func DetectHost(hostname string) (string, error) {
	h := strings.ToLower(hostname)
	for _, hp := range hostPrefixes {
		if strings.HasPrefix(h, hp.prefix) {
			return hp.profile, nil
		}
	}
	return "", fmt.Errorf("host name %q: %w", hostname, ErrUnknownHost)
}
