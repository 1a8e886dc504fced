package queue

import (
	"fmt"
	"math"
	"time"
)

// Mode is the parallelization of one run, derived from which resource
// fields are present.
type Mode int

const (
	ModeSerial Mode = iota
	ModeMPI
	ModeHybrid  // MPI ranks, each with OpenMP threads
	ModeThreads // OpenMP threads only
)

func (m Mode) String() string {
	switch m {
	case ModeSerial:
		return "serial"
	case ModeMPI:
		return "mpi"
	case ModeHybrid:
		return "hybrid"
	case ModeThreads:
		return "threads"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Resources is a best-effort declarative description of what a run needs.
// Nil fields are unknown and the corresponding flags are omitted, never
// defaulted.
type Resources struct {
	JobName       string
	WallClock     *time.Duration
	MPITasks      *int
	OMPThreads    *int
	MemoryPerCore *float64 // bytes
	ExtraArgs     []string // passed to the batch client verbatim
}

// Some returns a pointer to v, for filling optional Resources fields.
func Some[T any](v T) *T { return &v }

// Mode reports how the run is parallelized.
func (r Resources) Mode() Mode {
	switch {
	case r.MPITasks != nil && r.OMPThreads != nil:
		return ModeHybrid
	case r.MPITasks != nil:
		return ModeMPI
	case r.OMPThreads != nil:
		return ModeThreads
	}
	return ModeSerial
}

// Validate rejects non-positive counts.
func (r Resources) Validate() error {
	if r.MPITasks != nil && *r.MPITasks < 1 {
		return fmt.Errorf("mpi tasks must be >= 1, got %d", *r.MPITasks)
	}
	if r.OMPThreads != nil && *r.OMPThreads < 1 {
		return fmt.Errorf("omp threads must be >= 1, got %d", *r.OMPThreads)
	}
	if r.WallClock != nil && *r.WallClock <= 0 {
		return fmt.Errorf("wall-clock must be positive, got %v", *r.WallClock)
	}
	if r.MemoryPerCore != nil && (*r.MemoryPerCore <= 0 || math.IsNaN(*r.MemoryPerCore)) {
		return fmt.Errorf("memory per core must be positive, got %v", *r.MemoryPerCore)
	}
	return nil
}

// Cores returns tasks × threads, counting an absent field as one.
func (r Resources) Cores() int {
	n := 1
	if r.MPITasks != nil {
		n *= *r.MPITasks
	}
	if r.OMPThreads != nil {
		n *= *r.OMPThreads
	}
	return n
}

// megabytes rounds bytes up to whole MiB.
func megabytes(bytes float64) int {
	return int(math.Ceil(bytes / (1 << 20)))
}
