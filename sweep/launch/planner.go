package launch

import (
	"fmt"
	"time"

	"github.com/hpcsweep/hpcsweep/sweep"
	"github.com/hpcsweep/hpcsweep/sweep/estimate"
	"github.com/hpcsweep/hpcsweep/sweep/hosts"
	"github.com/hpcsweep/hpcsweep/sweep/queue"
)

// DefaultMemorySafety multiplies the estimated memory per core.
const DefaultMemorySafety = 1.5

// Planner turns a work estimate into a resource request for one host.
type Planner struct {
	Estimator    estimate.Estimator
	Profile      hosts.Profile
	MinWallClock time.Duration // estimates below are raised to this
	MaxWallClock time.Duration // estimates above are refused; zero disables
	MemorySafety float64       // zero means DefaultMemorySafety
	OMPThreads   int           // threads per rank; zero for pure MPI
	ExtraArgs    []string
}

// Plan is the outcome of planning one scheme.
type Plan struct {
	Folder    string
	Nodes     int // zero when unknown
	Work      float64
	CPUHours  time.Duration
	Memory    estimate.Memory
	Resources queue.Resources
}

// Plan estimates s and derives task count, wall-clock and memory per core.
// Without an Estimator the plan carries only the job name.
func (p *Planner) Plan(s sweep.Scheme) (Plan, error) {
	folder, err := s.FolderName()
	if err != nil {
		return Plan{}, err
	}
	plan := Plan{Folder: folder}
	plan.Resources.JobName = jobName(s, folder)
	plan.Resources.ExtraArgs = p.ExtraArgs
	if p.Estimator == nil {
		return plan, nil
	}

	if plan.Work, err = p.Estimator.Work(s); err != nil {
		return Plan{}, fmt.Errorf("%s: %w", folder, err)
	}
	if plan.CPUHours, err = p.Estimator.CPUHours(s); err != nil {
		return Plan{}, fmt.Errorf("%s: %w", folder, err)
	}
	if plan.Memory, err = p.Estimator.MemoryUsage(s); err != nil {
		return Plan{}, fmt.Errorf("%s: %w", folder, err)
	}

	// hybrid runs place one rank per node
	tasks, threads := p.Profile.NTasks(plan.Work), 1
	plan.Nodes = p.Profile.Nodes(tasks)
	if p.OMPThreads > 0 {
		threads = p.OMPThreads
		if tasks, err = p.Profile.HybridTasks(plan.Work, threads); err != nil {
			return Plan{}, fmt.Errorf("%s: %w", folder, err)
		}
		plan.Nodes = tasks
		plan.Resources.OMPThreads = queue.Some(threads)
	}
	plan.Resources.MPITasks = queue.Some(tasks)

	wall := time.Duration(float64(plan.CPUHours) / float64(plan.Resources.Cores()))
	if wall < p.MinWallClock {
		wall = p.MinWallClock
	}
	if p.MaxWallClock > 0 && wall > p.MaxWallClock {
		return Plan{}, fmt.Errorf("%s: %v on %d cores exceeds %v: %w",
			folder, wall.Round(time.Minute), plan.Resources.Cores(), p.MaxWallClock, ErrWallClockExceeded)
	}
	if wall > 0 {
		plan.Resources.WallClock = queue.Some(wall)
	}

	if plan.Memory.Total > 0 || plan.Memory.OverheadPerProcess > 0 {
		safety := p.MemorySafety
		if safety == 0 {
			safety = DefaultMemorySafety
		}
		perRank := hosts.MemoryPerCore(plan.Memory.OverheadPerProcess, plan.Memory.Total, tasks)
		perCore := perRank / float64(threads) * safety
		plan.Resources.MemoryPerCore = queue.Some(perCore)
	}
	return plan, nil
}

func jobName(s sweep.Scheme, folder string) string {
	if name, err := s.ExperimentName(); err == nil && name != "" {
		return name
	}
	return folder
}
