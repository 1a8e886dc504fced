package queue

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/hpcsweep/hpcsweep/sweep/hosts"
)

// RunLog receives the output of local runs.
const RunLog = "run.log"

// Local runs the command as a direct child process.
type Local struct {
	Runner Runner
	MPIRun string // launcher, "mpirun" when empty
}

// Name implements Queue.
func (q *Local) Name() hosts.BatchSystem { return hosts.BatchNone }

// Wrap implements Queue. Wall-clock and memory are not enforced locally.
func (q *Local) Wrap(_ string, cmd []string, res Resources) (Invocation, error) {
	if err := res.Validate(); err != nil {
		return Invocation{}, err
	}
	var inv Invocation
	if res.OMPThreads != nil {
		inv.Env = []string{ompEnv(*res.OMPThreads)}
	}
	if res.MPITasks != nil {
		inv.Argv = []string{q.launcher(), "-n", strconv.Itoa(*res.MPITasks)}
	}
	inv.Argv = append(inv.Argv, cmd...)
	return inv, nil
}

// Submit implements Queue. The job id is the pid of the started process.
func (q *Local) Submit(ctx context.Context, dir string, cmd []string, res Resources) (Job, error) {
	inv, err := q.Wrap(dir, cmd, res)
	if err != nil {
		return Job{}, err
	}
	pid, err := q.Runner.Start(ctx, dir, inv.Env, inv.Argv, filepath.Join(dir, RunLog))
	if err != nil {
		return Job{}, fmt.Errorf("%w: starting %s: %v", ErrSubmission, inv.Argv[0], err)
	}
	return record(hosts.BatchNone, strconv.Itoa(pid), dir, cmd, inv)
}

func (q *Local) launcher() string {
	if q.MPIRun == "" {
		return "mpirun"
	}
	return q.MPIRun
}
