package queue

import (
	"context"
	"regexp"
	"strconv"

	"github.com/hpcsweep/hpcsweep/sweep/hosts"
)

// SLURMPidFile holds the job id of a SLURM submission.
const SLURMPidFile = "slurm.pid"

var slurmJobID = regexp.MustCompile(`Submitted batch job (\d+)`)

// SLURM submits with sbatch --wrap. Hybrid runs place one rank per node.
type SLURM struct {
	Runner       Runner
	CoresPerNode int // zero leaves node layout to the scheduler
}

// Name implements Queue.
func (q *SLURM) Name() hosts.BatchSystem { return hosts.BatchSLURM }

// Wrap implements Queue.
func (q *SLURM) Wrap(_ string, cmd []string, res Resources) (Invocation, error) {
	if err := res.Validate(); err != nil {
		return Invocation{}, err
	}
	argv := []string{"sbatch"}
	if res.JobName != "" {
		argv = append(argv, "--job-name="+res.JobName)
	}
	if res.WallClock != nil {
		argv = append(argv, "--time="+FormatDHHMMSS(*res.WallClock))
	}
	if res.MPITasks != nil {
		n := *res.MPITasks
		switch {
		case res.OMPThreads != nil:
			// one rank per node, its threads on the node's cores
			argv = append(argv, "--nodes="+strconv.Itoa(n), "--ntasks-per-node=1")
		case q.CoresPerNode > 0:
			perNode := min(n, q.CoresPerNode)
			nodes := (n + q.CoresPerNode - 1) / q.CoresPerNode
			argv = append(argv, "--nodes="+strconv.Itoa(nodes), "--ntasks-per-node="+strconv.Itoa(perNode))
		}
		argv = append(argv, "--ntasks="+strconv.Itoa(n))
	}
	if res.OMPThreads != nil {
		argv = append(argv, "--cpus-per-task="+strconv.Itoa(*res.OMPThreads))
	}
	if res.MemoryPerCore != nil {
		argv = append(argv, "--mem-per-cpu="+strconv.Itoa(megabytes(*res.MemoryPerCore))+"M")
	}
	argv = append(argv, res.ExtraArgs...)

	var wrapped []string
	if res.OMPThreads != nil {
		wrapped = append(wrapped, "env", ompEnv(*res.OMPThreads))
	}
	if res.MPITasks != nil {
		wrapped = append(wrapped, "srun")
	}
	wrapped = append(wrapped, cmd...)
	argv = append(argv, "--wrap="+shellJoin(wrapped))
	return Invocation{Argv: argv}, nil
}

// Submit implements Queue.
func (q *SLURM) Submit(ctx context.Context, dir string, cmd []string, res Resources) (Job, error) {
	inv, err := q.Wrap(dir, cmd, res)
	if err != nil {
		return Job{}, err
	}
	return submitBatch(ctx, q.Runner, hosts.BatchSLURM, dir, cmd, inv, ParseSLURMJobID, SLURMPidFile)
}

// ParseSLURMJobID extracts N from "Submitted batch job N".
func ParseSLURMJobID(out string) (string, bool) {
	m := slurmJobID.FindStringSubmatch(out)
	if m == nil {
		return "", false
	}
	return m[1], true
}
