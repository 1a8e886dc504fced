package queue

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/hpcsweep/hpcsweep/sweep/hosts"
)

// LSFPidFile holds the job id of an LSF submission.
const LSFPidFile = "lsf.pid"

var lsfJobID = regexp.MustCompile(`Job <(\d+)> is submitted`)

// LSF submits with bsub. Hybrid runs place one rank per node with its
// threads pinned to consecutive cores.
type LSF struct {
	Runner Runner
}

// Name implements Queue.
func (q *LSF) Name() hosts.BatchSystem { return hosts.BatchLSF }

// Wrap implements Queue.
func (q *LSF) Wrap(_ string, cmd []string, res Resources) (Invocation, error) {
	if err := res.Validate(); err != nil {
		return Invocation{}, err
	}
	argv := []string{"bsub"}
	if res.JobName != "" {
		argv = append(argv, "-J", res.JobName)
	}
	if res.WallClock != nil {
		argv = append(argv, "-W", FormatHHMM(*res.WallClock))
	}

	var prefix []string
	switch res.Mode() {
	case ModeSerial:
	case ModeMPI:
		n := strconv.Itoa(*res.MPITasks)
		argv = append(argv, "-n", n)
		prefix = []string{"mpirun", "-n", n}
	case ModeHybrid:
		tasks, threads := *res.MPITasks, *res.OMPThreads
		argv = append(argv, "-n", strconv.Itoa(tasks*threads))
		prefix = []string{
			"env", ompEnv(threads),
			"mpirun", "-n", strconv.Itoa(tasks),
			"--map-by", fmt.Sprintf("ppr:1:node:pe=%d", threads),
			"--bind-to", "core",
		}
	case ModeThreads:
		return Invocation{}, fmt.Errorf("lsf: thread-only runs: %w", ErrNotSupported)
	}
	if res.MemoryPerCore != nil {
		argv = append(argv, "-R", fmt.Sprintf("rusage[mem=%d]", megabytes(*res.MemoryPerCore)))
	}
	argv = append(argv, res.ExtraArgs...)
	argv = append(argv, prefix...)
	argv = append(argv, cmd...)
	return Invocation{Argv: argv}, nil
}

// Submit implements Queue.
func (q *LSF) Submit(ctx context.Context, dir string, cmd []string, res Resources) (Job, error) {
	inv, err := q.Wrap(dir, cmd, res)
	if err != nil {
		return Job{}, err
	}
	return submitBatch(ctx, q.Runner, hosts.BatchLSF, dir, cmd, inv, ParseLSFJobID, LSFPidFile)
}

// ParseLSFJobID extracts N from "Job <N> is submitted to queue <q>.".
func ParseLSFJobID(out string) (string, bool) {
	m := lsfJobID.FindStringSubmatch(out)
	if m == nil {
		return "", false
	}
	return m[1], true
}
