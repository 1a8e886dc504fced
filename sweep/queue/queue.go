// Package queue submits a solver invocation to the batch system of the
// current host.
//
// # Reading Guide
//
// Resources (resources.go) describes what a run needs; its Mode is derived
// from which fields are present. Each backend turns (command, Resources) into
// an Invocation, the environment and argument vector of the batch client,
// and Submit runs it:
//
//   - Local (local.go): runs the command directly, prefixed by mpirun for MPI.
//   - SLURM (slurm.go): sbatch --wrap around srun.
//   - LSF (lsf.go): bsub with mpirun, including hybrid MPI+OpenMP placement.
//
// Submission never waits for the run to finish. A job record (job.yaml) is
// written into the run directory on success.
package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/hpcsweep/hpcsweep/sweep/hosts"
)

var (
	// ErrSubmission wraps a failing batch client.
	ErrSubmission = errors.New("submission failed")
	// ErrNotSupported marks a parallelization mode a backend cannot express.
	ErrNotSupported = errors.New("not supported")
)

// JobRecordFile is written into the run directory after submission.
const JobRecordFile = "job.yaml"

// Invocation is what a backend would execute.
type Invocation struct {
	Env  []string // KEY=VALUE pairs added to the environment
	Argv []string
}

// String renders the invocation as a shell command line.
func (inv Invocation) String() string {
	if len(inv.Env) == 0 {
		return shellJoin(inv.Argv)
	}
	return shellJoin(inv.Env) + " " + shellJoin(inv.Argv)
}

// Job is the handle of a submitted run.
type Job struct {
	Backend     hosts.BatchSystem `yaml:"backend"`
	ID          string            `yaml:"id"`
	Submission  string            `yaml:"submission"`
	Dir         string            `yaml:"directory"`
	Command     []string          `yaml:"command"`
	Invocation  []string          `yaml:"invocation"`
	SubmittedAt time.Time         `yaml:"submitted_at"`
}

// Queue wraps and submits commands for one batch system.
type Queue interface {
	Name() hosts.BatchSystem
	// Wrap returns the invocation Submit would run, without running it.
	Wrap(dir string, cmd []string, res Resources) (Invocation, error)
	// Submit runs the invocation in dir, which must exist and hold every
	// input of the run.
	Submit(ctx context.Context, dir string, cmd []string, res Resources) (Job, error)
}

// New returns the backend for system. CoresPerNode of profile is used by
// backends that request whole nodes.
func New(profile hosts.Profile, runner Runner) (Queue, error) {
	if runner == nil {
		runner = ExecRunner{}
	}
	switch profile.BatchSystem {
	case hosts.BatchNone:
		return &Local{Runner: runner}, nil
	case hosts.BatchSLURM:
		return &SLURM{Runner: runner, CoresPerNode: profile.CoresPerNode}, nil
	case hosts.BatchLSF:
		return &LSF{Runner: runner}, nil
	}
	return nil, fmt.Errorf("batch system %q: %w", profile.BatchSystem, ErrNotSupported)
}

// newJob fills the fields common to every backend.
func newJob(backend hosts.BatchSystem, id, dir string, cmd []string, inv Invocation) (Job, error) {
	sub, err := uuid.NewV7()
	if err != nil {
		return Job{}, fmt.Errorf("generating submission id: %w", err)
	}
	return Job{
		Backend:     backend,
		ID:          id,
		Submission:  sub.String(),
		Dir:         dir,
		Command:     append([]string(nil), cmd...),
		Invocation:  append(append([]string(nil), inv.Env...), inv.Argv...),
		SubmittedAt: time.Now().UTC().Truncate(time.Second),
	}, nil
}

// WriteRecord writes job.yaml into the job's directory.
func (j Job) WriteRecord() error {
	data, err := yaml.Marshal(&j)
	if err != nil {
		return fmt.Errorf("encoding job record: %w", err)
	}
	if err := os.WriteFile(filepath.Join(j.Dir, JobRecordFile), data, 0o644); err != nil {
		return fmt.Errorf("writing job record: %w", err)
	}
	return nil
}

// ReadRecord reads the job.yaml of dir.
func ReadRecord(dir string) (Job, error) {
	data, err := os.ReadFile(filepath.Join(dir, JobRecordFile))
	if err != nil {
		return Job{}, fmt.Errorf("reading job record: %w", err)
	}
	var j Job
	if err := yaml.Unmarshal(data, &j); err != nil {
		return Job{}, fmt.Errorf("parsing job record: %w", err)
	}
	return j, nil
}

// submitBatch runs a batch client, extracts the job id and records the job.
func submitBatch(ctx context.Context, runner Runner, backend hosts.BatchSystem, dir string, cmd []string,
	inv Invocation, parseID func(string) (string, bool), pidFile string) (Job, error) {
	out, err := runner.Output(ctx, dir, inv.Env, inv.Argv)
	if err != nil {
		return Job{}, fmt.Errorf("%w: %s: %v\n%s", ErrSubmission, inv.Argv[0], err, strings.TrimSpace(string(out)))
	}
	id, ok := parseID(string(out))
	if !ok {
		logrus.WithFields(logrus.Fields{"backend": backend, "dir": dir}).
			Warnf("no job id in %s output: %q", inv.Argv[0], strings.TrimSpace(string(out)))
	} else if pidFile != "" {
		if err := os.WriteFile(filepath.Join(dir, pidFile), []byte(id+"\n"), 0o644); err != nil {
			return Job{}, fmt.Errorf("writing %s: %w", pidFile, err)
		}
	}
	return record(backend, id, dir, cmd, inv)
}

func record(backend hosts.BatchSystem, id, dir string, cmd []string, inv Invocation) (Job, error) {
	job, err := newJob(backend, id, dir, cmd, inv)
	if err != nil {
		return Job{}, err
	}
	if err := job.WriteRecord(); err != nil {
		return Job{}, err
	}
	logrus.WithFields(logrus.Fields{
		"backend": backend,
		"dir":     dir,
		"job":     id,
	}).Info("submitted")
	return job, nil
}

func ompEnv(threads int) string {
	return fmt.Sprintf("OMP_NUM_THREADS=%d", threads)
}
