// Package launch prepares run directories and hands schemes to a queue.
//
// # Reading Guide
//
//   - planner.go: work estimate and host profile to queue.Resources.
//   - launcher.go: one scheme to one run directory and one submission.
//   - restart.go: resubmit an existing run from one of its snapshots.
//   - dispatch.go: a whole sweep, in order, stopping at the first failure.
//
// A run directory is <Output>/<folder name> and holds a copy of the solver
// binary, config.json, the grid (and reference coarse grids) at the same
// relative paths the configuration names, and the queue's job record.
package launch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/hpcsweep/hpcsweep/sweep"
	"github.com/hpcsweep/hpcsweep/sweep/queue"
)

// ConfigFile is the configuration document inside a run directory.
const ConfigFile = "config.json"

// Launcher creates run directories and submits them.
type Launcher struct {
	Queue   queue.Queue
	Planner *Planner
	Binary  string // solver executable, copied into every run directory
	Home    string // relative grid paths are resolved against Home
	Output  string // parent of all run directories
	Force   bool   // remove existing run directories
}

// Dir returns the run directory of s.
func (l *Launcher) Dir(s sweep.Scheme) (string, error) {
	folder, err := s.FolderName()
	if err != nil {
		return "", err
	}
	return filepath.Join(l.Output, folder), nil
}

// Command returns the solver invocation for a run directory.
func (l *Launcher) Command(dir string) []string {
	return []string{
		filepath.Join(dir, filepath.Base(l.Binary)),
		"run",
		"--config", filepath.Join(dir, ConfigFile),
	}
}

// Plan returns the resource plan of s.
func (l *Launcher) Plan(s sweep.Scheme) (Plan, error) {
	if l.Planner == nil {
		return (&Planner{}).Plan(s)
	}
	return l.Planner.Plan(s)
}

// Launch prepares the run directory of s and submits it.
func (l *Launcher) Launch(ctx context.Context, s sweep.Scheme) (queue.Job, error) {
	plan, err := l.Plan(s)
	if err != nil {
		return queue.Job{}, err
	}
	dir := filepath.Join(l.Output, plan.Folder)
	if err := l.prepare(dir, s); err != nil {
		return queue.Job{}, fmt.Errorf("%s: %w", plan.Folder, err)
	}
	job, err := l.Queue.Submit(ctx, dir, l.Command(dir), plan.Resources)
	if err != nil {
		return queue.Job{}, fmt.Errorf("%s: %w", plan.Folder, err)
	}
	return job, nil
}

// DryRun returns what Launch would submit without touching the filesystem.
func (l *Launcher) DryRun(s sweep.Scheme) (queue.Invocation, error) {
	plan, err := l.Plan(s)
	if err != nil {
		return queue.Invocation{}, err
	}
	dir := filepath.Join(l.Output, plan.Folder)
	inv, err := l.Queue.Wrap(dir, l.Command(dir), plan.Resources)
	if err != nil {
		return queue.Invocation{}, fmt.Errorf("%s: %w", plan.Folder, err)
	}
	return inv, nil
}

func (l *Launcher) prepare(dir string, s sweep.Scheme) error {
	if err := makeCleanDirectory(dir, l.Force); err != nil {
		return err
	}
	logger := logrus.WithField("dir", dir)

	if err := copyFile(l.Binary, filepath.Join(dir, filepath.Base(l.Binary))); err != nil {
		return fmt.Errorf("copying solver: %w", err)
	}
	inputs, err := gridInputs(s)
	if err != nil {
		return err
	}
	for _, rel := range inputs {
		if filepath.IsAbs(rel) {
			logger.Debugf("using grid %s in place", rel)
			continue
		}
		if err := copyPath(filepath.Join(l.Home, rel), filepath.Join(dir, rel)); err != nil {
			return fmt.Errorf("copying grid: %w", err)
		}
	}
	if err := s.Save(filepath.Join(dir, ConfigFile)); err != nil {
		return err
	}
	logger.Debugf("prepared %d grid inputs", len(inputs))
	return nil
}

// gridInputs lists the grid of s followed by any reference coarse grids.
func gridInputs(s sweep.Scheme) ([]string, error) {
	file, err := s.GridFilename()
	if err != nil {
		return nil, err
	}
	inputs := []string{file}
	if ref, err := s.Fragment(sweep.KindReference); err == nil {
		coarse, err := sweep.CoarseGrids(ref)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, coarse...)
	}
	return inputs, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
