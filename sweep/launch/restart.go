package launch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/hpcsweep/hpcsweep/sweep"
	"github.com/hpcsweep/hpcsweep/sweep/queue"
)

// DataPattern matches the snapshots a run writes.
const DataPattern = "*_data-*.h5"

// RestartGrid is the grid the solver writes into its run directory; a
// restart prefers it over the original input.
const RestartGrid = "grid.h5"

// DataFiles returns the snapshots in dir, sorted by name.
func DataFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, DataPattern))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Snapshot picks the snapshot at index; a negative index counts from the end.
func Snapshot(dir string, index int) (string, error) {
	files, err := DataFiles(dir)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("%s: %w", dir, ErrNoDataFiles)
	}
	i := index
	if i < 0 {
		i += len(files)
	}
	if i < 0 || i >= len(files) {
		return "", fmt.Errorf("%s: snapshot index %d out of range [%d, %d)", dir, index, -len(files), len(files))
	}
	return files[i], nil
}

// Restart rewrites the configuration of an existing run to resume from the
// snapshot at index and resubmits it in place.
func (l *Launcher) Restart(ctx context.Context, s sweep.Scheme, index int) (queue.Job, error) {
	r, plan, err := l.restartScheme(s, index)
	if err != nil {
		return queue.Job{}, err
	}
	dir := filepath.Join(l.Output, plan.Folder)
	if err := r.Save(filepath.Join(dir, ConfigFile)); err != nil {
		return queue.Job{}, fmt.Errorf("%s: %w", plan.Folder, err)
	}
	job, err := l.Queue.Submit(ctx, dir, l.Command(dir), plan.Resources)
	if err != nil {
		return queue.Job{}, fmt.Errorf("%s: %w", plan.Folder, err)
	}
	return job, nil
}

func (l *Launcher) restartScheme(s sweep.Scheme, index int) (sweep.Scheme, Plan, error) {
	plan, err := l.Plan(s)
	if err != nil {
		return sweep.Scheme{}, Plan{}, err
	}
	dir := filepath.Join(l.Output, plan.Folder)
	snapshot, err := Snapshot(dir, index)
	if err != nil {
		return sweep.Scheme{}, Plan{}, fmt.Errorf("%s: %w", plan.Folder, err)
	}
	grid, err := s.GridFilename()
	if err != nil {
		return sweep.Scheme{}, Plan{}, fmt.Errorf("%s: %w", plan.Folder, err)
	}
	if exists(filepath.Join(dir, RestartGrid)) {
		grid = RestartGrid
	}
	r, err := s.WithRestart(filepath.Base(snapshot), grid)
	if err != nil {
		return sweep.Scheme{}, Plan{}, fmt.Errorf("%s: %w", plan.Folder, err)
	}
	logrus.WithFields(logrus.Fields{"folder": plan.Folder, "snapshot": filepath.Base(snapshot)}).Info("restarting")
	return r, plan, nil
}
