package launch

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpcsweep/hpcsweep/sweep"
	"github.com/hpcsweep/hpcsweep/sweep/estimate"
	"github.com/hpcsweep/hpcsweep/sweep/grid"
	"github.com/hpcsweep/hpcsweep/sweep/hosts"
	"github.com/hpcsweep/hpcsweep/sweep/internal/testutil"
	"github.com/hpcsweep/hpcsweep/sweep/queue"
)

type fixture struct {
	home     string
	output   string
	runner   *testutil.FakeRunner
	launcher *Launcher
}

// newFixture lays out a home directory with a solver binary and the given
// grids (relative path -> cell count).
func newFixture(t *testing.T, grids map[string]int) *fixture {
	t.Helper()
	home := t.TempDir()
	binary := filepath.Join(home, "build-release", "zisa")
	testutil.WriteBinary(t, binary)
	for rel, n := range grids {
		testutil.WriteGrid(t, home, rel, n)
	}
	f := &fixture{
		home:   home,
		output: filepath.Join(t.TempDir(), "runs"),
		runner: &testutil.FakeRunner{Pid: 100},
	}
	f.launcher = &Launcher{
		Queue:  &queue.Local{Runner: f.runner},
		Binary: binary,
		Home:   home,
		Output: f.output,
	}
	return f
}

func bumpSweep(t *testing.T, gridFiles ...string) []sweep.Scheme {
	t.Helper()
	var opts []sweep.Fragment
	for i, g := range gridFiles {
		opts = append(opts, sweep.Grid(g, i+1))
	}
	lp, err := sweep.AllCombinations(
		sweep.Choose("experiment", sweep.Experiment("bump", "")),
		sweep.Choose("ode", sweep.ODE("SSP3", 0)),
		sweep.Choose("grid", opts...),
	)
	require.NoError(t, err)
	return sweep.Schemes(lp, nil)
}

func readConfig(t *testing.T, path string) map[string]map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var cfg map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &cfg))
	return cfg
}

func TestLaunch_PreparesRunDirectory(t *testing.T) {
	f := newFixture(t, map[string]int{"grids/g1.msh.h5": 1000, "grids/coarse.msh.h5": 10})
	s := bumpSweep(t, "grids/g1.msh.h5")[0]
	doc := s.Document().Set(sweep.KindReference, sweep.Reference("isentropic", []string{"grids/coarse.msh.h5"}))
	s = sweep.NewScheme(doc, nil)

	job, err := f.launcher.Launch(context.Background(), s)
	require.NoError(t, err)

	dir := filepath.Join(f.output, "bump_SSP3_L1")
	assert.Equal(t, dir, job.Dir)
	for _, want := range []string{"zisa", ConfigFile, "grids/g1.msh.h5", "grids/coarse.msh.h5", queue.JobRecordFile} {
		_, err := os.Stat(filepath.Join(dir, want))
		assert.NoError(t, err, "missing %s", want)
	}

	info, err := os.Stat(filepath.Join(dir, "zisa"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o100, "solver copy must stay executable")

	want := []string{filepath.Join(dir, "zisa"), "run", "--config", filepath.Join(dir, ConfigFile)}
	if diff := cmp.Diff(want, f.runner.Last(t).Argv); diff != "" {
		t.Errorf("command mismatch (-want +got):\n%s", diff)
	}

	cfg := readConfig(t, filepath.Join(dir, ConfigFile))
	assert.Equal(t, "grids/g1.msh.h5", cfg["grid"]["file"])
	assert.Equal(t, "bump", cfg["experiment"]["name"])
}

func TestLaunch_ExistingDirectory(t *testing.T) {
	f := newFixture(t, map[string]int{"grids/g1.msh.h5": 1000})
	s := bumpSweep(t, "grids/g1.msh.h5")[0]
	ctx := context.Background()

	_, err := f.launcher.Launch(ctx, s)
	require.NoError(t, err)
	dir := filepath.Join(f.output, "bump_SSP3_L1")
	result := filepath.Join(dir, "bump_data-0000.h5")
	require.NoError(t, os.WriteFile(result, []byte("snapshot"), 0o644))

	// without force: refuse, keep prior results
	_, err = f.launcher.Launch(ctx, s)
	require.ErrorIs(t, err, ErrOutputExists)
	assert.Contains(t, err.Error(), "bump_SSP3_L1")
	_, err = os.Stat(result)
	assert.NoError(t, err, "prior results must survive")
	assert.Len(t, f.runner.Calls, 1)

	// with force: remove and recreate
	f.launcher.Force = true
	_, err = f.launcher.Launch(ctx, s)
	require.NoError(t, err)
	_, err = os.Stat(result)
	assert.True(t, os.IsNotExist(err), "force must remove the old directory")
	_, err = os.Stat(filepath.Join(dir, ConfigFile))
	assert.NoError(t, err)
	assert.Len(t, f.runner.Calls, 2)
}

func TestLaunch_SubmissionFailureNamesFolder(t *testing.T) {
	f := newFixture(t, map[string]int{"grids/g1.msh.h5": 1000})
	f.runner.Err = errors.New("mpirun: not found")

	_, err := f.launcher.Launch(context.Background(), bumpSweep(t, "grids/g1.msh.h5")[0])
	require.ErrorIs(t, err, queue.ErrSubmission)
	assert.Contains(t, err.Error(), "bump_SSP3_L1")
}

func TestPlanner_Plan(t *testing.T) {
	f := newFixture(t, map[string]int{"grids/fine.msh.h5": 20480, "grids/coarse.msh.h5": 1000})
	profile := hosts.Profile{Name: "test", BatchSystem: hosts.BatchLSF, CoresPerNode: 12, MaxNodes: 20, WorkPerCore: 2.0}
	est := estimate.NewLinear(estimate.Reference{NCells: 1000, Runtime: 10 * time.Hour, Memory: 12e9, Overhead: 1e8},
		grid.FileReader{Root: f.home})
	p := &Planner{Estimator: est, Profile: profile, MinWallClock: 8 * time.Hour, MaxWallClock: 24 * time.Hour}

	schemes := bumpSweep(t, "grids/fine.msh.h5", "grids/coarse.msh.h5")

	t.Run("tasks rounded to nodes", func(t *testing.T) {
		plan, err := p.Plan(schemes[0])
		require.NoError(t, err)
		assert.Equal(t, "bump_SSP3_L1", plan.Folder)
		assert.Equal(t, "bump", plan.Resources.JobName)
		assert.Equal(t, 20.0, plan.Work)
		require.NotNil(t, plan.Resources.MPITasks)
		assert.Equal(t, 12, *plan.Resources.MPITasks)
		require.NotNil(t, plan.Resources.WallClock)
		testutil.AssertDurationNear(t, time.Duration(204.8*float64(time.Hour)/12), *plan.Resources.WallClock, time.Second)
	})

	t.Run("short runs are raised to the minimum", func(t *testing.T) {
		plan, err := p.Plan(schemes[1])
		require.NoError(t, err)
		assert.Equal(t, 2, *plan.Resources.MPITasks)
		assert.Equal(t, 8*time.Hour, *plan.Resources.WallClock)
		require.NotNil(t, plan.Resources.MemoryPerCore)
		testutil.AssertFloat64Equal(t, "memory per core", (1e8+12e9/2)*DefaultMemorySafety, *plan.Resources.MemoryPerCore, 1e-12)
	})

	t.Run("long runs are refused", func(t *testing.T) {
		tight := *p
		tight.MaxWallClock = 12 * time.Hour
		_, err := tight.Plan(schemes[0])
		require.ErrorIs(t, err, ErrWallClockExceeded)
		assert.Contains(t, err.Error(), "bump_SSP3_L1")
	})

	t.Run("hybrid divides by all cores", func(t *testing.T) {
		hybrid := *p
		hybrid.OMPThreads = 4
		hybrid.MinWallClock = 0
		hybrid.MaxWallClock = 0
		plan, err := hybrid.Plan(schemes[0])
		require.NoError(t, err)
		// work 20 over 4-thread ranks of 2 work units per core
		assert.Equal(t, 2, *plan.Resources.MPITasks)
		assert.Equal(t, 2, plan.Nodes)
		assert.Equal(t, 8, plan.Resources.Cores())
		testutil.AssertDurationNear(t, time.Duration(204.8*float64(time.Hour)/8), *plan.Resources.WallClock, time.Second)
		perRank := 20.48*1e8 + 20.48*12e9/2
		testutil.AssertFloat64Equal(t, "memory per core", perRank/4*DefaultMemorySafety, *plan.Resources.MemoryPerCore, 1e-12)
	})

	t.Run("threads wider than a node are refused", func(t *testing.T) {
		wide := *p
		wide.OMPThreads = 16
		_, err := wide.Plan(schemes[0])
		require.ErrorIs(t, err, hosts.ErrTooManyThreads)
		assert.Contains(t, err.Error(), "bump_SSP3_L1")
	})

	t.Run("missing grid metadata propagates", func(t *testing.T) {
		_, err := p.Plan(bumpSweep(t, "grids/none.msh.h5")[0])
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestPlanner_HybridStaysWithinHostBudget(t *testing.T) {
	f := newFixture(t, map[string]int{"grids/huge.msh.h5": 1 << 20})
	euler, err := hosts.DefaultRegistry(8).Lookup("euler")
	require.NoError(t, err)
	est := estimate.NewLinear(estimate.Reference{NCells: 1000, Runtime: time.Hour, Memory: 1e9, Overhead: 1e8},
		grid.FileReader{Root: f.home})
	p := &Planner{Estimator: est, Profile: euler, OMPThreads: 8}

	// GIVEN far more work than the host can take
	plan, err := p.Plan(bumpSweep(t, "grids/huge.msh.h5")[0])
	require.NoError(t, err)

	// THEN one rank per node on every node, within the core budget
	assert.Equal(t, euler.MaxNodes, *plan.Resources.MPITasks)
	assert.Equal(t, euler.MaxNodes, plan.Nodes)
	assert.LessOrEqual(t, plan.Resources.Cores(), euler.MaxCores())

	// AND the batch request asks for exactly those cores
	inv, err := (&queue.LSF{}).Wrap("", []string{"./zisa"}, plan.Resources)
	require.NoError(t, err)
	assert.Equal(t, "160", inv.Argv[indexOf(inv.Argv, "-n")+1])
	assert.Contains(t, inv.String(), "mpirun -n 20 --map-by ppr:1:node:pe=8")
}

func indexOf(argv []string, flag string) int {
	for i, a := range argv {
		if a == flag {
			return i
		}
	}
	return -1
}

func TestPlanner_NoEstimator(t *testing.T) {
	plan, err := (&Planner{}).Plan(bumpSweep(t, "g")[0])
	require.NoError(t, err)
	assert.Equal(t, queue.ModeSerial, plan.Resources.Mode())
	assert.Nil(t, plan.Resources.WallClock)
}

func TestRestart(t *testing.T) {
	f := newFixture(t, map[string]int{"grids/g1.msh.h5": 1000})
	s := bumpSweep(t, "grids/g1.msh.h5")[0]
	ctx := context.Background()
	dir := filepath.Join(f.output, "bump_SSP3_L1")

	_, err := f.launcher.Launch(ctx, s)
	require.NoError(t, err)

	_, err = f.launcher.Restart(ctx, s, -1)
	require.ErrorIs(t, err, ErrNoDataFiles)

	for _, name := range []string{"bump_data-0001.h5", "bump_data-0000.h5", "bump_data-0002.h5", RestartGrid} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	_, err = f.launcher.Restart(ctx, s, -1)
	require.NoError(t, err)
	cfg := readConfig(t, filepath.Join(dir, ConfigFile))
	assert.Equal(t, "bump_data-0002.h5", cfg["restart"]["file"])
	assert.Equal(t, RestartGrid, cfg["grid"]["file"])

	_, err = f.launcher.Restart(ctx, s, 0)
	require.NoError(t, err)
	cfg = readConfig(t, filepath.Join(dir, ConfigFile))
	assert.Equal(t, "bump_data-0000.h5", cfg["restart"]["file"])

	_, err = f.launcher.Restart(ctx, s, 3)
	assert.ErrorContains(t, err, "out of range")
}

func TestDispatcher_Run(t *testing.T) {
	f := newFixture(t, map[string]int{"grids/g1.msh.h5": 1, "grids/g2.msh.h5": 1, "grids/g3.msh.h5": 1})
	schemes := bumpSweep(t, "grids/g1.msh.h5", "grids/g2.msh.h5", "grids/g3.msh.h5")
	d := &Dispatcher{Launcher: f.launcher}

	report, err := d.Run(context.Background(), schemes)
	require.NoError(t, err)
	require.Len(t, report.Submitted, 3)
	assert.Equal(t, filepath.Join(f.output, "bump_SSP3_L1"), report.Submitted[0].Dir, "enumeration order")
	assert.Equal(t, filepath.Join(f.output, "bump_SSP3_L3"), report.Submitted[2].Dir)

	// a rerun without skipping fails on the first existing directory
	_, err = d.Run(context.Background(), schemes)
	var sweepErr *SweepError
	require.ErrorAs(t, err, &sweepErr)
	assert.Equal(t, "bump_SSP3_L1", sweepErr.Folder)
	assert.Equal(t, []string{"bump_SSP3_L2", "bump_SSP3_L3"}, sweepErr.Remaining)
	assert.ErrorIs(t, err, ErrOutputExists)

	d.SkipExisting = true
	report, err = d.Run(context.Background(), schemes)
	require.NoError(t, err)
	assert.Empty(t, report.Submitted)
	assert.Equal(t, []string{"bump_SSP3_L1", "bump_SSP3_L2", "bump_SSP3_L3"}, report.Skipped)
}

func TestDispatcher_StopsAtFirstFailure(t *testing.T) {
	f := newFixture(t, map[string]int{"grids/g1.msh.h5": 1, "grids/g3.msh.h5": 1})
	schemes := bumpSweep(t, "grids/g1.msh.h5", "grids/g2.msh.h5", "grids/g3.msh.h5")
	d := &Dispatcher{Launcher: f.launcher}

	report, err := d.Run(context.Background(), schemes)
	var sweepErr *SweepError
	require.ErrorAs(t, err, &sweepErr)
	assert.Equal(t, "bump_SSP3_L2", sweepErr.Folder)
	assert.Equal(t, []string{"bump_SSP3_L3"}, sweepErr.Remaining)
	assert.Len(t, report.Submitted, 1)
	assert.Len(t, f.runner.Calls, 1)
}

func TestDispatcher_RejectsCollisions(t *testing.T) {
	f := newFixture(t, nil)
	lp, err := sweep.AllCombinations(
		sweep.Choose("experiment",
			sweep.Experiment("bump", "", sweep.F("amplitude", 0.1)),
			sweep.Experiment("bump", "", sweep.F("amplitude", 0.2))),
		sweep.Choose("grid", sweep.Grid("grids/g1.msh.h5", 1)),
	)
	require.NoError(t, err)

	_, err = (&Dispatcher{Launcher: f.launcher}).Run(context.Background(), sweep.Schemes(lp, nil))
	require.ErrorIs(t, err, sweep.ErrFolderCollision)
	assert.Empty(t, f.runner.Calls)
	_, err = os.Stat(f.output)
	assert.True(t, os.IsNotExist(err), "nothing may be written")
}

func TestDispatcher_DryRun(t *testing.T) {
	f := newFixture(t, nil)
	f.launcher.Queue = &queue.LSF{Runner: f.runner}
	d := &Dispatcher{Launcher: f.launcher, DryRun: true}

	report, err := d.Run(context.Background(), bumpSweep(t, "grids/g1.msh.h5", "grids/g2.msh.h5"))
	require.NoError(t, err)
	require.Len(t, report.DryRun, 2)
	assert.Equal(t, "bsub", report.DryRun[0].Argv[0])
	assert.Contains(t, report.DryRun[0].Argv, "bump")
	assert.Empty(t, f.runner.Calls)
	_, err = os.Stat(f.output)
	assert.True(t, os.IsNotExist(err))
}

func TestTodaysScratch(t *testing.T) {
	scratch := t.TempDir()

	dir, err := TodaysScratch(scratch, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(scratch, "2026-03-01"), dir)

	dir, err = TodaysScratch(scratch, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	target, err := os.Readlink(filepath.Join(scratch, "latest"))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", target)
	_, err = os.Stat(filepath.Join(scratch, "2026-03-01"))
	assert.NoError(t, err, "older days are kept")
	assert.DirExists(t, dir)
}
