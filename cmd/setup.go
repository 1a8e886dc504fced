package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hpcsweep/hpcsweep/sweep/grid"
	"github.com/hpcsweep/hpcsweep/sweep/hosts"
	"github.com/hpcsweep/hpcsweep/sweep/launch"
	"github.com/hpcsweep/hpcsweep/sweep/queue"
	"github.com/hpcsweep/hpcsweep/sweep/sweepfile"
)

// DefaultBinary is the solver executable relative to --home.
const DefaultBinary = "build-release/zisa"

// loadRegistry returns the built-in host profiles, overridden by path if set.
func loadRegistry(path string) (*hosts.Registry, error) {
	reg := hosts.DefaultRegistry(runtime.NumCPU())
	if path == "" {
		return reg, nil
	}
	table, err := hosts.LoadTable(path)
	if err != nil {
		return nil, err
	}
	if err := reg.Merge(table); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// resolveProfile selects the profile named by host or, when empty, the one
// matching the machine's host name.
func resolveProfile(reg *hosts.Registry, host string, hostname func() (string, error)) (hosts.Profile, error) {
	if host == "" {
		h, err := hostname()
		if err != nil {
			return hosts.Profile{}, fmt.Errorf("reading host name: %w", err)
		}
		if host, err = hosts.DetectHost(h); err != nil {
			return hosts.Profile{}, fmt.Errorf("%w; pass --host", err)
		}
	}
	return reg.Lookup(host)
}

// environment is what every sweep command needs.
type environment struct {
	sweep   *sweepfile.Sweep
	profile hosts.Profile
	grids   grid.Reader
}

func loadEnvironment() (*environment, error) {
	sw, err := sweepfile.Load(sweepPath)
	if err != nil {
		return nil, err
	}
	reg, err := loadRegistry(hostsFile)
	if err != nil {
		return nil, err
	}
	profile, err := resolveProfile(reg, hostName, os.Hostname)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"host":  profile.Name,
		"batch": profile.BatchSystem,
	}).Debug("host profile")
	return &environment{sweep: sw, profile: profile, grids: grid.FileReader{Root: homeDir}}, nil
}

// newLauncher wires the queue of the profile and the planner of the sweep.
func (env *environment) newLauncher(output string, runner queue.Runner) (*launch.Launcher, error) {
	q, err := queue.New(env.profile, runner)
	if err != nil {
		return nil, err
	}
	binary := env.sweep.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	if !filepath.IsAbs(binary) {
		binary = filepath.Join(homeDir, binary)
	}
	return &launch.Launcher{
		Queue:   q,
		Planner: env.sweep.Planner(env.profile, env.grids),
		Binary:  binary,
		Home:    homeDir,
		Output:  output,
		Force:   force,
	}, nil
}

// outputRoot returns today's directory under scratch.
func outputRoot(scratch string, now time.Time) (string, error) {
	if scratch == "" {
		return "", fmt.Errorf("no scratch directory: set $SCRATCH or pass --scratch")
	}
	return launch.TodaysScratch(scratch, now)
}

// writePlans prints one line per plan.
func writePlans(w io.Writer, plans []launch.Plan) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FOLDER\tWORK\tCPU HOURS\tNODES\tTASKS\tTHREADS\tWALL-CLOCK\tMEM/CORE")
	for _, p := range plans {
		r := p.Resources
		nodes := "-"
		if p.Nodes > 0 {
			nodes = fmt.Sprint(p.Nodes)
		}
		fmt.Fprintf(tw, "%s\t%.1f\t%.1f\t%s\t%s\t%s\t%s\t%s\n",
			p.Folder, p.Work, p.CPUHours.Hours(), nodes,
			optional(r.MPITasks, func(n int) string { return fmt.Sprint(n) }),
			optional(r.OMPThreads, func(n int) string { return fmt.Sprint(n) }),
			optional(r.WallClock, func(d time.Duration) string { return queue.FormatDHHMMSS(d) }),
			optional(r.MemoryPerCore, func(b float64) string { return fmt.Sprintf("%.0fM", b/(1<<20)) }),
		)
	}
	return tw.Flush()
}

// writeHosts prints the host table.
func writeHosts(w io.Writer, profiles []hosts.Profile) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HOST\tBATCH\tCORES/NODE\tMAX NODES\tWORK/CORE\tMAX CORES")
	for _, p := range profiles {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.1f\t%d\n",
			p.Name, p.BatchSystem, p.CoresPerNode, p.MaxNodes, p.WorkPerCore, p.MaxCores())
	}
	return tw.Flush()
}

func optional[T any](v *T, format func(T) string) string {
	if v == nil {
		return "-"
	}
	return format(*v)
}
