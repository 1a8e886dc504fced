package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hpcsweep/hpcsweep/sweep"
	"github.com/hpcsweep/hpcsweep/sweep/launch"
)

// planCmd prints the resources every run of the sweep would request
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print folder names and resource estimates of a sweep",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		env, err := loadEnvironment()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		schemes := env.sweep.Schemes(nil, withReference, referenceOnly)
		if err := sweep.CheckUniqueFolders(schemes); err != nil {
			logrus.Fatalf("%v", err)
		}
		planner := env.sweep.Planner(env.profile, env.grids)
		plans := make([]launch.Plan, 0, len(schemes))
		for _, s := range schemes {
			p, err := planner.Plan(s)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
			plans = append(plans, p)
		}
		if err := writePlans(cmd.OutOrStdout(), plans); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

// runCmd creates a run directory per scheme and submits it
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch every run of a sweep",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		env, err := loadEnvironment()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		output := filepath.Join(scratchDir, "dry-run")
		if !dryRun {
			if output, err = outputRoot(scratchDir, time.Now()); err != nil {
				logrus.Fatalf("%v", err)
			}
		}
		launcher, err := env.newLauncher(output, nil)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		d := &launch.Dispatcher{Launcher: launcher, SkipExisting: skipExisting, DryRun: dryRun}
		report, err := d.Run(context.Background(), env.sweep.Schemes(nil, withReference, referenceOnly))
		for _, inv := range report.DryRun {
			fmt.Fprintln(cmd.OutOrStdout(), inv.String())
		}
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Infof("Submitted %d runs to %s, skipped %d.", len(report.Submitted), output, len(report.Skipped))
	},
}

// restartCmd resumes every run of a sweep from a snapshot
var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Resume the runs of a sweep from a snapshot",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		env, err := loadEnvironment()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		output := runsDir
		if output == "" {
			if scratchDir == "" {
				logrus.Fatalf("no run directory: pass --dir or --scratch")
			}
			output = filepath.Join(scratchDir, "latest")
		}
		launcher, err := env.newLauncher(output, nil)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		d := &launch.Dispatcher{Launcher: launcher}
		report, err := d.Restart(context.Background(), env.sweep.Schemes(nil, withReference, referenceOnly), restartFrom)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Infof("Restarted %d runs in %s.", len(report.Submitted), output)
	},
}

// hostsCmd prints the host profiles
var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "Print the host profiles",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		reg, err := loadRegistry(hostsFile)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		profiles := reg.Profiles()
		if hostName != "" {
			p, err := reg.Lookup(hostName)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
			profiles = profiles[:0]
			profiles = append(profiles, p)
		}
		if err := writeHosts(cmd.OutOrStdout(), profiles); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}
