package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// CLI flags shared by the sweep commands
	sweepPath     string // Sweep definition (YAML)
	hostName      string // Host profile; detected from the host name when empty
	hostsFile     string // Host table overriding the built-in profiles
	homeDir       string // Directory holding the solver build and the grids
	scratchDir    string // Parent of the dated output directories
	logLevel      string // Log verbosity level
	withReference bool   // Also launch the reference runs
	referenceOnly bool   // Launch only the reference runs

	// CLI flags for run
	force        bool // Remove existing run directories
	skipExisting bool // Skip runs whose directory exists
	dryRun       bool // Print the submissions instead of performing them

	// CLI flags for restart
	restartFrom int    // Snapshot index to resume from, negative counts from the end
	runsDir     string // Output directory of the sweep to restart
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "hpcsweep",
	Short: "Expand parameter sweeps and submit them to HPC batch systems",
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogging applies --log.
func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

func addSweepFlags(c *cobra.Command) {
	c.Flags().StringVar(&sweepPath, "sweep", "sweep.yaml", "Sweep definition file")
	c.Flags().StringVar(&hostName, "host", "", "Host profile (default: detected from the host name)")
	c.Flags().StringVar(&hostsFile, "hosts-file", "", "YAML host table merged into the built-in profiles")
	c.Flags().StringVar(&homeDir, "home", ".", "Directory holding the solver build and the grids")
	c.Flags().StringVar(&scratchDir, "scratch", os.Getenv("SCRATCH"), "Parent of the dated output directories")
	c.Flags().BoolVar(&withReference, "reference", false, "Also launch the reference runs")
	c.Flags().BoolVar(&referenceOnly, "reference-only", false, "Launch only the reference runs")
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	addSweepFlags(planCmd)
	addSweepFlags(runCmd)
	addSweepFlags(restartCmd)

	runCmd.Flags().BoolVar(&force, "force", false, "Remove existing run directories")
	runCmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "Skip runs whose directory already exists")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the batch commands without creating directories")
	runCmd.MarkFlagsMutuallyExclusive("force", "skip-existing")
	runCmd.MarkFlagsMutuallyExclusive("reference", "reference-only")

	restartCmd.Flags().IntVar(&restartFrom, "restart-from", -1, "Snapshot index to resume from (negative counts from the end)")
	restartCmd.Flags().StringVar(&runsDir, "dir", "", "Output directory of the sweep (default: <scratch>/latest)")

	hostsCmd.Flags().StringVar(&hostsFile, "hosts-file", "", "YAML host table merged into the built-in profiles")
	hostsCmd.Flags().StringVar(&hostName, "host", "", "Print only this profile")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(hostsCmd)
}
