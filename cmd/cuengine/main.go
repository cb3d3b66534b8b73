// Command cuengine is the A7 CLI: it loads the INI configuration,
// dispatches a one-shot cycle or a cron-scheduled daemon loop, and
// detects when it is running as a self-update helper rather than the
// producer engine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/halvorsen/cuengine/internal/config"
	"github.com/halvorsen/cuengine/internal/logging"
	"github.com/halvorsen/cuengine/internal/report"
	"github.com/halvorsen/cuengine/internal/scheduler"
	"github.com/halvorsen/cuengine/internal/selfupdate"
	"github.com/halvorsen/cuengine/internal/storage"
)

var (
	configPath  string
	dryRunFlag  bool
	daemonFlag  bool
	clearLogs   bool
	showVersion bool
	logLevel    string
	filterArgs  []string
)

var rootCmd = &cobra.Command{
	Use:   "cuengine",
	Short: "Rule-driven container image updater",
	Long: `cuengine watches the containers on a Docker host, classifies
the tags available for each against its current version, and
recreates containers whose candidate update is authorized by a named
policy rule.`,
	SilenceUsage: true,
	RunE:         runRoot,
}

func init() {
	rootCmd.Flags().BoolVarP(&dryRunFlag, "dry-run", "t", false, "log intended actions without pulling, recreating, or pruning")
	rootCmd.Flags().BoolVarP(&daemonFlag, "daemon", "d", false, "run continuously on the configured cron schedule instead of once")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "print the engine version and exit")
	rootCmd.Flags().BoolVarP(&clearLogs, "clear-logs", "c", false, "clear stored run-report and diagnostic history, then exit")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "override the configured log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&configPath, "config", "/config/cuengine.ini", "path to the INI configuration file")
	rootCmd.Flags().StringArrayVar(&filterArgs, "filter", nil, "key=value container filter (name, status); repeatable")
	// --run is accepted for parity with the scheduler's subprocess
	// invocation and for operators scripting an explicit one-shot call,
	// but a bare invocation with no other mode flag already runs once.
	rootCmd.Flags().BoolP("run", "r", false, "run a single cycle now (the default when no other mode is given)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	if showVersion {
		fmt.Println(report.EngineVersion)
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	log := logging.New(level)

	if clearLogs {
		store, err := storage.Open(cfg.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("opening storage to clear history: %w", err)
		}
		defer store.Close()
		if err := store.ClearAll(); err != nil {
			return fmt.Errorf("clearing history: %w", err)
		}
		log.Info("cleared run-report and diagnostic history")
		return nil
	}

	identity := selfupdate.Detect()
	dryRun := dryRunFlag || cfg.General.DryRun

	// A self-update helper never daemonizes and never consults
	// --dry-run: it exists to perform exactly the one recreate it was
	// spawned for.
	if identity.IsHelper {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return runHelperCycle(ctx, cfg, identity, log)
	}

	filters, warnings := parseFilters(filterArgs)
	for _, w := range warnings {
		log.Warn(w)
	}

	if daemonFlag {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		extra := subprocessArgs(dryRunFlag, logLevel, filterArgs)
		sched, err := scheduler.New(cfg.General.CronSchedule, scheduler.SubprocessRunner(extra...), log)
		if err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		log.Info("daemon mode started", "schedule", cfg.General.CronSchedule)
		return sched.Run(ctx)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return runOnce(ctx, cfg, filters, dryRun, log)
}

// subprocessArgs reconstructs the flag list the scheduler's subprocess
// runner re-invokes this same binary with, so a daemon's scheduled
// cycles see the same dry-run/log-level/filter flags the daemon itself
// was started with.
func subprocessArgs(dryRun bool, logLevel string, filters []string) []string {
	var args []string
	if dryRun {
		args = append(args, "--dry-run")
	}
	if logLevel != "" {
		args = append(args, "--log-level", logLevel)
	}
	for _, f := range filters {
		args = append(args, "--filter", f)
	}
	args = append(args, "--config", configPath)
	return args
}
