package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psantana5/puppet-rerun/internal/classify"
	"github.com/psantana5/puppet-rerun/internal/logging"
	"github.com/psantana5/puppet-rerun/internal/rerun"
	"github.com/psantana5/puppet-rerun/internal/snapshot"
)

var (
	cfgFile       string
	logLevel      string
	lockfilePath  string
	binaryPath    string
	pollInterval  time.Duration
	deltaSeconds  int
	settleDelay   time.Duration
	startTimerNow bool
	parentPID     int
)

// rootCmd is the supervisor path: capture the calling agent's invocation
// while it is still alive, classify it, detach the continuation, report its
// pid and return. It must come back quickly so the notifying agent run is
// never blocked on us.
var rootCmd = &cobra.Command{
	Use:   "puppet-rerun",
	Short: "Re-run the calling puppet agent after its current run finishes",
	Long: `puppet-rerun is meant to be invoked from an exec resource inside a running
puppet agent. It captures the agent's original command line and environment,
detaches from the agent, waits until the agent run lock is free (and, for
one-shot parents, until the parent has exited), then replaces itself with a
fresh one-shot agent run.

The re-run is fire and forget: the notifying agent only learns whether the
detach succeeded, never what happened afterwards.`,
	SilenceUsage: true,
	RunE:         runSupervisor,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default /etc/puppet-rerun/config.yaml, then $HOME/.puppet-rerun/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&lockfilePath, "lockfile", "", "agent run lock marker (default "+rerun.DefaultLockfile+")")
	rootCmd.PersistentFlags().StringVar(&binaryPath, "binary", "", "puppet binary for rewritten service invocations (default "+classify.DefaultBinary+")")
	rootCmd.PersistentFlags().DurationVar(&pollInterval, "poll-interval", 0, "polling interval for liveness and lock checks (default 1s)")

	rootCmd.Flags().IntVar(&deltaSeconds, "delta", 0, "minimum seconds before the re-run may start")
	rootCmd.Flags().BoolVar(&startTimerNow, "start-timer-now", false, "measure --delta from launch instead of from readiness")
	rootCmd.Flags().DurationVar(&settleDelay, "settle-delay", 0, "fixed one-time delay applied before the --delta gate")
	rootCmd.Flags().IntVar(&parentPID, "parent", 0, "capture this pid instead of the actual parent (debugging)")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("/etc/puppet-rerun")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".puppet-rerun"))
		}
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("puppet_rerun")
	viper.AutomaticEnv()
	viper.BindEnv("lockfile", "PUPPET_RERUN_LOCKFILE")
	viper.BindEnv("binary", "PUPPET_RERUN_BINARY")
	viper.BindEnv("poll_interval", "PUPPET_RERUN_POLL_INTERVAL")

	// Missing config file is fine; everything has a flag or default.
	viper.ReadInConfig()
}

// activeConfig merges flags over config file and env values. Flags win.
func activeConfig() rerun.Config {
	cfg := rerun.Config{
		Lockfile:      viper.GetString("lockfile"),
		Binary:        viper.GetString("binary"),
		PollInterval:  viper.GetDuration("poll_interval"),
		SettleDelay:   viper.GetDuration("settle_delay"),
		Delta:         time.Duration(deltaSeconds) * time.Second,
		StartTimerNow: startTimerNow,
	}
	if lockfilePath != "" {
		cfg.Lockfile = lockfilePath
	}
	if binaryPath != "" {
		cfg.Binary = binaryPath
	}
	if pollInterval > 0 {
		cfg.PollInterval = pollInterval
	}
	if settleDelay > 0 {
		cfg.SettleDelay = settleDelay
	}
	return cfg
}

func runSupervisor(cmd *cobra.Command, args []string) error {
	launched := time.Now()
	log := logging.New(os.Stderr, logging.ParseLevel(logLevel), false)

	// Capture before anything else: the parent may exit at any moment and
	// take its /proc entries with it.
	ppid := parentPID
	if ppid == 0 {
		ppid = os.Getppid()
	}
	snap, err := snapshot.Capture(ppid)
	if err != nil {
		return err
	}
	log.Debug("captured parent", map[string]interface{}{
		"pid":  snap.ParentPID,
		"comm": snap.Comm,
		"argv": snap.Argv,
	})

	cfg := activeConfig()
	mode := classify.Classify(snap.Argv, cfg.Binary)

	if classify.IsNoop(mode.Argv) {
		log.Info("parent is a --noop run, not re-running", map[string]interface{}{
			"pid": snap.ParentPID,
		})
		return nil
	}

	cont := &rerun.Continuation{
		Snapshot:   *snap,
		Mode:       mode,
		Config:     cfg,
		LaunchedAt: launched,
	}
	pid, err := rerun.Detach(cont)
	if err != nil {
		return fmt.Errorf("detach: %w", err)
	}

	fmt.Printf("puppet-rerun: continuation running as pid %d\n", pid)
	return nil
}
