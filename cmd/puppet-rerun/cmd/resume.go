package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/psantana5/puppet-rerun/internal/logging"
	"github.com/psantana5/puppet-rerun/internal/rerun"
)

// resumeCmd is the detached continuation. It is spawned by the supervisor
// with the continuation payload on stdin and is never invoked by operators.
var resumeCmd = &cobra.Command{
	Use:    "resume",
	Hidden: true,
	Short:  "Run the detached continuation (internal)",
	Args:   cobra.NoArgs,
	RunE:   runResume,
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	cont, err := rerun.ReadContinuation(os.Stdin)
	if err != nil {
		return err
	}

	// Stdio is detached; a log file is the only trace this process leaves.
	log, err := logging.NewFile("resume", logging.ParseLevel(logLevel), true)
	if err != nil {
		log = logging.New(os.Stderr, logging.ParseLevel(logLevel), false)
	}
	defer log.Close()
	log = log.WithField("parent_pid", cont.Snapshot.ParentPID)

	// The wait loops have no timeout; a signal is the only way to stop
	// them short of the conditions holding.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := rerun.NewRunner(cont, log).Run(ctx); err != nil {
		log.Error("continuation failed", map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("continuation: %w", err)
	}
	return nil
}
