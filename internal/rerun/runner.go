package rerun

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"syscall"
	"time"

	"github.com/psantana5/puppet-rerun/internal/logging"
	"github.com/psantana5/puppet-rerun/internal/timer"
	"github.com/psantana5/puppet-rerun/internal/watch"
)

// Runner executes the detached side of a rerun: wait for the parent to die,
// wait for the agent lock, enforce the delta gate, check the lock once more,
// then replace this process with a fresh agent run.
type Runner struct {
	cont *Continuation
	log  *logging.Logger

	// Probes and terminal actions, replaceable in tests.
	alive    func(pid int) bool
	locked   func(path string) bool
	now      func() time.Time
	sleep    func(time.Duration)
	lookPath func(file string) (string, error)
	execve   func(argv0 string, argv []string, env []string) error
}

// NewRunner wires a runner against the real system.
func NewRunner(cont *Continuation, log *logging.Logger) *Runner {
	return &Runner{
		cont:     cont,
		log:      log,
		alive:    watch.Alive,
		locked:   watch.Locked,
		now:      time.Now,
		sleep:    time.Sleep,
		lookPath: exec.LookPath,
		execve:   syscall.Exec,
	}
}

// Run blocks until the hand-off conditions hold, then execs. On success it
// never returns: the process image has been replaced. Any returned error is
// fatal for the continuation.
//
// The lock is checked twice: once to avoid racing the parent's own run, and
// again after the delta gate, since arbitrary time may have passed. Both
// checks are best effort. If another run grabs the lock between the final
// check and the exec, the fresh agent sees the lock and exits on its own,
// which still leaves the host converged.
func (r *Runner) Run(ctx context.Context) error {
	cfg := r.cont.Config.withDefaults()
	mode := r.cont.Mode

	gate := timer.Gate{
		Delta: cfg.Delta,
		Start: r.cont.LaunchedAt,
		Now:   r.now,
		Sleep: r.sleep,
	}

	if !mode.IsService {
		r.log.Info("waiting for parent to exit", map[string]interface{}{
			"parent_pid": r.cont.Snapshot.ParentPID,
		})
		err := watch.Until(ctx, cfg.PollInterval, func() bool {
			return !r.alive(r.cont.Snapshot.ParentPID)
		})
		if err != nil {
			return err
		}
		if !cfg.StartTimerNow {
			gate.Reset()
		}
	}

	r.log.Info("waiting for agent lock", map[string]interface{}{"lockfile": cfg.Lockfile})
	if err := r.waitUnlocked(ctx, cfg); err != nil {
		return err
	}
	if mode.IsService && !cfg.StartTimerNow {
		gate.Reset()
	}

	if cfg.SettleDelay > 0 {
		r.sleep(cfg.SettleDelay)
	}
	if cfg.Delta > 0 {
		r.log.Info("enforcing minimum delay", map[string]interface{}{
			"delta": cfg.Delta.String(),
			"since": gate.Start.Format(time.RFC3339),
		})
	}
	gate.Wait()

	// The delta gate may have slept for a long time; re-check the lock.
	if err := r.waitUnlocked(ctx, cfg); err != nil {
		return err
	}

	return r.exec()
}

func (r *Runner) waitUnlocked(ctx context.Context, cfg Config) error {
	return watch.Until(ctx, cfg.PollInterval, func() bool {
		return !r.locked(cfg.Lockfile)
	})
}

// exec is terminal: either the process image is replaced and no further
// code runs, or it fails and the continuation dies with it. There is no
// fallback binary.
func (r *Runner) exec() error {
	argv := r.cont.Mode.Argv
	if len(argv) == 0 {
		return errors.New("empty argv, nothing to exec")
	}

	path, err := r.lookPath(argv[0])
	if err != nil {
		return fmt.Errorf("resolve %q: %w", argv[0], err)
	}

	r.log.Info("handing off", map[string]interface{}{"path": path, "argv": argv})

	if err := r.execve(path, argv, EnvSlice(r.cont.Snapshot.Env)); err != nil {
		return fmt.Errorf("exec %s: %w", path, err)
	}
	return nil
}

// EnvSlice flattens a captured environment into the NAME=VALUE form execve
// expects, in deterministic order.
func EnvSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for name, value := range env {
		out = append(out, name+"="+value)
	}
	sort.Strings(out)
	return out
}
