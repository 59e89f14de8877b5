// Package watch observes the two external conditions a rerun waits on: the
// parent process's exit and the agent run lock. Both are polled. The OS has
// no portable "tell me when this pid dies" or "tell me when this file goes
// away" primitive for processes and files we don't own, so polling is the
// design, not a shortcut.
package watch

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"
)

// DefaultInterval is the polling interval used when none is configured.
const DefaultInterval = time.Second

// Alive probes pid with signal 0. ESRCH means the process is gone; every
// other outcome, EPERM included, proves the process-table entry exists and
// counts as alive.
func Alive(pid int) bool {
	return aliveFromProbe(syscall.Kill(pid, syscall.Signal(0)))
}

func aliveFromProbe(err error) bool {
	if err == nil {
		return true
	}
	return !errors.Is(err, syscall.ESRCH)
}

// Locked reports whether the agent run lock marker is present. The marker
// belongs to the agent; it is only ever observed here, never created or
// removed. The answer is stale the moment it is returned.
func Locked(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Until polls cond at the given interval until it reports true. There is no
// timeout: the loop runs until the condition holds or ctx is cancelled.
func Until(ctx context.Context, interval time.Duration, cond func() bool) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if cond() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
