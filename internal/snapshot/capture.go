package snapshot

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ErrProcessGone means the parent's process-table entry vanished before it
// could be captured. There is no retry: the data is gone with the process.
var ErrProcessGone = errors.New("process gone")

// Capture reads the argv and environment of a live process. It must run as
// early as possible after startup: the caller's parent is expected to exit
// soon, and the race between notification and capture cannot be closed,
// only narrowed.
func Capture(pid int) (*Snapshot, error) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, fmt.Errorf("pid %d: %v: %w", pid, err, ErrProcessGone)
	}

	argvRaw, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil {
		return nil, fmt.Errorf("cmdline of pid %d: %v: %w", pid, err, ErrProcessGone)
	}
	envRaw, err := os.ReadFile(fmt.Sprintf("/proc/%d/environ", pid))
	if err != nil {
		return nil, fmt.Errorf("environ of pid %d: %v: %w", pid, err, ErrProcessGone)
	}

	snap := &Snapshot{
		Argv:      SplitNullBuffer(argvRaw),
		Env:       MergeEnviron(SplitNullBuffer(envRaw)),
		ParentPID: pid,
		SelfPID:   os.Getpid(),
	}

	// Best effort: the snapshot is complete without these.
	if comm, err := proc.Name(); err == nil {
		snap.Comm = comm
	}
	if ms, err := proc.CreateTime(); err == nil {
		snap.StartedAt = time.UnixMilli(ms)
	}

	return snap, nil
}
