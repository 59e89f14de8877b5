package rerun

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// resumeCommand is the hidden subcommand the detached process runs.
const resumeCommand = "resume"

// Detach re-executes this binary as a detached session leader running the
// resume command and feeds it the continuation over stdin. It returns the
// child's pid; the caller is expected to report it and exit immediately.
//
// Go cannot fork and continue in the child, so the split is a re-exec of
// our own binary with the already-computed state serialized across. The
// child calls setsid, so it survives the caller, the caller's parent, and
// the controlling terminal.
func Detach(cont *Continuation) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("resolve own binary: %w", err)
	}

	payload, err := json.Marshal(cont)
	if err != nil {
		return 0, fmt.Errorf("encode continuation: %w", err)
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return 0, fmt.Errorf("continuation pipe: %w", err)
	}
	defer pr.Close()

	cmd := exec.Command(exe, resumeCommand)
	cmd.Stdin = pr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		pw.Close()
		return 0, fmt.Errorf("spawn continuation: %w", err)
	}

	// Deliver the payload before returning: the supervisor exits right
	// after us, and an exec-managed copy goroutine would die with it.
	_, werr := pw.Write(payload)
	pw.Close()
	if werr != nil {
		return 0, fmt.Errorf("write continuation to pid %d: %w", cmd.Process.Pid, werr)
	}

	pid := cmd.Process.Pid

	// The child must outlive us; never wait on it.
	cmd.Process.Release()

	return pid, nil
}
