package rerun

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/psantana5/puppet-rerun/internal/classify"
	"github.com/psantana5/puppet-rerun/internal/logging"
	"github.com/psantana5/puppet-rerun/internal/snapshot"
)

func testLogger() *logging.Logger {
	return logging.New(io.Discard, logging.ERROR, false)
}

// recordedExec captures the terminal exec call instead of replacing the
// test process.
type recordedExec struct {
	path string
	argv []string
	env  []string
}

func (e *recordedExec) execve(argv0 string, argv []string, env []string) error {
	e.path = argv0
	e.argv = argv
	e.env = env
	return nil
}

func TestRunnerOneShotParent(t *testing.T) {
	argv := []string{"puppet", "agent", "--test"}
	cont := &Continuation{
		Snapshot: snapshot.Snapshot{
			Argv:      argv,
			Env:       map[string]string{"PATH": "/bin", "HOME": "/root"},
			ParentPID: 4242,
		},
		Mode:       classify.Classify(argv, ""),
		Config:     Config{Lockfile: "/nonexistent/lock", PollInterval: time.Millisecond},
		LaunchedAt: time.Now(),
	}
	if cont.Mode.IsService {
		t.Fatal("--test parent should not classify as service")
	}

	r := NewRunner(cont, testLogger())

	var probedPID int
	aliveCalls := 0
	r.alive = func(pid int) bool {
		probedPID = pid
		aliveCalls++
		return aliveCalls < 3 // parent exits on the third probe
	}
	lockedCalls := 0
	r.locked = func(string) bool {
		lockedCalls++
		return lockedCalls == 1 // locked once, then free
	}
	r.lookPath = func(file string) (string, error) {
		if file != "puppet" {
			t.Errorf("resolving %q, want %q", file, "puppet")
		}
		return "/usr/bin/puppet", nil
	}
	exec := &recordedExec{}
	r.execve = exec.execve

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if probedPID != 4242 {
		t.Errorf("probed pid %d, want 4242", probedPID)
	}
	if aliveCalls < 3 {
		t.Errorf("liveness probed %d times, want at least 3", aliveCalls)
	}
	if lockedCalls < 2 {
		t.Errorf("lock checked %d times, want at least 2 (before and after the delta gate)", lockedCalls)
	}
	if exec.path != "/usr/bin/puppet" {
		t.Errorf("exec path = %q, want /usr/bin/puppet", exec.path)
	}
	if !reflect.DeepEqual(exec.argv, argv) {
		t.Errorf("exec argv = %q, want %q unchanged", exec.argv, argv)
	}
	wantEnv := []string{"HOME=/root", "PATH=/bin"}
	if !reflect.DeepEqual(exec.env, wantEnv) {
		t.Errorf("exec env = %q, want %q", exec.env, wantEnv)
	}
}

func TestRunnerServiceParentSkipsLiveness(t *testing.T) {
	cont := &Continuation{
		Snapshot: snapshot.Snapshot{
			Argv:      []string{"puppet agent: applying configuration"},
			Env:       map[string]string{"PATH": "/bin"},
			ParentPID: 1,
		},
		Mode:       classify.Classify([]string{"puppet agent: applying configuration"}, "/usr/bin/puppet"),
		Config:     Config{Lockfile: "/nonexistent/lock", PollInterval: time.Millisecond},
		LaunchedAt: time.Now(),
	}

	r := NewRunner(cont, testLogger())
	r.alive = func(int) bool {
		t.Error("liveness probe must not run for a service-style parent")
		return false
	}
	r.locked = func(string) bool { return false }
	r.lookPath = func(string) (string, error) { return "/usr/bin/puppet", nil }
	exec := &recordedExec{}
	r.execve = exec.execve

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"/usr/bin/puppet", "agent", "--onetime"}
	if !reflect.DeepEqual(exec.argv, want) {
		t.Errorf("exec argv = %q, want rewritten one-shot %q", exec.argv, want)
	}
}

func TestRunnerDeltaMeasuredFromReadiness(t *testing.T) {
	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	current := base
	var slept []time.Duration

	cont := &Continuation{
		Snapshot: snapshot.Snapshot{
			Argv:      []string{"puppet", "agent", "--test"},
			Env:       map[string]string{},
			ParentPID: 99,
		},
		Mode:       classify.Result{IsService: false, Argv: []string{"puppet", "agent", "--test"}},
		Config:     Config{Lockfile: "/nonexistent/lock", PollInterval: time.Millisecond, Delta: 4 * time.Second},
		LaunchedAt: base.Add(-time.Hour), // launch long ago must not matter
	}

	r := NewRunner(cont, testLogger())
	r.alive = func(int) bool { return false }
	r.locked = func(string) bool { return false }
	r.now = func() time.Time { return current }
	r.sleep = func(d time.Duration) {
		slept = append(slept, d)
		current = current.Add(d)
	}
	r.lookPath = func(string) (string, error) { return "/usr/bin/puppet", nil }
	exec := &recordedExec{}
	r.execve = exec.execve

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var total time.Duration
	for _, d := range slept {
		total += d
	}
	if total != 4*time.Second {
		t.Errorf("slept %v total, want the full 4s delta measured from readiness", total)
	}
}

func TestRunnerStartTimerNow(t *testing.T) {
	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	current := base

	cont := &Continuation{
		Snapshot: snapshot.Snapshot{
			Argv:      []string{"puppet", "agent", "--test"},
			Env:       map[string]string{},
			ParentPID: 99,
		},
		Mode: classify.Result{IsService: false, Argv: []string{"puppet", "agent", "--test"}},
		Config: Config{
			Lockfile:      "/nonexistent/lock",
			PollInterval:  time.Millisecond,
			Delta:         4 * time.Second,
			StartTimerNow: true,
		},
		LaunchedAt: base.Add(-10 * time.Second), // delta already elapsed at launch
	}

	r := NewRunner(cont, testLogger())
	r.alive = func(int) bool { return false }
	r.locked = func(string) bool { return false }
	r.now = func() time.Time { return current }
	r.sleep = func(d time.Duration) {
		t.Errorf("slept %v, want no sleep when delta elapsed since launch", d)
	}
	r.lookPath = func(string) (string, error) { return "/usr/bin/puppet", nil }
	exec := &recordedExec{}
	r.execve = exec.execve

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunnerExecFailure(t *testing.T) {
	cont := &Continuation{
		Snapshot: snapshot.Snapshot{
			Argv: []string{"puppet", "agent", "--test"},
			Env:  map[string]string{},
		},
		Mode:   classify.Result{IsService: true, Argv: []string{"no-such-binary", "agent", "--onetime"}},
		Config: Config{Lockfile: "/nonexistent/lock", PollInterval: time.Millisecond},
	}

	r := NewRunner(cont, testLogger())
	r.locked = func(string) bool { return false }

	err := r.Run(context.Background())
	if err == nil {
		t.Fatal("Run should fail when the target binary cannot be resolved")
	}
	if !strings.Contains(err.Error(), "no-such-binary") {
		t.Errorf("error %q should name the unresolvable binary", err)
	}
}

func TestEnvSlice(t *testing.T) {
	got := EnvSlice(map[string]string{
		"PATH": "/bin",
		"OPTS": "--a=1",
		"HOME": "/root",
	})
	want := []string{"HOME=/root", "OPTS=--a=1", "PATH=/bin"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("EnvSlice = %q, want %q", got, want)
	}
}

func TestReadContinuation(t *testing.T) {
	cont := &Continuation{
		Snapshot: snapshot.Snapshot{
			Argv:      []string{"puppet", "agent", "--test"},
			Env:       map[string]string{"OPTS": "--a=1 --b=2"},
			ParentPID: 7,
			SelfPID:   8,
		},
		Mode:       classify.Result{IsService: false, Argv: []string{"puppet", "agent", "--test"}},
		Config:     Config{Lockfile: "/tmp/lock", Delta: 5 * time.Second},
		LaunchedAt: time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
	}

	payload, err := json.Marshal(cont)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := ReadContinuation(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("ReadContinuation: %v", err)
	}
	if !reflect.DeepEqual(got, cont) {
		t.Errorf("decoded continuation = %+v, want %+v", got, cont)
	}

	if _, err := ReadContinuation(strings.NewReader("not json")); err == nil {
		t.Error("ReadContinuation should reject malformed payloads")
	}
}
