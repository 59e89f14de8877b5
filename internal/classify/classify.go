// Package classify decides how a captured agent invocation can be replayed.
//
// The decision is a heuristic over the command-line shapes puppet actually
// produces: a daemonized agent rewrites its process title, a one-off run
// carries --test/-t, and everything else is assumed to be a persistent
// invocation that needs --onetime appended to terminate.
package classify

import "strings"

const (
	// DefaultBinary is the puppet binary used when a daemonized agent's
	// argv cannot be replayed and must be rewritten from scratch.
	DefaultBinary = "/opt/puppetlabs/bin/puppet"

	// serviceMarker is the process-title prefix a daemonized puppet agent
	// sets on itself. Such an argv is a title string, not a command line.
	serviceMarker = "puppet agent"

	onetimeFlag   = "--onetime"
	testFlagLong  = "--test"
	testFlagShort = "-t"
	noopFlag      = "--noop"
)

// Result is the normalized invocation. IsService selects the liveness
// behavior downstream: a service-style parent never exits, so waiting on it
// would hang forever.
type Result struct {
	IsService bool     `json:"is_service"`
	Argv      []string `json:"argv"`
}

// Classify normalizes a captured argv into something that can be exec'd as
// a one-shot agent run. binary overrides DefaultBinary when non-empty.
func Classify(argv []string, binary string) Result {
	if binary == "" {
		binary = DefaultBinary
	}

	// Daemonized agent: the argv is a rewritten title, unusable as a
	// command. Replace it wholesale with a canonical one-shot run.
	if len(argv) > 0 && strings.HasPrefix(argv[0], serviceMarker) {
		return Result{IsService: true, Argv: []string{binary, "agent", onetimeFlag}}
	}

	// No test flag anywhere: treat as persistent and append --onetime so
	// the rerun terminates. This branch is the catch-all for any shape
	// the other two heuristics don't recognize.
	if !hasTestFlag(argv) {
		normalized := make([]string, len(argv), len(argv)+1)
		copy(normalized, argv)
		return Result{IsService: true, Argv: append(normalized, onetimeFlag)}
	}

	return Result{IsService: false, Argv: argv}
}

// IsNoop reports whether the normalized argv is a dry run. A --noop parent
// applies nothing, so a triggered dependency is not worth chasing.
func IsNoop(argv []string) bool {
	for _, arg := range argv {
		if arg == noopFlag {
			return true
		}
	}
	return false
}

func hasTestFlag(argv []string) bool {
	for _, arg := range argv {
		if arg == testFlagLong || arg == testFlagShort {
			return true
		}
	}
	return false
}
