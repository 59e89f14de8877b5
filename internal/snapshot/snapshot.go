package snapshot

import (
	"strings"
	"time"
)

// Snapshot is the invocation context of the parent agent process, captured
// once at startup. The /proc entries it is built from disappear the moment
// the parent exits, so nothing here is ever re-read.
type Snapshot struct {
	Argv      []string          `json:"argv"`
	Env       map[string]string `json:"env"`
	ParentPID int               `json:"parent_pid"`
	SelfPID   int               `json:"self_pid"`

	// Metadata for logging and inspection, not used by the rerun itself.
	Comm      string    `json:"comm,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

// SplitNullBuffer splits a NUL-separated buffer (/proc cmdline or environ
// format) into its fields. The terminating NUL produces one empty trailing
// field, which is dropped; interior empty fields are kept.
func SplitNullBuffer(buf []byte) []string {
	if len(buf) == 0 {
		return nil
	}
	fields := strings.Split(string(buf), "\x00")
	if n := len(fields); fields[n-1] == "" {
		fields = fields[:n-1]
	}
	return fields
}

// MergeEnviron folds NAME=VALUE entries into a map. Entries split on the
// first '=' only, so values keep any '=' they contain. When a name repeats,
// the last occurrence wins. Entries without '=' are ignored.
func MergeEnviron(entries []string) map[string]string {
	env := make(map[string]string, len(entries))
	for _, entry := range entries {
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		env[name] = value
	}
	return env
}
