package rerun

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/psantana5/puppet-rerun/internal/classify"
	"github.com/psantana5/puppet-rerun/internal/snapshot"
)

// Continuation is the state handed from the supervisor to the detached
// process. Everything in it was computed before the split; the detached
// side never re-derives any of it, because by the time it runs the parent
// and its /proc entries may already be gone.
type Continuation struct {
	Snapshot   snapshot.Snapshot `json:"snapshot"`
	Mode       classify.Result   `json:"mode"`
	Config     Config            `json:"config"`
	LaunchedAt time.Time         `json:"launched_at"`
}

// ReadContinuation decodes a continuation from r (the detached process's
// stdin).
func ReadContinuation(r io.Reader) (*Continuation, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read continuation payload: %w", err)
	}
	var cont Continuation
	if err := json.Unmarshal(data, &cont); err != nil {
		return nil, fmt.Errorf("decode continuation payload: %w", err)
	}
	return &cont, nil
}
