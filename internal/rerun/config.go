package rerun

import "time"

// Defaults for a stock puppetlabs install.
const (
	DefaultLockfile     = "/opt/puppetlabs/puppet/cache/state/agent_catalog_run.lock"
	DefaultPollInterval = time.Second
)

// Config carries every tunable of a rerun. The lock path and delays were
// historically baked-in constants; they are explicit fields here so the
// coordinator has no ambient globals.
type Config struct {
	// Lockfile is the agent run lock marker. Observed only, never written.
	Lockfile string `json:"lockfile"`

	// Binary is the puppet binary used when a daemonized parent's argv
	// has to be rewritten into a canonical one-shot invocation.
	Binary string `json:"binary,omitempty"`

	// Delta is the minimum time that must elapse (measured from the gate's
	// reference instant) before the hand-off may proceed.
	Delta time.Duration `json:"delta"`

	// PollInterval paces both the liveness and the lock wait loops.
	PollInterval time.Duration `json:"poll_interval"`

	// SettleDelay is a fixed one-time delay applied before the delta gate,
	// regardless of timer configuration.
	SettleDelay time.Duration `json:"settle_delay"`

	// StartTimerNow measures Delta from the rerun's launch instead of from
	// the moment the system became ready.
	StartTimerNow bool `json:"start_timer_now"`
}

func (c Config) withDefaults() Config {
	if c.Lockfile == "" {
		c.Lockfile = DefaultLockfile
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}
