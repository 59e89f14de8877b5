// Package timer implements the minimum-elapsed-time gate applied before a
// rerun hands off.
package timer

import (
	"math"
	"time"
)

// Gate blocks until Delta has elapsed since Start. By default Start is the
// launch instant of the rerun; callers Reset it when the system becomes
// ready (parent dead, lock free) so the delay measures readiness, not
// process age.
type Gate struct {
	Delta time.Duration
	Start time.Time

	// Now and Sleep default to the real clock. Overridden in tests.
	Now   func() time.Time
	Sleep func(time.Duration)
}

// Reset moves the reference instant to the current time.
func (g *Gate) Reset() {
	g.Start = g.now()()
}

// Wait sleeps until Delta has elapsed since Start. It recomputes the
// remaining time after every sleep instead of sleeping once, so a clock
// adjustment cannot push the wait out indefinitely. Sleeps are rounded up
// to whole seconds.
func (g *Gate) Wait() {
	now := g.now()
	sleep := g.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	for {
		left := g.Delta - now().Sub(g.Start)
		if left <= 0 {
			return
		}
		sleep(time.Duration(math.Ceil(left.Seconds())) * time.Second)
	}
}

func (g *Gate) now() func() time.Time {
	if g.Now != nil {
		return g.Now
	}
	return time.Now
}
