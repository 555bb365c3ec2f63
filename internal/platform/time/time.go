// Package time contains clock helpers shared by windowed counters
package time

import "time"

// Clock returns the current instant; tests swap in a fixed one
type Clock func() time.Time

// System is the wall clock
var System Clock = time.Now

// Now returns c(), falling back to the wall clock for a nil Clock
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// SecondsUntil returns whole seconds from now until t, rounded up, never negative
func SecondsUntil(now, t time.Time) int {
	d := t.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
