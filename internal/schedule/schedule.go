// Package schedule holds the quarter-hour clock arithmetic shared by the
// trading and history modes. Up/down markets open every 15 minutes and
// their slugs embed the epoch second of the window open, so both the
// window countdown and the slug sequence reduce to multiples of 900.
package schedule

import (
	"math"
	"time"
)

// CycleStep is the spacing between consecutive market windows in seconds.
const CycleStep int64 = 900

// NextSuffix returns the slug suffix for the cycle-th market starting
// from base. Cycle 1 is base itself; each later cycle moves one window
// forward in time.
func NextSuffix(cycle int, base int64) int64 {
	if cycle <= 1 {
		return base
	}
	return base + CycleStep*int64(cycle-1)
}

// PrevSuffix is the backward counterpart of NextSuffix, used when
// walking history from base toward older windows.
func PrevSuffix(cycle int, base int64) int64 {
	if cycle <= 1 {
		return base
	}
	return base - CycleStep*int64(cycle-1)
}

// NextQuarter returns the first quarter-hour boundary strictly after t.
// A t exactly on a boundary maps to the following boundary, matching
// how the window close of a just-opened market is computed.
func NextQuarter(t time.Time) time.Time {
	return t.Truncate(15 * time.Minute).Add(15 * time.Minute)
}

// SecondsToClose returns the whole seconds between t and the next
// quarter-hour boundary. The result is always in (0, 900].
func SecondsToClose(t time.Time) int {
	return SecondsUntil(t, NextQuarter(t))
}

// SecondsUntil returns the whole seconds from now until deadline,
// negative once the deadline has passed. Sessions pin their deadline at
// start and count down against it rather than recomputing the boundary,
// so a session that straddles a boundary still sees its own window end.
func SecondsUntil(now, deadline time.Time) int {
	return int(math.Round(deadline.Sub(now).Seconds()))
}
