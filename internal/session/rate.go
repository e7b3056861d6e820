// SPDX-License-Identifier: MIT
//
// Package session tracks the accounting side of one detection session: when
// it started and how many stomps it has accepted.
package session

import "time"

// TargetEventsPerHour is the fairness envelope: the highest sustainable stomp
// rate (about one stomp every 0.36s) before acceptance gets harder.
const TargetEventsPerHour = 10000

// RateCounter holds the start time and accepted-stomp count of a session.
// The zero value is a stopped counter. Not safe for concurrent use.
type RateCounter struct {
	start    time.Time
	started  bool
	accepted uint64
}

// Start begins a new session at now, resetting the count.
func (c *RateCounter) Start(now time.Time) {
	c.start = now
	c.started = true
	c.accepted = 0
}

// Stop clears the start time and the count.
func (c *RateCounter) Stop() {
	*c = RateCounter{}
}

// Active reports whether a session is running.
func (c *RateCounter) Active() bool {
	return c.started
}

// StartTime returns the session start, if any.
func (c *RateCounter) StartTime() (time.Time, bool) {
	return c.start, c.started
}

// Increment records one accepted stomp and returns the new count.
func (c *RateCounter) Increment() uint64 {
	c.accepted++
	return c.accepted
}

// Accepted returns the number of accepted stomps.
func (c *RateCounter) Accepted() uint64 {
	return c.accepted
}

// Elapsed returns the session age at now. A stopped counter, or a clock
// that has not moved past the start, reports zero.
func (c *RateCounter) Elapsed(now time.Time) time.Duration {
	if !c.started {
		return 0
	}
	if d := now.Sub(c.start); d > 0 {
		return d
	}
	return 0
}

// RatePerHour returns accepted stomps per hour at now, or zero while no time
// has elapsed.
func (c *RateCounter) RatePerHour(now time.Time) float64 {
	return PerHour(c.accepted, c.Elapsed(now))
}

// PerHour converts a count over elapsed into a per-hour rate. Zero elapsed
// yields zero rather than dividing by zero.
func PerHour(count uint64, elapsed time.Duration) float64 {
	hours := elapsed.Hours()
	if hours <= 0 {
		return 0
	}
	return float64(count) / hours
}
