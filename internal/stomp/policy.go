// SPDX-License-Identifier: MIT
package stomp

import (
	"math"
	"time"

	"stomp/internal/analysis"
	"stomp/internal/session"
)

const (
	// BaseThreshold is the vertical acceleration a stomp must exceed at the
	// reference tempo with the session inside the fairness envelope.
	BaseThreshold = 1.5

	// ReferenceTempoBPM normalises the tempo factor; it is also the tempo
	// assumed while the tracker has no estimate.
	ReferenceTempoBPM = 120.0

	// CooldownBeatFraction is the share of one beat that must pass between
	// two accepted stomps.
	CooldownBeatFraction = 0.8
)

// TempoFactor scales the threshold with the music: faster tracks need
// harder stomps.
func TempoFactor(t analysis.Tempo) float64 {
	return t.OrElse(ReferenceTempoBPM) / ReferenceTempoBPM
}

// RateFactor is 1 while the session rate is within
// session.TargetEventsPerHour, and rate/target above it. A session with no
// elapsed time gets no correction.
func RateFactor(accepted uint64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 1
	}
	rate := session.PerHour(accepted, elapsed)
	if rate > session.TargetEventsPerHour {
		return rate / session.TargetEventsPerHour
	}
	return 1
}

// Threshold is the acceleration a sample must exceed to count as a stomp,
// given the current tempo and the session's accepted count and age.
func Threshold(t analysis.Tempo, accepted uint64, elapsed time.Duration) float64 {
	return BaseThreshold * TempoFactor(t) * RateFactor(accepted, elapsed)
}

// CooldownForBPM returns CooldownBeatFraction of one beat at bpm, or zero
// for a tempo that is not finite and positive.
func CooldownForBPM(bpm float64) time.Duration {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return 0
	}
	return time.Duration(CooldownBeatFraction * 60 / bpm * float64(time.Second))
}

// Cooldown derives the cooldown from t when it is known and returns
// fallback otherwise.
func Cooldown(t analysis.Tempo, fallback time.Duration) time.Duration {
	if bpm, ok := t.BPM(); ok {
		return CooldownForBPM(bpm)
	}
	return fallback
}
