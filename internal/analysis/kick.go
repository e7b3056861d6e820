// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"time"
)

// KickThreshold is the peak amplitude, on the normalized [-1, 1] scale,
// above which a buffer is classified as containing a kick.
const KickThreshold = 0.7

// KickSink receives the timestamp of every detected kick.
type KickSink func(at time.Time)

// KickAnalyzer is a cheap peak gate over raw audio buffers. It carries no
// state of its own: detected kicks are forwarded to the sink, which in the
// detector feeds the KickIntervalTracker. False positives only nudge the
// tempo estimate, they never grant rewards.
type KickAnalyzer struct {
	sink KickSink
}

// NewKickAnalyzer returns an analyzer forwarding kicks to sink. A nil sink
// turns Analyze into a pure classifier.
func NewKickAnalyzer(sink KickSink) *KickAnalyzer {
	return &KickAnalyzer{sink: sink}
}

// Analyze classifies buf and, on a kick, reports at to the sink.
// Performance Critical (audio callback):
// - No allocations
// - No locks held while scanning
func (a *KickAnalyzer) Analyze(buf []float32, at time.Time) (time.Time, bool) {
	if !IsKick(buf) {
		return time.Time{}, false
	}
	if a.sink != nil {
		a.sink(at)
	}
	return at, true
}

// IsKick reports whether the peak amplitude of buf exceeds KickThreshold.
// Empty buffers are never kicks.
func IsKick(buf []float32) bool {
	return Peak(buf) > KickThreshold
}

// Peak returns the maximum absolute amplitude in buf. NaN and infinite
// samples are ignored so a corrupt frame cannot register as a kick.
func Peak(buf []float32) float64 {
	var peak float64
	for _, s := range buf {
		v := float64(s)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}
