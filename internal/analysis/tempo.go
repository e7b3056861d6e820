// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// HistoryLength is the number of inter-kick intervals kept for the rolling
// tempo estimate.
const HistoryLength = 10

// minIntervalsForTempo is the number of intervals required before a tempo
// is reported.
const minIntervalsForTempo = 2

// Tempo is an optional beats-per-minute estimate. The zero value is Unknown.
type Tempo struct {
	bpm   float64
	known bool
}

// UnknownTempo returns a tempo with no estimate.
func UnknownTempo() Tempo {
	return Tempo{}
}

// KnownTempo returns a tempo of bpm. Non-finite or non-positive values
// yield Unknown.
func KnownTempo(bpm float64) Tempo {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return Tempo{}
	}
	return Tempo{bpm: bpm, known: true}
}

// BPM returns the estimate and whether one exists.
func (t Tempo) BPM() (float64, bool) {
	return t.bpm, t.known
}

// Known reports whether the tempo has an estimate.
func (t Tempo) Known() bool {
	return t.known
}

// OrElse returns the estimate, or fallback when Unknown.
func (t Tempo) OrElse(fallback float64) float64 {
	if !t.known {
		return fallback
	}
	return t.bpm
}

// BeatInterval returns the duration of one beat (60/bpm).
func (t Tempo) BeatInterval() (time.Duration, bool) {
	if !t.known {
		return 0, false
	}
	return time.Duration(60 / t.bpm * float64(time.Second)), true
}

func (t Tempo) String() string {
	if !t.known {
		return "unknown"
	}
	return fmt.Sprintf("%.1f BPM", t.bpm)
}

// KickIntervalTracker keeps a bounded FIFO of kick-to-kick intervals and
// derives a rolling tempo from their mean.
//
// Not safe for concurrent use; the owning detector serialises access.
type KickIntervalTracker struct {
	intervals [HistoryLength]float64 // Ring buffer, seconds.
	head      int                    // Index of the oldest interval.
	count     int
	lastKick  time.Time
	hasKick   bool // lastKick is set.
	tempo     Tempo
}

// NewKickIntervalTracker returns an empty tracker.
func NewKickIntervalTracker() *KickIntervalTracker {
	return &KickIntervalTracker{}
}

// Push records a kick at the given time. The interval since the previous
// kick is appended (evicting the oldest when full) and the tempo is
// recomputed. It returns the recorded interval in seconds and true, or
// false for the first kick and for kicks that do not move time forward.
func (k *KickIntervalTracker) Push(at time.Time) (float64, bool) {
	if !k.hasKick {
		k.lastKick, k.hasKick = at, true
		return 0, false
	}
	if !at.After(k.lastKick) {
		return 0, false
	}

	interval := at.Sub(k.lastKick).Seconds()
	k.lastKick = at

	if k.count < HistoryLength {
		k.intervals[(k.head+k.count)%HistoryLength] = interval
		k.count++
	} else {
		k.intervals[k.head] = interval
		k.head = (k.head + 1) % HistoryLength
	}

	k.recompute()
	return interval, true
}

// recompute refreshes the tempo. The mean does not depend on order, so the
// filled prefix of the ring is passed as-is.
func (k *KickIntervalTracker) recompute() {
	if k.count < minIntervalsForTempo {
		k.tempo = UnknownTempo()
		return
	}
	mean := stat.Mean(k.intervals[:k.count], nil)
	if mean <= 0 {
		k.tempo = UnknownTempo()
		return
	}
	k.tempo = KnownTempo(60 / mean)
}

// Tempo returns the current estimate.
func (k *KickIntervalTracker) Tempo() Tempo {
	return k.tempo
}

// Len returns the number of stored intervals.
func (k *KickIntervalTracker) Len() int {
	return k.count
}

// Intervals returns a copy of the stored intervals, oldest first.
func (k *KickIntervalTracker) Intervals() []float64 {
	out := make([]float64, k.count)
	for i := range k.count {
		out[i] = k.intervals[(k.head+i)%HistoryLength]
	}
	return out
}

// Reset empties the history and forgets the last kick.
func (k *KickIntervalTracker) Reset() {
	*k = KickIntervalTracker{}
}
