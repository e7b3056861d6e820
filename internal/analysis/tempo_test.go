// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"
	"time"
)

var epoch = time.Date(2025, 4, 13, 20, 0, 0, 0, time.UTC)

func TestTempoOptional(t *testing.T) {
	tests := []struct {
		name   string
		tempo  Tempo
		known  bool
		orElse float64
	}{
		{"zero value", Tempo{}, false, 120},
		{"unknown", UnknownTempo(), false, 120},
		{"known", KnownTempo(100), true, 100},
		{"negative", KnownTempo(-5), false, 120},
		{"zero", KnownTempo(0), false, 120},
		{"NaN", KnownTempo(math.NaN()), false, 120},
		{"Inf", KnownTempo(math.Inf(1)), false, 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tempo.Known() != tt.known {
				t.Errorf("Known() = %v, want %v", tt.tempo.Known(), tt.known)
			}
			if got := tt.tempo.OrElse(120); got != tt.orElse {
				t.Errorf("OrElse(120) = %v, want %v", got, tt.orElse)
			}
		})
	}
}

func TestTempoBeatInterval(t *testing.T) {
	if _, ok := UnknownTempo().BeatInterval(); ok {
		t.Error("unknown tempo should have no beat interval")
	}
	d, ok := KnownTempo(120).BeatInterval()
	if !ok || d != 500*time.Millisecond {
		t.Errorf("BeatInterval at 120 BPM = %v, %v; want 500ms, true", d, ok)
	}
}

func TestTrackerNeedsTwoIntervals(t *testing.T) {
	tr := NewKickIntervalTracker()

	if _, ok := tr.Push(epoch); ok {
		t.Error("first kick must not record an interval")
	}
	if tr.Tempo().Known() {
		t.Error("tempo must be unknown with no intervals")
	}

	tr.Push(epoch.Add(500 * time.Millisecond))
	if tr.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tr.Len())
	}
	if tr.Tempo().Known() {
		t.Error("tempo must be unknown with a single interval")
	}

	tr.Push(epoch.Add(time.Second))
	bpm, ok := tr.Tempo().BPM()
	if !ok || math.Abs(bpm-120) > 1e-9 {
		t.Errorf("tempo = %v, %v; want 120, true", bpm, ok)
	}
}

func TestTrackerConvergesTo100BPM(t *testing.T) {
	tr := NewKickIntervalTracker()
	at := epoch
	for range 8 {
		tr.Push(at)
		at = at.Add(600 * time.Millisecond)
	}

	bpm, ok := tr.Tempo().BPM()
	if !ok {
		t.Fatal("tempo should be known after 7 intervals")
	}
	if math.Abs(bpm-100) > 1e-9 {
		t.Errorf("tempo = %.12f, want 100", bpm)
	}
}

func TestTrackerHistoryBound(t *testing.T) {
	tr := NewKickIntervalTracker()

	var want []float64
	at := epoch
	tr.Push(at)
	for i := range 14 {
		step := time.Duration(300+10*i) * time.Millisecond
		at = at.Add(step)
		tr.Push(at)
		want = append(want, step.Seconds())
	}
	want = want[len(want)-HistoryLength:]

	got := tr.Intervals()
	if len(got) != HistoryLength {
		t.Fatalf("len(Intervals()) = %d, want %d", len(got), HistoryLength)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("interval[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	var sum float64
	for _, v := range want {
		sum += v
	}
	wantBPM := 60 / (sum / float64(len(want)))
	if bpm, _ := tr.Tempo().BPM(); math.Abs(bpm-wantBPM) > 1e-9 {
		t.Errorf("tempo = %v, want %v", bpm, wantBPM)
	}
}

func TestTrackerIgnoresNonAdvancingKicks(t *testing.T) {
	tr := NewKickIntervalTracker()
	tr.Push(epoch)

	if _, ok := tr.Push(epoch); ok {
		t.Error("kick at the same instant must not record an interval")
	}
	if _, ok := tr.Push(epoch.Add(-time.Second)); ok {
		t.Error("kick in the past must not record an interval")
	}
	if tr.Len() != 0 {
		t.Errorf("Len() = %d, want 0", tr.Len())
	}
}

func TestTrackerKickAtZeroTime(t *testing.T) {
	var zero time.Time
	tr := NewKickIntervalTracker()
	for i := range 4 {
		tr.Push(zero.Add(time.Duration(i) * 600 * time.Millisecond))
	}

	want := []float64{0.6, 0.6, 0.6}
	got := tr.Intervals()
	if len(got) != len(want) {
		t.Fatalf("Intervals() = %v, want %v", got, want)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("interval %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTrackerReset(t *testing.T) {
	tr := NewKickIntervalTracker()
	for i := range 4 {
		tr.Push(epoch.Add(time.Duration(i) * 400 * time.Millisecond))
	}
	tr.Reset()

	if tr.Len() != 0 || tr.Tempo().Known() {
		t.Errorf("after Reset: Len() = %d, tempo = %v", tr.Len(), tr.Tempo())
	}
	if _, ok := tr.Push(epoch.Add(10 * time.Second)); ok {
		t.Error("first kick after Reset must not record an interval")
	}
}

func TestTrackerPushZeroAllocs(t *testing.T) {
	tr := NewKickIntervalTracker()
	at := epoch
	allocs := testing.AllocsPerRun(100, func() {
		at = at.Add(450 * time.Millisecond)
		tr.Push(at)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Push, got %.1f", allocs)
	}
}
