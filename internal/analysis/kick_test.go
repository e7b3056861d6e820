// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"
	"time"
)

const testFrames = 1024

func bufferWithPeak(peak float32) []float32 {
	buf := make([]float32, testFrames)
	for i := range buf {
		buf[i] = float32(0.05 * math.Sin(2*math.Pi*float64(i)/64))
	}
	buf[testFrames/3] = peak
	return buf
}

func TestPeak(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	tests := []struct {
		desc string
		buf  []float32
		want float64
	}{
		{"Empty", nil, 0},
		{"Silence", make([]float32, 16), 0},
		{"Positive peak", []float32{0.1, 0.8, -0.2}, 0.8},
		{"Negative peak", []float32{0.1, -0.9, 0.2}, 0.9},
		{"NaN ignored", []float32{nan, 0.3}, 0.3},
		{"Inf ignored", []float32{inf, -0.4}, 0.4},
		{"All NaN", []float32{nan, nan}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got := Peak(tt.buf)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Peak() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnalyzeClassification(t *testing.T) {
	tests := []struct {
		desc string
		buf  []float32
		kick bool
	}{
		{"Empty buffer", []float32{}, false},
		{"Quiet signal", bufferWithPeak(0.3), false},
		{"At threshold", bufferWithPeak(0.7), false},
		{"Above threshold", bufferWithPeak(0.71), true},
		{"Negative transient", bufferWithPeak(-0.95), true},
		{"NaN spike", bufferWithPeak(float32(math.NaN())), false},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			var calls int
			a := NewKickAnalyzer(func(time.Time) { calls++ })

			at, ok := a.Analyze(tt.buf, epoch)
			if ok != tt.kick {
				t.Fatalf("Analyze() kick = %v, want %v", ok, tt.kick)
			}
			if tt.kick {
				if !at.Equal(epoch) {
					t.Errorf("kick time = %v, want %v", at, epoch)
				}
				if calls != 1 {
					t.Errorf("sink called %d times, want 1", calls)
				}
			} else if calls != 0 {
				t.Errorf("sink called %d times for a non-kick", calls)
			}
		})
	}
}

func TestAnalyzeFeedsTracker(t *testing.T) {
	tr := NewKickIntervalTracker()
	a := NewKickAnalyzer(func(at time.Time) { tr.Push(at) })

	kick := bufferWithPeak(0.9)
	quiet := bufferWithPeak(0.1)
	at := epoch
	for range 5 {
		a.Analyze(kick, at)
		a.Analyze(quiet, at.Add(300*time.Millisecond))
		at = at.Add(600 * time.Millisecond)
	}

	if tr.Len() != 4 {
		t.Fatalf("tracker holds %d intervals, want 4", tr.Len())
	}
	if bpm, ok := tr.Tempo().BPM(); !ok || math.Abs(bpm-100) > 1e-9 {
		t.Errorf("tempo = %v, %v; want 100, true", bpm, ok)
	}
}

func TestAnalyzeHotPath(t *testing.T) {
	a := NewKickAnalyzer(nil)
	buf := bufferWithPeak(0.9)

	allocs := testing.AllocsPerRun(100, func() {
		a.Analyze(buf, epoch)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Analyze hot path, got %.1f", allocs)
	}
}

func BenchmarkPeak(b *testing.B) {
	buf := bufferWithPeak(0.9)
	b.ReportAllocs()

	for b.Loop() {
		_ = Peak(buf)
	}
}
