// SPDX-License-Identifier: MIT
package replay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"stomp/internal/stomp"
	"stomp/internal/testsignal"
)

const (
	testRate = 8000
	testFPB  = 400 // 50ms buffers.
)

// writeWAV writes a 16-bit WAV with the given interleaved samples.
func writeWAV(t *testing.T, channels int, data []int) string {
	t.Helper()
	return writeWAVFormat(t, 16, 1, channels, data)
}

// writeWAVFormat encodes data with the given bit depth and WAVE format tag.
func writeWAVFormat(t *testing.T, bitDepth, format, channels int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	enc := wav.NewEncoder(f, testRate, bitDepth, channels, format)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: testRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
	return path
}

// kickTrack returns three seconds of quiet mono audio with a kick every
// 500ms for the first 2.5s.
func kickTrack() []int {
	data := make([]int, 3*testRate)
	for i := range data {
		data[i] = 1000 * int(math.Copysign(1, math.Sin(float64(i))))
	}
	for k := 0; k <= 5; k++ {
		data[k*testRate/2] = 30000
	}
	return data
}

// motionCSV returns 100 Hz samples for 3s with stomps at the given
// hundredths of a second.
func motionCSV(stomps ...int) string {
	loud := make(map[int]bool, len(stomps))
	for _, s := range stomps {
		loud[s] = true
	}
	var b strings.Builder
	b.WriteString("seconds,x,y,z\n")
	for i := range 300 {
		y := 0.2
		if loud[i] {
			y = -2.5
		}
		fmt.Fprintf(&b, "%.2f,0.01,%.2f,9.81\n", float64(i)/100, y)
	}
	return b.String()
}

func loadSession(t *testing.T, stomps ...int) ([]MotionEvent, *AudioTrack) {
	t.Helper()
	samples, err := LoadMotionCSV(strings.NewReader(motionCSV(stomps...)))
	if err != nil {
		t.Fatalf("LoadMotionCSV() error = %v", err)
	}
	track, err := LoadWAVFile(writeWAV(t, 1, kickTrack()), testFPB)
	if err != nil {
		t.Fatalf("LoadWAVFile() error = %v", err)
	}
	return samples, track
}

func TestRunScoresSession(t *testing.T) {
	samples, track := loadSession(t, 60, 70, 120, 200)
	rep := &testsignal.RecordingReporter{}

	sum, err := Run(context.Background(), samples, track, Options{TempoBPM: 120, Reporter: rep})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if sum.Samples != 300 || sum.Buffers != 60 || sum.KickBuffers != 6 {
		t.Errorf("inputs: %d samples, %d buffers, %d kicks", sum.Samples, sum.Buffers, sum.KickBuffers)
	}
	// The stomp at 0.70s falls inside the 400ms cooldown.
	want := []time.Duration{600 * time.Millisecond, 1200 * time.Millisecond, 2 * time.Second}
	if sum.Accepted != 3 || len(sum.Stomps) != len(want) {
		t.Fatalf("accepted %d stomps at %v, want %v", sum.Accepted, sum.Stomps, want)
	}
	for i := range want {
		if sum.Stomps[i] != want[i] {
			t.Errorf("stomp %d at %v, want %v", i, sum.Stomps[i], want[i])
		}
	}
	if bpm, ok := sum.Tempo.BPM(); !ok || math.Abs(bpm-120) > 1e-6 {
		t.Errorf("tempo = %v, want 120 BPM", sum.Tempo)
	}
	if sum.Duration != 3*time.Second || sum.Threshold != stomp.BaseThreshold {
		t.Errorf("duration %v, threshold %v", sum.Duration, sum.Threshold)
	}

	events := rep.Events()
	if len(events) != 3 || events[2].Seq != 3 || events[2].TempoBPM != 120 {
		t.Errorf("reported %+v", events)
	}

	var out bytes.Buffer
	sum.Print(&out)
	if !strings.Contains(out.String(), "Accepted stomps: 3") {
		t.Errorf("Print() output:\n%s", out.String())
	}
}

func TestRunMotionOnly(t *testing.T) {
	samples, _ := loadSession(t, 10, 50, 90)

	// 60 BPM gives an 800ms cooldown, so the stomp at 0.5s is rejected.
	sum, err := Run(context.Background(), samples, nil, Options{TempoBPM: 60})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Accepted != 2 || sum.Tempo.Known() {
		t.Errorf("accepted %d, tempo %v", sum.Accepted, sum.Tempo)
	}
}

func TestRunCountsReporterFailures(t *testing.T) {
	samples, track := loadSession(t, 60, 120, 200)

	sum, err := Run(context.Background(), samples, track, Options{TempoBPM: 120, Reporter: &testsignal.FailingReporter{}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Accepted != 3 || sum.Failed != 3 {
		t.Errorf("accepted %d, failed %d; want 3 and 3", sum.Accepted, sum.Failed)
	}
}

func TestRunErrors(t *testing.T) {
	samples, track := loadSession(t)

	if _, err := Run(context.Background(), samples, track, Options{TempoBPM: 0}); !errors.Is(err, stomp.ErrInvalidTempo) {
		t.Errorf("Run() with zero tempo error = %v, want ErrInvalidTempo", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, samples, track, Options{TempoBPM: 120}); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() with cancelled context error = %v, want context.Canceled", err)
	}
}
