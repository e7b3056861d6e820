// SPDX-License-Identifier: MIT
//
// Package replay scores a recorded session offline: motion samples from a
// CSV file and audio from a WAV file are fed to a detector in time order
// under a manual clock, so a replay accepts exactly the stomps a live run
// with the same input timing would have.
package replay

import (
	"context"
	"fmt"
	"io"
	"time"

	"stomp/internal/analysis"
	"stomp/internal/clock"
	applog "stomp/internal/log"
	"stomp/internal/motion"
	"stomp/internal/stomp"
	"stomp/internal/transport"
)

// Options configures a replay.
type Options struct {
	TempoBPM float64   // Passed to Detector.Start.
	Start    time.Time // Wall time of offset zero; defaults to the Unix epoch.

	// Reporter, when set, receives the stomps just like a live session.
	Reporter  transport.Reporter
	QueueSize int
}

// Summary describes the outcome of a replay.
type Summary struct {
	Samples     int
	Buffers     int
	KickBuffers int
	Duration    time.Duration
	Accepted    uint64
	Stomps      []time.Duration // Offsets of accepted stomps.
	Tempo       analysis.Tempo
	Threshold   float64 // Threshold in effect at the end of the session.
	RatePerHour float64
	Dropped     uint64
	Failed      uint64
}

// Print writes a human-readable report.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "Replayed %v: %d motion samples, %d audio buffers (%d with kicks)\n",
		s.Duration.Round(time.Millisecond), s.Samples, s.Buffers, s.KickBuffers)
	fmt.Fprintf(w, "Accepted stomps: %d (%.0f/h)\n", s.Accepted, s.RatePerHour)
	fmt.Fprintf(w, "Final tempo: %v, threshold: %.3f\n", s.Tempo, s.Threshold)
	if s.Dropped > 0 || s.Failed > 0 {
		fmt.Fprintf(w, "Reports dropped: %d, failed: %d\n", s.Dropped, s.Failed)
	}
	for i, at := range s.Stomps {
		fmt.Fprintf(w, "  #%-4d %10.3fs\n", i+1, at.Seconds())
	}
}

// Run replays motion and audio (either may be empty) through a fresh
// detector. Audio buffers are delivered before motion samples with the
// same offset, as a kick heard in a buffer is known by the time the next
// sample arrives.
func Run(ctx context.Context, samples []MotionEvent, track *AudioTrack, opts Options) (Summary, error) {
	start := opts.Start
	if start.IsZero() {
		start = time.Unix(0, 0).UTC()
	}
	if track == nil {
		track = &AudioTrack{SampleRate: 1, FramesPerBuffer: 1}
	}

	clk := clock.NewManual(start)
	source := motion.NewPush()
	summary := Summary{Samples: len(samples), Buffers: len(track.Buffers)}

	det := stomp.NewDetector(stomp.Config{
		Motion:    source,
		Reporter:  opts.Reporter,
		Now:       clk.Now,
		QueueSize: opts.QueueSize,
		OnStompDetected: func(int) {
			summary.Stomps = append(summary.Stomps, clk.Now().Sub(start))
		},
	})
	if err := det.Start(opts.TempoBPM); err != nil {
		det.Close()
		return Summary{}, fmt.Errorf("start detector: %w", err)
	}

	log := applog.Component("replay")
	log.Debugf("replaying %d samples and %d buffers", len(samples), len(track.Buffers))

	i, j := 0, 0
	for n := 0; i < len(samples) || j < len(track.Buffers); n++ {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				det.Close()
				return Summary{}, err
			}
		}

		if j < len(track.Buffers) && (i >= len(samples) || track.Offset(j) <= samples[i].Offset) {
			clk.Set(start.Add(track.Offset(j)))
			buf := track.Buffers[j]
			if analysis.IsKick(buf) {
				summary.KickBuffers++
			}
			det.HandleAudio(buf)
			j++
			continue
		}

		clk.Set(start.Add(samples[i].Offset))
		source.Send(samples[i].Sample)
		i++
	}

	snap := det.Snapshot()
	summary.Duration = snap.Elapsed
	summary.Accepted = snap.Accepted
	summary.Tempo = snap.Tempo
	summary.Threshold = snap.Threshold
	summary.RatePerHour = snap.RatePerHour

	if err := det.Close(); err != nil {
		log.Warnf("closing detector: %v", err)
	}
	final := det.Snapshot()
	summary.Dropped = final.Dropped
	summary.Failed = final.Failed
	return summary, nil
}
