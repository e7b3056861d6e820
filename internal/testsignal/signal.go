// SPDX-License-Identifier: MIT
//
// Package testsignal holds fixtures shared by the detector, replay and audio
// tests: synthetic audio buffers and reporters that record or fail.
package testsignal

import (
	"context"
	"errors"
	"math"
	"sync"

	"stomp/internal/transport"
)

// KickBuffer returns a buffer of size samples: a quiet 60 Hz tone with one
// spike of amplitude peak in the middle. A peak above 0.7 classifies as a
// kick.
func KickBuffer(size int, peak float32) []float32 {
	buf := SineBuffer(size, 44100, 60, 0.1)
	if size > 0 {
		buf[size/2] = peak
	}
	return buf
}

// SineBuffer returns size samples of a sine at frequency with the given
// amplitude.
func SineBuffer(size int, sampleRate, frequency float64, amplitude float32) []float32 {
	buf := make([]float32, size)
	for i := range buf {
		t := float64(i) / sampleRate
		buf[i] = amplitude * float32(math.Sin(2*math.Pi*frequency*t))
	}
	return buf
}

// ErrReportFailed is returned by FailingReporter.
var ErrReportFailed = errors.New("testsignal: report failed")

// RecordingReporter stores every event it receives.
type RecordingReporter struct {
	mu     sync.Mutex
	events []transport.StompEvent
	closed bool
}

func (r *RecordingReporter) ReportStomp(_ context.Context, ev transport.StompEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *RecordingReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Events returns a copy of the events received so far.
func (r *RecordingReporter) Events() []transport.StompEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transport.StompEvent(nil), r.events...)
}

// Closed reports whether Close was called.
func (r *RecordingReporter) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// FailingReporter rejects every event, counting the attempts.
type FailingReporter struct {
	mu       sync.Mutex
	attempts int
}

func (f *FailingReporter) ReportStomp(context.Context, transport.StompEvent) error {
	f.mu.Lock()
	f.attempts++
	f.mu.Unlock()
	return ErrReportFailed
}

func (f *FailingReporter) Close() error { return nil }

// Attempts returns how many reports were tried.
func (f *FailingReporter) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

// BlockingReporter holds every report until Release is called, simulating a
// remote service that has stopped answering.
type BlockingReporter struct {
	release chan struct{}
	once    sync.Once
	RecordingReporter
}

// NewBlockingReporter returns a reporter that blocks until Release.
func NewBlockingReporter() *BlockingReporter {
	return &BlockingReporter{release: make(chan struct{})}
}

func (b *BlockingReporter) ReportStomp(ctx context.Context, ev transport.StompEvent) error {
	<-b.release
	return b.RecordingReporter.ReportStomp(ctx, ev)
}

// Release unblocks all pending and future reports.
func (b *BlockingReporter) Release() {
	b.once.Do(func() { close(b.release) })
}

var (
	_ transport.Reporter = (*RecordingReporter)(nil)
	_ transport.Reporter = (*FailingReporter)(nil)
	_ transport.Reporter = (*BlockingReporter)(nil)
)
