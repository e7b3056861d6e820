// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	applog "stomp/internal/log"
)

const (
	// recorderBuffers is the number of capture buffers that can be waiting
	// for the disk before Write starts dropping.
	recorderBuffers = 32
	recorderBufCap  = 8192
	wavPCMFormat    = 1
)

// RecordingPath returns a timestamped WAV path inside dir.
func RecordingPath(dir string, now time.Time) string {
	return filepath.Join(dir, "stomp-"+now.Format("20060102-150405")+".wav")
}

// Recorder writes interleaved float capture buffers to a PCM WAV file.
// Write never touches the disk: it copies the buffer into a free slot and
// hands it to a writer goroutine, dropping the buffer when no slot is free.
//
// Thread Safety:
// - Write is meant for a single capture goroutine
// - Close may be called from any goroutine, once or many times
type Recorder struct {
	path     string
	file     *os.File
	encoder  *wav.Encoder
	intBuf   *audio.IntBuffer
	maxValue float64

	free chan []float32
	full chan []float32
	quit chan struct{}
	done chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	writeErr  error // First encoder error, owned by the writer goroutine.
	dropped   atomic.Uint64
	log       *applog.Logger
}

// NewRecorder creates the file at path and starts the writer goroutine.
// bitDepth must be 16 or 24.
func NewRecorder(path string, sampleRate, channels, bitDepth int) (*Recorder, error) {
	if bitDepth != 16 && bitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}

	r := &Recorder{
		path:    path,
		file:    file,
		encoder: wav.NewEncoder(file, sampleRate, bitDepth, channels, wavPCMFormat),
		intBuf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
			Data:           make([]int, 0, recorderBufCap),
			SourceBitDepth: bitDepth,
		},
		maxValue: float64(int(1)<<(bitDepth-1) - 1),
		free:     make(chan []float32, recorderBuffers),
		full:     make(chan []float32, recorderBuffers),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		log:      applog.Component("audio/recorder"),
	}
	for range recorderBuffers {
		r.free <- make([]float32, 0, recorderBufCap)
	}

	go r.run()
	r.log.Infof("recording to %s (%d Hz, %d ch, %d bit)", path, sampleRate, channels, bitDepth)
	return r, nil
}

// Path returns the file being written.
func (r *Recorder) Path() string { return r.path }

// Dropped returns the number of buffers discarded because the writer fell
// behind.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Write queues a copy of buf and reports whether it was kept.
func (r *Recorder) Write(buf []float32) bool {
	if r.closed.Load() {
		return false
	}
	var slot []float32
	select {
	case slot = <-r.free:
	default:
		r.dropped.Add(1)
		return false
	}
	slot = append(slot[:0], buf...)
	r.full <- slot // Never blocks: there are only recorderBuffers slots.
	return true
}

func (r *Recorder) run() {
	defer close(r.done)
	for {
		select {
		case slot := <-r.full:
			r.encode(slot)
		case <-r.quit:
			for {
				select {
				case slot := <-r.full:
					r.encode(slot)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) encode(slot []float32) {
	data := r.intBuf.Data[:0]
	for _, s := range slot {
		v := float64(s)
		switch {
		case math.IsNaN(v):
			v = 0
		case v > 1:
			v = 1
		case v < -1:
			v = -1
		}
		data = append(data, int(v*r.maxValue))
	}
	r.intBuf.Data = data
	r.free <- slot

	if r.writeErr != nil {
		return
	}
	if err := r.encoder.Write(r.intBuf); err != nil {
		r.writeErr = err
		r.log.Errorf("write failed, further audio is discarded: %v", err)
	}
}

// Close flushes the queued buffers, finalises the WAV header and closes the
// file.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.quit)
		<-r.done

		r.closeErr = errors.Join(r.writeErr, r.encoder.Close(), r.file.Close())
		if n := r.dropped.Load(); n > 0 {
			r.log.Warnf("%d buffers dropped while recording %s", n, r.path)
		}
	})
	return r.closeErr
}
