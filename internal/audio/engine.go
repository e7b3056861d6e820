// SPDX-License-Identifier: MIT
/*
Package audio captures live audio for the stomp detector:
- PortAudio float32 input stream (Engine) or miniaudio via malgo (MalgoCapture)
- First-channel mono downmix into a pre-allocated buffer
- Optional WAV recording that never blocks the capture callback

Both backends implement stomp.AudioSource.

Thread Safety:
- Handler and recorder are swapped atomically; the callback never locks
- Pre-allocates buffers to avoid GC in hot path
- Locks OS thread during audio processing
*/
package audio

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"stomp/internal/config"
	applog "stomp/internal/log"
	"stomp/internal/stomp"
)

// ErrAlreadyRecording is returned by StartRecording while a recording runs.
var ErrAlreadyRecording = errors.New("audio: already recording")

// Engine is the PortAudio capture backend.
type Engine struct {
	cfg config.AudioConfig

	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration

	mu          sync.Mutex // Guards inputStream.
	inputStream *portaudio.Stream

	monoBuffer []float32
	handler    atomic.Pointer[func([]float32)]
	recorder   atomic.Pointer[Recorder]

	log *applog.Logger
}

// NewEngine resolves the configured input device. PortAudio must already
// be initialised.
func NewEngine(cfg config.AudioConfig) (*Engine, error) {
	device, err := InputDevice(cfg.InputDevice, cfg.DeviceName)
	if err != nil {
		return nil, err
	}
	if cfg.InputChannels > device.MaxInputChannels {
		return nil, fmt.Errorf("device %s supports %d input channels, %d requested",
			device.Name, device.MaxInputChannels, cfg.InputChannels)
	}

	e := &Engine{
		cfg:         cfg,
		inputDevice: device,
		monoBuffer:  make([]float32, cfg.FramesPerBuffer),
		log:         applog.Component("audio/portaudio"),
	}
	if cfg.LowLatency {
		e.inputLatency = device.DefaultLowInputLatency
	} else {
		e.inputLatency = device.DefaultHighInputLatency
	}
	return e, nil
}

// DeviceName returns the name of the selected input device.
func (e *Engine) DeviceName() string {
	return e.inputDevice.Name
}

// Start opens and starts the input stream, delivering mono buffers to
// handler from the PortAudio callback.
func (e *Engine) Start(handler func([]float32)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.inputStream != nil {
		return errors.New("audio: input stream already running")
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.cfg.InputChannels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.cfg.FramesPerBuffer,
		SampleRate:      e.cfg.SampleRate,
	}

	e.handler.Store(&handler)
	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		e.handler.Store(nil)
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		e.handler.Store(nil)
		stream.Close()
		return fmt.Errorf("start input stream: %w", err)
	}
	e.inputStream = stream

	e.log.Infof("capturing from %s (%.0f Hz, %d ch, %d frames, latency %v)",
		e.inputDevice.Name, e.cfg.SampleRate, e.cfg.InputChannels, e.cfg.FramesPerBuffer, e.inputLatency)
	return nil
}

// Stop stops and closes the input stream. Stopping a stopped engine is a
// no-op.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.inputStream == nil {
		return nil
	}
	stream := e.inputStream
	e.inputStream = nil
	e.handler.Store(nil)

	return errors.Join(stream.Stop(), stream.Close())
}

// processInputStream is the PortAudio callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
// - No dynamic allocations in the hot path
func (e *Engine) processInputStream(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.deliver(in)
}

func (e *Engine) deliver(in []float32) {
	if h := e.handler.Load(); h != nil {
		(*h)(Downmix(e.monoBuffer, in, e.cfg.InputChannels))
	}
	if r := e.recorder.Load(); r != nil {
		r.Write(in)
	}
}

// StartRecording begins writing the raw interleaved input to path.
func (e *Engine) StartRecording(path string, bitDepth int) error {
	r, err := NewRecorder(path, int(e.cfg.SampleRate), e.cfg.InputChannels, bitDepth)
	if err != nil {
		return err
	}
	if !e.recorder.CompareAndSwap(nil, r) {
		return errors.Join(ErrAlreadyRecording, r.Close())
	}
	return nil
}

// StopRecording finalises the current recording, if any, and returns its
// path.
func (e *Engine) StopRecording() (string, error) {
	r := e.recorder.Swap(nil)
	if r == nil {
		return "", nil
	}
	return r.Path(), r.Close()
}

// Close stops recording and the input stream.
func (e *Engine) Close() error {
	_, recErr := e.StopRecording()
	return errors.Join(recErr, e.Stop())
}

var _ stomp.AudioSource = (*Engine)(nil)
