// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gen2brain/malgo"

	"stomp/internal/config"
	applog "stomp/internal/log"
	"stomp/internal/stomp"
)

// MalgoCapture is the miniaudio capture backend, for hosts where PortAudio
// is unavailable. It delivers float32 mono buffers like Engine.
type MalgoCapture struct {
	cfg config.AudioConfig

	mu     sync.Mutex // Guards ctx and device.
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	monoBuffer []float32 // Owned by the capture callback.
	handler    atomic.Pointer[func([]float32)]
	recorder   atomic.Pointer[Recorder]

	log *applog.Logger
}

// NewMalgoCapture returns a capture configured from cfg. Nothing is opened
// until Start.
func NewMalgoCapture(cfg config.AudioConfig) *MalgoCapture {
	return &MalgoCapture{
		cfg:        cfg,
		monoBuffer: make([]float32, cfg.FramesPerBuffer),
		log:        applog.Component("audio/malgo"),
	}
}

// Start initialises the miniaudio context and capture device and starts
// delivering buffers to handler.
func (m *MalgoCapture) Start(handler func([]float32)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return errors.New("audio: malgo capture already running")
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init malgo context: %w", err)
	}

	channels := max(m.cfg.InputChannels, 1)
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(m.cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(m.cfg.FramesPerBuffer)
	deviceConfig.Alsa.NoMMap = 1

	if m.cfg.DeviceName != "" {
		infos, err := ctx.Devices(malgo.Capture)
		if err != nil {
			freeContext(ctx)
			return fmt.Errorf("list capture devices: %w", err)
		}
		found := false
		want := strings.ToLower(m.cfg.DeviceName)
		for _, info := range infos {
			if strings.Contains(strings.ToLower(info.Name()), want) {
				deviceConfig.Capture.DeviceID = info.ID.Pointer()
				m.log.Infof("selected capture device %s", info.Name())
				found = true
				break
			}
		}
		if !found {
			freeContext(ctx)
			return fmt.Errorf("no capture device matching %q", m.cfg.DeviceName)
		}
	}

	onRecvFrames := func(_, input []byte, frameCount uint32) {
		if len(input) == 0 {
			return
		}
		samples := unsafe.Slice((*float32)(unsafe.Pointer(&input[0])), int(frameCount)*channels)
		m.deliver(samples, channels)
	}

	m.handler.Store(&handler)
	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		m.handler.Store(nil)
		freeContext(ctx)
		return fmt.Errorf("init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		m.handler.Store(nil)
		device.Uninit()
		freeContext(ctx)
		return fmt.Errorf("start capture device: %w", err)
	}

	m.ctx, m.device = ctx, device
	m.log.Infof("capturing at %d Hz, %d ch", device.SampleRate(), channels)
	return nil
}

func (m *MalgoCapture) deliver(samples []float32, channels int) {
	if h := m.handler.Load(); h != nil {
		mono := Downmix(m.monoBuffer, samples, channels)
		if channels > 1 {
			m.monoBuffer = mono // Keep any growth; frame counts vary per period.
		}
		(*h)(mono)
	}
	if r := m.recorder.Load(); r != nil {
		r.Write(samples)
	}
}

// Stop releases the device and context.
func (m *MalgoCapture) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return nil
	}
	m.handler.Store(nil)
	m.device.Uninit()
	freeContext(m.ctx)
	m.device, m.ctx = nil, nil
	return nil
}

// StartRecording begins writing the raw interleaved input to path.
func (m *MalgoCapture) StartRecording(path string, bitDepth int) error {
	r, err := NewRecorder(path, int(m.cfg.SampleRate), max(m.cfg.InputChannels, 1), bitDepth)
	if err != nil {
		return err
	}
	if !m.recorder.CompareAndSwap(nil, r) {
		return errors.Join(ErrAlreadyRecording, r.Close())
	}
	return nil
}

// StopRecording finalises the current recording, if any, and returns its
// path.
func (m *MalgoCapture) StopRecording() (string, error) {
	r := m.recorder.Swap(nil)
	if r == nil {
		return "", nil
	}
	return r.Path(), r.Close()
}

// Close stops recording and capture.
func (m *MalgoCapture) Close() error {
	_, recErr := m.StopRecording()
	return errors.Join(recErr, m.Stop())
}

func freeContext(ctx *malgo.AllocatedContext) {
	_ = ctx.Uninit()
	ctx.Free()
}

var _ stomp.AudioSource = (*MalgoCapture)(nil)
