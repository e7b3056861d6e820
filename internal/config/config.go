// SPDX-License-Identifier: MIT
//
// Package config holds the runtime configuration of stompd. The detector's
// fairness constants are deliberately absent: only the host plumbing around
// it is configurable.
package config

import "time"

// Defaults and limits for the host configuration.
const (
	DefaultLogLevel = "info"

	// Tempo assumed at Start until the tracker has heard two intervals.
	DefaultInitialTempoBPM = 120.0
	DefaultNotifyQueueSize = 64
	DefaultNotifyWorkers   = 1
	DefaultStatsInterval   = 30 * time.Second

	DefaultBackend         = BackendPortAudio
	DefaultDeviceID        = MinDeviceID
	DefaultSampleRate      = 44100
	DefaultFramesPerBuffer = 1024
	DefaultInputChannels   = 1

	DefaultOutputDir = "./recordings"
	DefaultBitDepth  = 16

	DefaultMotionSource = MotionNone
	DefaultBaudRate     = 115200
	DefaultReadTimeout  = 100 * time.Millisecond

	DefaultNATSSubject = "stomp.events"

	MinDeviceID     = -1 // System default input device.
	MinSampleRate   = 8000
	MaxSampleRate   = 192000
	MaxBufferFrames = 8192
	MaxChannels     = 32
)

// Audio backends.
const (
	BackendPortAudio = "portaudio"
	BackendMalgo     = "malgo"
	BackendNone      = "none"
)

// Motion sources.
const (
	MotionSerial = "serial"
	MotionNone   = "none"
)

// Reporter kinds.
const (
	ReporterLog       = "log"
	ReporterWebSocket = "websocket"
	ReporterUDP       = "udp"
	ReporterNATS      = "nats"
	ReporterJournal   = "journal"
)

// Config is the root configuration, loaded from YAML or TOML.
type Config struct {
	LogLevel  string          `yaml:"log_level" toml:"log_level"`
	Detector  DetectorConfig  `yaml:"detector" toml:"detector"`
	Audio     AudioConfig     `yaml:"audio" toml:"audio"`
	Recording RecordingConfig `yaml:"recording" toml:"recording"`
	Motion    MotionConfig    `yaml:"motion" toml:"motion"`
	Reporters ReportersConfig `yaml:"reporters" toml:"reporters"`
}

// DetectorConfig covers the detector host, not the detection rules.
type DetectorConfig struct {
	InitialTempoBPM float64       `yaml:"initial_tempo_bpm" toml:"initial_tempo_bpm"` // Tempo passed to Start.
	NotifyQueueSize int           `yaml:"notify_queue_size" toml:"notify_queue_size"` // Pending reports before dropping.
	NotifyWorkers   int           `yaml:"notify_workers" toml:"notify_workers"`       // Goroutines calling reporters.
	StatsInterval   time.Duration `yaml:"stats_interval" toml:"stats_interval"`       // Periodic summary log, 0 disables.
}

// AudioConfig selects and configures the capture backend.
type AudioConfig struct {
	Backend         string  `yaml:"backend" toml:"backend"`                     // portaudio, malgo or none.
	InputDevice     int     `yaml:"input_device" toml:"input_device"`           // PortAudio device index, -1 for default.
	DeviceName      string  `yaml:"device_name" toml:"device_name"`             // Case-insensitive name match, overrides InputDevice.
	SampleRate      float64 `yaml:"sample_rate" toml:"sample_rate"`             // Hz.
	FramesPerBuffer int     `yaml:"frames_per_buffer" toml:"frames_per_buffer"` // Power of two.
	InputChannels   int     `yaml:"input_channels" toml:"input_channels"`
	LowLatency      bool    `yaml:"low_latency" toml:"low_latency"`
}

// RecordingConfig controls WAV capture of live sessions.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	OutputDir string `yaml:"output_dir" toml:"output_dir"`
	BitDepth  int    `yaml:"bit_depth" toml:"bit_depth"` // 16 or 24.
}

// MotionConfig selects the motion source.
type MotionConfig struct {
	Source      string        `yaml:"source" toml:"source"` // serial or none.
	SerialPort  string        `yaml:"serial_port" toml:"serial_port"`
	BaudRate    int           `yaml:"baud_rate" toml:"baud_rate"`
	ReadTimeout time.Duration `yaml:"read_timeout" toml:"read_timeout"`
}

// ReportersConfig lists the enabled reporters and their endpoints.
type ReportersConfig struct {
	Kinds         []string `yaml:"kinds" toml:"kinds"`
	WebSocketAddr string   `yaml:"websocket_addr" toml:"websocket_addr"`
	UDPTarget     string   `yaml:"udp_target" toml:"udp_target"`
	NATSURL       string   `yaml:"nats_url" toml:"nats_url"`
	NATSSubject   string   `yaml:"nats_subject" toml:"nats_subject"`
	JournalPath   string   `yaml:"journal_path" toml:"journal_path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Detector: DetectorConfig{
			InitialTempoBPM: DefaultInitialTempoBPM,
			NotifyQueueSize: DefaultNotifyQueueSize,
			NotifyWorkers:   DefaultNotifyWorkers,
			StatsInterval:   DefaultStatsInterval,
		},
		Audio: AudioConfig{
			Backend:         DefaultBackend,
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   DefaultInputChannels,
		},
		Recording: RecordingConfig{
			OutputDir: DefaultOutputDir,
			BitDepth:  DefaultBitDepth,
		},
		Motion: MotionConfig{
			Source:      DefaultMotionSource,
			BaudRate:    DefaultBaudRate,
			ReadTimeout: DefaultReadTimeout,
		},
		Reporters: ReportersConfig{
			Kinds:         []string{ReporterLog},
			WebSocketAddr: ":8080",
			UDPTarget:     "127.0.0.1:9090",
			NATSURL:       "nats://127.0.0.1:4222",
			NATSSubject:   DefaultNATSSubject,
			JournalPath:   "stomps.jsonl.zst",
		},
	}
}

// HasReporter reports whether kind is enabled.
func (c *Config) HasReporter(kind string) bool {
	for _, k := range c.Reporters.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}
