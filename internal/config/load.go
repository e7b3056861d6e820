// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	applog "stomp/internal/log"
	"stomp/pkg/bitint"
)

// DefaultPaths are searched, in order, when Load is given no path.
var DefaultPaths = []string{"stompd.yaml", "stompd.toml"}

// Load reads the configuration at path. With an empty path the
// DefaultPaths are tried and, if none exists, the built-in defaults are
// used. Files ending in .toml are decoded as TOML, anything else as YAML.
// STOMP_* environment variables are applied last, then the result is
// validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range DefaultPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// envOverride maps one STOMP_* variable onto the config.
type envOverride struct {
	name  string
	apply func(c *Config, val string) error
}

var envOverrides = []envOverride{
	{"STOMP_LOG_LEVEL", func(c *Config, v string) error { c.LogLevel = v; return nil }},
	{"STOMP_TEMPO_BPM", func(c *Config, v string) error {
		return parseFloat(v, &c.Detector.InitialTempoBPM)
	}},
	{"STOMP_AUDIO_BACKEND", func(c *Config, v string) error { c.Audio.Backend = v; return nil }},
	{"STOMP_AUDIO_DEVICE", func(c *Config, v string) error { c.Audio.DeviceName = v; return nil }},
	{"STOMP_MOTION_SOURCE", func(c *Config, v string) error { c.Motion.Source = v; return nil }},
	{"STOMP_SERIAL_PORT", func(c *Config, v string) error { c.Motion.SerialPort = v; return nil }},
	{"STOMP_REPORTERS", func(c *Config, v string) error {
		c.Reporters.Kinds = splitList(v)
		return nil
	}},
	{"STOMP_UDP_TARGET", func(c *Config, v string) error { c.Reporters.UDPTarget = v; return nil }},
	{"STOMP_NATS_URL", func(c *Config, v string) error { c.Reporters.NATSURL = v; return nil }},
	{"STOMP_WEBSOCKET_ADDR", func(c *Config, v string) error { c.Reporters.WebSocketAddr = v; return nil }},
	{"STOMP_JOURNAL_PATH", func(c *Config, v string) error { c.Reporters.JournalPath = v; return nil }},
	{"STOMP_RECORD", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		c.Recording.Enabled = b
		return nil
	}},
	{"STOMP_STATS_INTERVAL", func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		c.Detector.StatsInterval = d
		return nil
	}},
}

func (c *Config) applyEnvOverrides(lookup func(string) (string, bool)) error {
	log := applog.Component("config")
	for _, o := range envOverrides {
		val, ok := lookup(o.name)
		if !ok {
			continue
		}
		if err := o.apply(c, val); err != nil {
			return fmt.Errorf("environment %s=%q: %w", o.name, val, err)
		}
		log.Debugf("override from %s: %q", o.name, val)
	}
	return nil
}

func parseFloat(s string, dst *float64) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks every section and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error, fatal", c.LogLevel))
	}

	d := c.Detector
	if d.InitialTempoBPM <= 0 || math.IsNaN(d.InitialTempoBPM) || math.IsInf(d.InitialTempoBPM, 0) {
		errs = append(errs, fmt.Errorf("detector.initial_tempo_bpm must be a positive number, got %v", d.InitialTempoBPM))
	}
	if d.NotifyQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("detector.notify_queue_size must be positive, got %d", d.NotifyQueueSize))
	}
	if d.NotifyWorkers <= 0 {
		errs = append(errs, fmt.Errorf("detector.notify_workers must be positive, got %d", d.NotifyWorkers))
	}
	if d.StatsInterval < 0 {
		errs = append(errs, fmt.Errorf("detector.stats_interval must not be negative, got %v", d.StatsInterval))
	}

	a := c.Audio
	switch a.Backend {
	case BackendPortAudio, BackendMalgo, BackendNone:
	default:
		errs = append(errs, fmt.Errorf("audio.backend %q is not one of portaudio, malgo, none", a.Backend))
	}
	if a.Backend != BackendNone {
		if a.InputDevice < MinDeviceID {
			errs = append(errs, fmt.Errorf("audio.input_device must be >= %d, got %d", MinDeviceID, a.InputDevice))
		}
		if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
			errs = append(errs, fmt.Errorf("audio.sample_rate must be within %d-%d Hz, got %v", MinSampleRate, MaxSampleRate, a.SampleRate))
		}
		if !bitint.IsPowerOfTwo(a.FramesPerBuffer) || a.FramesPerBuffer > MaxBufferFrames {
			errs = append(errs, fmt.Errorf("audio.frames_per_buffer must be a power of two up to %d, got %d (try %d)",
				MaxBufferFrames, a.FramesPerBuffer, min(bitint.NextPowerOfTwo(a.FramesPerBuffer), MaxBufferFrames)))
		}
		if a.InputChannels < 1 || a.InputChannels > MaxChannels {
			errs = append(errs, fmt.Errorf("audio.input_channels must be within 1-%d, got %d", MaxChannels, a.InputChannels))
		}
	}

	r := c.Recording
	if r.Enabled {
		if a.Backend == BackendNone {
			errs = append(errs, errors.New("recording.enabled requires an audio backend"))
		}
		if r.OutputDir == "" {
			errs = append(errs, errors.New("recording.output_dir must be set when recording is enabled"))
		}
		if r.BitDepth != 16 && r.BitDepth != 24 {
			errs = append(errs, fmt.Errorf("recording.bit_depth must be 16 or 24, got %d", r.BitDepth))
		}
	}

	m := c.Motion
	switch m.Source {
	case MotionNone:
	case MotionSerial:
		if m.SerialPort == "" {
			errs = append(errs, errors.New("motion.serial_port must be set for the serial source"))
		}
		if m.BaudRate <= 0 {
			errs = append(errs, fmt.Errorf("motion.baud_rate must be positive, got %d", m.BaudRate))
		}
		if m.ReadTimeout <= 0 {
			errs = append(errs, fmt.Errorf("motion.read_timeout must be positive, got %v", m.ReadTimeout))
		}
	default:
		errs = append(errs, fmt.Errorf("motion.source %q is not one of serial, none", m.Source))
	}

	errs = append(errs, c.validateReporters()...)
	return errors.Join(errs...)
}

func (c *Config) validateReporters() []error {
	var errs []error
	rc := c.Reporters
	seen := make(map[string]bool, len(rc.Kinds))
	for _, kind := range rc.Kinds {
		if seen[kind] {
			errs = append(errs, fmt.Errorf("reporters.kinds lists %q twice", kind))
			continue
		}
		seen[kind] = true

		switch kind {
		case ReporterLog:
		case ReporterWebSocket:
			if rc.WebSocketAddr == "" {
				errs = append(errs, errors.New("reporters.websocket_addr must be set for the websocket reporter"))
			}
		case ReporterUDP:
			if !strings.Contains(rc.UDPTarget, ":") {
				errs = append(errs, fmt.Errorf("reporters.udp_target %q appears invalid (missing port?)", rc.UDPTarget))
			}
		case ReporterNATS:
			if rc.NATSURL == "" {
				errs = append(errs, errors.New("reporters.nats_url must be set for the nats reporter"))
			}
		case ReporterJournal:
			if rc.JournalPath == "" {
				errs = append(errs, errors.New("reporters.journal_path must be set for the journal reporter"))
			}
		default:
			errs = append(errs, fmt.Errorf("reporters.kinds: unknown reporter %q", kind))
		}
	}
	return errs
}
