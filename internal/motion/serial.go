// SPDX-License-Identifier: MIT
package motion

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/tarm/serial"

	applog "stomp/internal/log"
	"stomp/internal/stomp"
)

const (
	// DefaultBaudRate matches the common USB IMU boards.
	DefaultBaudRate = 115200

	// DefaultReadTimeout bounds each read so Stop is noticed promptly.
	DefaultReadTimeout = 100 * time.Millisecond

	maxLineLength = 256
)

// OpenFunc opens the serial port described by cfg.
type OpenFunc func(cfg *serial.Config) (io.ReadCloser, error)

// SerialIMU reads newline-terminated "x,y,z" accelerometer lines from a
// serial port, one sample per line. Malformed lines are skipped.
type SerialIMU struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration

	// Open defaults to serial.OpenPort; tests substitute a pipe.
	Open OpenFunc

	mu      sync.Mutex
	conn    io.ReadCloser
	done    chan struct{}
	stopped bool
	log     *applog.Logger
}

// NewSerialIMU returns a reader for port at baud. Zero values take the
// package defaults.
func NewSerialIMU(port string, baud int, readTimeout time.Duration) *SerialIMU {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	return &SerialIMU{
		Port:        port,
		BaudRate:    baud,
		ReadTimeout: readTimeout,
		log:         applog.Component("motion/serial"),
	}
}

// Available reports whether the port device exists.
func (s *SerialIMU) Available() bool {
	if s.Port == "" {
		return false
	}
	if s.Open != nil {
		return true
	}
	_, err := os.Stat(s.Port)
	return err == nil
}

// Start opens the port and begins delivering samples to handler from a
// reader goroutine.
func (s *SerialIMU) Start(handler func(stomp.MotionSample)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return ErrAlreadyStarted
	}

	open := s.Open
	if open == nil {
		open = func(cfg *serial.Config) (io.ReadCloser, error) {
			return serial.OpenPort(cfg)
		}
	}
	conn, err := open(&serial.Config{
		Name:        s.Port,
		Baud:        s.BaudRate,
		ReadTimeout: s.ReadTimeout,
	})
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", s.Port, err)
	}

	s.conn = conn
	s.stopped = false
	s.done = make(chan struct{})
	go s.readLoop(conn, handler, s.done)

	s.log.Infof("reading samples from %s at %d baud", s.Port, s.BaudRate)
	return nil
}

// readLoop splits the stream into lines. A read timeout surfaces as a zero
// length read or io.EOF and only means no data arrived.
func (s *SerialIMU) readLoop(conn io.Reader, handler func(stomp.MotionSample), done chan struct{}) {
	defer close(done)

	chunk := make([]byte, 128)
	var line []byte
	overlong := false // The current line passed maxLineLength and is dropped.
	for {
		n, err := conn.Read(chunk)
		for _, b := range chunk[:n] {
			if b != '\n' {
				if len(line) < maxLineLength {
					line = append(line, b)
				} else {
					overlong = true
				}
				continue
			}
			if overlong {
				s.log.Debugf("skipping line longer than %d bytes", maxLineLength)
			} else {
				s.deliver(bytes.TrimSpace(line), handler)
			}
			line, overlong = line[:0], false
		}

		if err != nil && !errors.Is(err, io.EOF) {
			if !s.isStopped() {
				s.log.Errorf("read error: %v", err)
			}
			return
		}
		if s.isStopped() {
			return
		}
	}
}

func (s *SerialIMU) deliver(line []byte, handler func(stomp.MotionSample)) {
	if len(line) == 0 {
		return
	}
	sample, err := ParseSample(string(line))
	if err != nil {
		s.log.Debugf("skipping line: %v", err)
		return
	}
	handler(sample)
}

func (s *SerialIMU) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Stop closes the port and waits for the reader goroutine to exit.
func (s *SerialIMU) Stop() error {
	s.mu.Lock()
	if s.conn == nil {
		s.mu.Unlock()
		return nil
	}
	conn, done := s.conn, s.done
	s.conn = nil
	s.stopped = true
	s.mu.Unlock()

	err := conn.Close()
	<-done
	if err != nil {
		return fmt.Errorf("close serial port %s: %w", s.Port, err)
	}
	return nil
}

var _ stomp.MotionSource = (*SerialIMU)(nil)
