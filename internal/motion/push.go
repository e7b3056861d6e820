// SPDX-License-Identifier: MIT
//
// Package motion provides motion sources for the stomp detector: a push
// source for hosts that run their own sensor loop and a serial IMU reader.
package motion

import (
	"errors"
	"sync"

	"stomp/internal/stomp"
)

// ErrAlreadyStarted is returned by Start on a running source.
var ErrAlreadyStarted = errors.New("motion: source already started")

// Push is a motion source fed by the host calling Send.
type Push struct {
	mu          sync.Mutex
	handler     func(stomp.MotionSample)
	unavailable bool
}

// NewPush returns an available push source.
func NewPush() *Push {
	return &Push{}
}

// SetAvailable marks the host's motion capability as present or missing.
func (p *Push) SetAvailable(ok bool) {
	p.mu.Lock()
	p.unavailable = !ok
	p.mu.Unlock()
}

func (p *Push) Available() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.unavailable
}

func (p *Push) Start(handler func(stomp.MotionSample)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handler != nil {
		return ErrAlreadyStarted
	}
	p.handler = handler
	return nil
}

func (p *Push) Stop() error {
	p.mu.Lock()
	p.handler = nil
	p.mu.Unlock()
	return nil
}

// Send delivers s to the attached handler and reports whether one was
// attached. The handler runs on the caller's goroutine.
func (p *Push) Send(s stomp.MotionSample) bool {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	if h == nil {
		return false
	}
	h(s)
	return true
}

var _ stomp.MotionSource = (*Push)(nil)
