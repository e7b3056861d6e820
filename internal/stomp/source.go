// SPDX-License-Identifier: MIT
package stomp

import "math"

// MotionSample is one accelerometer reading in device-local units. Y is the
// secondary (vertical) axis the detector scores.
type MotionSample struct {
	X, Y, Z float64
}

// Vertical returns the magnitude of the secondary axis.
func (s MotionSample) Vertical() float64 {
	return math.Abs(s.Y)
}

// MotionSource pushes motion samples to the detector. Start is called once
// per detection session and Stop detaches the handler; Available reports
// whether the host has a motion capability at all.
type MotionSource interface {
	Available() bool
	Start(handler func(MotionSample)) error
	Stop() error
}

// AudioSource pushes mono float buffers, normalised to [-1, 1], to the
// detector. The handler runs on the capture goroutine and must not block.
type AudioSource interface {
	Start(handler func([]float32)) error
	Stop() error
}
