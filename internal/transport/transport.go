// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"errors"
	"time"
)

// ErrQueueFull is returned by reporters that buffer events and had no room
// for another one.
var ErrQueueFull = errors.New("transport: send queue full")

// ErrClosed is returned by reporters used after Close.
var ErrClosed = errors.New("transport: reporter closed")

// StompEvent describes one accepted stomp. Everything a remote collaborator
// needs to credit the reward and audit the fairness envelope travels with it.
type StompEvent struct {
	Seq          uint64    `json:"seq"`            // Per-detector sequence, starts at 1 for every session.
	At           time.Time `json:"at"`             // Acceptance time.
	RewardUnits  int       `json:"reward_units"`   // Always 1 today.
	Acceleration float64   `json:"acceleration"`   // |secondary-axis| value that triggered the stomp.
	Threshold    float64   `json:"threshold"`      // Threshold in effect for the sample.
	TempoBPM     float64   `json:"tempo_bpm"`      // Tracker tempo, 0 when unknown.
	Accepted     uint64    `json:"accepted_count"` // Session total including this stomp.
}

// Reporter notifies a remote collaborator about accepted stomps.
// Implementations must be safe for concurrent use; the detector calls
// ReportStomp from its dispatcher goroutines, never from a sample path.
type Reporter interface {
	ReportStomp(ctx context.Context, ev StompEvent) error
	Close() error
}
