// SPDX-License-Identifier: MIT
//
// Package stomp implements the stomp detector: a state machine fusing a
// motion stream with an audio stream, accepting stomps that clear a
// tempo-aware cooldown and an adaptive threshold, and reporting each one
// without ever blocking the sample paths.
package stomp

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"stomp/internal/analysis"
	"stomp/internal/clock"
	applog "stomp/internal/log"
	"stomp/internal/session"
	"stomp/internal/transport"
)

// RewardUnitsPerStomp is credited for every accepted stomp.
const RewardUnitsPerStomp = 1

var (
	// ErrInvalidTempo is returned by Start for a tempo that is not finite
	// and positive.
	ErrInvalidTempo = errors.New("stomp: tempo must be a finite positive BPM")

	// ErrMotionUnavailable is returned by Start when the host has no motion
	// capability. The detector stays Idle.
	ErrMotionUnavailable = errors.New("stomp: motion sensing unavailable")

	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("stomp: detector closed")
)

// State is the detector lifecycle state.
type State int

const (
	Idle State = iota
	Detecting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Detecting:
		return "detecting"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config wires a detector to its collaborators. Motion is required to
// start; everything else is optional.
type Config struct {
	Motion MotionSource
	Audio  AudioSource

	// Reporter receives every accepted stomp from the dispatcher workers.
	// Nil disables remote reporting.
	Reporter transport.Reporter

	// OnStompDetected is called synchronously, outside the detector lock,
	// with RewardUnitsPerStomp for every accepted stomp.
	OnStompDetected func(rewardUnits int)

	// Now stamps samples and kicks. Defaults to clock.System.
	Now clock.Func

	QueueSize int // Report queue bound, DefaultQueueSize when zero.
	Workers   int // Report goroutines, DefaultWorkers when zero.
}

// Snapshot is a consistent view of the detector for monitoring.
type Snapshot struct {
	State       State
	Accepted    uint64
	Elapsed     time.Duration
	RatePerHour float64
	Tempo       analysis.Tempo
	Kicks       int // Intervals in the kick history.
	Cooldown    time.Duration
	Threshold   float64
	LastStomp   time.Time // Zero before the first stomp.
	Dropped     uint64    // Reports dropped on a full queue, lifetime.
	Failed      uint64    // Reports the reporter rejected, lifetime.
}

// Detector is the stomp state machine. Create one with NewDetector; the
// zero value is not usable.
//
// Thread Safety:
//   - HandleMotion and HandleAudio may run concurrently from their producers
//   - mu guards the session, kick history and cooldown; critical sections hold
//     comparisons and a ring append only
//   - lifecycle serialises Start, Stop and Close
//   - callbacks and report dispatch run outside mu
type Detector struct {
	cfg Config
	now clock.Func

	lifecycle sync.Mutex
	closed    bool

	mu               sync.Mutex
	state            State
	session          session.RateCounter
	tracker          *analysis.KickIntervalTracker
	fallbackCooldown time.Duration
	lastStomp        time.Time
	hasStomp         bool
	seq              uint64

	analyzer      *analysis.KickAnalyzer
	motionHandler func(MotionSample)
	dispatcher    *dispatcher

	log *applog.Logger
}

// NewDetector returns an Idle detector.
func NewDetector(cfg Config) *Detector {
	d := &Detector{
		cfg:     cfg,
		now:     cfg.Now,
		tracker: analysis.NewKickIntervalTracker(),
		log:     applog.Component("stomp"),
	}
	if d.now == nil {
		d.now = clock.System
	}
	d.analyzer = analysis.NewKickAnalyzer(d.recordKick)
	d.motionHandler = func(s MotionSample) { d.HandleMotion(s) }
	if cfg.Reporter != nil {
		d.dispatcher = newDispatcher(cfg.Reporter, cfg.QueueSize, cfg.Workers)
	}
	return d
}

// Start moves the detector from Idle to Detecting with tempoBPM as the
// initial tempo estimate. The session, kick history and cooldown are reset
// and the sources attached. Start while Detecting is a no-op.
func (d *Detector) Start(tempoBPM float64) error {
	if tempoBPM <= 0 || math.IsNaN(tempoBPM) || math.IsInf(tempoBPM, 0) {
		return fmt.Errorf("%w: got %v", ErrInvalidTempo, tempoBPM)
	}

	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	if d.closed {
		return ErrClosed
	}
	if d.State() == Detecting {
		return nil
	}
	if d.cfg.Motion == nil || !d.cfg.Motion.Available() {
		return ErrMotionUnavailable
	}

	now := d.now()
	d.mu.Lock()
	d.session.Start(now)
	d.tracker.Reset()
	d.fallbackCooldown = CooldownForBPM(tempoBPM)
	d.lastStomp, d.hasStomp = time.Time{}, false
	d.seq = 0
	d.state = Detecting
	d.mu.Unlock()

	if err := d.cfg.Motion.Start(d.motionHandler); err != nil {
		d.clear()
		return fmt.Errorf("start motion source: %w", err)
	}
	if d.cfg.Audio != nil {
		if err := d.cfg.Audio.Start(d.HandleAudio); err != nil {
			d.clear()
			return errors.Join(
				fmt.Errorf("start audio source: %w", err),
				d.cfg.Motion.Stop(),
			)
		}
	}

	d.log.With(applog.Fields{
		"tempo":    tempoBPM,
		"cooldown": d.fallbackCooldown,
	}).Infof("detection started")
	return nil
}

// Stop moves the detector to Idle, clears the session and cooldown and
// detaches both sources. Reports already queued still complete. Stop on an
// Idle detector returns nil.
func (d *Detector) Stop() error {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()
	return d.stopLocked()
}

func (d *Detector) stopLocked() error {
	d.mu.Lock()
	if d.state == Idle {
		d.mu.Unlock()
		return nil
	}
	accepted := d.session.Accepted()
	elapsed := d.session.Elapsed(d.now())
	d.mu.Unlock()

	d.clear()

	var errs []error
	if err := d.cfg.Motion.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop motion source: %w", err))
	}
	if d.cfg.Audio != nil {
		if err := d.cfg.Audio.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop audio source: %w", err))
		}
	}

	d.log.With(applog.Fields{
		"accepted": accepted,
		"elapsed":  elapsed.Round(time.Millisecond),
	}).Infof("detection stopped")
	return errors.Join(errs...)
}

// clear returns the shared state to Idle.
func (d *Detector) clear() {
	d.mu.Lock()
	d.state = Idle
	d.session.Stop()
	d.tracker.Reset()
	d.fallbackCooldown = 0
	d.lastStomp, d.hasStomp = time.Time{}, false
	d.mu.Unlock()
}

// Close stops detection, waits for queued reports and closes the reporter.
// The detector cannot be restarted afterwards.
func (d *Detector) Close() error {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	err := d.stopLocked()
	if d.dispatcher != nil {
		d.dispatcher.close()
		err = errors.Join(err, d.cfg.Reporter.Close())
	}
	return err
}

// State returns the current lifecycle state.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// HandleMotion scores one motion sample at the current clock time and
// reports whether it was accepted as a stomp. Samples arriving while Idle
// and non-finite samples are rejected.
func (d *Detector) HandleMotion(s MotionSample) bool {
	v := s.Vertical()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	now := d.now()

	d.mu.Lock()
	if d.state != Detecting {
		d.mu.Unlock()
		return false
	}
	if d.hasStomp && now.Sub(d.lastStomp) < d.cooldownLocked() {
		d.mu.Unlock()
		return false
	}
	tempo := d.tracker.Tempo()
	threshold := Threshold(tempo, d.session.Accepted(), d.session.Elapsed(now))
	if v <= threshold {
		d.mu.Unlock()
		return false
	}

	d.lastStomp, d.hasStomp = now, true
	accepted := d.session.Increment()
	d.seq++
	ev := transport.StompEvent{
		Seq:          d.seq,
		At:           now,
		RewardUnits:  RewardUnitsPerStomp,
		Acceleration: v,
		Threshold:    threshold,
		TempoBPM:     tempo.OrElse(0),
		Accepted:     accepted,
	}
	d.mu.Unlock()

	if d.dispatcher != nil {
		d.dispatcher.enqueue(ev)
	}
	if d.cfg.OnStompDetected != nil {
		d.cfg.OnStompDetected(RewardUnitsPerStomp)
	}
	return true
}

// HandleAudio runs the kick analyzer over buf. The peak scan happens
// before the lock is taken; only a detected kick touches shared state.
func (d *Detector) HandleAudio(buf []float32) {
	if len(buf) == 0 {
		return
	}
	d.analyzer.Analyze(buf, d.now())
}

// recordKick feeds a detected kick to the tracker while Detecting.
func (d *Detector) recordKick(at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Detecting {
		return
	}
	d.tracker.Push(at)
}

func (d *Detector) cooldownLocked() time.Duration {
	return Cooldown(d.tracker.Tempo(), d.fallbackCooldown)
}

// Snapshot returns the detector's current figures.
func (d *Detector) Snapshot() Snapshot {
	now := d.now()

	d.mu.Lock()
	snap := Snapshot{
		State:       d.state,
		Accepted:    d.session.Accepted(),
		Elapsed:     d.session.Elapsed(now),
		RatePerHour: d.session.RatePerHour(now),
		Tempo:       d.tracker.Tempo(),
		Kicks:       d.tracker.Len(),
	}
	if d.state == Detecting {
		snap.Cooldown = d.cooldownLocked()
		snap.Threshold = Threshold(snap.Tempo, snap.Accepted, snap.Elapsed)
	}
	if d.hasStomp {
		snap.LastStomp = d.lastStomp
	}
	d.mu.Unlock()

	if d.dispatcher != nil {
		snap.Dropped = d.dispatcher.dropped.Load()
		snap.Failed = d.dispatcher.failed.Load()
	}
	return snap
}
