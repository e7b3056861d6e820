// SPDX-License-Identifier: MIT
package stomp

import (
	"context"
	"sync"
	"sync/atomic"

	applog "stomp/internal/log"
	"stomp/internal/transport"
)

const (
	// DefaultQueueSize bounds the reports waiting for a worker.
	DefaultQueueSize = 64

	// DefaultWorkers is the number of goroutines calling the reporter.
	DefaultWorkers = 1
)

// dispatcher hands accepted stomps to the reporter off the sample path.
// Fire and forget: enqueue never blocks, failed reports are logged and
// counted, and nothing is retried.
//
// Thread Safety:
// - enqueue may be called from any goroutine
// - closed is guarded by mu so enqueue never sends on a closed queue
type dispatcher struct {
	reporter transport.Reporter
	queue    chan transport.StompEvent
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	dropped atomic.Uint64 // Reports discarded because the queue was full.
	failed  atomic.Uint64 // Reports the reporter returned an error for.

	log *applog.Logger
}

func newDispatcher(reporter transport.Reporter, queueSize, workers int) *dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}

	d := &dispatcher{
		reporter: reporter,
		queue:    make(chan transport.StompEvent, queueSize),
		log:      applog.Component("stomp/dispatch"),
	}
	d.wg.Add(workers)
	for range workers {
		go d.run()
	}
	return d
}

func (d *dispatcher) run() {
	defer d.wg.Done()
	for ev := range d.queue {
		if err := d.reporter.ReportStomp(context.Background(), ev); err != nil {
			d.failed.Add(1)
			d.log.With(applog.Fields{"seq": ev.Seq}).Warnf("report failed: %v", err)
		}
	}
}

// enqueue queues ev and reports whether it was accepted.
func (d *dispatcher) enqueue(ev transport.StompEvent) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false
	}
	select {
	case d.queue <- ev:
		return true
	default:
		n := d.dropped.Add(1)
		d.log.With(applog.Fields{"seq": ev.Seq, "dropped": n}).Warnf("report queue full, dropping stomp")
		return false
	}
}

// close stops accepting reports and waits for the queued ones to finish.
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}
