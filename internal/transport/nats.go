// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	applog "stomp/internal/log"
)

// DefaultNATSSubject is the subject stomps are published on unless
// configured otherwise.
const DefaultNATSSubject = "stomp.events"

// Publisher is the subset of *nats.Conn the reporter needs.
type Publisher interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSReporter publishes each stomp as a JSON message, for live-session
// services listening on the bus.
type NATSReporter struct {
	conn    Publisher
	subject string
	log     *applog.Logger
}

// DialNATS connects to url and returns a reporter publishing on subject.
// The connection reconnects forever; publishes made while disconnected are
// buffered by the client library.
func DialNATS(url, subject string) (*NATSReporter, error) {
	nc, err := nats.Connect(
		url,
		nats.Name("stompd"),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	return NewNATSReporter(nc, subject), nil
}

// NewNATSReporter wraps an existing connection.
func NewNATSReporter(conn Publisher, subject string) *NATSReporter {
	if subject == "" {
		subject = DefaultNATSSubject
	}
	l := applog.Component("report/nats")
	l.Infof("publishing stomps on %q", subject)
	return &NATSReporter{conn: conn, subject: subject, log: l}
}

// ReportStomp publishes ev on the configured subject.
func (r *NATSReporter) ReportStomp(_ context.Context, ev StompEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode stomp %d: %w", ev.Seq, err)
	}
	if err := r.conn.Publish(r.subject, data); err != nil {
		return fmt.Errorf("publish stomp %d: %w", ev.Seq, err)
	}
	return nil
}

// Close drains the connection so buffered publishes are flushed.
func (r *NATSReporter) Close() error {
	return r.conn.Drain()
}

var _ Reporter = (*NATSReporter)(nil)
