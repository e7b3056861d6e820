// SPDX-License-Identifier: MIT
package transport

import (
	"context"

	applog "stomp/internal/log"
)

// LoggingReporter implements Reporter by logging each stomp. It is the
// default when no remote collaborator is configured.
type LoggingReporter struct {
	log *applog.Logger
}

// NewLoggingReporter creates a new LoggingReporter instance.
func NewLoggingReporter() *LoggingReporter {
	l := applog.Component("report/log")
	l.Infof("using logging reporter")
	return &LoggingReporter{log: l}
}

// ReportStomp logs the event at INFO. It never fails.
func (lr *LoggingReporter) ReportStomp(_ context.Context, ev StompEvent) error {
	lr.log.Infof("stomp #%d accepted (total %d, accel %.2f > %.2f, tempo %.1f)",
		ev.Seq, ev.Accepted, ev.Acceleration, ev.Threshold, ev.TempoBPM)
	return nil
}

// Close is a no-op for LoggingReporter.
func (lr *LoggingReporter) Close() error {
	return nil
}

// Ensure LoggingReporter satisfies the interface at compile time.
var _ Reporter = (*LoggingReporter)(nil)
