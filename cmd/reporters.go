// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"fmt"

	"stomp/internal/config"
	"stomp/internal/transport"
	"stomp/internal/transport/udp"
)

// buildReporter opens every reporter named in rc.Kinds. More than one is
// combined with transport.Multi; none yields a nil Reporter. If any fails
// to open, those already opened are closed.
func buildReporter(rc config.ReportersConfig) (transport.Reporter, error) {
	var opened transport.Multi
	for _, kind := range rc.Kinds {
		r, err := openReporter(kind, rc)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("reporter %s: %w", kind, err), opened.Close())
		}
		opened = append(opened, r)
	}

	switch len(opened) {
	case 0:
		return nil, nil
	case 1:
		return opened[0], nil
	default:
		return opened, nil
	}
}

func openReporter(kind string, rc config.ReportersConfig) (transport.Reporter, error) {
	switch kind {
	case config.ReporterLog:
		return transport.NewLoggingReporter(), nil
	case config.ReporterWebSocket:
		return transport.NewWebSocketReporter(rc.WebSocketAddr), nil
	case config.ReporterUDP:
		return udp.NewReporter(rc.UDPTarget)
	case config.ReporterNATS:
		return transport.DialNATS(rc.NATSURL, rc.NATSSubject)
	case config.ReporterJournal:
		return transport.OpenJournal(rc.JournalPath)
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
}
