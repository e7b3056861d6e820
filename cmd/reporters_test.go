// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"stomp/internal/config"
	"stomp/internal/transport"
)

func TestBuildReporter(t *testing.T) {
	listener, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	rc := config.ReportersConfig{
		UDPTarget:   listener.LocalAddr().String(),
		JournalPath: filepath.Join(t.TempDir(), "stomps.jsonl.zst"),
	}

	t.Run("none", func(t *testing.T) {
		r, err := buildReporter(rc)
		if err != nil || r != nil {
			t.Fatalf("buildReporter = %v, %v; want nil, nil", r, err)
		}
	})

	t.Run("single", func(t *testing.T) {
		rc := rc
		rc.Kinds = []string{config.ReporterLog}
		r, err := buildReporter(rc)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := r.(*transport.LoggingReporter); !ok {
			t.Errorf("got %T, want *transport.LoggingReporter", r)
		}
		r.Close()
	})

	t.Run("several", func(t *testing.T) {
		rc := rc
		rc.Kinds = []string{config.ReporterLog, config.ReporterJournal, config.ReporterUDP}
		r, err := buildReporter(rc)
		if err != nil {
			t.Fatal(err)
		}
		multi, ok := r.(transport.Multi)
		if !ok || len(multi) != 3 {
			t.Fatalf("got %T of %d, want transport.Multi of 3", r, len(multi))
		}

		ev := transport.StompEvent{Seq: 1, At: time.Unix(0, 0), RewardUnits: 1, Accepted: 1}
		if err := r.ReportStomp(context.Background(), ev); err != nil {
			t.Errorf("ReportStomp: %v", err)
		}
		if err := r.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}

		events, err := transport.ReadJournal(rc.JournalPath)
		if err != nil {
			t.Fatal(err)
		}
		if len(events) != 1 || events[0].Seq != 1 {
			t.Errorf("journal holds %+v", events)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		rc := rc
		rc.Kinds = []string{config.ReporterLog, "carrier-pigeon"}
		if _, err := buildReporter(rc); err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("open failure", func(t *testing.T) {
		rc := rc
		rc.Kinds = []string{config.ReporterJournal}
		rc.JournalPath = filepath.Join(t.TempDir(), "missing", "dir", "stomps.zst")
		if _, err := buildReporter(rc); err == nil {
			t.Error("expected an error")
		}
	})
}
