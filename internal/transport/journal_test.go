// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func testEvent(seq uint64) StompEvent {
	return StompEvent{
		Seq:          seq,
		At:           time.Date(2025, 4, 13, 20, 0, int(seq), 0, time.UTC),
		RewardUnits:  1,
		Acceleration: 2.0,
		Threshold:    1.5,
		TempoBPM:     120,
		Accepted:     seq,
	}
}

func TestJournalRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stomps.jsonl.zst")

	j, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("OpenJournal() error = %v", err)
	}
	for seq := uint64(1); seq <= 3; seq++ {
		if err := j.ReportStomp(context.Background(), testEvent(seq)); err != nil {
			t.Fatalf("ReportStomp(%d) error = %v", seq, err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Reopening appends a second zstd frame.
	j, err = OpenJournal(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if err := j.ReportStomp(context.Background(), testEvent(4)); err != nil {
		t.Fatalf("ReportStomp(4) error = %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	events, err := ReadJournal(path)
	if err != nil {
		t.Fatalf("ReadJournal() error = %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("read %d events, want 4", len(events))
	}
	for i, ev := range events {
		want := testEvent(uint64(i + 1))
		if ev.Seq != want.Seq || !ev.At.Equal(want.At) || ev.Threshold != want.Threshold {
			t.Errorf("event %d = %+v, want %+v", i, ev, want)
		}
	}
}

func TestJournalAfterClose(t *testing.T) {
	j, err := OpenJournal(filepath.Join(t.TempDir(), "j.zst"))
	if err != nil {
		t.Fatalf("OpenJournal() error = %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := j.ReportStomp(context.Background(), testEvent(1)); !errors.Is(err, ErrClosed) {
		t.Errorf("ReportStomp after Close error = %v, want ErrClosed", err)
	}
}

func TestOpenJournalBadPath(t *testing.T) {
	_, err := OpenJournal(filepath.Join(t.TempDir(), "missing", "j.zst"))
	if err == nil {
		t.Error("expected error for a journal in a missing directory")
	}
}
