// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// JournalReporter appends every stomp as a JSON line to a zstd-compressed
// file. Each report is flushed as its own block so a crash loses at most the
// event being written. Reopening an existing journal appends a new frame.
type JournalReporter struct {
	mu      sync.Mutex
	file    *os.File
	encoder *zstd.Encoder
	lines   *json.Encoder
	closed  bool
}

// OpenJournal opens (or creates) the journal at path for appending.
func OpenJournal(path string) (*JournalReporter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &JournalReporter{
		file:    f,
		encoder: enc,
		lines:   json.NewEncoder(enc),
	}, nil
}

// ReportStomp appends ev and flushes it to disk.
func (j *JournalReporter) ReportStomp(_ context.Context, ev StompEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}
	if err := j.lines.Encode(ev); err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	if err := j.encoder.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}
	return nil
}

// Close finishes the zstd frame and closes the file.
func (j *JournalReporter) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true
	return errors.Join(j.encoder.Close(), j.file.Close())
}

// ReadJournal decodes every event in the journal at path, in write order.
func ReadJournal(path string) ([]StompEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	var events []StompEvent
	lines := json.NewDecoder(dec)
	for {
		var ev StompEvent
		if err := lines.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				return events, nil
			}
			return events, fmt.Errorf("decode journal entry %d: %w", len(events)+1, err)
		}
		events = append(events, ev)
	}
}

var _ Reporter = (*JournalReporter)(nil)
