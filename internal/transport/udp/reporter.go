// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"stomp/internal/transport"
)

/*
UDP Stomp Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Magic             | [2]byte        | 2            | "ST"                    |
| Version           | uint8          | 1            | PacketVersion           |
| Sequence Number   | uint64         | 8            | Per-session stomp seq   |
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Accepted Count    | uint64         | 8            | Session total           |
| Reward Units      | uint16         | 2            | Always 1 today          |
| Acceleration      | float32        | 4            | Triggering |y| value    |
| Threshold         | float32        | 4            | Threshold in effect     |
| Tempo             | float32        | 4            | BPM, 0 when unknown     |
+-----------------------------------------------------------------------------+
*/

// PacketVersion is bumped whenever the layout above changes.
const PacketVersion = 1

// PacketSize is the fixed length of an encoded stomp packet.
const PacketSize = 2 + 1 + 8 + 8 + 8 + 2 + 4 + 4 + 4

var packetMagic = [2]byte{'S', 'T'}

var errBadPacket = errors.New("udp: malformed stomp packet")

type wirePacket struct {
	Magic        [2]byte
	Version      uint8
	Seq          uint64
	Timestamp    int64
	Accepted     uint64
	RewardUnits  uint16
	Acceleration float32
	Threshold    float32
	TempoBPM     float32
}

// EncodePacket appends the wire form of ev to buf.
func EncodePacket(buf *bytes.Buffer, ev transport.StompEvent) error {
	p := wirePacket{
		Magic:        packetMagic,
		Version:      PacketVersion,
		Seq:          ev.Seq,
		Timestamp:    ev.At.UnixNano(),
		Accepted:     ev.Accepted,
		RewardUnits:  uint16(ev.RewardUnits),
		Acceleration: float32(ev.Acceleration),
		Threshold:    float32(ev.Threshold),
		TempoBPM:     float32(ev.TempoBPM),
	}
	return binary.Write(buf, binary.BigEndian, &p)
}

// DecodePacket parses a datagram produced by EncodePacket.
func DecodePacket(data []byte) (transport.StompEvent, error) {
	if len(data) != PacketSize {
		return transport.StompEvent{}, fmt.Errorf("%w: %d bytes", errBadPacket, len(data))
	}
	var p wirePacket
	if err := binary.Read(bytes.NewReader(data), binary.BigEndian, &p); err != nil {
		return transport.StompEvent{}, fmt.Errorf("%w: %v", errBadPacket, err)
	}
	if p.Magic != packetMagic || p.Version != PacketVersion {
		return transport.StompEvent{}, fmt.Errorf("%w: bad header %q v%d", errBadPacket, p.Magic[:], p.Version)
	}
	return transport.StompEvent{
		Seq:          p.Seq,
		At:           time.Unix(0, p.Timestamp).UTC(),
		Accepted:     p.Accepted,
		RewardUnits:  int(p.RewardUnits),
		Acceleration: float64(p.Acceleration),
		Threshold:    float64(p.Threshold),
		TempoBPM:     float64(p.TempoBPM),
	}, nil
}

// Reporter sends one datagram per stomp. UDP gives no delivery guarantee;
// receivers detect loss from gaps in the sequence number.
type Reporter struct {
	sender *Sender
	mu     sync.Mutex // Guards packetBuffer.
	// Reused across reports to keep the dispatcher allocation-free.
	packetBuffer *bytes.Buffer
}

// NewReporter creates a reporter targeting address ("host:port").
func NewReporter(address string) (*Reporter, error) {
	sender, err := NewSender(address)
	if err != nil {
		return nil, err
	}
	return &Reporter{sender: sender, packetBuffer: bytes.NewBuffer(make([]byte, 0, PacketSize))}, nil
}

// ReportStomp encodes and sends ev.
func (r *Reporter) ReportStomp(_ context.Context, ev transport.StompEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.packetBuffer.Reset()
	if err := EncodePacket(r.packetBuffer, ev); err != nil {
		return fmt.Errorf("pack stomp %d: %w", ev.Seq, err)
	}
	return r.sender.Send(r.packetBuffer.Bytes())
}

// Close closes the underlying sender.
func (r *Reporter) Close() error {
	return r.sender.Close()
}

var _ transport.Reporter = (*Reporter)(nil)
