// SPDX-License-Identifier: MIT
package replay

import (
	"cmp"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-audio/wav"

	"stomp/internal/stomp"
)

// MotionEvent is one recorded motion sample and its offset from the start
// of the session.
type MotionEvent struct {
	Offset time.Duration
	Sample stomp.MotionSample
}

// LoadMotionCSV reads "seconds,x,y,z" rows. An optional header row and
// lines starting with '#' are skipped. Rows are returned in time order.
func LoadMotionCSV(r io.Reader) ([]MotionEvent, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = 4
	cr.TrimLeadingSpace = true

	var events []MotionEvent
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("motion csv: %w", err)
		}

		vals, err := parseRow(rec)
		if err != nil {
			if row == 1 {
				continue // Header.
			}
			return nil, fmt.Errorf("motion csv row %d: %w", row, err)
		}
		if vals[0] < 0 {
			return nil, fmt.Errorf("motion csv row %d: negative time %v", row, vals[0])
		}

		events = append(events, MotionEvent{
			Offset: time.Duration(vals[0] * float64(time.Second)),
			Sample: stomp.MotionSample{X: vals[1], Y: vals[2], Z: vals[3]},
		})
	}

	slices.SortStableFunc(events, func(a, b MotionEvent) int {
		return cmp.Compare(a.Offset, b.Offset)
	})
	return events, nil
}

func parseRow(rec []string) ([4]float64, error) {
	var vals [4]float64
	for i, field := range rec {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return vals, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = v
	}
	return vals, nil
}

// LoadMotionFile opens path and parses it with LoadMotionCSV.
func LoadMotionFile(path string) ([]MotionEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open motion file: %w", err)
	}
	defer f.Close()
	return LoadMotionCSV(f)
}

// AudioTrack is a recording split into capture-sized mono buffers.
type AudioTrack struct {
	SampleRate      int
	FramesPerBuffer int
	Buffers         [][]float32
}

// Offset returns the time at which buffer i would have been delivered by a
// live capture, the end of its last frame.
func (t *AudioTrack) Offset(i int) time.Duration {
	frames := int64(i+1) * int64(t.FramesPerBuffer)
	return time.Duration(frames * int64(time.Second) / int64(t.SampleRate))
}

// Duration returns the length of the track.
func (t *AudioTrack) Duration() time.Duration {
	if len(t.Buffers) == 0 {
		return 0
	}
	last := t.Buffers[len(t.Buffers)-1]
	frames := int64(len(t.Buffers)-1)*int64(t.FramesPerBuffer) + int64(len(last))
	return time.Duration(frames * int64(time.Second) / int64(t.SampleRate))
}

// wavFormatPCM is the WAVE_FORMAT_PCM tag of integer PCM files.
const wavFormatPCM = 1

// LoadWAV decodes a PCM WAV file, keeps its first channel normalised to
// [-1, 1] and splits it into buffers of framesPerBuffer frames. The last
// buffer may be shorter.
func LoadWAV(r io.ReadSeeker, framesPerBuffer int) (*AudioTrack, error) {
	if framesPerBuffer <= 0 {
		return nil, fmt.Errorf("frames per buffer must be positive, got %d", framesPerBuffer)
	}

	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("not a valid WAV file")
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("unsupported wav encoding %d, only integer PCM is read", dec.WavAudioFormat)
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}

	channels := int(dec.NumChans)
	if channels < 1 || dec.SampleRate == 0 || dec.BitDepth == 0 {
		return nil, fmt.Errorf("unsupported wav format: %d ch, %d Hz, %d bit", channels, dec.SampleRate, dec.BitDepth)
	}
	scale := float32(int64(1) << (dec.BitDepth - 1))

	// 8-bit PCM is unsigned with silence at 128.
	var offset int
	if dec.BitDepth == 8 {
		offset = 128
	}

	frames := len(pcm.Data) / channels
	mono := make([]float32, frames)
	for i := range frames {
		mono[i] = float32(pcm.Data[i*channels]-offset) / scale
	}

	track := &AudioTrack{SampleRate: int(dec.SampleRate), FramesPerBuffer: framesPerBuffer}
	for start := 0; start < frames; start += framesPerBuffer {
		end := min(start+framesPerBuffer, frames)
		track.Buffers = append(track.Buffers, mono[start:end])
	}
	return track, nil
}

// LoadWAVFile opens path and decodes it with LoadWAV.
func LoadWAVFile(path string, framesPerBuffer int) (*AudioTrack, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()
	return LoadWAV(f, framesPerBuffer)
}
