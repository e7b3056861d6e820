// SPDX-License-Identifier: MIT
package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stomp/internal/config"
	"stomp/internal/stomp"
	"stomp/pkg/build"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// writeMotion writes a 100 Hz trace of one second at rest with stomps at
// 0.1 s, 0.5 s and 0.9 s.
func writeMotion(t *testing.T, dir string) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("t,x,y,z\n")
	for i := range 100 {
		y := -1.0
		if i == 10 || i == 50 || i == 90 {
			y = -2.5
		}
		fmt.Fprintf(&sb, "%.2f,0.02,%.1f,0.01\n", float64(i)/100, y)
	}
	path := filepath.Join(dir, "motion.csv")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, build.Get().Name) {
		t.Errorf("version output %q lacks the binary name", out)
	}
}

func TestReplayCommand(t *testing.T) {
	tests := []struct {
		name   string
		config string // Written to stompd.yaml when not empty.
		args   []string
		want   string
	}{
		{
			name: "default tempo",
			want: "Accepted stomps: 3",
		},
		{
			name: "tempo flag",
			args: []string{"--tempo", "60"},
			want: "Accepted stomps: 2",
		},
		{
			name:   "tempo from config file",
			config: "detector:\n  initial_tempo_bpm: 60\n",
			want:   "Accepted stomps: 2",
		},
		{
			name:   "flag beats config file",
			config: "detector:\n  initial_tempo_bpm: 60\n",
			args:   []string{"--tempo", "120"},
			want:   "Accepted stomps: 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)
			if tt.config != "" {
				if err := os.WriteFile(filepath.Join(dir, "stompd.yaml"), []byte(tt.config), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			args := append([]string{"replay", "--motion", writeMotion(t, dir)}, tt.args...)
			out, err := execute(t, args...)
			if err != nil {
				t.Fatalf("replay: %v", err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output lacks %q:\n%s", tt.want, out)
			}
		})
	}
}

func TestReplayCommandErrors(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	motionPath := writeMotion(t, dir)

	tests := []struct {
		name string
		args []string
	}{
		{"missing motion flag", []string{"replay"}},
		{"missing motion file", []string{"replay", "--motion", filepath.Join(dir, "absent.csv")}},
		{"missing audio file", []string{"replay", "--motion", motionPath, "--audio", filepath.Join(dir, "absent.wav")}},
		{"invalid tempo", []string{"replay", "--motion", motionPath, "--tempo", "0"}},
		{"bad log level", []string{"replay", "--motion", motionPath, "--log-level", "loud"}},
		{"unreadable config", []string{"replay", "--motion", motionPath, "--config", filepath.Join(dir, "absent.yaml")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestRunWithoutMotion(t *testing.T) {
	cfg := config.Default()
	cfg.Audio.Backend = config.BackendNone
	cfg.Motion.Source = config.MotionNone
	cfg.Reporters.Kinds = nil

	err := runDetection(context.Background(), cfg, runOptions{})
	if !errors.Is(err, stomp.ErrMotionUnavailable) {
		t.Fatalf("runDetection = %v, want %v", err, stomp.ErrMotionUnavailable)
	}
}

func TestBuildMotion(t *testing.T) {
	none := buildMotion(config.MotionConfig{Source: config.MotionNone})
	if none.Available() {
		t.Error("the none source reports motion available")
	}

	serial := buildMotion(config.MotionConfig{
		Source:     config.MotionSerial,
		SerialPort: filepath.Join(t.TempDir(), "ttyIMU"),
		BaudRate:   config.DefaultBaudRate,
	})
	if serial.Available() {
		t.Error("a missing serial port reports motion available")
	}
}
