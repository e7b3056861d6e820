// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"

	"stomp/internal/config"
)

var fakeDevices = []*portaudio.DeviceInfo{
	{Name: "Built-in Output", MaxOutputChannels: 2, DefaultSampleRate: 48000},
	{
		Name:                    "Scarlett 2i2 USB",
		MaxInputChannels:        2,
		MaxOutputChannels:       2,
		DefaultSampleRate:       44100,
		DefaultLowInputLatency:  3 * time.Millisecond,
		DefaultHighInputLatency: 12 * time.Millisecond,
		HostApi:                 &portaudio.HostApiInfo{Name: "Core Audio"},
	},
	{Name: "Built-in Microphone", MaxInputChannels: 1, DefaultSampleRate: 48000},
}

func withFakeDevices(t *testing.T, devices []*portaudio.DeviceInfo, err error) {
	t.Helper()
	origDevices, origDefault := paDevicesFunc, defaultInputDevice
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return devices, err }
	defaultInputDevice = func() (*portaudio.DeviceInfo, error) {
		if err != nil {
			return nil, err
		}
		return devices[len(devices)-1], nil
	}
	t.Cleanup(func() { paDevicesFunc, defaultInputDevice = origDevices, origDefault })
}

func TestInputDevice(t *testing.T) {
	withFakeDevices(t, fakeDevices, nil)

	tests := []struct {
		desc     string
		id       int
		name     string
		wantName string
		wantErr  string
	}{
		{"System default", config.MinDeviceID, "", "Built-in Microphone", ""},
		{"By ID", 1, "", "Scarlett 2i2 USB", ""},
		{"By name, case-insensitive", config.MinDeviceID, "scarlett", "Scarlett 2i2 USB", ""},
		{"Name wins over ID", 2, "SCARLETT", "Scarlett 2i2 USB", ""},
		{"Name matches output only", config.MinDeviceID, "output", "", "no input device matching"},
		{"ID out of range", 7, "", "", "invalid device ID"},
		{"ID without inputs", 0, "", "", "no input channels"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, err := InputDevice(tt.id, tt.name)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("InputDevice() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("InputDevice() error = %v", err)
			}
			if got.Name != tt.wantName {
				t.Errorf("InputDevice() = %q, want %q", got.Name, tt.wantName)
			}
		})
	}
}

func TestHostDevices(t *testing.T) {
	withFakeDevices(t, fakeDevices, nil)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices() error = %v", err)
	}
	if len(devices) != len(fakeDevices) {
		t.Fatalf("got %d devices, want %d", len(devices), len(fakeDevices))
	}
	for i, d := range devices {
		if d.ID != i {
			t.Errorf("Device ID mismatch: got %d, want %d", d.ID, i)
		}
	}
	kinds := []string{"Output", "Input/Output", "Input"}
	for i, want := range kinds {
		if got := devices[i].Kind(); got != want {
			t.Errorf("device %d Kind() = %q, want %q", i, got, want)
		}
	}
	if devices[1].HostAPI != "Core Audio" || devices[1].LowInputLatency != 3*time.Millisecond {
		t.Errorf("device 1 = %+v", devices[1])
	}
}

func TestHostDevicesError(t *testing.T) {
	withFakeDevices(t, nil, errors.New("mock error"))

	if _, err := HostDevices(); err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
	if _, err := InputDevice(config.MinDeviceID, ""); err == nil {
		t.Error("expected default device error")
	}
}

func TestListDevices(t *testing.T) {
	withFakeDevices(t, fakeDevices, nil)

	var out bytes.Buffer
	if err := ListDevices(&out); err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	for _, want := range []string{
		"[1] Scarlett 2i2 USB (Input/Output)",
		"Host API: Core Audio",
		"Latency: Low=3.00ms, High=12.00ms",
		"[2] Built-in Microphone (Input)",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}
