// SPDX-License-Identifier: MIT
//
// Package build exposes the metadata stamped into the stompd binary at link
// time:
//
//	go build -ldflags "-X stomp/pkg/build.buildName=stompd \
//	  -X stomp/pkg/build.buildVersion=0.3.0 \
//	  -X stomp/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	  -X stomp/pkg/build.buildTime=$(date -u +%FT%TZ)"
package build

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// DevValue stands in for any flag missing from a development build.
const DevValue = "dev"

// Info is the build metadata of the running binary.
type Info struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
)

var info = Info{Name: "stompd", Time: DevValue, Commit: DevValue, Version: DevValue}

// readBuildInfo is swapped out in tests.
var readBuildInfo = debug.ReadBuildInfo

// Initialize copies the ldflags values into Info. Missing values fall back
// to DevValue, or for the commit to the VCS revision the toolchain
// recorded, and are reported together in the returned error. The binary is
// usable either way; callers typically log the error.
func Initialize() error {
	var errs []error
	pick := func(flag, val, fallback string) string {
		if val != "" {
			return val
		}
		errs = append(errs, fmt.Errorf("%s not set", flag))
		return fallback
	}

	info = Info{
		Name:    pick("buildName", buildName, "stompd"),
		Time:    pick("buildTime", buildTime, DevValue),
		Commit:  pick("buildCommit", buildCommit, vcsRevision()),
		Version: pick("buildVersion", buildVersion, DevValue),
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("incomplete build info: %w", err)
	}
	return nil
}

func vcsRevision() string {
	bi, ok := readBuildInfo()
	if !ok {
		return DevValue
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			if len(s.Value) > 12 {
				return s.Value[:12]
			}
			return s.Value
		}
	}
	return DevValue
}

// Get returns the current build info.
func Get() Info {
	return info
}
