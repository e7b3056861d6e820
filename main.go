// SPDX-License-Identifier: MIT
package main

import (
	"os"
	"runtime"

	"stomp/cmd"
	applog "stomp/internal/log"
	"stomp/pkg/build"
)

// main wires build metadata and the runtime before handing over to the
// command line. Detection itself lives in the run command.
func main() {
	// A development build without ldflags still runs.
	if err := build.Initialize(); err != nil {
		applog.Debugf("%v", err)
	}

	// One thread for the audio callback, one for motion, reporting and UI.
	runtime.GOMAXPROCS(2)

	if err := cmd.Execute(); err != nil {
		applog.Errorf("%v", err)
		os.Exit(1)
	}
}
