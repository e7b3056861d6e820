// SPDX-License-Identifier: MIT
package motion

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"stomp/internal/stomp"
)

var errMalformedSample = errors.New("motion: malformed sample")

// ParseSample parses one "x,y,z" reading. Surrounding whitespace is
// ignored; fields may also be separated by spaces or tabs.
func ParseSample(line string) (stomp.MotionSample, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\r'
	})
	if len(fields) != 3 {
		return stomp.MotionSample{}, fmt.Errorf("%w: want 3 fields, got %d in %q", errMalformedSample, len(fields), line)
	}

	var axes [3]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return stomp.MotionSample{}, fmt.Errorf("%w: axis %d: %v", errMalformedSample, i, err)
		}
		axes[i] = v
	}
	return stomp.MotionSample{X: axes[0], Y: axes[1], Z: axes[2]}, nil
}
