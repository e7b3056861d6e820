// SPDX-License-Identifier: MIT
package audio

// Downmix extracts the first channel of an interleaved buffer into dst,
// growing dst only when it is too small. Mono input is returned as-is.
//
// Performance Critical (capture callback):
// - No allocations once dst has reached the buffer size
func Downmix(dst, interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	if cap(dst) < frames {
		dst = make([]float32, frames)
	}
	dst = dst[:frames]
	for i := range frames {
		dst[i] = interleaved[i*channels]
	}
	return dst
}
