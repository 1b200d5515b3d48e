// format.go - output sample formats.
//
// Grounded on spec.md §6's three output encodings, and on the teacher's
// former audio_backend_oto.go for the int16 little-endian byte packing
// convention oto expects on its Read callback.

package lyd

import "math"

// OutputFormat selects how Engine.Synthesize encodes its planar float64
// mix down to bytes.
type OutputFormat int

const (
	// FormatF32 interleaves left/right as little-endian float32 pairs.
	FormatF32 OutputFormat = iota
	// FormatF32Planar writes all of left then all of right, each as
	// little-endian float32 - convenient for hosts that want separate
	// channel slices without a de-interleave pass.
	FormatF32Planar
	// FormatS16 interleaves left/right as little-endian int16 pairs, the
	// format github.com/ebitengine/oto/v3 consumes directly.
	FormatS16
)

func encodeFormat(format OutputFormat, left, right []float64) []byte {
	n := len(left)
	switch format {
	case FormatF32Planar:
		out := make([]byte, n*8)
		for i := 0; i < n; i++ {
			putFloat32LE(out[i*4:], float32(left[i]))
		}
		base := n * 4
		for i := 0; i < n; i++ {
			putFloat32LE(out[base+i*4:], float32(right[i]))
		}
		return out
	case FormatS16:
		out := make([]byte, n*4)
		for i := 0; i < n; i++ {
			putInt16LE(out[i*4:], floatToInt16(left[i]))
			putInt16LE(out[i*4+2:], floatToInt16(right[i]))
		}
		return out
	default: // FormatF32
		out := make([]byte, n*8)
		for i := 0; i < n; i++ {
			putFloat32LE(out[i*8:], float32(left[i]))
			putFloat32LE(out[i*8+4:], float32(right[i]))
		}
		return out
	}
}

func putFloat32LE(b []byte, v float32) {
	u := math.Float32bits(v)
	b[0] = byte(u)
	b[1] = byte(u >> 8)
	b[2] = byte(u >> 16)
	b[3] = byte(u >> 24)
}

func putInt16LE(b []byte, v int16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func floatToInt16(s float64) int16 {
	if s > 1 {
		s = 1
	}
	if s < -1 {
		s = -1
	}
	return int16(s * 32767)
}
