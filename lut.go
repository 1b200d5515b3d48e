// lut.go - quarter-wave sine lookup table and the deterministic noise
// generator used by the oscillator/noise opcodes.
//
// Adapted from audio_lut.go's sinLUT/fastSin pattern (precomputed table +
// linear interpolation), switched from a full 8192-entry cycle table to a
// 2048-entry quarter-wave table with quadrant mirroring, and from
// original_source/lyd/core/lyd-vm.c's sine() (same quarter-wave index
// reduction) and lyd-ops.c's noise() (the seed*853 mod 981287 LCG).

package lyd

import "math"

const (
	sinQuarterSize = 2048 // entries covering phase [0, 0.25) of a full cycle
)

// sinQuarterLUT[i] holds sin(2*pi * i/(4*sinQuarterSize)) for i in
// [0, sinQuarterSize], one extra entry so interpolation never reads past
// the end of the quarter.
var sinQuarterLUT [sinQuarterSize + 1]float64

func init() {
	for i := 0; i <= sinQuarterSize; i++ {
		angle := (float64(i) / float64(sinQuarterSize)) * (math.Pi / 2)
		sinQuarterLUT[i] = math.Sin(angle)
	}
}

// fastSin returns sin(2*pi*phase) for phase expressed as a normalized cycle
// position, wrapping phase into [0, 1) first. Accurate enough for
// oscillators down to a few Hz at typical sample rates (spec.md §4.2.1).
func fastSin(phase float64) float64 {
	phase -= math.Floor(phase)

	quarter := phase * 4
	q := int(quarter)
	if q > 3 {
		q = 3
	}
	frac := quarter - float64(q)

	table := func(x float64) float64 {
		xi := x * float64(sinQuarterSize)
		i := int(xi)
		if i >= sinQuarterSize {
			return sinQuarterLUT[sinQuarterSize]
		}
		t := xi - float64(i)
		return sinQuarterLUT[i] + t*(sinQuarterLUT[i+1]-sinQuarterLUT[i])
	}

	switch q {
	case 0:
		return table(frac)
	case 1:
		return table(1 - frac)
	case 2:
		return -table(frac)
	default:
		return -table(1 - frac)
	}
}

// fastCos reuses the sine table with a quarter-cycle phase shift.
func fastCos(phase float64) float64 {
	return fastSin(phase + 0.25)
}

// noiseGen is the per-voice deterministic pseudo-random source backing the
// noise opcode. It is a struct field (not package state) so two voices
// never perturb each other's sequence - see DESIGN.md's note on
// original_source's noise() being a C file-static made instance state here.
type noiseGen struct {
	seed uint32
}

func newNoiseGen(seed uint32) *noiseGen {
	if seed == 0 {
		seed = 1
	}
	return &noiseGen{seed: seed}
}

// next returns the next pseudo-random sample in [-1, 1], advancing the
// generator with the same LCG original_source/lyd/core/lyd-ops.c uses.
func (n *noiseGen) next() float64 {
	n.seed = (n.seed * 853) % 981287
	return (float64(n.seed)/981287.0)*2 - 1
}
