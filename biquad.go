// biquad.go - RBJ cookbook biquad filter coefficients and per-sample tick.
//
// Grounded on original_source/biquad.c (Tom St Denis's public-domain port of
// Robert Bristow-Johnson's cookbook formulae); Go struct/tick shape follows
// the teacher's former audio_chip.go filter-state-as-struct-fields idiom
// (running coefficients and history kept as plain fields, no allocation per
// sample).

package lyd

import "math"

// biquadKind selects which cookbook formula computeBiquad uses. The values
// line up with opcode-OpLowPass so the VM can index straight from the
// opcode without a lookup table.
type biquadKind int

const (
	biquadLowPass biquadKind = iota
	biquadHighPass
	biquadBandPass
	biquadNotch
	biquadPeakEQ
	biquadLowShelf
	biquadHighShelf
)

// biquad holds the coefficients and two-sample history for a single RBJ
// biquad filter. Zero value outputs silence until the first update.
type biquad struct {
	a0, a1, a2, a3, a4 float64
	x1, x2, y1, y2     float64
}

// update recomputes the filter's coefficients for a new cutoff/Q/gain.
// freq and sampleRate are in Hz, bandwidth is in octaves (used as the
// resonance/Q control for every kind except the shelves, which ignore it),
// dbGain only matters for peak_eq/low_shelf/high_shelf.
func (b *biquad) update(kind biquadKind, freq, sampleRate, bandwidth, dbGain float64) {
	if freq <= 0 {
		freq = 1
	}
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	if bandwidth <= 0 {
		bandwidth = 0.0001
	}

	A := math.Pow(10, dbGain/40)
	omega := 2 * math.Pi * freq / sampleRate
	sn := math.Sin(omega)
	cs := math.Cos(omega)
	alpha := sn * math.Sinh(math.Ln2/2*bandwidth*omega/sn)
	beta := math.Sqrt(A + A)

	var b0, b1, b2, a0, a1, a2 float64

	switch kind {
	case biquadLowPass:
		b0 = (1 - cs) / 2
		b1 = 1 - cs
		b2 = (1 - cs) / 2
		a0 = 1 + alpha
		a1 = -2 * cs
		a2 = 1 - alpha
	case biquadHighPass:
		b0 = (1 + cs) / 2
		b1 = -(1 + cs)
		b2 = (1 + cs) / 2
		a0 = 1 + alpha
		a1 = -2 * cs
		a2 = 1 - alpha
	case biquadBandPass:
		b0 = alpha
		b1 = 0
		b2 = -alpha
		a0 = 1 + alpha
		a1 = -2 * cs
		a2 = 1 - alpha
	case biquadNotch:
		b0 = 1
		b1 = -2 * cs
		b2 = 1
		a0 = 1 + alpha
		a1 = -2 * cs
		a2 = 1 - alpha
	case biquadPeakEQ:
		b0 = 1 + (alpha * A)
		b1 = -2 * cs
		b2 = 1 - (alpha * A)
		a0 = 1 + (alpha / A)
		a1 = -2 * cs
		a2 = 1 - (alpha / A)
	case biquadLowShelf:
		b0 = A * ((A + 1) - (A-1)*cs + beta*sn)
		b1 = 2 * A * ((A - 1) - (A+1)*cs)
		b2 = A * ((A + 1) - (A-1)*cs - beta*sn)
		a0 = (A + 1) + (A-1)*cs + beta*sn
		a1 = -2 * ((A - 1) + (A+1)*cs)
		a2 = (A + 1) + (A-1)*cs - beta*sn
	case biquadHighShelf:
		b0 = A * ((A + 1) + (A-1)*cs + beta*sn)
		b1 = -2 * A * ((A - 1) + (A+1)*cs)
		b2 = A * ((A + 1) + (A-1)*cs - beta*sn)
		a0 = (A + 1) - (A-1)*cs + beta*sn
		a1 = 2 * ((A - 1) - (A+1)*cs)
		a2 = (A + 1) - (A-1)*cs - beta*sn
	}

	if a0 == 0 {
		a0 = 1
	}
	b.a0 = b0 / a0
	b.a1 = b1 / a0
	b.a2 = b2 / a0
	b.a3 = a1 / a0
	b.a4 = a2 / a0
}

// tick filters one sample through the current coefficients.
func (b *biquad) tick(sample float64) float64 {
	result := b.a0*sample + b.a1*b.x1 + b.a2*b.x2 - b.a3*b.y1 - b.a4*b.y2

	b.x2 = b.x1
	b.x1 = sample
	b.y2 = b.y1
	b.y1 = result

	return result
}

// biquadKindForOp maps a filter opcode to its cookbook kind.
func biquadKindForOp(op Opcode) biquadKind {
	return biquadKind(op - OpLowPass)
}

// FilterKind is the public name for biquadKind, exposed so hosts can call
// Engine.SetGlobalFilter without reaching into package internals.
type FilterKind = biquadKind

const (
	FilterLowPass   = biquadLowPass
	FilterHighPass  = biquadHighPass
	FilterBandPass  = biquadBandPass
	FilterNotch     = biquadNotch
	FilterPeakEQ    = biquadPeakEQ
	FilterLowShelf  = biquadLowShelf
	FilterHighShelf = biquadHighShelf
)
