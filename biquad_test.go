package lyd

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBiquadLowPassAttenuatesAboveCutoff(t *testing.T) {
	b := &biquad{}
	b.update(biquadLowPass, 200, 44100, 0.7, 0)

	// settle on a high-frequency tone and measure steady-state amplitude
	var peak float64
	for i := 0; i < 2000; i++ {
		s := math.Sin(2 * math.Pi * 8000 * float64(i) / 44100)
		out := b.tick(s)
		if i > 1500 {
			if math.Abs(out) > peak {
				peak = math.Abs(out)
			}
		}
	}
	assert.Less(t, peak, 0.3)
}

func TestBiquadPassesDCThroughLowPassNearUnity(t *testing.T) {
	b := &biquad{}
	b.update(biquadLowPass, 1000, 44100, 0.7, 0)
	var out float64
	for i := 0; i < 4000; i++ {
		out = b.tick(1.0)
	}
	assert.InDelta(t, 1.0, out, 0.05)
}

func TestBiquadKindForOpMapsFilterOpcodesInOrder(t *testing.T) {
	assert.Equal(t, biquadLowPass, biquadKindForOp(OpLowPass))
	assert.Equal(t, biquadHighShelf, biquadKindForOp(OpHighShelf))
}

func TestBiquadNeverProducesNaN(t *testing.T) {
	b := &biquad{}
	b.update(biquadPeakEQ, 0, 44100, 0, 6)
	out := b.tick(1.0)
	assert.False(t, math.IsNaN(out))
}
