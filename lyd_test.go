package lyd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineSynthesizeProducesRequestedByteLength(t *testing.T) {
	e := New(WithSampleRate(44100), WithFormat(FormatF32))
	prog, err := e.Compile("sin(440)")
	require.NoError(t, err)
	e.Play(prog)

	out := e.Synthesize(256)
	assert.Equal(t, 256*8, len(out)) // stereo float32
}

func TestEngineSynthesizeWithNoVoicesIsSilence(t *testing.T) {
	e := New()
	out := e.Synthesize(64)
	for _, b := range out {
		assert.Equal(t, byte(0), b)
	}
}

func TestVoiceReleaseThenKillReapsImmediately(t *testing.T) {
	e := New()
	prog, err := e.Compile("adsr(0.01, 0.01, 0.5, 0.01)")
	require.NoError(t, err)
	v := e.Play(prog)
	e.Synthesize(128)
	v.Release()
	v.Kill()
	e.Synthesize(128)
	assert.Equal(t, 0, e.ActiveVoiceCount())
}

func TestEngineKillByTagReapsMatchingVoicesOnly(t *testing.T) {
	e := New()
	prog, err := e.Compile("sin(1)")
	require.NoError(t, err)

	kick := e.Play(prog)
	kick.SetTag("kick")
	snare := e.Play(prog)
	snare.SetTag("snare")

	e.Synthesize(8)
	e.Kill("kick")
	e.Synthesize(8)

	assert.Equal(t, voiceReaped, kick.state)
	assert.NotEqual(t, voiceReaped, snare.state)
}

func TestVoiceDurationTriggersAutoRelease(t *testing.T) {
	e := New(WithSampleRate(1000))
	prog, err := e.Compile("sin(10)")
	require.NoError(t, err)
	v := e.Play(prog)
	v.SetDuration(10)
	e.Synthesize(128)
	assert.NotEqual(t, voicePlaying, v.state)
}

func TestSetParamAffectsSubsequentRender(t *testing.T) {
	e := New()
	prog, err := e.Compile("gain=1 * 2")
	require.NoError(t, err)
	v := e.Play(prog)
	v.SetParam("gain", 10, InterpStep)
	e.Synthesize(1)
	// the tape's output command is gain*2, evaluated with gain = 10
	assert.Equal(t, 20.0, v.tape.rt[v.prog.outputIndex()].buf[0])
}

func TestMaxActiveEvictsOverflow(t *testing.T) {
	e := New(WithMaxActive(1))
	prog, err := e.Compile("sin(1)")
	require.NoError(t, err)
	e.Play(prog)
	e.Play(prog)
	e.Synthesize(128)
	assert.LessOrEqual(t, e.ActiveVoiceCount(), 1)
}

func TestGlobalFilterDoesNotCrashRender(t *testing.T) {
	e := New()
	e.SetGlobalFilter(FilterLowPass, 2000, 0.7, 0)
	prog, err := e.Compile("noise()")
	require.NoError(t, err)
	e.Play(prog)
	out := e.Synthesize(512)
	assert.Len(t, out, 512*8)
}

func TestPreAndPostCallbacksRunOncePerSynthesize(t *testing.T) {
	e := New()
	var pre, post int
	var preElapsed []int64
	var postElapsed []int64
	var postLens []int
	e.AddPreCallback(func(elapsed int64) {
		pre++
		preElapsed = append(preElapsed, elapsed)
	})
	e.AddPostCallback(func(elapsed int64, buf []byte) {
		post++
		postElapsed = append(postElapsed, elapsed)
		postLens = append(postLens, len(buf))
	})
	e.Synthesize(16)
	e.Synthesize(16)
	assert.Equal(t, 2, pre)
	assert.Equal(t, 2, post)
	assert.Equal(t, []int64{0, 16}, preElapsed)
	assert.Equal(t, []int64{16, 16}, postElapsed)
	assert.Equal(t, []int{16 * 8, 16 * 8}, postLens)
}

func TestFilterProcessConsumesExternalInput(t *testing.T) {
	e := New()
	prog, err := e.Compile("input(0) * 2")
	require.NoError(t, err)
	f := e.NewFilter(prog)
	in := make([]float64, 16)
	for i := range in {
		in[i] = 0.5
	}
	out := f.Process([][]float64{in})
	require.Len(t, out, 16)
	for _, s := range out {
		assert.InDelta(t, 1.0, s, 1e-9)
	}
}

func TestRegisterNativeExtensionOpIsCallable(t *testing.T) {
	e := New()
	_, err := e.RegisterNative("double", 1, 1, func(args [][]float64, n int) []float64 {
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			out[i] = args[0][i] * 2
		}
		return out
	})
	require.NoError(t, err)

	prog, err := e.Compile("double(21)")
	require.NoError(t, err)
	v := e.Play(prog)
	_ = v
	e.Synthesize(8)
}

func TestRegisterMacroOpIsCallable(t *testing.T) {
	e := New()
	_, err := e.RegisterMacro("twice", "input(0) + input(0)", 1, 1)
	require.NoError(t, err)

	prog, err := e.Compile("twice(3)")
	require.NoError(t, err)
	e.Play(prog)
	e.Synthesize(8)
}

func TestDefaultMacrosTappedDelayAndEchoAreCallable(t *testing.T) {
	e := New()
	prog, err := e.Compile("tapped_delay(sin(1), 0.01, 0.02)")
	require.NoError(t, err)
	e.Play(prog)
	e.Synthesize(8)

	prog, err = e.Compile("tapped_echo(sin(1), 0.01, 0.5)")
	require.NoError(t, err)
	e.Play(prog)
	e.Synthesize(8)
}

func TestDelayedStartProducesPartialSilence(t *testing.T) {
	e := New(WithSampleRate(1000), WithFormat(FormatF32))
	prog, err := e.Compile("sin(50)")
	require.NoError(t, err)
	v := e.Play(prog)
	v.SetStartDelay(500)

	out := e.Synthesize(1000)
	frameIsZero := func(i int) bool {
		off := i * 8
		for b := 0; b < 8; b++ {
			if out[off+b] != 0 {
				return false
			}
		}
		return true
	}
	for i := 0; i < 500; i++ {
		assert.True(t, frameIsZero(i), "frame %d should still be silent before the delay elapses", i)
	}
	sawSound := false
	for i := 500; i < 1000; i++ {
		if !frameIsZero(i) {
			sawSound = true
			break
		}
	}
	assert.True(t, sawSound, "expected audio once the delay elapses")
}

func TestFormatEncodingLengthsPerFormat(t *testing.T) {
	left := []float64{0.1, -0.2}
	right := []float64{0.3, -0.4}

	assert.Len(t, encodeFormat(FormatF32, left, right), 2*8)
	assert.Len(t, encodeFormat(FormatF32Planar, left, right), 2*8)
	assert.Len(t, encodeFormat(FormatS16, left, right), 2*4)
}
