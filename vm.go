// vm.go - the per-voice tape executor.
//
// Grounded on original_source/lyd/core/lyd-vm.c's lyd_vm_compute dispatch
// loop (per-opcode sample loop over a chunk, "OUT"/"ARG" style access to a
// flat state array) and lyd-ops.c for the adsr/ddadsr/mix/cycle/reverb/
// delay/wave formulas; oscillator waveforms (sin/saw/ramp/square/pulse/
// triangle) follow spec.md's phase-accumulator description directly, since
// original_source's macro-generated op bodies (lyd-ops.inc) were not part
// of the retrieved source.

package lyd

import "math"

// chunkSamples is the maximum number of samples rendered in one VM pass,
// matching spec.md §4.3's CHUNK.
const chunkSamples = 128

// middleC is the reference pitch wave_sample/wave_sample_loop resample
// against, ported from original_source/lyd/core/lyd-ops.c.
const middleC = 261.625565

// opRuntime is the mutable per-command state a running voice keeps
// alongside its tape: phase accumulators, filter history, delay lines.
// Indexed in parallel with Program.cmds. buf is on loan from the shared
// chunkPool for the tape's lifetime, returned by voiceTape.release.
type opRuntime struct {
	buf   *[chunkSamples]float64
	tok   chunkToken
	phase float64
	bq    *biquad
	ring  *ringBuffer
	noise *noiseGen
}

// ringBuffer backs both delay and reverb: a fixed circular buffer of past
// samples, lazily sized on first use from a length-in-seconds argument
// (original_source's op_reverb/op_delay allocate their ReverbData/DelayData
// the same way).
type ringBuffer struct {
	buf []float64
	pos int
}

// maxDelaySamples caps reverb/delay buffer length, matching
// original_source's LYD_MAX_REVERB_SIZE.
const maxDelaySamples = 48000

func (r *ringBuffer) ensure(size int) {
	if size > maxDelaySamples {
		size = maxDelaySamples
	}
	if size < 1 {
		size = 1
	}
	if len(r.buf) != size {
		r.buf = make([]float64, size)
		r.pos = 0
	}
}

// delayStep implements a plain delay line: returns the sample written
// `size` steps ago, then stores in.
func (r *ringBuffer) delayStep(in float64, size int) float64 {
	r.ensure(size)
	out := r.buf[r.pos]
	r.buf[r.pos] = in
	r.pos++
	if r.pos >= len(r.buf) {
		r.pos = 0
	}
	return out
}

// reverbStep implements the feedback comb original_source/lyd-ops.c's
// op_reverb uses: sample = in + old*feedback; old = sample/(1+feedback).
func (r *ringBuffer) reverbStep(in, feedback float64, size int) float64 {
	r.ensure(size)
	sample := in + r.buf[r.pos]*feedback
	r.buf[r.pos] = sample / (1.0 + feedback)
	r.pos++
	if r.pos >= len(r.buf) {
		r.pos = 0
	}
	return sample
}

// vmContext carries everything the dispatch loop needs beyond the tape
// itself: timing, the voice's parameter snapshot for this chunk, and the
// host resources (wave table, extension input buffers) only some ops use.
type vmContext struct {
	sampleRate float64
	sampleBase int64 // absolute sample index of buf[0]
	released   int64 // samples since release was requested; -1 if playing
	n          int    // samples to compute this call, <= chunkSamples

	// varValues[i][j] is variable i's value at sample j of this chunk,
	// already interpolated by the parameter scheduler (param.go).
	varValues [][chunkSamples]float64

	waves  *WaveTable
	inputs [][]float64 // filter-mode external input buffers, by input(n)
	ext    *ExtensionRegistry
}

// voiceTape pairs an immutable Program with one voice's running state.
type voiceTape struct {
	prog  *Program
	rt    []opRuntime
	noise *noiseGen
}

func newVoiceTape(prog *Program, noiseSeed uint32) *voiceTape {
	rt := make([]opRuntime, len(prog.cmds))
	for i := range rt {
		rt[i].buf, rt[i].tok = sharedChunkPool.get()
	}
	return &voiceTape{
		prog:  prog,
		rt:    rt,
		noise: newNoiseGen(noiseSeed),
	}
}

// release returns every command's chunk buffer to the shared pool. Called
// once when a voice is reaped, or when an ephemeral filter-mode tape (a
// macro extension's per-chunk sub-filter) finishes.
func (vt *voiceTape) release() {
	for i := range vt.rt {
		sharedChunkPool.release(vt.rt[i].tok)
	}
}

// run executes the tape for ctx.n samples and returns the output command's
// buffer (valid until the next call to run).
func (vt *voiceTape) run(ctx *vmContext) []float64 {
	cmds := vt.prog.cmds
	n := ctx.n

	for i := 0; i < len(cmds); i++ {
		c := &cmds[i]
		if c.Op == OpEnd {
			break
		}
		vt.exec(i, c, ctx, n)
	}

	out := vt.prog.outputIndex()
	return vt.rt[out].buf[:n]
}

// arg resolves command i's slot-th argument at sample j: a constant for a
// literal, or the already-computed output of the referenced command.
func (vt *voiceTape) arg(cmds []Command, i, slot, j int) float64 {
	a := cmds[i].Arg[slot]
	if isRef(a) {
		ref := i - refOffset(a)
		return vt.rt[ref].buf[j]
	}
	return a
}

func (vt *voiceTape) exec(i int, c *Command, ctx *vmContext, n int) {
	cmds := vt.prog.cmds
	st := &vt.rt[i]
	sr := ctx.sampleRate
	if sr <= 0 {
		sr = 44100
	}

	switch c.Op {
	case OpNop:
		// Prelude slots (i < len(varName)) carry a variable's live value,
		// interpolated per-sample by the parameter scheduler into
		// ctx.varValues; any other nop (the emitter's bare-literal root
		// wrapper) just forwards its single literal arg.
		if i < len(vt.prog.varName) && i < len(ctx.varValues) {
			buf := &ctx.varValues[i]
			for j := 0; j < n; j++ {
				st.buf[j] = buf[j]
			}
		} else {
			for j := 0; j < n; j++ {
				st.buf[j] = c.Arg[0]
			}
		}

	case OpAdd:
		for j := 0; j < n; j++ {
			st.buf[j] = vt.arg(cmds, i, 0, j) + vt.arg(cmds, i, 1, j)
		}
	case OpSub:
		for j := 0; j < n; j++ {
			st.buf[j] = vt.arg(cmds, i, 0, j) - vt.arg(cmds, i, 1, j)
		}
	case OpMul:
		for j := 0; j < n; j++ {
			st.buf[j] = vt.arg(cmds, i, 0, j) * vt.arg(cmds, i, 1, j)
		}
	case OpDiv:
		for j := 0; j < n; j++ {
			b := vt.arg(cmds, i, 1, j)
			if b == 0 {
				st.buf[j] = 0
				continue
			}
			st.buf[j] = vt.arg(cmds, i, 0, j) / b
		}
	case OpMod:
		for j := 0; j < n; j++ {
			b := vt.arg(cmds, i, 1, j)
			if b == 0 {
				st.buf[j] = 0
				continue
			}
			st.buf[j] = math.Mod(vt.arg(cmds, i, 0, j), b)
		}
	case OpPow:
		for j := 0; j < n; j++ {
			st.buf[j] = math.Pow(vt.arg(cmds, i, 0, j), vt.arg(cmds, i, 1, j))
		}

	case OpNeg:
		for j := 0; j < n; j++ {
			st.buf[j] = -vt.arg(cmds, i, 0, j)
		}
	case OpAbs:
		for j := 0; j < n; j++ {
			st.buf[j] = math.Abs(vt.arg(cmds, i, 0, j))
		}
	case OpSqrt:
		for j := 0; j < n; j++ {
			v := vt.arg(cmds, i, 0, j)
			if v < 0 {
				st.buf[j] = 0
				continue
			}
			st.buf[j] = math.Sqrt(v)
		}

	case OpMix, OpMix3, OpMix4:
		k := c.Arity
		for j := 0; j < n; j++ {
			var sum float64
			for s := 0; s < k; s++ {
				sum += vt.arg(cmds, i, s, j)
			}
			st.buf[j] = sum / float64(k)
		}

	case OpSin, OpSaw, OpRamp, OpSquare, OpTriangle:
		for j := 0; j < n; j++ {
			hz := vt.arg(cmds, i, 0, j)
			ph := st.phase
			st.buf[j] = oscillate(c.Op, ph)
			st.phase = advancePhase(ph, hz, sr)
		}
	case OpPulse:
		for j := 0; j < n; j++ {
			hz := vt.arg(cmds, i, 0, j)
			duty := clamp01(vt.arg(cmds, i, 1, j))
			ph := st.phase
			if ph < duty {
				st.buf[j] = 1
			} else {
				st.buf[j] = -1
			}
			st.phase = advancePhase(ph, hz, sr)
		}
	case OpNoise:
		for j := 0; j < n; j++ {
			st.buf[j] = vt.noise.next()
		}

	case OpADSR:
		a := vt.arg(cmds, i, 0, 0) * sr
		d := vt.arg(cmds, i, 1, 0) * sr
		s := vt.arg(cmds, i, 2, 0)
		r := vt.arg(cmds, i, 3, 0) * sr
		for j := 0; j < n; j++ {
			sampleNo := float64(ctx.sampleBase + int64(j))
			st.buf[j] = adsrValue(sampleNo, ctx.released, a, d, s, r)
		}
	case OpDDADSR:
		delay := vt.arg(cmds, i, 0, 0) * sr
		dur := vt.arg(cmds, i, 1, 0) * sr
		a := vt.arg(cmds, i, 2, 0) * sr
		d := vt.arg(cmds, i, 3, 0) * sr
		s := vt.arg(cmds, i, 4, 0)
		r := vt.arg(cmds, i, 5, 0) * sr
		for j := 0; j < n; j++ {
			sampleNo := float64(ctx.sampleBase+int64(j)) - delay
			if sampleNo < 0 {
				st.buf[j] = 0
				continue
			}
			if sampleNo <= dur {
				st.buf[j] = adsrValue(sampleNo, -1, a, d, s, r)
				continue
			}
			released := sampleNo - dur
			st.buf[j] = adsrValue(sampleNo, released, a, d, s, r)
		}

	case OpLowPass, OpHighPass, OpBandPass, OpNotch, OpPeakEQ, OpLowShelf, OpHighShelf:
		if st.bq == nil {
			st.bq = &biquad{}
		}
		kind := biquadKindForOp(c.Op)
		gain := vt.arg(cmds, i, 0, 0)
		freq := vt.arg(cmds, i, 1, 0)
		bw := vt.arg(cmds, i, 2, 0)
		st.bq.update(kind, freq, sr, bw, gain)
		for j := 0; j < n; j++ {
			in := vt.arg(cmds, i, 3, j)
			st.buf[j] = st.bq.tick(in)
		}

	case OpReverb:
		if st.ring == nil {
			st.ring = &ringBuffer{}
		}
		for j := 0; j < n; j++ {
			fb := vt.arg(cmds, i, 0, j)
			length := vt.arg(cmds, i, 1, j)
			in := vt.arg(cmds, i, 2, j)
			size := int(length * sr)
			if size <= 0 {
				st.buf[j] = in
				continue
			}
			st.buf[j] = st.ring.reverbStep(in, fb, size)
		}
	case OpDelay:
		if st.ring == nil {
			st.ring = &ringBuffer{}
		}
		for j := 0; j < n; j++ {
			length := vt.arg(cmds, i, 0, j)
			in := vt.arg(cmds, i, 1, j)
			size := int(length * sr)
			if size <= 0 {
				st.buf[j] = in
				continue
			}
			st.buf[j] = st.ring.delayStep(in, size)
		}

	case OpCycle:
		count := c.Arity - 1
		for j := 0; j < n; j++ {
			if count <= 0 {
				st.buf[j] = 0
				continue
			}
			freq := vt.arg(cmds, i, 0, j)
			sampleNo := float64(ctx.sampleBase + int64(j))
			pos := math.Mod(freq*float64(count)*sampleNo/sr, float64(count))
			idx := 1 + int(pos+float64(count))%count
			if idx < 1 || idx > count {
				idx = 1
			}
			st.buf[j] = vt.arg(cmds, i, idx, j)
		}

	case OpWave, OpWaveLoop:
		name := ""
		if idx := int(c.Arg[0]); idx >= 0 && idx < len(vt.prog.waveNames) {
			name = vt.prog.waveNames[idx]
		}
		w := ctx.waves.lookup(name)
		for j := 0; j < n; j++ {
			hz := 1.0
			if c.Arity > 1 {
				hz = vt.arg(cmds, i, 1, j)
			}
			st.buf[j] = sampleWave(w, st, hz, sr, c.Op == OpWaveLoop)
		}

	case OpInput:
		idx := int(c.Arg[0])
		for j := 0; j < n; j++ {
			if idx >= 0 && idx < len(ctx.inputs) && j < len(ctx.inputs[idx]) {
				st.buf[j] = ctx.inputs[idx][j]
			} else {
				st.buf[j] = 0
			}
		}

	default:
		if c.Op >= opBuiltinCount && ctx.ext != nil {
			argBufs := make([][]float64, c.Arity)
			for s := 0; s < c.Arity; s++ {
				buf := make([]float64, n)
				for j := 0; j < n; j++ {
					buf[j] = vt.arg(cmds, i, s, j)
				}
				argBufs[s] = buf
			}
			var out []float64
			if ctx.ext.isNative(c.Op) {
				out = ctx.ext.runNative(c.Op, argBufs, n)
			} else {
				out = ctx.ext.runMacro(c.Op, argBufs, n)
			}
			for j := 0; j < n && j < len(out); j++ {
				st.buf[j] = out[j]
			}
			break
		}
		for j := 0; j < n; j++ {
			st.buf[j] = 0
		}
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func advancePhase(phase, hz, sampleRate float64) float64 {
	phase += hz / sampleRate
	phase -= math.Floor(phase)
	return phase
}

func oscillate(op Opcode, phase float64) float64 {
	switch op {
	case OpSin:
		return fastSin(phase)
	case OpRamp:
		return 2*phase - 1
	case OpSaw:
		return 1 - 2*phase
	case OpSquare:
		if phase < 0.5 {
			return 1
		}
		return -1
	case OpTriangle:
		if phase < 0.5 {
			return 4*phase - 1
		}
		return 3 - 4*phase
	}
	return 0
}

// adsrValue computes one ADSR sample. released is the number of samples
// since release began, or < 0 while the voice is still playing. Ported
// from original_source/lyd/core/lyd-ops.c:op_adsr.
func adsrValue(sampleNo, released, a, d, s, r float64) float64 {
	if released >= 0 {
		if released > r {
			return 0
		}
		var releasedVal float64
		switch {
		case (sampleNo - released) <= a:
			if a == 0 {
				releasedVal = 0
			} else {
				releasedVal = ((sampleNo - released) / a) * ((sampleNo - released) / a)
			}
		case (sampleNo-released) < a+d:
			if d == 0 {
				releasedVal = s
			} else {
				releasedVal = 1.0 + (s-1)*(((sampleNo-released)-a)/d)
			}
		default:
			releasedVal = s
		}
		if r == 0 {
			return 0
		}
		return releasedVal * (1.0 - released/r)
	}

	switch {
	case sampleNo <= a:
		if a == 0 {
			return 1
		}
		return (sampleNo / a) * (sampleNo / a)
	case sampleNo < a+d:
		if d == 0 {
			return s
		}
		return 1.0 + (s-1)*((sampleNo-a)/d)
	default:
		return s
	}
}

// sampleWave resamples a wave table entry against middleC, matching
// original_source's wave_sample/wave_sample_loop.
func sampleWave(w *waveData, st *opRuntime, hz, sampleRate float64, loop bool) float64 {
	if w == nil || len(w.samples) == 0 {
		return 0
	}
	delta := 1.0 / sampleRate
	if hz > 0.001 {
		delta *= hz / middleC
	}
	old := st.phase
	next := old + delta
	pos := int(next * w.sampleRate)
	st.phase = next
	if pos < len(w.samples) {
		return w.samples[pos]
	}
	if loop {
		st.phase = 0
	}
	return 0
}
