// filter.go - filter mode: a compiled Program run as an external-signal
// processor instead of a self-contained voice.
//
// Grounded on spec.md §4.5 ("filter mode") and original_source's input()
// opcode family: the same tape/VM machinery as a voice, but driven by
// caller-supplied input buffers through the input(k) opcode rather than
// its own oscillators, with no pan/duration/release/silence bookkeeping.

package lyd

// Filter is a compiled Program run in filter mode: each call to Process
// advances its own sample counter and parameter schedule like a voice,
// but reads input(k) from caller-supplied buffers instead of rendering
// from scratch.
type Filter struct {
	prog       *Program
	tape       *voiceTape
	params     *paramScheduler
	sample     int64
	waves      *WaveTable
	ext        *ExtensionRegistry
	sampleRate float64
}

// NewFilter wraps prog for filter-mode use. prog may reference input(k)
// any number of times; k selects which of Process's input buffers to read.
func NewFilter(prog *Program, waves *WaveTable, noiseSeed uint32) *Filter {
	return &Filter{
		prog:       prog,
		tape:       newVoiceTape(prog, noiseSeed),
		params:     newParamScheduler(),
		waves:      waves,
		sampleRate: 44100,
	}
}

// withExtensions lets the extension registry thread itself into macro
// sub-filters so a macro may itself call earlier macros or native ops.
func (f *Filter) withExtensions(ext *ExtensionRegistry) *Filter {
	f.ext = ext
	return f
}

// SetParam schedules an immediate parameter change on the filter's own
// timeline, exactly as Voice.SetParam does for a voice.
func (f *Filter) SetParam(name string, value float64, interp interpolation) {
	f.params.set(name, value, f.sample, interp)
}

// Process runs the filter's tape over inputs (one buffer per input(k)
// slot referenced by the program) and returns the output buffer, valid
// until the next call to Process. All input buffers must be the same
// length, which also determines how many samples are produced.
func (f *Filter) Process(inputs [][]float64) []float64 {
	n := 0
	if len(inputs) > 0 {
		n = len(inputs[0])
	}
	if n == 0 {
		return nil
	}

	out := make([]float64, 0, n)
	pos := 0
	for pos < n {
		step := chunkSamples
		if n-pos < step {
			step = n - pos
		}

		current := make([]float64, len(f.prog.varName))
		for i := range current {
			current[i] = f.prog.cmds[i].Arg[0]
		}
		var varBuf [][chunkSamples]float64
		if len(f.prog.varName) > 0 {
			varBuf = make([][chunkSamples]float64, len(f.prog.varName))
			f.params.evalChunk(f.prog.varName, current, f.sample, step, varBuf)
		}

		slice := make([][]float64, len(inputs))
		for k, in := range inputs {
			slice[k] = in[pos : pos+step]
		}

		ctx := &vmContext{
			sampleRate: f.sampleRate,
			sampleBase: f.sample,
			released:   -1,
			n:          step,
			varValues:  varBuf,
			waves:      f.waves,
			inputs:     slice,
			ext:        f.ext,
		}
		buf := f.tape.run(ctx)
		out = append(out, buf...)

		f.sample += int64(step)
		pos += step
	}
	return out
}

// SetSampleRate overrides the rate Process assumes for time-based opcodes
// (filters, delay, reverb, oscillators driven by input-modulated pitch).
func (f *Filter) SetSampleRate(rate float64) {
	f.sampleRate = rate
}
