// lyd.go - the top-level Engine: construction, configuration, and the
// public voice/compile API.
//
// Grounded on the teacher's former SoundChip constructor/option pattern
// (a zero-value-unsafe struct built through New() plus Set* mutators
// under a single mutex) generalized from a fixed 4-channel register chip
// to an open voice pool over compiled Programs.

package lyd

import (
	"sync"

	"github.com/google/uuid"
)

// Engine is a polyphonic synthesis engine: compile expression source into
// Programs, start Voices from them, and pull rendered audio through
// Synthesize. An Engine is safe for concurrent use; its public methods
// take its internal lock, except Compile and the extension registration
// methods, which take the extension registry's own lock instead.
type Engine struct {
	mu sync.Mutex

	sampleRate float64
	format     OutputFormat
	level      float64
	workers    int
	maxVoices  int
	maxActive  int

	voices      []*Voice
	nextVoiceID uint64
	noiseSeed   uint32

	waves      *WaveTable
	extensions *ExtensionRegistry
	logger     Logger

	globalFilterL, globalFilterR *biquad
	globalFilterKind             biquadKind
	globalFilterSet              bool

	preCallbacks  []PreCallback
	postCallbacks []PostCallback

	sampleCount int64
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithSampleRate sets the engine's render rate; default 44100.
func WithSampleRate(hz float64) Option {
	return func(e *Engine) { e.sampleRate = hz }
}

// WithFormat sets the byte encoding Synthesize produces; default FormatF32.
func WithFormat(f OutputFormat) Option {
	return func(e *Engine) { e.format = f }
}

// WithWorkers bounds shard fan-out; default maxWorkers, clamped to it.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithMaxActive caps concurrently active (playing/releasing) voices; 0
// means unbounded.
func WithMaxActive(n int) Option {
	return func(e *Engine) { e.maxActive = n }
}

// WithMaxVoices caps the total voice pool including queued voices; 0
// means unbounded. When full, Play evicts the oldest queued voice (or,
// if none are queued, the oldest voice overall) to make room.
func WithMaxVoices(n int) Option {
	return func(e *Engine) { e.maxVoices = n }
}

// WithWaveHandler installs the handler used to resolve wave(name) and
// wave_loop(name) references; the default engine has none, so every wave
// reference renders silence until one is installed.
func WithWaveHandler(h WaveHandler) Option {
	return func(e *Engine) { e.waves = newWaveTable(h, e.logger) }
}

// WithLogger overrides the default stderr charmbracelet/log logger.
func WithLogger(l Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New constructs an Engine ready to compile source and play voices.
func New(opts ...Option) *Engine {
	e := &Engine{
		sampleRate: 44100,
		format:     FormatF32,
		level:      1.0,
		workers:    maxWorkers,
		logger:     defaultLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.waves == nil {
		e.waves = newWaveTable(nil, e.logger)
	}
	e.extensions = newExtensionRegistry(e.waves, e.logger)
	registerDefaultMacros(e.extensions)
	return e
}

// registerDefaultMacros installs the macro-composed built-ins spec.md's
// opcode table lists as "composed from primitives via the extension
// registry" rather than native VM ops: tapped_delay(signal, t1, t2)
// averages two delayed copies of signal, one delayed by t1 seconds and one
// by t2 seconds, each through its own delay line; tapped_echo(signal, t,
// decay) averages the dry signal with one copy delayed by t seconds and
// scaled by decay (no feedback). Both read their call arguments through
// input(0), input(1), ... per RegisterMacro's binding convention.
func registerDefaultMacros(r *ExtensionRegistry) {
	if _, err := r.RegisterMacro("tapped_delay", "mix(delay(input(1), input(0)), delay(input(2), input(0)))", arity{3, 3}); err != nil {
		panic("lyd: built-in macro tapped_delay failed to compile: " + err.Error())
	}
	if _, err := r.RegisterMacro("tapped_echo", "mix(input(0), delay(input(1), input(0)) * input(2))", arity{3, 3}); err != nil {
		panic("lyd: built-in macro tapped_echo failed to compile: " + err.Error())
	}
}

// SampleRate returns the engine's configured render rate.
func (e *Engine) SampleRate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sampleRate
}

// SetSampleRate changes the render rate; takes effect on the next
// Synthesize call. Existing voices keep their phase/filter/delay state,
// so changing rate mid-flight will audibly re-pitch them, matching how a
// hardware resample would behave.
func (e *Engine) SetSampleRate(hz float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sampleRate = hz
}

// SetLevel scales the final mix before format conversion; default 1.0.
func (e *Engine) SetLevel(level float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.level = level
}

// SetGlobalFilter installs a biquad applied to the whole stereo mix after
// voices are summed and before level scaling, per spec.md §4.4's pipeline
// ordering. Call ClearGlobalFilter to remove it.
func (e *Engine) SetGlobalFilter(kind FilterKind, freq, bandwidth, dbGain float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.globalFilterL = &biquad{}
	e.globalFilterR = &biquad{}
	e.globalFilterL.update(kind, freq, e.sampleRate, bandwidth, dbGain)
	e.globalFilterR.update(kind, freq, e.sampleRate, bandwidth, dbGain)
	e.globalFilterKind = kind
	e.globalFilterSet = true
}

// ClearGlobalFilter removes the global filter installed by SetGlobalFilter.
func (e *Engine) ClearGlobalFilter() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.globalFilterL = nil
	e.globalFilterR = nil
	e.globalFilterSet = false
}

// PreCallback runs before a Synthesize pass, given the engine's running
// sample count at the start of this pass (0 on the first pass; the total
// since the engine was created, not the count since the previous pass)
// (spec.md §4.4 step 2) - a good
// place for a host to queue new voices or scheduled parameter changes for
// this tick relative to where the engine's clock actually is.
type PreCallback func(elapsedSamples int64)

// PostCallback runs after a Synthesize pass, given the number of samples
// just produced and the encoded buffer that pass rendered (spec.md §4.4
// step 13), so a host can act on exactly what was just heard.
type PostCallback func(elapsedSamples int64, buf []byte)

// AddPreCallback registers a function run before each Synthesize pass,
// outside the engine's lock.
func (e *Engine) AddPreCallback(fn PreCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.preCallbacks = append(e.preCallbacks, fn)
}

// AddPostCallback registers a function run after each Synthesize pass,
// once the lock is released.
func (e *Engine) AddPostCallback(fn PostCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.postCallbacks = append(e.postCallbacks, fn)
}

func (e *Engine) snapshotPreCallbacks() []PreCallback {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]PreCallback, len(e.preCallbacks))
	copy(out, e.preCallbacks)
	return out
}

func (e *Engine) snapshotPostCallbacks() []PostCallback {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]PostCallback, len(e.postCallbacks))
	copy(out, e.postCallbacks)
	return out
}

// Compile parses source into a Program, resolving any extension ops
// registered on this engine in addition to the built-in catalog.
func (e *Engine) Compile(source string) (*Program, error) {
	return compileProgram(source, e.extensions.resolve)
}

// RegisterNative installs a host-implemented opcode, see ExtensionRegistry.
func (e *Engine) RegisterNative(name string, minArgs, maxArgs int, fn NativeProcessFunc) (uuid.UUID, error) {
	return e.extensions.RegisterNative(name, arity{minArgs, maxArgs}, fn)
}

// RegisterMacro installs a source-defined opcode, see ExtensionRegistry.
func (e *Engine) RegisterMacro(name, source string, minArgs, maxArgs int) (uuid.UUID, error) {
	return e.extensions.RegisterMacro(name, source, arity{minArgs, maxArgs})
}

// UnregisterExtension removes a previously registered native or macro op.
func (e *Engine) UnregisterExtension(handle uuid.UUID) {
	e.extensions.Unregister(handle)
}

// Play starts a new Voice from prog, active from the next Synthesize
// call. Call SetStartDelay on the returned Voice before that call to
// push its start further into the future.
func (e *Engine) Play(prog *Program) *Voice {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextVoiceID++
	e.noiseSeed = e.noiseSeed*1103515245 + 12345
	v := newVoice(e.nextVoiceID, prog, e.noiseSeed)

	if e.maxVoices > 0 && len(e.voices) >= e.maxVoices {
		e.evictForNewVoice()
	}
	e.voices = append(e.voices, v)
	return v
}

func (e *Engine) evictForNewVoice() {
	idx := -1
	for i, v := range e.voices {
		if v.state == voiceQueued {
			idx = i
			break
		}
	}
	if idx < 0 && len(e.voices) > 0 {
		idx = 0
	}
	if idx >= 0 {
		e.voices[idx].reap()
		e.voices = append(e.voices[:idx], e.voices[idx+1:]...)
	}
}

// SetStartDelay pushes a voice's start `samples` further into the future
// by counting its own sample clock further negative - matching
// spec.md's new_voice/voice_set_delay model where a queued voice simply
// has sample < 0. Call before the voice's first Synthesize call.
func (v *Voice) SetStartDelay(samples int64) {
	v.sample -= samples
	if v.sample < 0 {
		v.state = voiceQueued
	}
}

// Kill reaps every voice whose tag matches, synchronously and
// unconditionally - the engine-wide counterpart to Voice.Kill, per
// spec.md's top-level kill(tag) operation.
func (e *Engine) Kill(tag string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	kept := e.voices[:0]
	for _, v := range e.voices {
		if v.state != voiceReaped && v.tag == tag {
			v.reap()
			continue
		}
		kept = append(kept, v)
	}
	e.voices = kept
}

// ActiveVoiceCount reports how many voices are currently playing or
// releasing (queued and reaped voices are excluded).
func (e *Engine) ActiveVoiceCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, v := range e.voices {
		if v.state == voicePlaying || v.state == voiceReleasing {
			n++
		}
	}
	return n
}

// NewFilter builds a Filter wired to this engine's wave table and
// extension registry, so macro ops inside its program resolve correctly.
func (e *Engine) NewFilter(prog *Program) *Filter {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.noiseSeed = e.noiseSeed*1103515245 + 12345
	f := NewFilter(prog, e.waves, e.noiseSeed).withExtensions(e.extensions)
	f.sampleRate = e.sampleRate
	return f
}
