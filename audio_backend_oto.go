//go:build !headless

// audio_backend_oto.go - ebitengine/oto/v3 playback backend.
//
// Grounded on the teacher's former OtoPlayer: an atomic.Pointer swap so
// the audio callback never takes the player's own mutex, and the same
// setup/start/stop/close lifecycle - generalized from a fixed-format
// single SoundChip source to any Engine, pulling bytes already encoded
// by Synthesize/encodeFormat instead of one sample at a time.

package lyd

import (
	"sync"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"
)

// OtoPlayer drives playback of an Engine through ebitengine/oto/v3.
type OtoPlayer struct {
	ctx     *oto.Context
	player  *oto.Player
	engine  atomic.Pointer[Engine]
	chunk   int // not consulted by Read, which pulls len(p)/8 frames per call
	started bool
	mu      sync.Mutex
}

// NewOtoPlayer opens an oto context at sampleRate, stereo float32.
func NewOtoPlayer(sampleRate int) (*OtoPlayer, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   0,
	})
	if err != nil {
		return nil, err
	}
	<-ready

	return &OtoPlayer{ctx: ctx, chunk: 1024}, nil
}

// SetupPlayer attaches engine as the sample source and creates the oto
// player. engine must already be configured with FormatF32.
func (op *OtoPlayer) SetupPlayer(engine *Engine) {
	op.mu.Lock()
	defer op.mu.Unlock()

	op.engine.Store(engine)
	op.player = op.ctx.NewPlayer(op)
}

// Read implements io.Reader for oto's pull model: it renders exactly
// enough samples from the attached Engine to fill p.
func (op *OtoPlayer) Read(p []byte) (int, error) {
	engine := op.engine.Load()
	if engine == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	const bytesPerFrame = 8 // stereo float32
	n := len(p) / bytesPerFrame
	if n == 0 {
		return 0, nil
	}
	buf := engine.Synthesize(n)
	copy(p, buf)
	if len(buf) < len(p) {
		for i := len(buf); i < len(p); i++ {
			p[i] = 0
		}
	}
	return len(p), nil
}

func (op *OtoPlayer) Start() {
	op.mu.Lock()
	defer op.mu.Unlock()
	if !op.started && op.player != nil {
		op.player.Play()
		op.started = true
	}
}

func (op *OtoPlayer) Stop() {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.started && op.player != nil {
		op.player.Close()
		op.started = false
	}
}

func (op *OtoPlayer) Close() {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.player != nil {
		op.player.Close()
		op.player = nil
	}
	op.started = false
}

func (op *OtoPlayer) IsStarted() bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.started
}
