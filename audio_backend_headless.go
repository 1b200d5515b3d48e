//go:build headless

// audio_backend_headless.go - no-op playback backend for headless builds
// (CI, servers without an audio device): same surface as OtoPlayer, but
// Read just reports silence consumed without touching the audio stack.

package lyd

type OtoPlayer struct {
	started bool
	engine  *Engine
}

func NewOtoPlayer(sampleRate int) (*OtoPlayer, error) {
	return &OtoPlayer{}, nil
}

func (op *OtoPlayer) SetupPlayer(engine *Engine) {
	op.engine = engine
}

func (op *OtoPlayer) Read(p []byte) (int, error) {
	return len(p), nil
}

func (op *OtoPlayer) Start() {
	op.started = true
}

func (op *OtoPlayer) Stop() {
	op.started = false
}

func (op *OtoPlayer) Close() {
	op.started = false
}

func (op *OtoPlayer) IsStarted() bool {
	return op.started
}
