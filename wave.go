// wave.go - named PCM wave table backing the wave/wave_loop opcodes.
//
// Grounded on spec.md §6's wave-loader contract (name -> samples, lazily
// resolved through a host callback); the default loader uses
// github.com/go-audio/wav + github.com/go-audio/audio (the one pack repo
// with a WAV decode pipeline) instead of hand-rolling a RIFF parser.

package lyd

import (
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// waveData is one loaded sample: mono float64 PCM plus its native rate.
type waveData struct {
	samples    []float64
	sampleRate float64
}

// WaveHandler resolves a wave name to sample data on first use. An Engine
// has no handler unless one is installed with WithWaveHandler;
// DirWaveHandler builds one that loads "<name>.wav" from a directory.
// The returned *waveData has unexported fields, so handlers that return
// sample data are built inside this package.
type WaveHandler func(name string) (*waveData, bool)

// WaveTable caches resolved waves for the lifetime of an Engine so repeated
// wave(name) references across voices only trigger one load.
type WaveTable struct {
	mu      sync.Mutex
	cache   map[string]*waveData
	handler WaveHandler
	log     Logger
}

func newWaveTable(handler WaveHandler, log Logger) *WaveTable {
	return &WaveTable{cache: map[string]*waveData{}, handler: handler, log: log}
}

// lookup returns the wave named name, loading it through the handler on
// first reference. A miss (no handler, or the handler says no) is cached
// as silence so every later reference doesn't re-attempt the load.
func (wt *WaveTable) lookup(name string) *waveData {
	if wt == nil || name == "" {
		return nil
	}
	wt.mu.Lock()
	defer wt.mu.Unlock()

	if w, ok := wt.cache[name]; ok {
		return w
	}
	if wt.handler != nil {
		if w, ok := wt.handler(name); ok && w != nil {
			wt.cache[name] = w
			return w
		}
	}
	if wt.log != nil {
		wt.log.Debugf("wave %q not found, voices referencing it render silence", name)
	}
	wt.cache[name] = nil
	return nil
}

// DirWaveHandler builds a WaveHandler that loads "<dir>/<name>.wav" using
// go-audio/wav, converting to mono float64 via go-audio/audio's IntBuffer.
func DirWaveHandler(dir string) WaveHandler {
	return func(name string) (*waveData, bool) {
		f, err := os.Open(dir + "/" + name + ".wav")
		if err != nil {
			return nil, false
		}
		defer f.Close()

		dec := wav.NewDecoder(f)
		if !dec.IsValidFile() {
			return nil, false
		}
		buf, err := dec.FullPCMBuffer()
		if err != nil || buf == nil {
			return nil, false
		}
		mono := downmixToMono(buf)
		return &waveData{samples: mono, sampleRate: float64(buf.Format.SampleRate)}, true
	}
}

// downmixToMono averages interleaved channels into one float64 stream
// scaled to [-1, 1], using the buffer's own bit depth for normalization.
func downmixToMono(buf *audio.IntBuffer) []float64 {
	ch := buf.Format.NumChannels
	if ch < 1 {
		ch = 1
	}
	full := float64(int(1) << uint(buf.SourceBitDepth-1))
	if buf.SourceBitDepth <= 0 {
		full = 32768
	}
	n := len(buf.Data) / ch
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for c := 0; c < ch; c++ {
			sum += float64(buf.Data[i*ch+c])
		}
		out[i] = (sum / float64(ch)) / full
	}
	return out
}
