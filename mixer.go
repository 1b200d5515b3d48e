// mixer.go - Engine.Synthesize: the render pipeline across worker shards.
//
// Grounded on spec.md §4.4's pipeline (prepare -> pre-callbacks -> lock ->
// queue -> shard render -> collapse -> global filter -> level scale ->
// format -> reap -> advance -> unlock -> post-callbacks) and the teacher's
// former audio_chip.go GenerateSample for the Go locking idiom (snapshot
// shared state under the lock, do the per-sample work without
// re-acquiring it). Worker fan-out uses golang.org/x/sync/errgroup,
// promoted from the teacher's indirect dependency, in place of a
// hand-rolled mutex/condvar pool - spec.md §5's handshake is exactly
// errgroup's wait-for-all-workers semantics applied to a fixed shard
// count. Queued-voice activation follows spec.md §4.4 steps 4-5 directly:
// a voice's own sample clock goes negative while delayed, and the first
// `-sample` samples of whichever slice crosses zero are left silent
// rather than gating activation at call granularity.

package lyd

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// maxWorkers bounds shard fan-out, per spec.md §5 ("at most 4 worker
// threads").
const maxWorkers = 4

// shardResult is one worker's contribution to the mix: planar left/right
// accumulators for the whole requested span.
type shardResult struct {
	left, right []float64
}

// Synthesize renders n samples (n need not be a multiple of chunkSamples)
// and returns them encoded in the engine's configured OutputFormat.
func (e *Engine) Synthesize(n int) []byte {
	if n <= 0 {
		return nil
	}

	e.mu.Lock()
	elapsed := e.sampleCount
	e.mu.Unlock()

	for _, cb := range e.snapshotPreCallbacks() {
		cb(elapsed)
	}

	e.mu.Lock()

	shards := e.partitionShards(n)
	results := make([]shardResult, len(shards))

	g, _ := errgroup.WithContext(context.Background())
	for s := range shards {
		s := s
		results[s] = shardResult{left: make([]float64, n), right: make([]float64, n)}
		voices := shards[s]
		g.Go(func() error {
			e.renderShard(voices, n, &results[s])
			return nil
		})
	}
	_ = g.Wait()

	left := make([]float64, n)
	right := make([]float64, n)
	for _, r := range results {
		for i := 0; i < n; i++ {
			left[i] += r.left[i]
			right[i] += r.right[i]
		}
	}

	if e.globalFilterL != nil {
		for i := 0; i < n; i++ {
			left[i] = e.globalFilterL.tick(left[i])
			right[i] = e.globalFilterR.tick(right[i])
		}
	}

	scaleLevels(left, right, e.level)

	out := encodeFormat(e.format, left, right)

	e.reapVoices()
	e.sampleCount += int64(n)

	e.mu.Unlock()

	for _, cb := range e.snapshotPostCallbacks() {
		cb(int64(n), out)
	}

	return out
}

// partitionShards round-robins this call's active voices across up to
// maxWorkers shards, per spec.md §4.4 step 4. A queued voice (sample < 0)
// is queued into a shard only if it will become active at some point
// during this call (sample+n >= 0); otherwise it takes no part in this
// render and its sample clock still advances by n, "still waiting".
// Called with e.mu held.
func (e *Engine) partitionShards(n int) [][]*Voice {
	workers := e.workers
	if workers <= 0 || workers > maxWorkers {
		workers = maxWorkers
	}

	var active []*Voice
	for _, v := range e.voices {
		switch v.state {
		case voicePlaying, voiceReleasing:
			active = append(active, v)
		case voiceQueued:
			if v.sample+int64(n) >= 0 {
				active = append(active, v)
			} else {
				v.sample += int64(n)
			}
		}
	}
	if len(active) == 0 {
		return nil
	}
	if workers > len(active) {
		workers = len(active)
	}

	shards := make([][]*Voice, workers)
	for i, v := range active {
		s := i % workers
		shards[s] = append(shards[s], v)
	}
	return shards
}

// renderShard runs every voice assigned to this worker across the full
// span n, chunkSamples at a time, mixing each into the shard's planar
// left/right accumulators with constant-power-ish linear pan.
func (e *Engine) renderShard(voices []*Voice, n int, out *shardResult) {
	var varBuf [][chunkSamples]float64

	for _, v := range voices {
		if cap(varBuf) < len(v.prog.varName) {
			varBuf = make([][chunkSamples]float64, len(v.prog.varName))
		}
		varBuf = varBuf[:len(v.prog.varName)]

		pos := 0
		for pos < n {
			step := chunkSamples
			if n-pos < step {
				step = n - pos
			}

			// If the voice is still queued at the start of this slice,
			// the leading `first` samples are silent (its delay hasn't
			// counted down yet); only the remainder is actually rendered,
			// per spec.md §4.4 step 5.
			first := 0
			if v.sample < 0 {
				remaining := -v.sample
				if remaining > int64(step) {
					first = step
				} else {
					first = int(remaining)
				}
				v.sample += int64(first)
			}
			activeLen := step - first
			if v.state == voiceQueued && v.sample >= 0 {
				v.state = voicePlaying
			}

			if activeLen > 0 {
				current := make([]float64, len(v.prog.varName))
				for i := range current {
					current[i] = v.prog.cmds[i].Arg[0] // prelude default
				}
				v.params.evalChunk(v.prog.varName, current, v.sample, activeLen, varBuf)

				released := int64(-1)
				if v.released >= 0 {
					released = v.released
				}

				ctx := &vmContext{
					sampleRate: e.sampleRate,
					sampleBase: v.sample,
					released:   released,
					n:          activeLen,
					varValues:  varBuf,
					waves:      e.waves,
					ext:        e.extensions,
				}
				buf := v.tape.run(ctx)

				lGain, rGain := panGains(v.pan)
				for i := 0; i < activeLen; i++ {
					s := buf[i]
					out.left[pos+first+i] += s * lGain
					out.right[pos+first+i] += s * rGain
				}

				if isNearSilent(buf[:activeLen]) {
					v.silentRun++
				} else {
					v.silentRun = 0
				}

				v.sample += int64(activeLen)
				if v.released >= 0 {
					v.released += int64(activeLen)
				}
				if v.duration > 0 && v.released < 0 && v.sample >= v.duration {
					v.Release()
				}
			}

			pos += step
		}
	}
}

// reapVoices drops voices that are killed, silent for long enough after
// release, or have exceeded a generous release timeout; called with
// e.mu held. Completion callbacks fire outside the render loop but still
// under the lock, so an Engine method called from a callback blocks on it.
func (e *Engine) reapVoices() {
	const silentChunksToReap = 8
	const maxReleaseSamples = 10 * 48000 // safety backstop: 10s at 48 kHz, whatever the engine rate

	kept := e.voices[:0]
	for _, v := range e.voices {
		reap := v.state == voiceReaped
		if v.state == voiceReleasing {
			if v.silentRun >= silentChunksToReap || v.released > maxReleaseSamples {
				reap = true
			}
		}
		if reap {
			v.reap()
			continue
		}
		kept = append(kept, v)
	}
	e.voices = kept

	if e.maxActive > 0 && len(e.voices) > e.maxActive {
		e.evictOverflow()
	}
}

// evictOverflow kills the quietest playing/releasing voices (longest run of
// near-silent chunks first) until the active count is back at maxActive.
// Queued voices are neither counted nor evicted.
func (e *Engine) evictOverflow() {
	over := -e.maxActive
	for _, v := range e.voices {
		if v.state == voicePlaying || v.state == voiceReleasing {
			over++
		}
	}
	for over > 0 {
		idx := -1
		for i, v := range e.voices {
			if v.state != voicePlaying && v.state != voiceReleasing {
				continue
			}
			if idx < 0 || v.silentRun > e.voices[idx].silentRun {
				idx = i
			}
		}
		v := e.voices[idx]
		v.reap()
		e.voices = append(e.voices[:idx], e.voices[idx+1:]...)
		over--
	}
}

func panGains(pan float64) (l, r float64) {
	pan = clampPan(pan)
	l = (1 - pan) / 2
	r = (1 + pan) / 2
	return
}

func isNearSilent(buf []float64) bool {
	const eps = 1e-4
	for _, s := range buf {
		if s > eps || s < -eps {
			return false
		}
	}
	return true
}

// scaleLevels applies the engine's output level, then clamps each sample
// to [-1, 1] (a hard clip) so summed voices never exceed full scale.
func scaleLevels(left, right []float64, level float64) {
	for i := range left {
		left[i] = softClip(left[i] * level)
		right[i] = softClip(right[i] * level)
	}
}

func softClip(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}
