package lyd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWaveTableCachesMissesAsNil(t *testing.T) {
	calls := 0
	wt := newWaveTable(func(name string) (*waveData, bool) {
		calls++
		return nil, false
	}, nil)

	assert.Nil(t, wt.lookup("kick"))
	assert.Nil(t, wt.lookup("kick"))
	assert.Equal(t, 1, calls, "a miss must only invoke the handler once")
}

func TestWaveTableCachesHits(t *testing.T) {
	calls := 0
	wt := newWaveTable(func(name string) (*waveData, bool) {
		calls++
		return &waveData{samples: []float64{1, 2, 3}, sampleRate: 44100}, true
	}, nil)

	w1 := wt.lookup("kick")
	w2 := wt.lookup("kick")
	assert.Same(t, w1, w2)
	assert.Equal(t, 1, calls)
}

func TestWaveTableNilHandlerIsSilence(t *testing.T) {
	wt := newWaveTable(nil, nil)
	assert.Nil(t, wt.lookup("anything"))
}
