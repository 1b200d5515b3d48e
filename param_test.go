package lyd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParamTimelineHoldsFlatBeforeFirstPoint(t *testing.T) {
	tl := &paramTimeline{}
	tl.insert(paramPoint{sampleNo: 100, value: 5, interp: InterpLinear})
	assert.Equal(t, 5.0, tl.valueAt(0))
	assert.Equal(t, 5.0, tl.valueAt(99))
}

func TestParamTimelineHoldsFlatAfterLastPoint(t *testing.T) {
	tl := &paramTimeline{}
	tl.insert(paramPoint{sampleNo: 0, value: 1, interp: InterpLinear})
	tl.insert(paramPoint{sampleNo: 100, value: 9, interp: InterpLinear})
	assert.Equal(t, 9.0, tl.valueAt(200))
}

func TestParamTimelineLinearInterpolatesBetweenPoints(t *testing.T) {
	tl := &paramTimeline{}
	tl.insert(paramPoint{sampleNo: 0, value: 0, interp: InterpLinear})
	tl.insert(paramPoint{sampleNo: 10, value: 10, interp: InterpLinear})
	assert.InDelta(t, 5.0, tl.valueAt(5), 1e-9)
}

func TestParamTimelineStepHoldsUntilExact(t *testing.T) {
	tl := &paramTimeline{}
	tl.insert(paramPoint{sampleNo: 0, value: 0, interp: InterpStep})
	tl.insert(paramPoint{sampleNo: 10, value: 10, interp: InterpStep})
	assert.Equal(t, 0.0, tl.valueAt(5))
	assert.Equal(t, 10.0, tl.valueAt(10))
}

func TestParamTimelineInsertReplacesExactSamePoint(t *testing.T) {
	tl := &paramTimeline{}
	tl.insert(paramPoint{sampleNo: 5, value: 1})
	tl.insert(paramPoint{sampleNo: 5, value: 2})
	assert.Len(t, tl.points, 1)
	assert.Equal(t, 2.0, tl.points[0].value)
}

func TestParamTimelinePruneBeforeKeepsTwoAnchors(t *testing.T) {
	tl := &paramTimeline{}
	for i := int64(0); i < 5; i++ {
		tl.insert(paramPoint{sampleNo: i * 10, value: float64(i)})
	}
	tl.pruneBefore(35)
	// must keep enough history to still bracket/anchor sample 35
	assert.LessOrEqual(t, tl.points[0].sampleNo, int64(35))
}

func TestCubicInterpMatchesLinearOnAStraightRamp(t *testing.T) {
	// on a perfectly linear ramp, the cubic and linear interpolants agree
	got := cubicInterp(0.5, -10, 0, 10, 20)
	assert.InDelta(t, 5.0, got, 1e-9)
}

func TestParamSchedulerSetDelayedNegativeIsImmediate(t *testing.T) {
	s := newParamScheduler()
	s.setDelayed("gain", 0.5, -1, 100, InterpStep)
	assert.Equal(t, 0.5, s.timelines["gain"].valueAt(100))
}

func TestParamSchedulerEvalChunkFallsBackToCurrentWhenNoTimeline(t *testing.T) {
	s := newParamScheduler()
	var dst [1][chunkSamples]float64
	s.evalChunk([]string{"untouched"}, []float64{3.5}, 0, 4, dst[:])
	for j := 0; j < 4; j++ {
		assert.Equal(t, 3.5, dst[0][j])
	}
}
