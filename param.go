// param.go - per-voice parameter automation (timelines + interpolation).
//
// Grounded on original_source/lyd/core/lyd-vm.c's lyd_vm_update_params and
// cubic(): a sorted-by-sample-number timeline per variable name, evaluated
// once per sample into the VM's variable prelude, with the already-passed
// prefix of each timeline pruned after every chunk (head-pruning).

package lyd

import "sort"

type interpolation int

const (
	InterpLinear interpolation = iota
	InterpStep
	InterpCubic
	InterpGap
)

// paramPoint is one scheduled set-point in a variable's timeline.
type paramPoint struct {
	sampleNo int64
	value    float64
	interp   interpolation
}

// paramTimeline is the sorted set-point list for one variable on one
// voice. Points older than the two most recently passed are pruned
// after each chunk so long automations stay O(1) amortized per sample.
type paramTimeline struct {
	points []paramPoint
}

// insert adds a set-point, keeping points sorted by sampleNo. A later call
// for the same sampleNo replaces the earlier one, matching "last write
// wins" for simultaneous set_param calls.
func (t *paramTimeline) insert(p paramPoint) {
	i := sort.Search(len(t.points), func(i int) bool { return t.points[i].sampleNo >= p.sampleNo })
	if i < len(t.points) && t.points[i].sampleNo == p.sampleNo {
		t.points[i] = p
		return
	}
	t.points = append(t.points, paramPoint{})
	copy(t.points[i+1:], t.points[i:])
	t.points[i] = p
}

// pruneBefore drops set-points that can no longer be the "prev" or
// "prev_prev" anchor for any future sample, i.e. everything before the
// second-to-last point not after `sampleNo`.
func (t *paramTimeline) pruneBefore(sampleNo int64) {
	keep := 0
	for keep < len(t.points)-2 && t.points[keep+2].sampleNo < sampleNo {
		keep++
	}
	if keep > 0 {
		t.points = t.points[keep:]
	}
}

// eval fills out[0:n] with this timeline's value at samples
// [sampleBase, sampleBase+n), holding the last known value flat before the
// first set-point and after the last.
func (t *paramTimeline) eval(sampleBase int64, n int, out *[chunkSamples]float64, current float64) {
	if len(t.points) == 0 {
		for j := 0; j < n; j++ {
			out[j] = current
		}
		return
	}

	for j := 0; j < n; j++ {
		sampleNo := sampleBase + int64(j)
		out[j] = t.valueAt(sampleNo)
	}
}

// valueAt finds the bracketing set-points for sampleNo and interpolates.
func (t *paramTimeline) valueAt(sampleNo int64) float64 {
	pts := t.points
	// locate prev (last point with sampleNo <= target) and curr (first
	// point with sampleNo > target), matching the original's two-cursor
	// scan but as a binary search since pruning already keeps lists short.
	idx := sort.Search(len(pts), func(i int) bool { return pts[i].sampleNo > sampleNo })

	if idx == 0 {
		return pts[0].value
	}
	if idx >= len(pts) {
		return pts[len(pts)-1].value
	}

	prev := pts[idx-1]
	curr := pts[idx]
	var prevPrev paramPoint
	if idx >= 2 {
		prevPrev = pts[idx-2]
	} else {
		prevPrev = prev
	}

	span := float64(curr.sampleNo - prev.sampleNo)
	var dt float64
	if span != 0 {
		dt = float64(sampleNo-prev.sampleNo) / span
	}

	switch curr.interp {
	case InterpStep:
		if dt < 0.9999 {
			return prev.value
		}
		return curr.value
	case InterpGap:
		return 0
	case InterpCubic:
		next := curr
		if idx+1 < len(pts) {
			next = pts[idx+1]
		}
		return cubicInterp(dt, prevPrev.value, prev.value, curr.value, next.value)
	default: // InterpLinear
		return prev.value*(1-dt) + curr.value*dt
	}
}

// cubicInterp is original_source/lyd/core/lyd-vm.c's cubic(), a four-point
// Catmull-Rom-like polynomial over (prev_prev, prev, curr, next).
func cubicInterp(dx, prevPrev, prev, curr, next float64) float64 {
	return (((((-prevPrev+3*prev-3*curr+next)*dx)+
		(2*prevPrev-5*prev+4*curr-next))*dx+
		(-prevPrev+curr))*dx + (prev + prev)) / 2.0
}

// paramScheduler holds one timeline per named variable on a voice.
type paramScheduler struct {
	timelines map[string]*paramTimeline
}

func newParamScheduler() *paramScheduler {
	return &paramScheduler{timelines: map[string]*paramTimeline{}}
}

// set schedules an immediate set-point (spec.md's set_param).
func (s *paramScheduler) set(name string, value float64, atSample int64, interp interpolation) {
	t := s.timelines[name]
	if t == nil {
		t = &paramTimeline{}
		s.timelines[name] = t
	}
	t.insert(paramPoint{sampleNo: atSample, value: value, interp: interp})
}

// setDelayed schedules a future set-point (spec.md's set_param_delayed). A
// `when` earlier than atSample (a negative delay) is treated as immediate,
// per DESIGN.md's open-question decision: control-API misuse is a
// best-effort no-op, never an error.
func (s *paramScheduler) setDelayed(name string, value float64, when int64, atSample int64, interp interpolation) {
	if when < atSample {
		when = atSample
	}
	s.set(name, value, when, interp)
}

// evalChunk fills dst[v] for every variable v in names with its value over
// [sampleBase, sampleBase+n), then prunes consumed history.
func (s *paramScheduler) evalChunk(names []string, current []float64, sampleBase int64, n int, dst [][chunkSamples]float64) {
	for v, name := range names {
		t := s.timelines[name]
		if t == nil {
			for j := 0; j < n; j++ {
				dst[v][j] = current[v]
			}
			continue
		}
		t.eval(sampleBase, n, &dst[v], current[v])
		t.pruneBefore(sampleBase)
	}
}
