package timeline

import (
	"errors"
	"fmt"
	"math"

	"github.com/ivlev/reelframe/internal/classifier"
	"github.com/ivlev/reelframe/internal/geometry"
	"github.com/ivlev/reelframe/internal/panning"
	"github.com/ivlev/reelframe/internal/sampler"
	"github.com/ivlev/reelframe/internal/smoother"
)

// ErrNoSamples is returned when the detector produced nothing at all for a
// clip; without samples there is no timeline to build.
var ErrNoSamples = errors.New("timeline: no face samples for clip")

// CropKeyframe is one timestamped step of the crop path. OneFace and
// ZeroFace keyframes carry a single rect, TwoFace keyframes carry two
// (top/bottom halves of the split screen, ordered left subject first).
type CropKeyframe struct {
	Timestamp float64
	Mode      classifier.Mode
	Rects     []geometry.CropRect
}

// Segment is a contiguous run of keyframes sharing one mode. Smoothing
// never crosses a segment boundary; rect count and framing change as a
// hard cut exactly at Start.
type Segment struct {
	Mode      classifier.Mode
	Start     float64
	End       float64
	Keyframes []CropKeyframe
}

// Timeline is the complete crop path for one clip: contiguous segments
// covering [0, Duration] with strictly increasing keyframe timestamps.
type Timeline struct {
	FrameWidth  float64
	FrameHeight float64
	Duration    float64
	Segments    []Segment
}

// Keyframes flattens all segments into one ordered sequence
func (t *Timeline) Keyframes() []CropKeyframe {
	var out []CropKeyframe
	for _, s := range t.Segments {
		out = append(out, s.Keyframes...)
	}
	return out
}

// Validate checks the structural invariants: coverage of [0, Duration],
// strictly monotonic timestamps, in-bounds rects.
func (t *Timeline) Validate() error {
	kfs := t.Keyframes()
	if len(kfs) == 0 {
		return errors.New("timeline: empty")
	}
	if kfs[0].Timestamp != 0 {
		return fmt.Errorf("timeline: first keyframe at %.3f, want 0", kfs[0].Timestamp)
	}
	if last := kfs[len(kfs)-1].Timestamp; math.Abs(last-t.Duration) > 1e-6 {
		return fmt.Errorf("timeline: last keyframe at %.3f, want %.3f", last, t.Duration)
	}

	for i := 1; i < len(kfs); i++ {
		if kfs[i].Timestamp <= kfs[i-1].Timestamp {
			return fmt.Errorf("timeline: timestamps not increasing at index %d", i)
		}
	}

	for _, kf := range kfs {
		for _, r := range kf.Rects {
			if r.X < -1e-6 || r.Y < -1e-6 ||
				r.X+r.Width > t.FrameWidth+1e-6 || r.Y+r.Height > t.FrameHeight+1e-6 {
				return fmt.Errorf("timeline: rect out of bounds at t=%.3f: %+v", kf.Timestamp, r)
			}
		}
	}
	return nil
}

// Builder assembles a Timeline from a batch of face samples. One Builder
// serves one clip; there is no state shared between clips.
type Builder struct {
	FrameWidth  float64
	FrameHeight float64
	FPS         float64
	Duration    float64

	// SingleAspect is the crop aspect for zero- and one-subject framing:
	// 9:16 for the full vertical layout, 9:8 for stacked layouts.
	SingleAspect geometry.Ratio

	// AllowDual enables split-screen segments. Stacked layouts track a
	// single subject only, so they build with AllowDual off.
	AllowDual bool

	SmoothingStrength  float64
	HysteresisTicks    int
	MinSegmentDuration float64

	PanCycleDuration float64
	PanLeftBound     float64
	PanRightBound    float64
}

type run struct {
	mode  classifier.Mode
	start int // first sample index
	end   int // last sample index, inclusive
}

// Build runs the full per-clip pass: classify, segment, compute raw
// geometry, smooth per segment and stitch the result into one gap-free
// timeline covering [0, Duration].
func (b *Builder) Build(samples []sampler.FaceSample) (*Timeline, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	counts := make([]int, len(samples))
	for i, s := range samples {
		counts[i] = len(s.Boxes)
	}
	if !b.AllowDual {
		for i, n := range counts {
			if n > 1 {
				counts[i] = 1
			}
		}
	}

	modes := classifier.New(b.HysteresisTicks).Run(counts)
	runs := b.mergeRuns(splitRuns(modes), samples)

	tl := &Timeline{
		FrameWidth:  b.FrameWidth,
		FrameHeight: b.FrameHeight,
		Duration:    b.Duration,
	}

	for i, r := range runs {
		start := samples[r.start].Timestamp
		if i == 0 {
			start = 0
		}
		end := b.Duration
		if i < len(runs)-1 {
			end = samples[runs[i+1].start].Timestamp
		}
		if end <= start {
			continue
		}

		seg := b.buildSegment(r, samples, start, end, i == len(runs)-1)
		tl.Segments = append(tl.Segments, seg)
	}

	if err := tl.Validate(); err != nil {
		return nil, err
	}
	return tl, nil
}

// splitRuns groups consecutive ticks sharing a damped mode
func splitRuns(modes []classifier.Mode) []run {
	var runs []run
	for i, m := range modes {
		if len(runs) == 0 || runs[len(runs)-1].mode != m {
			runs = append(runs, run{mode: m, start: i, end: i})
		} else {
			runs[len(runs)-1].end = i
		}
	}
	return runs
}

// mergeRuns folds runs shorter than MinSegmentDuration into their
// predecessor; flickers that survive hysteresis are usually detection
// noise. The final run is kept whatever its length. Adjacent runs that end
// up with the same mode are coalesced afterwards.
func (b *Builder) mergeRuns(runs []run, samples []sampler.FaceSample) []run {
	if b.MinSegmentDuration <= 0 || len(runs) < 2 {
		return coalesce(runs)
	}

	kept := []run{runs[0]}
	for i := 1; i < len(runs); i++ {
		r := runs[i]
		dur := b.runDuration(r, samples)
		if dur < b.MinSegmentDuration && i < len(runs)-1 {
			prev := &kept[len(kept)-1]
			prev.end = r.end
			continue
		}
		kept = append(kept, r)
	}
	return coalesce(kept)
}

func coalesce(runs []run) []run {
	var out []run
	for _, r := range runs {
		if len(out) > 0 && out[len(out)-1].mode == r.mode {
			out[len(out)-1].end = r.end
		} else {
			out = append(out, r)
		}
	}
	return out
}

func (b *Builder) runDuration(r run, samples []sampler.FaceSample) float64 {
	if r.end+1 < len(samples) {
		return samples[r.end+1].Timestamp - samples[r.start].Timestamp
	}
	return b.Duration - samples[r.start].Timestamp
}

func (b *Builder) buildSegment(r run, samples []sampler.FaceSample, start, end float64, last bool) Segment {
	times := b.segmentTimes(start, end, last)

	var kfs []CropKeyframe
	switch r.mode {
	case classifier.ZeroFace:
		kfs = b.panKeyframes(times, start)
	case classifier.TwoFace:
		kfs = b.dualKeyframes(r, samples, times)
	default:
		kfs = b.singleKeyframes(r, samples, times)
	}

	return Segment{Mode: r.mode, Start: start, End: end, Keyframes: kfs}
}

// segmentTimes returns dense keyframe timestamps for [start, end]. For all
// but the final segment the end point is excluded; it belongs to the next
// segment, which starts a new mode there.
func (b *Builder) segmentTimes(start, end float64, last bool) []float64 {
	step := 1.0 / b.FPS
	times := smoother.Uniform(start, end, step)
	if !last {
		for len(times) > 0 && times[len(times)-1] >= end-step*1e-6 {
			times = times[:len(times)-1]
		}
	}
	if len(times) == 0 {
		times = []float64{start}
	}
	return times
}

func (b *Builder) panKeyframes(times []float64, segStart float64) []CropKeyframe {
	gen := &panning.Generator{
		FrameWidth:    b.FrameWidth,
		FrameHeight:   b.FrameHeight,
		CycleDuration: b.PanCycleDuration,
		LeftBound:     b.PanLeftBound,
		RightBound:    b.PanRightBound,
	}

	kfs := make([]CropKeyframe, len(times))
	for i, t := range times {
		kfs[i] = CropKeyframe{
			Timestamp: t,
			Mode:      classifier.ZeroFace,
			Rects:     []geometry.CropRect{gen.Rect(t-segStart, b.SingleAspect)},
		}
	}
	return kfs
}

// singleKeyframes tracks the primary subject. Ticks without a usable box
// (hysteresis can hold OneFace over a dropout) reuse the last seen face;
// a run with no boxes at all degrades to a static centered crop.
func (b *Builder) singleKeyframes(r run, samples []sampler.FaceSample, times []float64) []CropKeyframe {
	calc := geometry.NewCalculator(b.FrameWidth, b.FrameHeight)

	var tickTimes []float64
	var rects []geometry.CropRect
	for i := r.start; i <= r.end; i++ {
		if len(samples[i].Boxes) == 0 {
			continue
		}
		rect := calc.ComputeBox(samples[i].Boxes[0], b.SingleAspect)
		tickTimes = append(tickTimes, samples[i].Timestamp)
		rects = append(rects, rect)
	}

	if len(rects) == 0 {
		rect := calc.CenteredCrop(b.SingleAspect)
		return staticKeyframes(times, classifier.OneFace, []geometry.CropRect{rect})
	}

	undersized := false
	cx := make([]float64, len(rects))
	cy := make([]float64, len(rects))
	hh := make([]float64, len(rects))
	for i, rc := range rects {
		cx[i] = rc.X + rc.Width/2
		cy[i] = rc.Y + rc.Height/2
		hh[i] = rc.Height
		undersized = undersized || rc.Undersized
	}

	// Center and height are smoothed independently; width is derived from
	// height so the aspect stays exact on every output frame.
	sx := smoother.Resample(tickTimes, cx, times, b.SmoothingStrength)
	sy := smoother.Resample(tickTimes, cy, times, b.SmoothingStrength)
	sh := smoother.Resample(tickTimes, hh, times, b.SmoothingStrength)

	kfs := make([]CropKeyframe, len(times))
	for i, t := range times {
		rect := b.rectFromCenter(sx[i], sy[i], sh[i], b.SingleAspect, undersized)
		kfs[i] = CropKeyframe{Timestamp: t, Mode: classifier.OneFace, Rects: []geometry.CropRect{rect}}
	}
	return kfs
}

// dualKeyframes tracks two subjects with a shared 9:8 crop size. Ticks
// missing a full pair hold the previous pair; a run with no pairs at all
// falls back to static left/right speaker positions.
func (b *Builder) dualKeyframes(r run, samples []sampler.FaceSample, times []float64) []CropKeyframe {
	calc := geometry.NewCalculator(b.FrameWidth, b.FrameHeight)

	var tickTimes []float64
	var pairs [][2]geometry.CropRect
	for i := r.start; i <= r.end; i++ {
		if len(samples[i].Boxes) < 2 {
			continue
		}
		pair := calc.ComputeBoxPair(samples[i].Boxes[0], samples[i].Boxes[1])
		tickTimes = append(tickTimes, samples[i].Timestamp)
		pairs = append(pairs, pair)
	}

	if len(pairs) == 0 {
		return staticKeyframes(times, classifier.TwoFace, b.defaultPair(calc))
	}

	undersized := false
	n := len(pairs)
	lx := make([]float64, n)
	ly := make([]float64, n)
	rx := make([]float64, n)
	ry := make([]float64, n)
	hh := make([]float64, n)
	for i, p := range pairs {
		lx[i] = p[0].X + p[0].Width/2
		ly[i] = p[0].Y + p[0].Height/2
		rx[i] = p[1].X + p[1].Width/2
		ry[i] = p[1].Y + p[1].Height/2
		hh[i] = p[0].Height
		undersized = undersized || p[0].Undersized || p[1].Undersized
	}

	s := b.SmoothingStrength
	slx := smoother.Resample(tickTimes, lx, times, s)
	sly := smoother.Resample(tickTimes, ly, times, s)
	srx := smoother.Resample(tickTimes, rx, times, s)
	sry := smoother.Resample(tickTimes, ry, times, s)
	shh := smoother.Resample(tickTimes, hh, times, s)

	kfs := make([]CropKeyframe, len(times))
	for i, t := range times {
		left := b.rectFromCenter(slx[i], sly[i], shh[i], geometry.RatioStackedHalf, undersized)
		right := b.rectFromCenter(srx[i], sry[i], shh[i], geometry.RatioStackedHalf, undersized)
		kfs[i] = CropKeyframe{Timestamp: t, Mode: classifier.TwoFace, Rects: []geometry.CropRect{left, right}}
	}
	return kfs
}

// defaultPair frames the classic left/right podcast speaker positions at
// quarter and three-quarter frame width
func (b *Builder) defaultPair(calc *geometry.Calculator) []geometry.CropRect {
	height := b.FrameHeight
	width := height * geometry.RatioStackedHalf.Value()
	if width > b.FrameWidth {
		width = b.FrameWidth
		height = width / geometry.RatioStackedHalf.Value()
	}

	mk := func(cx float64) geometry.CropRect {
		r := geometry.CropRect{
			X:      cx - width/2,
			Y:      (b.FrameHeight - height) / 2,
			Width:  width,
			Height: height,
		}
		r.X = math.Max(0, math.Min(r.X, b.FrameWidth-r.Width))
		return r
	}
	return []geometry.CropRect{mk(b.FrameWidth / 4), mk(3 * b.FrameWidth / 4)}
}

// rectFromCenter rebuilds an aspect-true rect from smoothed center/height
// signals, shrinking and shifting as needed to stay inside the frame
func (b *Builder) rectFromCenter(cx, cy, height float64, aspect geometry.Ratio, undersized bool) geometry.CropRect {
	width := height * aspect.Value()
	if width > b.FrameWidth {
		width = b.FrameWidth
		height = width / aspect.Value()
	}
	if height > b.FrameHeight {
		height = b.FrameHeight
		width = height * aspect.Value()
	}

	r := geometry.CropRect{
		X:          cx - width/2,
		Y:          cy - height/2,
		Width:      width,
		Height:     height,
		Undersized: undersized,
	}
	r.X = math.Max(0, math.Min(r.X, b.FrameWidth-r.Width))
	r.Y = math.Max(0, math.Min(r.Y, b.FrameHeight-r.Height))
	return r
}

func staticKeyframes(times []float64, mode classifier.Mode, rects []geometry.CropRect) []CropKeyframe {
	kfs := make([]CropKeyframe, len(times))
	for i, t := range times {
		kfs[i] = CropKeyframe{Timestamp: t, Mode: mode, Rects: rects}
	}
	return kfs
}
