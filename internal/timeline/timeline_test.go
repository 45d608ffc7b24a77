package timeline

import (
	"errors"
	"math"
	"testing"

	"github.com/ivlev/reelframe/internal/classifier"
	"github.com/ivlev/reelframe/internal/geometry"
	"github.com/ivlev/reelframe/internal/sampler"
)

func newBuilder(duration float64) *Builder {
	return &Builder{
		FrameWidth:         1920,
		FrameHeight:        1080,
		FPS:                30,
		Duration:           duration,
		SingleAspect:       geometry.RatioVertical,
		AllowDual:          true,
		SmoothingStrength:  0.5,
		HysteresisTicks:    2,
		MinSegmentDuration: 1.0,
		PanCycleDuration:   8.0,
		PanLeftBound:       0.15,
		PanRightBound:      0.85,
	}
}

func oneFace(x float64) []geometry.BoundingBox {
	return []geometry.BoundingBox{{X: x, Y: 400, Width: 150, Height: 170, Confidence: 0.9}}
}

func twoFaces() []geometry.BoundingBox {
	return []geometry.BoundingBox{
		{X: 350, Y: 360, Width: 150, Height: 170, Confidence: 0.9},
		{X: 1350, Y: 390, Width: 140, Height: 160, Confidence: 0.85},
	}
}

func TestBuildNoSamples(t *testing.T) {
	_, err := newBuilder(10).Build(nil)
	if !errors.Is(err, ErrNoSamples) {
		t.Fatalf("got %v, want ErrNoSamples", err)
	}
}

// Scenario: ten zero-face samples over ten seconds produce one panning
// segment spanning the whole clip.
func TestBuildAllZeroFacePans(t *testing.T) {
	b := newBuilder(10)

	var samples []sampler.FaceSample
	for i := 0; i < 10; i++ {
		samples = append(samples, sampler.FaceSample{Timestamp: float64(i)})
	}

	tl, err := b.Build(samples)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(tl.Segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(tl.Segments))
	}
	seg := tl.Segments[0]
	if seg.Mode != classifier.ZeroFace {
		t.Errorf("segment mode = %v", seg.Mode)
	}
	if seg.Start != 0 || math.Abs(seg.End-10) > 1e-6 {
		t.Errorf("segment spans [%.2f, %.2f], want [0, 10]", seg.Start, seg.End)
	}

	kfs := tl.Keyframes()
	if kfs[0].Timestamp != 0 {
		t.Errorf("first keyframe at %.3f", kfs[0].Timestamp)
	}
	if last := kfs[len(kfs)-1].Timestamp; math.Abs(last-10) > 1e-6 {
		t.Errorf("last keyframe at %.3f", last)
	}

	// The pan must actually move between the configured bounds
	minX, maxX := math.Inf(1), math.Inf(-1)
	cropW := 1080 * 9.0 / 16.0
	left := 1920 * 0.15
	right := 1920*0.85 - cropW
	for _, kf := range kfs {
		x := kf.Rects[0].X
		minX = math.Min(minX, x)
		maxX = math.Max(maxX, x)
		if x < left-1e-6 || x > right+1e-6 {
			t.Fatalf("pan position %.1f outside [%.1f, %.1f]", x, left, right)
		}
	}
	if maxX-minX < (right-left)*0.8 {
		t.Errorf("pan range %.1f too small for bounds spread %.1f", maxX-minX, right-left)
	}
}

// Scenario: one subject for the first half, two for the second. The mode
// boundary falls exactly on the first two-face sample and the rect count
// switches from one to two with no blending across it.
func TestBuildModeBoundary(t *testing.T) {
	b := newBuilder(5)
	b.HysteresisTicks = 1
	b.MinSegmentDuration = 0.4

	var samples []sampler.FaceSample
	for i := 0; i < 10; i++ {
		ts := float64(i) * 0.5
		if i < 5 {
			samples = append(samples, sampler.FaceSample{Timestamp: ts, Boxes: oneFace(850 + float64(i)*10)})
		} else {
			samples = append(samples, sampler.FaceSample{Timestamp: ts, Boxes: twoFaces()})
		}
	}

	tl, err := b.Build(samples)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(tl.Segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(tl.Segments))
	}

	if tl.Segments[0].Mode != classifier.OneFace || tl.Segments[1].Mode != classifier.TwoFace {
		t.Errorf("segment modes: %v, %v", tl.Segments[0].Mode, tl.Segments[1].Mode)
	}
	if math.Abs(tl.Segments[1].Start-2.5) > 1e-6 {
		t.Errorf("boundary at %.3f, want 2.5 (sample 5 timestamp)", tl.Segments[1].Start)
	}

	for _, kf := range tl.Segments[0].Keyframes {
		if len(kf.Rects) != 1 {
			t.Fatalf("one-face keyframe has %d rects", len(kf.Rects))
		}
	}
	for _, kf := range tl.Segments[1].Keyframes {
		if len(kf.Rects) != 2 {
			t.Fatalf("two-face keyframe has %d rects", len(kf.Rects))
		}
	}

	// Hard boundary: the last one-face keyframe sits strictly before the
	// first two-face keyframe, which lands exactly on the boundary.
	lastOne := tl.Segments[0].Keyframes[len(tl.Segments[0].Keyframes)-1]
	firstTwo := tl.Segments[1].Keyframes[0]
	if lastOne.Timestamp >= firstTwo.Timestamp {
		t.Errorf("segment overlap: %.4f >= %.4f", lastOne.Timestamp, firstTwo.Timestamp)
	}
	if math.Abs(firstTwo.Timestamp-2.5) > 1e-6 {
		t.Errorf("first two-face keyframe at %.4f, want 2.5", firstTwo.Timestamp)
	}
}

func TestBuildMergesShortFlicker(t *testing.T) {
	b := newBuilder(4)
	b.HysteresisTicks = 1 // let the flicker through classification

	var samples []sampler.FaceSample
	for i := 0; i < 8; i++ {
		ts := float64(i) * 0.5
		if i == 3 {
			// single dropout tick, 0.5s < MinSegmentDuration
			samples = append(samples, sampler.FaceSample{Timestamp: ts})
		} else {
			samples = append(samples, sampler.FaceSample{Timestamp: ts, Boxes: oneFace(900)})
		}
	}

	tl, err := b.Build(samples)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(tl.Segments) != 1 {
		t.Fatalf("got %d segments, want 1 after merging", len(tl.Segments))
	}
	if tl.Segments[0].Mode != classifier.OneFace {
		t.Errorf("merged mode = %v", tl.Segments[0].Mode)
	}
}

func TestBuildInvariants(t *testing.T) {
	b := newBuilder(6)
	b.HysteresisTicks = 1
	b.MinSegmentDuration = 0.4

	var samples []sampler.FaceSample
	for i := 0; i < 12; i++ {
		ts := float64(i) * 0.5
		switch {
		case i < 4:
			samples = append(samples, sampler.FaceSample{Timestamp: ts})
		case i < 8:
			samples = append(samples, sampler.FaceSample{Timestamp: ts, Boxes: oneFace(800 + 20*float64(i))})
		default:
			samples = append(samples, sampler.FaceSample{Timestamp: ts, Boxes: twoFaces()})
		}
	}

	tl, err := b.Build(samples)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := tl.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	for _, kf := range tl.Keyframes() {
		want := geometry.RatioVertical.Value()
		if kf.Mode == classifier.TwoFace {
			want = geometry.RatioStackedHalf.Value()
		}
		for _, r := range kf.Rects {
			if math.Abs(r.Aspect()-want) > 1e-3 {
				t.Fatalf("t=%.2f mode=%v: aspect %.4f, want %.4f", kf.Timestamp, kf.Mode, r.Aspect(), want)
			}
		}
	}
}

func TestBuildSmoothnessWithinSegment(t *testing.T) {
	b := newBuilder(8)

	// Jittery detector output around a slow drift
	var samples []sampler.FaceSample
	for i := 0; i < 60; i++ {
		ts := float64(i) * 0.133
		x := 700 + float64(i)*4
		if i%2 == 0 {
			x += 35
		} else {
			x -= 35
		}
		samples = append(samples, sampler.FaceSample{Timestamp: ts, Boxes: oneFace(x)})
	}

	tl, err := b.Build(samples)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(tl.Segments) != 1 {
		t.Fatalf("expected a single one-face segment, got %d", len(tl.Segments))
	}

	const jitterThreshold = 15.0 // px per frame at 30fps
	kfs := tl.Segments[0].Keyframes
	for i := 1; i < len(kfs); i++ {
		a, c := kfs[i-1].Rects[0], kfs[i].Rects[0]
		corners := []float64{
			math.Abs(c.X - a.X),
			math.Abs(c.Y - a.Y),
			math.Abs((c.X + c.Width) - (a.X + a.Width)),
			math.Abs((c.Y + c.Height) - (a.Y + a.Height)),
		}
		for _, d := range corners {
			if d > jitterThreshold {
				t.Fatalf("frame %d: corner moved %.2fpx, threshold %.1f", i, d, jitterThreshold)
			}
		}
	}
}

func TestBuildDualDisabledForStacked(t *testing.T) {
	b := newBuilder(4)
	b.AllowDual = false
	b.SingleAspect = geometry.RatioStackedHalf

	var samples []sampler.FaceSample
	for i := 0; i < 8; i++ {
		samples = append(samples, sampler.FaceSample{Timestamp: float64(i) * 0.5, Boxes: twoFaces()})
	}

	tl, err := b.Build(samples)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(tl.Segments) != 1 || tl.Segments[0].Mode != classifier.OneFace {
		t.Fatalf("stacked build should stay single-subject, got %+v", tl.Segments[0].Mode)
	}
	for _, kf := range tl.Keyframes() {
		if len(kf.Rects) != 1 {
			t.Fatalf("expected 1 rect per keyframe, got %d", len(kf.Rects))
		}
		if math.Abs(kf.Rects[0].Aspect()-geometry.RatioStackedHalf.Value()) > 1e-3 {
			t.Fatalf("aspect %.4f, want 9:8", kf.Rects[0].Aspect())
		}
	}
}

func TestBuildExtendsTrailingGap(t *testing.T) {
	b := newBuilder(10)

	var samples []sampler.FaceSample
	for i := 0; i < 5; i++ {
		samples = append(samples, sampler.FaceSample{Timestamp: float64(i), Boxes: oneFace(900)})
	}

	tl, err := b.Build(samples)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	kfs := tl.Keyframes()
	if last := kfs[len(kfs)-1].Timestamp; math.Abs(last-10) > 1e-6 {
		t.Errorf("last keyframe at %.3f, want clip duration 10", last)
	}
}
