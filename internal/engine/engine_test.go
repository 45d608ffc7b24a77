package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ivlev/reelframe/internal/composer"
	"github.com/ivlev/reelframe/internal/config"
	"github.com/ivlev/reelframe/internal/geometry"
	"github.com/ivlev/reelframe/internal/sampler"
	"github.com/ivlev/reelframe/internal/timeline"
)

// fakeSampler returns canned samples per clip path
type fakeSampler struct {
	samples map[string][]sampler.FaceSample
	err     error
}

func (f *fakeSampler) Sample(ctx context.Context, video sampler.VideoInfo, tickIntervalFrames int) ([]sampler.FaceSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.samples[video.Path], nil
}

func testVideo(path string) sampler.VideoInfo {
	return sampler.VideoInfo{Path: path, Width: 1920, Height: 1080, FPS: 30, Duration: 5}
}

func faceSamples(n int) []sampler.FaceSample {
	out := make([]sampler.FaceSample, n)
	for i := range out {
		out[i] = sampler.FaceSample{
			Timestamp: float64(i) * 0.5,
			Boxes: []geometry.BoundingBox{
				{X: 880, Y: 400, Width: 160, Height: 170, Confidence: 0.9},
			},
		}
	}
	return out
}

func newEngine(t *testing.T, s sampler.Sampler) *Engine {
	t.Helper()
	e, err := New(config.Default(), s, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestReframeProducesDescriptor(t *testing.T) {
	fs := &fakeSampler{samples: map[string][]sampler.FaceSample{
		"clip.mp4": faceSamples(10),
	}}
	e := newEngine(t, fs)

	d, err := e.Reframe(context.Background(), testVideo("clip.mp4"))
	if err != nil {
		t.Fatalf("Reframe: %v", err)
	}

	if d.Layout != composer.LayoutVertical {
		t.Errorf("layout = %v", d.Layout)
	}
	if d.Source.Path != "clip.mp4" || d.Source.Duration != 5 {
		t.Errorf("source = %+v", d.Source)
	}
	if len(d.Segments) != 1 || d.Segments[0].Mode != "one_face" {
		t.Errorf("segments = %+v", d.Segments)
	}
}

func TestReframeNormalizesDetections(t *testing.T) {
	// Boxes below the size threshold are filtered out, leaving a
	// zero-face panning timeline.
	tiny := make([]sampler.FaceSample, 6)
	for i := range tiny {
		tiny[i] = sampler.FaceSample{
			Timestamp: float64(i),
			Boxes: []geometry.BoundingBox{
				{X: 900, Y: 500, Width: 30, Height: 30, Confidence: 0.9},
			},
		}
	}
	fs := &fakeSampler{samples: map[string][]sampler.FaceSample{"clip.mp4": tiny}}
	e := newEngine(t, fs)

	video := testVideo("clip.mp4")
	video.Duration = 6
	d, err := e.Reframe(context.Background(), video)
	if err != nil {
		t.Fatalf("Reframe: %v", err)
	}
	if len(d.Segments) != 1 || d.Segments[0].Mode != "zero_face" {
		t.Errorf("tiny detections should be filtered to zero-face, got %+v", d.Segments)
	}
}

func TestReframeHonorsTargetWidth(t *testing.T) {
	fs := &fakeSampler{samples: map[string][]sampler.FaceSample{
		"clip.mp4": faceSamples(10),
	}}
	cfg := config.Default()
	cfg.TargetWidth = 720
	e, err := New(cfg, fs, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	d, err := e.Reframe(context.Background(), testVideo("clip.mp4"))
	if err != nil {
		t.Fatalf("Reframe: %v", err)
	}
	if d.Canvas != (composer.Region{W: 720, H: 1280}) {
		t.Errorf("canvas = %+v, want 720x1280", d.Canvas)
	}
}

func TestReframeSamplerError(t *testing.T) {
	fs := &fakeSampler{err: fmt.Errorf("detector offline")}
	e := newEngine(t, fs)

	_, err := e.Reframe(context.Background(), testVideo("clip.mp4"))
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("got %v, want ErrUpstream", err)
	}
}

func TestReframeNoSamples(t *testing.T) {
	fs := &fakeSampler{samples: map[string][]sampler.FaceSample{}}
	e := newEngine(t, fs)

	_, err := e.Reframe(context.Background(), testVideo("clip.mp4"))
	if !errors.Is(err, timeline.ErrNoSamples) {
		t.Errorf("got %v, want ErrNoSamples", err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.SmoothingStrength = 2

	_, err := New(cfg, &fakeSampler{}, nil)
	if !errors.Is(err, config.ErrInvalid) {
		t.Errorf("got %v, want ErrInvalid", err)
	}
}

func TestReframeBatchKeepsGoingPastFailures(t *testing.T) {
	fs := &fakeSampler{samples: map[string][]sampler.FaceSample{
		"a.mp4": faceSamples(10),
		"c.mp4": faceSamples(10),
		// b.mp4 has no samples and fails
	}}
	cfg := config.Default()
	cfg.Workers = 2
	e, err := New(cfg, fs, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	clips := []sampler.VideoInfo{testVideo("a.mp4"), testVideo("b.mp4"), testVideo("c.mp4")}
	results, err := e.ReframeBatch(context.Background(), clips)
	if err != nil {
		t.Fatalf("ReframeBatch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}

	if results[0].Err != nil || results[0].Descriptor == nil {
		t.Errorf("clip a: %+v", results[0].Err)
	}
	if !errors.Is(results[1].Err, timeline.ErrNoSamples) || results[1].Descriptor != nil {
		t.Errorf("clip b should fail with ErrNoSamples, got %v", results[1].Err)
	}
	if results[2].Err != nil || results[2].Descriptor == nil {
		t.Errorf("clip c: %+v", results[2].Err)
	}
}

func TestReframeBatchCancellation(t *testing.T) {
	fs := &fakeSampler{samples: map[string][]sampler.FaceSample{
		"a.mp4": faceSamples(10),
	}}
	e := newEngine(t, fs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ReframeBatch(ctx, []sampler.VideoInfo{testVideo("a.mp4")})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestStackedLayoutStaysSingle(t *testing.T) {
	// Two faces per tick, but stacked layouts track one subject at 9:8
	dual := make([]sampler.FaceSample, 10)
	for i := range dual {
		dual[i] = sampler.FaceSample{
			Timestamp: float64(i) * 0.5,
			Boxes: []geometry.BoundingBox{
				{X: 350, Y: 360, Width: 150, Height: 170, Confidence: 0.9},
				{X: 1350, Y: 390, Width: 140, Height: 160, Confidence: 0.85},
			},
		}
	}
	fs := &fakeSampler{samples: map[string][]sampler.FaceSample{"clip.mp4": dual}}
	cfg := config.Default()
	cfg.Layout = string(composer.LayoutStackedPhoto)
	e, err := New(cfg, fs, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	d, err := e.Reframe(context.Background(), testVideo("clip.mp4"))
	if err != nil {
		t.Fatalf("Reframe: %v", err)
	}

	if d.Second == nil || !d.Second.Placeholder {
		t.Error("stacked descriptor should carry a placeholder secondary slot")
	}
	for _, seg := range d.Segments {
		if seg.Mode != "one_face" {
			t.Errorf("stacked segment mode = %q", seg.Mode)
		}
		if len(seg.Boxes) != 1 {
			t.Errorf("stacked segment has %d boxes", len(seg.Boxes))
		}
	}
}
