package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/reelframe/internal/composer"
	"github.com/ivlev/reelframe/internal/config"
	"github.com/ivlev/reelframe/internal/geometry"
	"github.com/ivlev/reelframe/internal/sampler"
	"github.com/ivlev/reelframe/internal/system"
	"github.com/ivlev/reelframe/internal/timeline"
)

// ErrUpstream marks face sampler failures: the engine cannot reframe a
// clip it has no samples for.
var ErrUpstream = errors.New("engine: face sampler failed")

// Engine runs the per-clip reframing pass: sample, normalize, build the
// crop timeline, compose the output descriptor. One Engine serves any
// number of clips; all per-clip state is local to a call.
type Engine struct {
	cfg     *config.Config
	sampler sampler.Sampler
	log     *slog.Logger
}

// Result pairs one clip with its outcome. A failed clip carries Err and
// a nil Descriptor; the batch keeps going.
type Result struct {
	Video      sampler.VideoInfo
	Descriptor *composer.Descriptor
	Err        error
}

func New(cfg *config.Config, s sampler.Sampler, log *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("engine: nil sampler")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{cfg: cfg, sampler: s, log: log}, nil
}

// Reframe computes the output descriptor for one clip.
func (e *Engine) Reframe(ctx context.Context, video sampler.VideoInfo) (*composer.Descriptor, error) {
	samples, err := e.sampler.Sample(ctx, video, e.cfg.TickIntervalFrames)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstream, video.Path, err)
	}

	normalized := sampler.Normalize(samples, float64(video.Width), float64(video.Height))

	layout := e.cfg.ParsedLayout()
	builder := e.builder(video, layout)

	tl, err := builder.Build(normalized)
	if err != nil {
		return nil, fmt.Errorf("build timeline for %s: %w", video.Path, err)
	}

	e.log.Debug("timeline built",
		"clip", video.Path,
		"segments", len(tl.Segments),
		"duration", tl.Duration)

	d, err := composer.Compose(tl, layout, composer.Options{
		SourcePath:       video.Path,
		TargetWidth:      e.cfg.TargetWidth,
		SecondaryContent: e.cfg.SecondaryContent,
		CaptionText:      e.cfg.CaptionText,
	})
	if err != nil {
		return nil, fmt.Errorf("compose %s: %w", video.Path, err)
	}
	return d, nil
}

// ReframeBatch processes independent clips on a bounded worker pool. A
// clip that fails is recorded in its Result and skipped; only context
// cancellation stops the batch.
func (e *Engine) ReframeBatch(ctx context.Context, clips []sampler.VideoInfo) ([]Result, error) {
	workers := e.cfg.Workers
	if workers <= 0 {
		workers = system.DefaultWorkers()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	results := make([]Result, len(clips))
	for i, clip := range clips {
		i, clip := i, clip
		g.Go(func() error {
			d, err := e.Reframe(ctx, clip)
			results[i] = Result{Video: clip, Descriptor: d, Err: err}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.log.Error("clip reframing failed", "clip", clip.Path, "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (e *Engine) builder(video sampler.VideoInfo, layout composer.Layout) *timeline.Builder {
	fps := video.FPS
	if fps <= 0 {
		fps = e.cfg.FPS
	}

	aspect := geometry.RatioVertical
	if layout.Stacked() {
		aspect = geometry.RatioStackedHalf
	}

	return &timeline.Builder{
		FrameWidth:         float64(video.Width),
		FrameHeight:        float64(video.Height),
		FPS:                fps,
		Duration:           video.Duration,
		SingleAspect:       aspect,
		AllowDual:          !layout.Stacked(),
		SmoothingStrength:  e.cfg.SmoothingStrength,
		HysteresisTicks:    e.cfg.HysteresisTicks,
		MinSegmentDuration: e.cfg.MinSegmentDuration,
		PanCycleDuration:   e.cfg.PanCycleDuration,
		PanLeftBound:       e.cfg.PanLeftBound,
		PanRightBound:      e.cfg.PanRightBound,
	}
}
