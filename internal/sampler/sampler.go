package sampler

import (
	"context"
	"sort"

	"github.com/ivlev/reelframe/internal/geometry"
)

// Detection filter thresholds, relative to the source frame. A face box must
// be at least 8% of the frame height, keep its center 5% away from the left
// and right edges, carry 60% confidence and look roughly square.
const (
	minFaceHeightRatio = 0.08
	edgeMarginRatio    = 0.05
	minConfidence      = 0.6
	minFaceAspect      = 0.6
	maxFaceAspect      = 1.4

	// Two faces count as a pair only when the smaller is at least half the
	// width of the larger; otherwise the small one is likely a false hit.
	minPairSizeRatio = 0.5

	// Detector output is clamped to this many boxes per tick
	maxBoxesPerSample = 2
)

// VideoInfo describes the clip a sample set was taken from
type VideoInfo struct {
	Path     string  `yaml:"path"`
	Width    int     `yaml:"width"`
	Height   int     `yaml:"height"`
	FPS      float64 `yaml:"fps"`
	Duration float64 `yaml:"duration"`
}

// FaceSample is the detector output for one sampling tick
type FaceSample struct {
	Timestamp float64                `yaml:"timestamp"`
	Boxes     []geometry.BoundingBox `yaml:"boxes"`
}

// Sampler is the face-detection collaborator. It is invoked once per clip
// and returns the full batch of samples before reframing begins.
type Sampler interface {
	Sample(ctx context.Context, video VideoInfo, tickIntervalFrames int) ([]FaceSample, error)
}

// Normalize filters raw detections and clamps each sample to at most two
// boxes, ranked by confidence then area. It returns a new slice; inputs are
// not mutated.
func Normalize(samples []FaceSample, frameWidth, frameHeight float64) []FaceSample {
	out := make([]FaceSample, len(samples))
	for i, s := range samples {
		out[i] = FaceSample{
			Timestamp: s.Timestamp,
			Boxes:     normalizeBoxes(s.Boxes, frameWidth, frameHeight),
		}
	}
	return out
}

func normalizeBoxes(boxes []geometry.BoundingBox, frameWidth, frameHeight float64) []geometry.BoundingBox {
	kept := make([]geometry.BoundingBox, 0, len(boxes))
	for _, b := range boxes {
		b = clampBox(b, frameWidth, frameHeight)
		if accept(b, frameWidth, frameHeight) {
			kept = append(kept, b)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Confidence != kept[j].Confidence {
			return kept[i].Confidence > kept[j].Confidence
		}
		return kept[i].Area() > kept[j].Area()
	})

	if len(kept) > maxBoxesPerSample {
		kept = kept[:maxBoxesPerSample]
	}

	// Mismatched pair sizes mean one detection is probably noise; keep the
	// stronger box and report a single face.
	if len(kept) == 2 {
		small, large := kept[0].Width, kept[1].Width
		if small > large {
			small, large = large, small
		}
		if large > 0 && small/large < minPairSizeRatio {
			kept = kept[:1]
		}
	}

	return kept
}

func accept(b geometry.BoundingBox, frameWidth, frameHeight float64) bool {
	if b.Width <= 0 || b.Height <= 0 {
		return false
	}
	if b.Height < frameHeight*minFaceHeightRatio || b.Width < frameHeight*minFaceHeightRatio {
		return false
	}

	margin := frameWidth * edgeMarginRatio
	cx := b.CenterX()
	if cx < margin || cx > frameWidth-margin {
		return false
	}

	if b.Confidence < minConfidence {
		return false
	}

	aspect := b.Width / b.Height
	return aspect >= minFaceAspect && aspect <= maxFaceAspect
}

func clampBox(b geometry.BoundingBox, frameWidth, frameHeight float64) geometry.BoundingBox {
	if b.X < 0 {
		b.Width += b.X
		b.X = 0
	}
	if b.Y < 0 {
		b.Height += b.Y
		b.Y = 0
	}
	if b.X+b.Width > frameWidth {
		b.Width = frameWidth - b.X
	}
	if b.Y+b.Height > frameHeight {
		b.Height = frameHeight - b.Y
	}
	if b.Width < 0 {
		b.Width = 0
	}
	if b.Height < 0 {
		b.Height = 0
	}
	return b
}
