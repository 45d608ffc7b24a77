package composer

import (
	"fmt"

	"github.com/ivlev/reelframe/internal/classifier"
	"github.com/ivlev/reelframe/internal/timeline"
)

// Package composer turns a crop timeline into a declarative
// OutputFormatDescriptor: canvas geometry, per-segment source-crop to
// destination-region mappings and optional secondary/caption slots. It
// describes composition only; the rendering toolchain does the pixels.

const (
	// Default canvas when no target width is configured
	CanvasWidth  = 1080
	CanvasHeight = 1920

	// Placeholder color for a missing photo slot
	PlaceholderColor = "#2E3440"

	// Caption band anchors at this fraction of canvas height
	defaultCaptionFraction = 0.85
)

// Layout selects the output composition.
type Layout string

const (
	LayoutVertical     Layout = "vertical_9x16"
	LayoutStackedPhoto Layout = "stacked_photo"
	LayoutStackedVideo Layout = "stacked_video"
)

// ParseLayout maps a config string to a Layout
func ParseLayout(s string) (Layout, error) {
	switch Layout(s) {
	case LayoutVertical, LayoutStackedPhoto, LayoutStackedVideo:
		return Layout(s), nil
	}
	return "", fmt.Errorf("composer: unknown layout %q", s)
}

// Stacked reports whether the layout reserves the top half of the canvas
// for secondary content.
func (l Layout) Stacked() bool {
	return l == LayoutStackedPhoto || l == LayoutStackedVideo
}

// Region is a destination rectangle on the output canvas, in pixels.
type Region struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	W int `yaml:"w"`
	H int `yaml:"h"`
}

// BoxKeyframe is one timestamped source crop, in source-frame pixels.
type BoxKeyframe struct {
	Time       float64 `yaml:"time"`
	X          float64 `yaml:"x"`
	Y          float64 `yaml:"y"`
	W          float64 `yaml:"w"`
	H          float64 `yaml:"h"`
	Undersized bool    `yaml:"undersized,omitempty"`
}

// BoxMapping is one animated source crop mapped onto one canvas region.
type BoxMapping struct {
	Dest      Region        `yaml:"dest"`
	Keyframes []BoxKeyframe `yaml:"keyframes"`
}

// SegmentMap is the composition of one mode segment.
type SegmentMap struct {
	Mode  string       `yaml:"mode"`
	Start float64      `yaml:"start"`
	End   float64      `yaml:"end"`
	Boxes []BoxMapping `yaml:"boxes"`
}

// Secondary describes the top-half content of a stacked layout. When
// Source is empty the renderer substitutes the placeholder: a solid
// Color for photo slots, an animated test pattern for video slots.
type Secondary struct {
	Kind        string `yaml:"kind"` // "photo" or "video"
	Source      string `yaml:"source,omitempty"`
	Placeholder bool   `yaml:"placeholder"`
	Color       string `yaml:"color,omitempty"`
	Dest        Region `yaml:"dest"`
}

// Caption is a text overlay slot; the composer only places it.
type Caption struct {
	Text string `yaml:"text"`
	Dest Region `yaml:"dest"`
}

// Descriptor is the complete declarative composition for one clip.
// Immutable once built; one per clip.
type Descriptor struct {
	Version  string       `yaml:"version"`
	Layout   Layout       `yaml:"layout"`
	Canvas   Region       `yaml:"canvas"`
	Source   SourceInfo   `yaml:"source"`
	Segments []SegmentMap `yaml:"segments"`
	Second   *Secondary   `yaml:"secondary,omitempty"`
	Caption  *Caption     `yaml:"caption,omitempty"`
}

// SourceInfo records the clip the crops refer to.
type SourceInfo struct {
	Path     string  `yaml:"path,omitempty"`
	Width    float64 `yaml:"width"`
	Height   float64 `yaml:"height"`
	Duration float64 `yaml:"duration"`
}

// Options carries the optional composition inputs.
type Options struct {
	SourcePath       string
	TargetWidth      int     // canvas width in pixels; 0 means the 1080 default
	SecondaryContent string  // path to photo/video for stacked layouts
	CaptionText      string
	CaptionFraction  float64 // vertical anchor, 0 top to 1 bottom; 0 means default
}

// Compose builds the descriptor for one timeline. It is a pure function
// of its arguments: the same timeline and layout always produce the same
// descriptor.
func Compose(tl *timeline.Timeline, layout Layout, opts Options) (*Descriptor, error) {
	if tl == nil || len(tl.Segments) == 0 {
		return nil, fmt.Errorf("composer: empty timeline")
	}

	canvasW := opts.TargetWidth
	if canvasW <= 0 {
		canvasW = CanvasWidth
	}
	canvasH := canvasW * 16 / 9
	halfH := canvasH / 2

	d := &Descriptor{
		Version: "1",
		Layout:  layout,
		Canvas:  Region{W: canvasW, H: canvasH},
		Source: SourceInfo{
			Path:     opts.SourcePath,
			Width:    tl.FrameWidth,
			Height:   tl.FrameHeight,
			Duration: tl.Duration,
		},
	}

	trackedDest := Region{W: canvasW, H: canvasH}
	if layout.Stacked() {
		trackedDest = Region{Y: halfH, W: canvasW, H: halfH}
		d.Second = secondarySlot(layout, opts.SecondaryContent, canvasW, halfH)
	}

	for _, seg := range tl.Segments {
		sm := SegmentMap{Mode: seg.Mode.String(), Start: seg.Start, End: seg.End}

		switch {
		case seg.Mode == classifier.TwoFace && !layout.Stacked():
			// Split screen: left subject on top, right below
			top := Region{W: canvasW, H: halfH}
			bottom := Region{Y: halfH, W: canvasW, H: halfH}
			sm.Boxes = []BoxMapping{
				{Dest: top, Keyframes: boxKeyframes(seg.Keyframes, 0)},
				{Dest: bottom, Keyframes: boxKeyframes(seg.Keyframes, 1)},
			}
		default:
			sm.Boxes = []BoxMapping{
				{Dest: trackedDest, Keyframes: boxKeyframes(seg.Keyframes, 0)},
			}
		}

		d.Segments = append(d.Segments, sm)
	}

	if opts.CaptionText != "" {
		d.Caption = captionSlot(opts.CaptionText, opts.CaptionFraction, canvasW, canvasH)
	}
	return d, nil
}

func boxKeyframes(kfs []timeline.CropKeyframe, idx int) []BoxKeyframe {
	out := make([]BoxKeyframe, 0, len(kfs))
	for _, kf := range kfs {
		if idx >= len(kf.Rects) {
			continue
		}
		r := kf.Rects[idx]
		out = append(out, BoxKeyframe{
			Time:       kf.Timestamp,
			X:          r.X,
			Y:          r.Y,
			W:          r.Width,
			H:          r.Height,
			Undersized: r.Undersized,
		})
	}
	return out
}

func secondarySlot(layout Layout, source string, canvasW, halfH int) *Secondary {
	s := &Secondary{
		Kind:   "photo",
		Source: source,
		Dest:   Region{W: canvasW, H: halfH},
	}
	if layout == LayoutStackedVideo {
		s.Kind = "video"
	}
	if source == "" {
		s.Placeholder = true
		if s.Kind == "photo" {
			s.Color = PlaceholderColor
		}
	}
	return s
}

func captionSlot(text string, fraction float64, canvasW, canvasH int) *Caption {
	if fraction <= 0 || fraction >= 1 {
		fraction = defaultCaptionFraction
	}
	y := int(fraction * float64(canvasH))
	return &Caption{
		Text: text,
		Dest: Region{Y: y, W: canvasW, H: canvasH - y},
	}
}
