package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"

	xdraw "golang.org/x/image/draw"

	"github.com/ivlev/reelframe/internal/composer"
	"github.com/ivlev/reelframe/internal/geometry"
)

// Package preview renders diagnostic stills: detection boxes and crop
// rectangles drawn over source frames, and full output-canvas mockups
// composed from a descriptor. Nothing here touches video; inputs are
// decoded frame grabs.

var (
	faceColor = color.RGBA{0, 255, 0, 255}   // accepted detections
	cropColor = color.RGBA{255, 165, 0, 255} // crop rectangles
)

// Annotate draws face boxes and crop rects over a source frame and
// returns a new image; the input is not modified.
func Annotate(src image.Image, boxes []geometry.BoundingBox, rects []geometry.CropRect) *image.RGBA {
	bounds := src.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, src, bounds.Min, draw.Src)

	for _, b := range boxes {
		drawRect(out, int(b.X), int(b.Y), int(b.Right()), int(b.Bottom()), faceColor, 2)
	}
	for _, r := range rects {
		drawRect(out, int(r.X), int(r.Y), int(r.X+r.Width), int(r.Y+r.Height), cropColor, 3)
	}
	return out
}

// ComposeFrame renders one output-canvas frame at time t from a
// descriptor: each box mapping is cropped from src and scaled into its
// destination region, placeholder slots are filled, the caption band is
// shaded. The returned frame comes from the frame pool; hand it back
// with PutFrame when done.
func ComposeFrame(src image.Image, d *composer.Descriptor, t float64) (*image.RGBA, error) {
	if d == nil || len(d.Segments) == 0 {
		return nil, fmt.Errorf("preview: empty descriptor")
	}

	canvas := GetFrame(image.Rect(0, 0, d.Canvas.W, d.Canvas.H))
	draw.Draw(canvas, canvas.Bounds(), image.Black, image.Point{}, draw.Src)

	if d.Second != nil {
		fillRegion(canvas, d.Second.Dest, secondaryColor(d.Second))
	}

	seg := segmentAt(d, t)
	for _, box := range seg.Boxes {
		kf := keyframeAt(box.Keyframes, t)
		sr := image.Rect(int(kf.X), int(kf.Y), int(kf.X+kf.W), int(kf.Y+kf.H))
		dr := regionRect(box.Dest)
		xdraw.CatmullRom.Scale(canvas, dr, src, sr, xdraw.Src, nil)
	}

	if d.Caption != nil {
		shade := image.NewUniform(color.RGBA{0, 0, 0, 128})
		draw.Draw(canvas, regionRect(d.Caption.Dest), shade, image.Point{}, draw.Over)
	}
	return canvas, nil
}

// segmentAt picks the segment covering t; times past the end hold the
// last segment.
func segmentAt(d *composer.Descriptor, t float64) composer.SegmentMap {
	for _, seg := range d.Segments {
		if t < seg.End {
			return seg
		}
	}
	return d.Segments[len(d.Segments)-1]
}

// keyframeAt returns the last keyframe at or before t
func keyframeAt(kfs []composer.BoxKeyframe, t float64) composer.BoxKeyframe {
	out := kfs[0]
	for _, kf := range kfs {
		if kf.Time > t {
			break
		}
		out = kf
	}
	return out
}

func secondaryColor(s *composer.Secondary) color.RGBA {
	if s.Kind == "photo" && s.Color != "" {
		if c, err := parseHexColor(s.Color); err == nil {
			return c
		}
	}
	// Video slots have no single color; a flat gray stands in
	return color.RGBA{0x3B, 0x42, 0x52, 0xFF}
}

func parseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("preview: bad color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, err
	}
	return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 0xFF}, nil
}

func regionRect(r composer.Region) image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

func fillRegion(img *image.RGBA, r composer.Region, c color.RGBA) {
	draw.Draw(img, regionRect(r), image.NewUniform(c), image.Point{}, draw.Src)
}

// drawRect draws a rectangle outline with the given thickness
func drawRect(img *image.RGBA, x1, y1, x2, y2 int, col color.RGBA, thickness int) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	for t := 0; t < thickness; t++ {
		for x := x1; x <= x2; x++ {
			if x < 0 || x >= w {
				continue
			}
			if y1+t >= 0 && y1+t < h {
				img.Set(x, y1+t, col)
			}
			if y2-t >= 0 && y2-t < h {
				img.Set(x, y2-t, col)
			}
		}
		for y := y1; y <= y2; y++ {
			if y < 0 || y >= h {
				continue
			}
			if x1+t >= 0 && x1+t < w {
				img.Set(x1+t, y, col)
			}
			if x2-t >= 0 && x2-t < w {
				img.Set(x2-t, y, col)
			}
		}
	}
}
