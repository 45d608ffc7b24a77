package panning

import (
	"math"

	"github.com/ivlev/reelframe/internal/geometry"
)

// Generator produces the crop path used when no subject is on screen: a
// slow horizontal oscillation between two bounds, full frame height. The
// position function is a sine with phase -pi/2, so a segment starts at the
// left bound with zero velocity and both position and velocity stay
// continuous across cycle boundaries.
type Generator struct {
	FrameWidth    float64
	FrameHeight   float64
	CycleDuration float64 // seconds per full left-right-left oscillation
	LeftBound     float64 // fraction of frame width, e.g. 0.15
	RightBound    float64 // fraction of frame width, e.g. 0.85
}

// NewGenerator creates a Generator with the classic podcast defaults:
// an 8 second cycle sweeping between 15% and 85% of the frame width.
func NewGenerator(frameWidth, frameHeight float64) *Generator {
	return &Generator{
		FrameWidth:    frameWidth,
		FrameHeight:   frameHeight,
		CycleDuration: 8.0,
		LeftBound:     0.15,
		RightBound:    0.85,
	}
}

// Rect returns the pan crop at time t (seconds from segment start) at the
// given aspect. The crop uses the full frame height, vertically centered.
func (g *Generator) Rect(t float64, aspect geometry.Ratio) geometry.CropRect {
	height := g.FrameHeight
	width := height * aspect.Value()
	if width > g.FrameWidth {
		width = g.FrameWidth
		height = width / aspect.Value()
	}

	x := g.Position(t, width)
	return geometry.CropRect{
		X:      x,
		Y:      (g.FrameHeight - height) / 2,
		Width:  width,
		Height: height,
	}
}

// Position returns the crop x coordinate at time t for a crop of the given
// width. Pure function of t: no state survives between calls.
func (g *Generator) Position(t, cropWidth float64) float64 {
	left := g.FrameWidth * g.LeftBound
	right := g.FrameWidth*g.RightBound - cropWidth

	// Degenerate bounds collapse to a static clamped position
	if right < left {
		right = left
	}
	if right > g.FrameWidth-cropWidth {
		right = math.Max(0, g.FrameWidth-cropWidth)
	}
	if left > right {
		left = right
	}

	center := (left + right) / 2
	amplitude := (right - left) / 2

	cycle := g.CycleDuration
	if cycle <= 0 {
		return center
	}

	angle := (2 * math.Pi * t / cycle) - math.Pi/2
	x := center + amplitude*math.Sin(angle)

	return math.Max(left, math.Min(x, right))
}
