package geometry

import "math"

// Ratio is a target aspect ratio expressed as width:height
type Ratio struct {
	W int `yaml:"w"`
	H int `yaml:"h"`
}

var (
	// RatioVertical is the full-frame 9:16 output aspect
	RatioVertical = Ratio{W: 9, H: 16}
	// RatioStackedHalf is the aspect of one half of a stacked 9:16 canvas
	RatioStackedHalf = Ratio{W: 9, H: 8}
)

// Value returns the ratio as width/height
func (r Ratio) Value() float64 {
	if r.H == 0 {
		return 0
	}
	return float64(r.W) / float64(r.H)
}

// BoundingBox is a detected face box in source-frame pixel coordinates
type BoundingBox struct {
	X          float64 `yaml:"x"`
	Y          float64 `yaml:"y"`
	Width      float64 `yaml:"width"`
	Height     float64 `yaml:"height"`
	Confidence float64 `yaml:"confidence,omitempty"`
}

// Right returns the right edge coordinate
func (b BoundingBox) Right() float64 { return b.X + b.Width }

// Bottom returns the bottom edge coordinate
func (b BoundingBox) Bottom() float64 { return b.Y + b.Height }

// CenterX returns the horizontal center of the box
func (b BoundingBox) CenterX() float64 { return b.X + b.Width/2 }

// CenterY returns the vertical center of the box
func (b BoundingBox) CenterY() float64 { return b.Y + b.Height/2 }

// Area returns the box area in square pixels
func (b BoundingBox) Area() float64 { return b.Width * b.Height }

// CropRect is an output crop rectangle in source-frame coordinates.
// Undersized marks a degraded best-effort crop produced when the source
// frame cannot contain the desired framing at the target aspect.
type CropRect struct {
	X          float64 `yaml:"x"`
	Y          float64 `yaml:"y"`
	Width      float64 `yaml:"width"`
	Height     float64 `yaml:"height"`
	Undersized bool    `yaml:"undersized,omitempty"`
}

// Aspect returns width/height of the rectangle
func (r CropRect) Aspect() float64 {
	if r.Height == 0 {
		return 0
	}
	return r.Width / r.Height
}

// Calculator converts face boxes into crop rectangles within one source frame
type Calculator struct {
	FrameWidth  float64
	FrameHeight float64
}

// NewCalculator creates a Calculator for the given source frame size
func NewCalculator(frameWidth, frameHeight float64) *Calculator {
	return &Calculator{FrameWidth: frameWidth, FrameHeight: frameHeight}
}

// ComputeBox expands a face box into a crop rectangle at the target aspect.
// Expansion: left/right pad by one face width, top pad by half the face
// height, bottom pad by 0.75 of it (chin/chest framing). The result is
// conformed to the aspect by growing the shorter dimension around the box
// center and shifted inward to stay inside the frame.
func (c *Calculator) ComputeBox(face BoundingBox, aspect Ratio) CropRect {
	left := face.X - face.Width
	top := face.Y - face.Height/2
	right := face.Right() + face.Width
	bottom := face.Bottom() + face.Height*0.75

	rect := CropRect{X: left, Y: top, Width: right - left, Height: bottom - top}
	rect = conformAspect(rect, aspect)

	if rect.Width > c.FrameWidth || rect.Height > c.FrameHeight {
		return c.centeredFallback(face.CenterX(), face.CenterY(), aspect)
	}

	return c.clamp(rect)
}

// ComputeBoxPair builds two 9:8 crop rectangles for a dual-subject split
// screen. Faces are ordered left to right and share a common crop size
// derived from the average of their expanded box widths, so both halves
// scale identically when stacked.
func (c *Calculator) ComputeBoxPair(a, b BoundingBox) [2]CropRect {
	if a.CenterX() > b.CenterX() {
		a, b = b, a
	}

	boxA := expand(a)
	boxB := expand(b)

	width := (boxA.Width + boxB.Width) / 2
	height := width / RatioStackedHalf.Value()

	undersized := false
	if width > c.FrameWidth {
		width = c.FrameWidth
		height = width / RatioStackedHalf.Value()
		undersized = true
	}
	if height > c.FrameHeight {
		height = c.FrameHeight
		width = height * RatioStackedHalf.Value()
		undersized = true
	}

	mk := func(face BoundingBox, box CropRect) CropRect {
		r := CropRect{
			X:          face.CenterX() - width/2,
			Y:          box.Y,
			Width:      width,
			Height:     height,
			Undersized: undersized,
		}
		return c.clamp(r)
	}

	return [2]CropRect{mk(a, boxA), mk(b, boxB)}
}

// CenteredCrop returns the largest crop at the given aspect centered in the frame
func (c *Calculator) CenteredCrop(aspect Ratio) CropRect {
	return c.centeredAt(c.FrameWidth/2, c.FrameHeight/2, aspect, false)
}

// expand applies the corner-based padding without aspect conformance
func expand(face BoundingBox) CropRect {
	left := face.X - face.Width
	top := face.Y - face.Height/2
	right := face.Right() + face.Width
	bottom := face.Bottom() + face.Height*0.75
	return CropRect{X: left, Y: top, Width: right - left, Height: bottom - top}
}

// conformAspect grows the shorter dimension symmetrically around the center
// until the rectangle matches the target aspect exactly
func conformAspect(r CropRect, aspect Ratio) CropRect {
	target := aspect.Value()
	if target <= 0 || r.Height <= 0 {
		return r
	}

	cx := r.X + r.Width/2
	cy := r.Y + r.Height/2

	if r.Width/r.Height < target {
		r.Width = r.Height * target
	} else {
		r.Height = r.Width / target
	}

	r.X = cx - r.Width/2
	r.Y = cy - r.Height/2
	return r
}

// clamp shifts the rectangle inward so it lies within the frame. The size is
// preserved to keep the aspect exact; callers guarantee it fits.
func (c *Calculator) clamp(r CropRect) CropRect {
	r.X = math.Max(0, math.Min(r.X, c.FrameWidth-r.Width))
	r.Y = math.Max(0, math.Min(r.Y, c.FrameHeight-r.Height))
	return r
}

// centeredFallback returns the largest aspect-true crop the frame can hold,
// positioned as close to the requested center as bounds allow
func (c *Calculator) centeredFallback(cx, cy float64, aspect Ratio) CropRect {
	return c.centeredAt(cx, cy, aspect, true)
}

func (c *Calculator) centeredAt(cx, cy float64, aspect Ratio, undersized bool) CropRect {
	target := aspect.Value()

	width := c.FrameWidth
	height := width / target
	if height > c.FrameHeight {
		height = c.FrameHeight
		width = height * target
	}

	r := CropRect{
		X:          cx - width/2,
		Y:          cy - height/2,
		Width:      width,
		Height:     height,
		Undersized: undersized,
	}
	return c.clamp(r)
}
