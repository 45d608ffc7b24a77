package preview

import (
	"image"
	"sync"
)

// framePool recycles the canvas buffer between ComposeFrame calls. A
// preview session renders one canvas size, so a single pool with a
// bounds check on reuse is enough; mismatched buffers are dropped.
var framePool sync.Pool

// GetFrame returns an *image.RGBA with the given bounds, reusing a
// pooled buffer when its size matches.
func GetFrame(rect image.Rectangle) *image.RGBA {
	if img, ok := framePool.Get().(*image.RGBA); ok && img.Rect == rect {
		return img
	}
	return image.NewRGBA(rect)
}

// PutFrame hands a frame back for reuse by a later GetFrame.
func PutFrame(img *image.RGBA) {
	if img != nil {
		framePool.Put(img)
	}
}
