package ports

import (
	"context"
	"image"
)

// Mask is a per-pixel foreground confidence map aligned with one frame.
// Values are in [0,1]; a pixel is "subject" iff its value exceeds the
// segmentation threshold, "background" otherwise.
type Mask struct {
	Width  int
	Height int
	Data   []float32 // row-major, len == Width*Height
}

// NewMask allocates a zero-valued (all background) mask.
func NewMask(width, height int) *Mask {
	return &Mask{
		Width:  width,
		Height: height,
		Data:   make([]float32, width*height),
	}
}

// At returns the confidence value at (x, y).
func (m *Mask) At(x, y int) float32 {
	return m.Data[y*m.Width+x]
}

// Set stores the confidence value at (x, y).
func (m *Mask) Set(x, y int, v float32) {
	m.Data[y*m.Width+x] = v
}

// Segmenter produces a subject/background confidence mask for a frame.
// It is consumed as a black box; the segmentation model itself lives behind
// this interface.
type Segmenter interface {
	// Segment returns a mask with the same dimensions as frame.
	Segment(ctx context.Context, frame image.Image) (*Mask, error)

	// Close releases segmenter resources.
	Close() error
}
