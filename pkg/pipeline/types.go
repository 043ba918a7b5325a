package pipeline

import (
	"image"

	"github.com/user/filterbox/pkg/ports"
)

// DefaultThreshold is the segmentation threshold used when none is configured.
// A mask value strictly greater than the threshold classifies the pixel as
// subject; a value equal to the threshold is background.
const DefaultThreshold = 0.5

// =============================================================================
// Composite Stage Types
// =============================================================================

// CompositeInput contains one frame, its mask, and the filters to apply.
type CompositeInput struct {
	Frame     *image.RGBA
	Mask      *ports.Mask
	Threshold float32
}

// CompositeResult contains one output frame per filter, in registry order.
type CompositeResult struct {
	Variants []*image.RGBA
}

// =============================================================================
// Encode Stage Types
// =============================================================================

// EncodeInput contains parameters for encoding one filter variant stream.
type EncodeInput struct {
	Quality int     // 0-100, higher is better; codecs map this to their own scale
	Bitrate int     // Target bitrate in kbps, 0 lets the encoder decide
	FPS     float64 // Frames per second
}

// EncodeResult contains one finalized variant container.
type EncodeResult struct {
	FilterID string
	Data     []byte
	FileSize int64
}
