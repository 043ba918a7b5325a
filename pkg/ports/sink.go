package ports

import (
	"image"
)

// DebugSink abstracts debug output for intermediate results.
// It allows saving intermediate processing results for debugging purposes.
type DebugSink interface {
	// Enabled returns true if debug output is enabled.
	Enabled() bool

	// SaveRunJSON saves run metadata as JSON.
	SaveRunJSON(data []byte) error

	// SaveSourceFrame saves a decoded source frame.
	SaveSourceFrame(index int, img image.Image) error

	// SaveMask saves a segmentation mask rendered as a grayscale image.
	SaveMask(index int, img image.Image) error

	// SaveVariantFrame saves one filter variant of a composited frame.
	SaveVariantFrame(filterID string, index int, img image.Image) error
}
