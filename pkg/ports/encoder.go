package ports

import (
	"context"
	"image"
)

// VideoEncoder abstracts video encoding operations.
type VideoEncoder interface {
	// Begin initializes the encoder with the specified dimensions and frame rate.
	Begin(width, height int, fps float64, opts EncoderOptions) error

	// EncodeFrame encodes a single frame at the specified timestamp.
	EncodeFrame(img image.Image, timestampMs int) error

	// End finalizes encoding and returns the playable container data.
	End() ([]byte, error)
}

// EncoderOptions configures video encoding parameters.
type EncoderOptions struct {
	Bitrate int // Target bitrate in kbps
	Quality int // CRF value: 0-63 (lower is higher quality)
}

// AudioRemuxer merges the audio track of a source file into encoded video data.
// The audio stream is copied or transcoded as-is; it is never filtered.
type AudioRemuxer interface {
	// Remux returns video with the source's audio track muxed in.
	// If the source has no audio track, video is returned unchanged.
	Remux(ctx context.Context, video []byte, sourcePath string) ([]byte, error)
}
