package ports

import (
	"context"
	"image"
)

// VideoMeta describes a video source as reported by the decoder.
type VideoMeta struct {
	Width       int
	Height      int
	FPS         float64
	TotalFrames int
	HasAudio    bool
}

// FrameReader delivers decoded frames strictly in presentation order.
// Next returns io.EOF after the last frame. Random access is not supported.
type FrameReader interface {
	// Meta returns the source properties determined when the reader was opened.
	Meta() VideoMeta

	// Next decodes and returns the next frame at the source's native resolution.
	Next() (*image.RGBA, error)

	// Close releases decoder resources.
	Close() error
}

// VideoDecoder abstracts sequential video decoding.
type VideoDecoder interface {
	// Open starts a sequential decode of the file at path.
	Open(ctx context.Context, path string) (FrameReader, error)
}
